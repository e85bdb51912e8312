package rope

import "fmt"

// Line queries. Lines are 0-indexed and separated by '\n'. A line's range
// excludes its terminating line break.

// LineStart returns the rune offset at which line begins.
func (t *Tree) LineStart(line int) (int, error) {
	if line < 0 || line >= t.LineCount() {
		return 0, fmt.Errorf("line %d (count %d): %w", line, t.LineCount(), ErrOutOfRange)
	}
	if line == 0 {
		return 0, nil
	}
	return t.newlinePos(line) + 1, nil
}

// LineEnd returns the rune offset just past the last character of line,
// not counting its line break.
func (t *Tree) LineEnd(line int) (int, error) {
	if line < 0 || line >= t.LineCount() {
		return 0, fmt.Errorf("line %d (count %d): %w", line, t.LineCount(), ErrOutOfRange)
	}
	if line == t.LineCount()-1 {
		return t.Len(), nil
	}
	return t.newlinePos(line + 1), nil
}

// FindLineString returns the text of line without its line break.
func (t *Tree) FindLineString(line int) (string, error) {
	start, err := t.LineStart(line)
	if err != nil {
		return "", err
	}
	end, _ := t.LineEnd(line)
	return t.Substring(start, end)
}

// FindLineAndColumnFromOffset converts a rune offset into a line and column.
// An offset equal to Len is accepted and lands at the end of the last line.
func (t *Tree) FindLineAndColumnFromOffset(offset int) (line, col int, err error) {
	if offset < 0 || offset > t.Len() {
		return 0, 0, fmt.Errorf("offset %d (length %d): %w", offset, t.Len(), ErrOutOfRange)
	}
	line = t.linesBefore(offset)
	start, _ := t.LineStart(line)
	return line, offset - start, nil
}

// OffsetFromLineAndColumn converts a line and column into a rune offset.
// The column may equal the line length to address the position before the
// line break.
func (t *Tree) OffsetFromLineAndColumn(line, col int) (int, error) {
	start, err := t.LineStart(line)
	if err != nil {
		return 0, err
	}
	end, _ := t.LineEnd(line)
	if col < 0 || start+col > end {
		return 0, fmt.Errorf("column %d on line %d (length %d): %w", col, line, end-start, ErrOutOfRange)
	}
	return start + col, nil
}

// newlinePos returns the rune offset of the k-th line break (1-based).
// The caller guarantees 1 <= k <= total line breaks.
func (t *Tree) newlinePos(k int) int {
	id := t.root
	pos := 0
	for {
		n := &t.nodes[id]
		if n.isLeaf() {
			return pos + n.chunk.newlineOffset(k)
		}
		l := &t.nodes[n.left]
		if k <= l.lines {
			id = n.left
		} else {
			k -= l.lines
			pos += l.length
			id = n.right
		}
	}
}

// linesBefore returns the number of line breaks in [0, pos).
func (t *Tree) linesBefore(pos int) int {
	if t.root == nilNode {
		return 0
	}
	id := t.root
	lines := 0
	for {
		n := &t.nodes[id]
		if n.isLeaf() {
			return lines + n.chunk.linesBefore(pos)
		}
		l := &t.nodes[n.left]
		if pos < l.length {
			id = n.left
		} else {
			pos -= l.length
			lines += l.lines
			id = n.right
		}
	}
}
