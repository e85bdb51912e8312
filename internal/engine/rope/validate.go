package rope

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// LeafCount returns the number of leaves in the tree.
func (t *Tree) LeafCount() int {
	count := 0
	t.Chunks(func(Chunk) bool {
		count++
		return true
	})
	return count
}

// NodeCount returns the number of live nodes, leaves and internal nodes.
func (t *Tree) NodeCount() int {
	return len(t.nodes) - len(t.free)
}

// Height returns the tree height. An empty tree has height 0.
func (t *Tree) Height() int {
	return int(t.height(t.root))
}

// Validate checks every cached metric and structural invariant.
// Violations are reported wrapping ErrInvariantViolation.
func (t *Tree) Validate() error {
	if t.root == nilNode {
		return nil
	}
	_, err := t.validate(t.root)
	return err
}

func (t *Tree) validate(id nodeID) (int32, error) {
	n := &t.nodes[id]
	if n.isLeaf() {
		c := n.chunk
		if n.right != nilNode {
			return 0, fmt.Errorf("node %d: leaf with right child: %w", id, ErrInvariantViolation)
		}
		if c.IsEmpty() {
			return 0, fmt.Errorf("node %d: empty leaf: %w", id, ErrInvariantViolation)
		}
		if !utf8.ValidString(c.data) {
			return 0, fmt.Errorf("node %d: invalid UTF-8: %w", id, ErrInvariantViolation)
		}
		if got := utf8.RuneCountInString(c.data); got != c.runes || got != n.length {
			return 0, fmt.Errorf("node %d: rune count %d, cached %d/%d: %w", id, got, c.runes, n.length, ErrInvariantViolation)
		}
		if c.runes > t.capacity {
			return 0, fmt.Errorf("node %d: %d runes exceeds capacity %d: %w", id, c.runes, t.capacity, ErrInvariantViolation)
		}
		if got := strings.Count(c.data, "\n"); got != c.lines || got != n.lines {
			return 0, fmt.Errorf("node %d: line breaks %d, cached %d/%d: %w", id, got, c.lines, n.lines, ErrInvariantViolation)
		}
		if n.bytes != len(c.data) {
			return 0, fmt.Errorf("node %d: bytes %d, cached %d: %w", id, len(c.data), n.bytes, ErrInvariantViolation)
		}
		if n.height != 1 {
			return 0, fmt.Errorf("node %d: leaf height %d: %w", id, n.height, ErrInvariantViolation)
		}
		return 1, nil
	}

	if n.right == nilNode {
		return 0, fmt.Errorf("node %d: internal node with one child: %w", id, ErrInvariantViolation)
	}
	hl, err := t.validate(n.left)
	if err != nil {
		return 0, err
	}
	hr, err := t.validate(n.right)
	if err != nil {
		return 0, err
	}
	l, r := &t.nodes[n.left], &t.nodes[n.right]
	switch {
	case n.length != l.length+r.length:
		return 0, fmt.Errorf("node %d: length %d != %d+%d: %w", id, n.length, l.length, r.length, ErrInvariantViolation)
	case n.bytes != l.bytes+r.bytes:
		return 0, fmt.Errorf("node %d: bytes %d != %d+%d: %w", id, n.bytes, l.bytes, r.bytes, ErrInvariantViolation)
	case n.lines != l.lines+r.lines:
		return 0, fmt.Errorf("node %d: lines %d != %d+%d: %w", id, n.lines, l.lines, r.lines, ErrInvariantViolation)
	case n.height != 1+max(hl, hr):
		return 0, fmt.Errorf("node %d: height %d, computed %d: %w", id, n.height, 1+max(hl, hr), ErrInvariantViolation)
	case hl-hr > 1 || hr-hl > 1:
		return 0, fmt.Errorf("node %d: unbalanced (%d, %d): %w", id, hl, hr, ErrInvariantViolation)
	}
	return n.height, nil
}

// Rebuild re-materializes the tree from the text held in its leaves.
// Cached metrics are discarded and recomputed from chunk content.
func (t *Tree) Rebuild() {
	var chunks []Chunk
	t.Chunks(func(c Chunk) bool {
		if !c.IsEmpty() {
			chunks = append(chunks, c)
		}
		return true
	})
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.data)
	}
	t.nodes = t.nodes[:0]
	t.free = t.free[:0]
	t.path = t.path[:0]
	t.root = t.build(splitIntoChunks(ValidUTF8(sb.String()), t.capacity))
}

// Reader streams the tree's text without materializing it.
// It reads the chunks present when it was created; later edits are not seen.
type Reader struct {
	chunks  []string
	pending string
}

// NewReader returns an io.Reader over the tree's current text.
func (t *Tree) NewReader() *Reader {
	r := &Reader{}
	t.Chunks(func(c Chunk) bool {
		r.chunks = append(r.chunks, c.data)
		return true
	})
	return r
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if r.pending == "" {
			if len(r.chunks) == 0 {
				break
			}
			r.pending, r.chunks = r.chunks[0], r.chunks[1:]
		}
		k := copy(p[n:], r.pending)
		r.pending = r.pending[k:]
		n += k
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}
