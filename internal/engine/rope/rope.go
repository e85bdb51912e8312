package rope

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Errors returned by tree operations.
var (
	// ErrOutOfRange indicates an offset, line or column outside current bounds.
	ErrOutOfRange = errors.New("out of range")

	// ErrInvariantViolation indicates cached metrics disagree with content.
	ErrInvariantViolation = errors.New("chunk tree invariant violation")
)

// Option configures a Tree during creation.
type Option func(*Tree)

// WithChunkCapacity sets the maximum number of runes per chunk.
// Values below MinChunkCapacity are raised to it.
func WithChunkCapacity(capacity int) Option {
	return func(t *Tree) {
		t.capacity = max(capacity, MinChunkCapacity)
	}
}

// Tree is a mutable chunk tree.
// It is not safe for concurrent mutation.
type Tree struct {
	nodes    []node
	free     []nodeID
	root     nodeID
	capacity int

	path []nodeID // Scratch stack reused by fast paths
}

// New creates an empty tree.
func New(opts ...Option) *Tree {
	t := &Tree{
		root:     nilNode,
		capacity: DefaultChunkCapacity,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// FromString creates a tree holding s. Invalid UTF-8 is replaced as by
// ValidUTF8.
func FromString(s string, opts ...Option) *Tree {
	t := New(opts...)
	t.root = t.build(splitIntoChunks(ValidUTF8(s), t.capacity))
	return t
}

// FromReader creates a tree from an io.Reader.
// Input is consumed in blocks; UTF-8 sequences split across reads are kept whole.
func FromReader(r io.Reader, opts ...Option) (*Tree, error) {
	t := New(opts...)
	br := bufio.NewReaderSize(r, 64*1024)
	buf := make([]byte, 64*1024)
	var carry []byte

	for {
		n, err := br.Read(buf)
		if n > 0 {
			data := append(carry, buf[:n]...)
			cut := len(data)
			// Hold back an incomplete trailing rune for the next read.
			for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
				if utf8.RuneStart(data[i]) {
					if !utf8.FullRune(data[i:]) {
						cut = i
					}
					break
				}
			}
			t.Append(string(data[:cut]))
			carry = append([]byte(nil), data[cut:]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tree content: %w", err)
		}
	}
	if len(carry) > 0 {
		t.Append(string(carry))
	}
	return t, nil
}

// ChunkCapacity returns the maximum number of runes per chunk.
func (t *Tree) ChunkCapacity() int {
	return t.capacity
}

// lowWater is the leaf size below which seam leaves are merged.
func (t *Tree) lowWater() int {
	return t.capacity / 4
}

// Len returns the total rune length.
func (t *Tree) Len() int {
	return t.length(t.root)
}

// ByteLen returns the total UTF-8 byte length.
func (t *Tree) ByteLen() int {
	if t.root == nilNode {
		return 0
	}
	return t.nodes[t.root].bytes
}

// LineCount returns the number of lines (line breaks + 1).
func (t *Tree) LineCount() int {
	if t.root == nilNode {
		return 1
	}
	return t.nodes[t.root].lines + 1
}

// IsEmpty returns true if the tree contains no text.
func (t *Tree) IsEmpty() bool {
	return t.Len() == 0
}

// String returns the full text as a string.
// This materializes the whole document; avoid it on hot paths.
func (t *Tree) String() string {
	var sb strings.Builder
	sb.Grow(t.ByteLen())
	t.Chunks(func(c Chunk) bool {
		sb.WriteString(c.String())
		return true
	})
	return sb.String()
}

// Substring returns the text in the rune range [start, end).
func (t *Tree) Substring(start, end int) (string, error) {
	if err := t.checkRange("substring", start, end); err != nil {
		return "", err
	}
	if start == end {
		return "", nil
	}
	var sb strings.Builder
	t.appendRange(&sb, t.root, start, end)
	return sb.String(), nil
}

// appendRange appends the text of [start, end) relative to the subtree.
func (t *Tree) appendRange(sb *strings.Builder, id nodeID, start, end int) {
	n := &t.nodes[id]
	if n.isLeaf() {
		sb.WriteString(n.chunk.Slice(start, end))
		return
	}
	ll := t.nodes[n.left].length
	if start < ll {
		t.appendRange(sb, n.left, start, min(end, ll))
	}
	if end > ll {
		t.appendRange(sb, n.right, max(start-ll, 0), end-ll)
	}
}

// RuneAt returns the rune at offset pos.
func (t *Tree) RuneAt(pos int) (rune, error) {
	if pos < 0 || pos >= t.Len() {
		return 0, fmt.Errorf("rune at %d (length %d): %w", pos, t.Len(), ErrOutOfRange)
	}
	id := t.root
	for {
		n := &t.nodes[id]
		if n.isLeaf() {
			return n.chunk.RuneAt(pos), nil
		}
		if ll := t.nodes[n.left].length; pos < ll {
			id = n.left
		} else {
			pos -= ll
			id = n.right
		}
	}
}

// Chunks calls fn for every chunk in document order until fn returns false.
func (t *Tree) Chunks(fn func(Chunk) bool) {
	if t.root != nilNode {
		t.walk(t.root, fn)
	}
}

func (t *Tree) walk(id nodeID, fn func(Chunk) bool) bool {
	n := &t.nodes[id]
	if n.isLeaf() {
		return fn(n.chunk)
	}
	left, right := n.left, n.right
	return t.walk(left, fn) && t.walk(right, fn)
}

// Insert and delete

// InsertAt inserts text at rune offset pos. Invalid UTF-8 is replaced as
// by ValidUTF8.
func (t *Tree) InsertAt(pos int, text string) error {
	if pos < 0 || pos > t.Len() {
		return fmt.Errorf("insert at %d (length %d): %w", pos, t.Len(), ErrOutOfRange)
	}
	if len(text) == 0 {
		return nil
	}
	text = ValidUTF8(text)
	if t.root == nilNode {
		t.root = t.build(splitIntoChunks(text, t.capacity))
		return nil
	}

	leaf, off := t.descend(pos, true)
	runes := utf8.RuneCountInString(text)
	if c := t.nodes[leaf].chunk; c.Len()+runes <= t.capacity {
		// Fast path: the leaf has room for the text.
		t.setChunk(leaf, c.Insert(off, text))
		t.retrace()
		return nil
	}

	left, right := t.split(t.root, pos)
	mid := t.build(splitIntoChunks(text, t.capacity))
	t.root = t.join(t.join(left, mid), right)
	t.mergeSeam(pos)
	t.mergeSeam(pos + runes)
	return nil
}

// Append adds text at the end of the document.
// The last leaf is filled to capacity before new leaves are created.
// Invalid UTF-8 is replaced as by ValidUTF8.
func (t *Tree) Append(text string) {
	if len(text) == 0 {
		return
	}
	text = ValidUTF8(text)
	if t.root == nilNode {
		t.root = t.build(splitIntoChunks(text, t.capacity))
		return
	}

	end := t.Len()
	leaf, _ := t.descend(end, true)
	c := t.nodes[leaf].chunk
	if room := t.capacity - c.Len(); room > 0 {
		head := text
		if len(text) > room {
			head = text[:prefixBytes(text, room)]
		}
		t.setChunk(leaf, c.Concat(NewChunk(head)))
		t.retrace()
		text = text[len(head):]
		if len(text) == 0 {
			return
		}
		end = t.Len()
	}

	t.root = t.join(t.root, t.build(splitIntoChunks(text, t.capacity)))
	t.mergeSeam(end)
}

// prefixBytes returns the byte length of the first n runes of s.
func prefixBytes(s string, n int) int {
	count := 0
	for i := range s {
		if count == n {
			return i
		}
		count++
	}
	return len(s)
}

// Delete removes the runes in [start, end).
func (t *Tree) Delete(start, end int) error {
	if err := t.checkRange("delete", start, end); err != nil {
		return err
	}
	if start == end {
		return nil
	}

	leaf, off := t.descend(start, false)
	if c := t.nodes[leaf].chunk; off+(end-start) < c.Len() {
		// Fast path: the range lies strictly inside one leaf.
		t.setChunk(leaf, c.Remove(off, off+(end-start)))
		t.retrace()
		leafStart := start - off
		t.mergeSeam(leafStart + c.Len() - (end - start))
		t.mergeSeam(leafStart)
		return nil
	}

	left, rest := t.split(t.root, start)
	mid, right := t.split(rest, end-start)
	t.releaseSubtree(mid)
	t.root = t.join(left, right)
	t.mergeSeam(start)
	return nil
}

func (t *Tree) checkRange(op string, start, end int) error {
	if start < 0 || start > end || end > t.Len() {
		return fmt.Errorf("%s [%d, %d) (length %d): %w", op, start, end, t.Len(), ErrOutOfRange)
	}
	return nil
}

// descend walks from the root to the leaf holding pos and records the path
// in t.path. With preferLeft, a position on a leaf boundary resolves to the
// end of the left leaf; otherwise to the start of the right one.
func (t *Tree) descend(pos int, preferLeft bool) (nodeID, int) {
	t.path = t.path[:0]
	id := t.root
	for {
		t.path = append(t.path, id)
		n := &t.nodes[id]
		if n.isLeaf() {
			return id, pos
		}
		ll := t.nodes[n.left].length
		if pos < ll || (preferLeft && pos == ll) {
			id = n.left
		} else {
			pos -= ll
			id = n.right
		}
	}
}

// retrace refreshes metrics along the path recorded by the last descend.
func (t *Tree) retrace() {
	for i := len(t.path) - 1; i >= 0; i-- {
		t.update(t.path[i])
	}
}

// mergeSeam merges the leaves ending and starting at pos when either is
// below the low-water mark and the result fits one chunk.
func (t *Tree) mergeSeam(pos int) {
	if pos <= 0 || pos >= t.Len() {
		return
	}
	right, roff := t.descend(pos, false)
	if roff != 0 {
		return // pos is inside a leaf, not on a seam
	}
	left, _ := t.descend(pos, true)

	lc, rc := t.nodes[left].chunk, t.nodes[right].chunk
	if lc.Len() >= t.lowWater() && rc.Len() >= t.lowWater() {
		return
	}
	if lc.Len()+rc.Len() > t.capacity {
		return
	}

	t.setChunk(left, lc.Concat(rc))
	t.retrace()
	// The right leaf now starts at pos + its own length shifted by the merge.
	t.root = t.removeLeaf(t.root, pos+rc.Len())
}
