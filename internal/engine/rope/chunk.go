package rope

import (
	"strings"
	"unicode/utf8"
)

// Chunk capacity constants, in runes.
const (
	// DefaultChunkCapacity is the chunk capacity used when none is configured.
	DefaultChunkCapacity = 1024

	// MinChunkCapacity is the smallest accepted chunk capacity.
	MinChunkCapacity = 16
)

// Chunk is a bounded string stored in a leaf node.
// Chunks are immutable once created; edits produce new chunks.
type Chunk struct {
	data  string // The actual text (immutable)
	runes int    // Rune count
	lines int    // Number of '\n' characters
	ascii bool   // All bytes < 0x80, rune offset == byte offset
}

// ValidUTF8 returns s with every run of invalid UTF-8 bytes replaced by
// utf8.RuneError. Valid input is returned unchanged.
func ValidUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, string(utf8.RuneError))
}

// NewChunk creates a chunk from a string.
// Computes metrics eagerly.
func NewChunk(s string) Chunk {
	c := Chunk{data: s, ascii: true}
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b == '\n' {
			c.lines++
		}
		if b >= utf8.RuneSelf {
			c.ascii = false
		}
	}
	if c.ascii {
		c.runes = len(s)
	} else {
		c.runes = utf8.RuneCountInString(s)
	}
	return c
}

// String returns the chunk's text.
func (c Chunk) String() string {
	return c.data
}

// Len returns the rune length of the chunk.
func (c Chunk) Len() int {
	return c.runes
}

// ByteLen returns the byte length of the chunk.
func (c Chunk) ByteLen() int {
	return len(c.data)
}

// Lines returns the number of line breaks in the chunk.
func (c Chunk) Lines() int {
	return c.lines
}

// IsASCII reports whether the chunk holds only ASCII text.
func (c Chunk) IsASCII() bool {
	return c.ascii
}

// IsEmpty returns true if the chunk contains no text.
func (c Chunk) IsEmpty() bool {
	return len(c.data) == 0
}

// byteOffset converts a rune offset within the chunk to a byte offset.
func (c Chunk) byteOffset(off int) int {
	if off <= 0 {
		return 0
	}
	if off >= c.runes {
		return len(c.data)
	}
	if c.ascii {
		return off
	}
	n := 0
	for i := range c.data {
		if n == off {
			return i
		}
		n++
	}
	return len(c.data)
}

// Slice returns the text between rune offsets [start, end).
func (c Chunk) Slice(start, end int) string {
	return c.data[c.byteOffset(start):c.byteOffset(end)]
}

// Split splits a chunk at a rune offset, returning two chunks.
func (c Chunk) Split(off int) (Chunk, Chunk) {
	if off <= 0 {
		return Chunk{ascii: true}, c
	}
	if off >= c.runes {
		return c, Chunk{ascii: true}
	}
	b := c.byteOffset(off)
	return NewChunk(c.data[:b]), NewChunk(c.data[b:])
}

// Insert returns a new chunk with s inserted at rune offset off.
func (c Chunk) Insert(off int, s string) Chunk {
	b := c.byteOffset(off)
	return NewChunk(c.data[:b] + s + c.data[b:])
}

// Concat returns a chunk holding c followed by other.
// Metrics are combined without rescanning either chunk.
func (c Chunk) Concat(other Chunk) Chunk {
	return Chunk{
		data:  c.data + other.data,
		runes: c.runes + other.runes,
		lines: c.lines + other.lines,
		ascii: c.ascii && other.ascii,
	}
}

// Remove returns a new chunk without the runes in [start, end).
func (c Chunk) Remove(start, end int) Chunk {
	return NewChunk(c.data[:c.byteOffset(start)] + c.data[c.byteOffset(end):])
}

// RuneAt returns the rune at rune offset off.
func (c Chunk) RuneAt(off int) rune {
	if c.ascii {
		return rune(c.data[off])
	}
	r, _ := utf8.DecodeRuneInString(c.data[c.byteOffset(off):])
	return r
}

// newlineOffset returns the rune offset of the k-th line break (1-based),
// or -1 if the chunk holds fewer than k line breaks. Runes are counted the
// way byteOffset counts them.
func (c Chunk) newlineOffset(k int) int {
	if k <= 0 || k > c.lines {
		return -1
	}
	if c.ascii {
		off := -1
		for ; k > 0; k-- {
			off += strings.IndexByte(c.data[off+1:], '\n') + 1
		}
		return off
	}
	seen, n := 0, 0
	for _, r := range c.data {
		if r == '\n' {
			seen++
			if seen == k {
				return n
			}
		}
		n++
	}
	return -1
}

// linesBefore returns the number of line breaks in [0, off).
func (c Chunk) linesBefore(off int) int {
	if off >= c.runes {
		return c.lines
	}
	return strings.Count(c.data[:c.byteOffset(off)], "\n")
}

// splitIntoChunks splits a string into chunks of at most capacity runes.
// A cut prefers to land just after a line break near the capacity boundary.
func splitIntoChunks(s string, capacity int) []Chunk {
	if len(s) == 0 {
		return nil
	}

	var chunks []Chunk
	remaining := s
	for len(remaining) > 0 {
		// Quick exit: fewer bytes than capacity means fewer runes too.
		if len(remaining) <= capacity {
			chunks = append(chunks, NewChunk(remaining))
			break
		}
		cut := cutPoint(remaining, capacity)
		chunks = append(chunks, NewChunk(remaining[:cut]))
		remaining = remaining[cut:]
	}
	return chunks
}

// cutPoint returns the byte index at which to end a chunk of at most
// capacity runes taken from the front of s.
func cutPoint(s string, capacity int) int {
	end := len(s)
	n := 0
	for i := range s {
		if n == capacity {
			end = i
			break
		}
		n++
	}
	if end == len(s) {
		return end
	}

	// Prefer splitting after a newline in the final eighth of the chunk.
	window := capacity / 8
	for i, back := end-1, 0; i > 0 && back < window*utf8.UTFMax; i, back = i-1, back+1 {
		if s[i] == '\n' {
			return i + 1
		}
	}
	return end
}
