package syntax

import (
	"unicode/utf8"

	"github.com/dshills/bigtext/internal/engine"
)

// Placeholder replaces every non-ASCII rune in the normalized stream.
const Placeholder = '?'

// readBlock is the number of runes returned per read.
const readBlock = 4096

// ReadFunc returns normalized bytes starting at byte offset. An empty
// result means the offset is at or past the end of input.
type ReadFunc func(offset int) []byte

// Input is a byte-indexed view of a normalized document.
type Input struct {
	Read ReadFunc
	Len  int
}

// NewInput returns an input reading from r on demand.
func NewInput(r engine.Reader) Input {
	n := r.Len()
	return Input{
		Len: n,
		Read: func(offset int) []byte {
			if offset < 0 || offset >= n {
				return nil
			}
			s, err := r.Substring(offset, min(offset+readBlock, n))
			if err != nil {
				return nil
			}
			return Normalize(s)
		},
	}
}

// StringInput returns an input over s.
func StringInput(s string) Input {
	b := Normalize(s)
	return Input{
		Len: len(b),
		Read: func(offset int) []byte {
			if offset < 0 || offset >= len(b) {
				return nil
			}
			return b[offset:min(offset+readBlock, len(b))]
		},
	}
}

// Bytes reads the whole input.
func (in Input) Bytes() []byte {
	out := make([]byte, 0, in.Len)
	for len(out) < in.Len {
		b := in.Read(len(out))
		if len(b) == 0 {
			break
		}
		out = append(out, b...)
	}
	return out
}

// Normalize replaces every non-ASCII rune of s with Placeholder.
func Normalize(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); {
		b := s[i]
		if b < utf8.RuneSelf {
			out = append(out, b)
			i++
			continue
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		out = append(out, Placeholder)
		i += size
	}
	return out
}

// PointAt returns the point of rune offset off in r.
func PointAt(r engine.Reader, off int) (Point, error) {
	line, col, err := r.FindLineAndColumnFromOffset(off)
	if err != nil {
		return Point{}, err
	}
	return Point{Row: line, Column: col}, nil
}
