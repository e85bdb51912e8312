// Package syntax defines the contract between syntax decorators and an
// incremental parser, and bundles a chroma-backed implementation.
//
// Parsers see a normalized byte stream in which every non-ASCII rune is
// replaced by a single '?' byte. Byte offsets in the stream therefore equal
// rune offsets in the document, and a Point's column is a rune column.
package syntax

import (
	"errors"
	"sort"
)

// ErrUnknownLanguage is returned when no lexer matches a language name.
var ErrUnknownLanguage = errors.New("unknown language")

// Point is a row/column position in the normalized stream.
type Point struct {
	Row    int
	Column int
}

// InputEdit describes one edit in parser coordinates.
type InputEdit struct {
	StartByte   int
	OldEndByte  int
	NewEndByte  int
	StartPoint  Point
	OldEndPoint Point
	NewEndPoint Point
}

// Node is one node of a syntax tree. Byte offsets are end-exclusive and
// children are in document order without overlap.
type Node interface {
	Type() string
	StartByte() int
	EndByte() int
	ChildCount() int
	Child(i int) Node
}

// Tree is a parsed document.
type Tree interface {
	Root() Node
	// Edit adjusts node positions for an edit so the tree stays usable
	// until the next Parse.
	Edit(edit InputEdit)
}

// Parser produces syntax trees. Passing the previous tree lets incremental
// parsers reuse unchanged subtrees; it may be nil.
type Parser interface {
	Parse(in Input, old Tree) (Tree, error)
}

// Walk calls fn for n and its descendants in document order. Subtrees
// whose byte range does not intersect [start, end) are skipped, and the
// first child that may intersect is found by binary search. Returning
// false from fn skips the node's children.
func Walk(n Node, start, end int, fn func(Node) bool) {
	if n == nil || n.EndByte() <= start || n.StartByte() >= end {
		return
	}
	if !fn(n) {
		return
	}
	count := n.ChildCount()
	i := sort.Search(count, func(i int) bool { return n.Child(i).EndByte() > start })
	for ; i < count; i++ {
		c := n.Child(i)
		if c.StartByte() >= end {
			break
		}
		Walk(c, start, end, fn)
	}
}
