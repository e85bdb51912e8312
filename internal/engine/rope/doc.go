// Package rope provides the mutable chunk tree that stores BigText content.
//
// The tree is a height-balanced (AVL) binary tree whose leaves hold bounded
// text chunks and whose internal nodes cache aggregated metrics for their
// subtree: rune length, byte length, line-break count and height. Nodes live
// in an arena and are addressed by index, so rotations and rebalances only
// swap indices.
//
// All offsets are rune offsets. Ranges are half-open [start, end).
//
// Key properties:
//   - O(log n + edit/C) insertion, deletion and append, C being the chunk capacity
//   - O(log n + C) line/column queries answered from cached line counts
//   - Edits that split a chunk produce at most two leaves
//   - Small leaves at an edit seam are merged locally, never by a rebuild
//
// Basic usage:
//
//	t := rope.FromString("hello world")
//	_ = t.InsertAt(5, ",")        // "hello, world"
//	_ = t.Delete(0, 7)            // "world"
//	text := t.String()            // "world"
//
// The tree assumes a single writer. Wrap it (see package engine) for
// concurrent use.
package rope
