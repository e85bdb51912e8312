// Package engine provides BigText, the large-text editing buffer behind every
// text input and viewer of the client.
//
// A BigText owns one chunk tree (package rope), one undo history (package
// history) and an ordered list of change listeners. Every mutation is
// announced to listeners twice, before and after the tree changes, with a
// ChangeEvent describing the exact edited range. Layout engines, decorators
// and transformations use these events to update incrementally.
//
// # Basic Usage
//
//	bt := engine.New(engine.WithContent("hello world"))
//	_ = bt.InsertAt(5, ",")  // "hello, world"
//	_ = bt.Delete(0, 7)      // "world"
//	bt.RecordCurrentChangeSequenceIntoUndoHistory()
//	_, _ = bt.Undo()         // "hello world"
//
// All offsets are rune offsets; ranges are half-open [start, end).
//
// # Thread Safety
//
// BigText assumes a single writer. Concurrent wraps one BigText with a
// read-write mutex: mutations take the write lock, queries the read lock,
// and WithWriteLock composes several mutations atomically.
//
//	c := engine.NewConcurrent(engine.New())
//	_ = c.WithWriteLock(func(bt *engine.BigText) error {
//		bt.Append("a")
//		return bt.InsertAt(0, "b")
//	})
package engine
