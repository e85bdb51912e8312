// Package history provides undo/redo for BigText edits.
//
// # Operations
//
// An Operation is a single recorded edit: an insertion of text at a rune
// offset or a deletion of a captured run of text. Every operation can be
// inverted, so only the forward form is stored.
//
// # Change Sequences
//
// Operations are grouped into sequences. Recording an operation opens a
// sequence if none is open; CloseSequence moves it onto the undo stack.
// Grouping is driven entirely by the caller; nothing is inferred from time.
//
//	h := history.NewHistory(0) // unlimited
//	h.Record(history.NewInsertOperation(0, "abcd"))
//	h.CloseSequence()
//
// # Undo and Redo
//
// Undo and Redo replay operations through an Applier, normally the
// document itself. Operations reported while replaying are ignored, so the
// applier may record edits unconditionally:
//
//	ok, err := h.Undo(doc)
//
// Undo closes an open sequence before popping. Recording a new operation
// after an undo discards the redo stack.
package history
