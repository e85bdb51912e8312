package history

import (
	"sync"
	"time"
)

// History manages undo/redo state for one document.
//
// Operations are recorded into an open sequence until CloseSequence moves it
// onto the undo stack. Undo and Redo replay whole sequences.
type History struct {
	mu sync.Mutex

	undoStack []*Sequence
	redoStack []*Sequence

	// Open sequence
	open     OperationList
	openName string

	// Set while Undo, Redo or a rollback is applying operations
	replaying bool

	// Configuration
	maxSequences int // 0 means unlimited
}

// NewHistory creates a new history manager keeping at most maxSequences
// closed sequences. Zero or a negative value keeps every sequence.
func NewHistory(maxSequences int) *History {
	return &History{
		maxSequences: max(maxSequences, 0),
	}
}

// Record adds op to the open sequence, opening one if needed.
// Any pending redo sequences are discarded. Calls made while history is
// replaying are ignored.
func (h *History) Record(op *Operation) {
	if op == nil || op.IsNoop() {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.replaying {
		return
	}
	h.open = append(h.open, op)
	h.redoStack = nil
}

// CloseSequence moves the open sequence onto the undo stack.
// It does nothing when no operation has been recorded since the last close.
func (h *History) CloseSequence() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closeLocked()
}

// SetSequenceName names the open sequence.
func (h *History) SetSequenceName(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.openName = name
}

func (h *History) closeLocked() {
	if len(h.open) == 0 {
		return
	}
	h.undoStack = append(h.undoStack, &Sequence{
		Name:      h.openName,
		Ops:       h.open,
		Timestamp: time.Now(),
	})
	h.open = nil
	h.openName = ""
	h.trimLocked()
}

// trimLocked enforces maxSequences by dropping the oldest sequences.
func (h *History) trimLocked() {
	if h.maxSequences > 0 && len(h.undoStack) > h.maxSequences {
		excess := len(h.undoStack) - h.maxSequences
		clear(h.undoStack[:excess])
		h.undoStack = h.undoStack[excess:]
	}
}

// IsRecording returns true if a sequence is open and holds operations.
func (h *History) IsRecording() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.open) > 0
}

// IsReplaying returns true while Undo, Redo or a rollback is applying
// operations.
func (h *History) IsReplaying() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.replaying
}

// Undo closes any open sequence, then reverts the most recent sequence
// through a. It returns false when there is nothing to undo.
// The lock is released while operations are applied, since a records its
// edits back into this history.
func (h *History) Undo(a Applier) (bool, error) {
	h.mu.Lock()
	h.closeLocked()
	if len(h.undoStack) == 0 || h.replaying {
		h.mu.Unlock()
		return false, nil
	}
	seq := h.undoStack[len(h.undoStack)-1]
	h.undoStack = h.undoStack[:len(h.undoStack)-1]
	h.replaying = true
	h.mu.Unlock()

	err := seq.undo(a)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.replaying = false
	if err != nil {
		// Restore entry on failure
		h.undoStack = append(h.undoStack, seq)
		return false, err
	}
	h.redoStack = append(h.redoStack, seq)
	return true, nil
}

// Redo reapplies the most recently undone sequence through a.
// It returns false when there is nothing to redo.
func (h *History) Redo(a Applier) (bool, error) {
	h.mu.Lock()
	if len(h.redoStack) == 0 || h.replaying || len(h.open) > 0 {
		h.mu.Unlock()
		return false, nil
	}
	seq := h.redoStack[len(h.redoStack)-1]
	h.redoStack = h.redoStack[:len(h.redoStack)-1]
	h.replaying = true
	h.mu.Unlock()

	err := seq.redo(a)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.replaying = false
	if err != nil {
		h.redoStack = append(h.redoStack, seq)
		return false, err
	}
	h.undoStack = append(h.undoStack, seq)
	h.trimLocked()
	return true, nil
}

// CanUndo returns true if undo is available.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undoStack) > 0 || len(h.open) > 0
}

// CanRedo returns true if redo is available.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redoStack) > 0 && len(h.open) == 0
}

// UndoCount returns the number of closed sequences available to undo.
func (h *History) UndoCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undoStack)
}

// RedoCount returns the number of sequences available to redo.
func (h *History) RedoCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redoStack)
}

// Clear removes all undo/redo history, including the open sequence.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.undoStack = nil
	h.redoStack = nil
	h.open = nil
	h.openName = ""
}

// UndoInfo returns info about closed sequences, oldest first.
func (h *History) UndoInfo() []OperationInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	result := make([]OperationInfo, len(h.undoStack))
	for i, seq := range h.undoStack {
		result[i] = seq.info()
	}
	return result
}

// RedoInfo returns info about undone sequences, oldest undo first.
func (h *History) RedoInfo() []OperationInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	result := make([]OperationInfo, len(h.redoStack))
	for i, seq := range h.redoStack {
		result[i] = seq.info()
	}
	return result
}

// PeekUndo returns info about the next undo sequence without removing it.
func (h *History) PeekUndo() (OperationInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.undoStack) == 0 {
		return OperationInfo{}, false
	}
	return h.undoStack[len(h.undoStack)-1].info(), true
}

// PeekRedo returns info about the next redo sequence without removing it.
func (h *History) PeekRedo() (OperationInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.redoStack) == 0 {
		return OperationInfo{}, false
	}
	return h.redoStack[len(h.redoStack)-1].info(), true
}

// SetMaxSequences changes the maximum number of closed sequences kept.
// If the current stack is larger, the oldest sequences are removed.
func (h *History) SetMaxSequences(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.maxSequences = max(n, 0)
	h.trimLocked()
}

// MaxSequences returns the maximum number of closed sequences kept.
func (h *History) MaxSequences() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maxSequences
}
