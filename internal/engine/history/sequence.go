package history

import (
	"fmt"
	"time"
)

// Sequence is a closed group of operations that undo and redo as one unit.
type Sequence struct {
	Name      string
	Ops       OperationList
	Timestamp time.Time
}

// Description returns the sequence name, or a summary of its operations.
func (s *Sequence) Description() string {
	if s.Name != "" {
		return s.Name
	}
	if len(s.Ops) == 1 {
		return s.Ops[0].Description()
	}
	return fmt.Sprintf("%d operations", len(s.Ops))
}

func (s *Sequence) info() OperationInfo {
	return OperationInfo{
		Description: s.Description(),
		Timestamp:   s.Timestamp,
		Operations:  len(s.Ops),
		RuneDelta:   s.Ops.TotalRuneDelta(),
	}
}

// undo applies the inverse operations in reverse order.
func (s *Sequence) undo(a Applier) error {
	for i := len(s.Ops) - 1; i >= 0; i-- {
		if err := s.Ops[i].Invert().Apply(a); err != nil {
			// Reapply what was already reverted so the document matches the stacks.
			for j := i + 1; j < len(s.Ops); j++ {
				_ = s.Ops[j].Apply(a)
			}
			return fmt.Errorf("undo %q step %d: %w", s.Description(), i, err)
		}
	}
	return nil
}

// redo reapplies the operations in original order.
func (s *Sequence) redo(a Applier) error {
	for i, op := range s.Ops {
		if err := op.Apply(a); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = s.Ops[j].Invert().Apply(a)
			}
			return fmt.Errorf("redo %q step %d: %w", s.Description(), i, err)
		}
	}
	return nil
}

// Transaction runs fn inside its own change sequence named name.
// Any open sequence is closed first. If fn returns an error, the edits it
// recorded are reverted through a and dropped from history.
func (h *History) Transaction(name string, a Applier, fn func() error) error {
	h.CloseSequence()
	h.mu.Lock()
	h.openName = name
	h.mu.Unlock()

	if err := fn(); err != nil {
		h.mu.Lock()
		partial := &Sequence{Name: name, Ops: h.open}
		h.open = nil
		h.openName = ""
		h.replaying = true
		h.mu.Unlock()

		rbErr := partial.undo(a)

		h.mu.Lock()
		h.replaying = false
		h.mu.Unlock()
		if rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	h.CloseSequence()
	return nil
}

// Checkpoint represents a point in history that can be returned to.
type Checkpoint struct {
	undoDepth int
}

// CreateCheckpoint closes any open sequence and records the current
// history position.
func (h *History) CreateCheckpoint() Checkpoint {
	h.CloseSequence()
	h.mu.Lock()
	defer h.mu.Unlock()
	return Checkpoint{undoDepth: len(h.undoStack)}
}

// UndoToCheckpoint undoes all sequences closed since the checkpoint.
func (h *History) UndoToCheckpoint(cp Checkpoint, a Applier) error {
	for h.UndoCount() > cp.undoDepth {
		if _, err := h.Undo(a); err != nil {
			return err
		}
	}
	return nil
}

// RedoToCheckpoint redoes sequences until the checkpoint depth is reached.
// This only works while the redo stack still holds them.
func (h *History) RedoToCheckpoint(cp Checkpoint, a Applier) error {
	for h.UndoCount() < cp.undoDepth && h.CanRedo() {
		if _, err := h.Redo(a); err != nil {
			return err
		}
	}
	return nil
}
