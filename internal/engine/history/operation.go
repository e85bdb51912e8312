package history

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// Kind identifies the type of a recorded edit.
type Kind uint8

const (
	// KindInsert is an insertion of Text at Pos.
	KindInsert Kind = iota
	// KindDelete is a removal of Text starting at Pos.
	KindDelete
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindDelete:
		return "delete"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Applier mutates a document on behalf of undo and redo.
type Applier interface {
	InsertAt(pos int, text string) error
	Delete(start, end int) error
}

// Operation represents a single undoable edit.
// Offsets are rune offsets in the document as it was before the edit.
type Operation struct {
	Kind Kind
	Pos  int    // Insertion point or deletion start
	Text string // Inserted or removed text

	// Metadata
	Timestamp time.Time
}

// NewInsertOperation creates an operation for an insertion.
func NewInsertOperation(pos int, text string) *Operation {
	return &Operation{
		Kind:      KindInsert,
		Pos:       pos,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// NewDeleteOperation creates an operation for a deletion of removed,
// which started at rune offset start.
func NewDeleteOperation(start int, removed string) *Operation {
	return &Operation{
		Kind:      KindDelete,
		Pos:       start,
		Text:      removed,
		Timestamp: time.Now(),
	}
}

// IsInsert returns true if this operation is an insertion.
func (op *Operation) IsInsert() bool {
	return op.Kind == KindInsert
}

// IsDelete returns true if this operation is a deletion.
func (op *Operation) IsDelete() bool {
	return op.Kind == KindDelete
}

// IsNoop returns true if this operation makes no changes.
func (op *Operation) IsNoop() bool {
	return len(op.Text) == 0
}

// Runes returns the rune length of the affected text.
func (op *Operation) Runes() int {
	return utf8.RuneCountInString(op.Text)
}

// RuneDelta returns the change in document length.
func (op *Operation) RuneDelta() int {
	if op.Kind == KindDelete {
		return -op.Runes()
	}
	return op.Runes()
}

// End returns the end of the affected range: after the inserted text for an
// insertion, after the removed text (in old coordinates) for a deletion.
func (op *Operation) End() int {
	return op.Pos + op.Runes()
}

// Invert returns an operation that undoes this one.
func (op *Operation) Invert() *Operation {
	inv := &Operation{
		Pos:       op.Pos,
		Text:      op.Text,
		Timestamp: time.Now(),
	}
	if op.Kind == KindInsert {
		inv.Kind = KindDelete
	} else {
		inv.Kind = KindInsert
	}
	return inv
}

// Apply performs the operation on a.
func (op *Operation) Apply(a Applier) error {
	if op.IsNoop() {
		return nil
	}
	switch op.Kind {
	case KindInsert:
		if err := a.InsertAt(op.Pos, op.Text); err != nil {
			return fmt.Errorf("apply insert at %d: %w", op.Pos, err)
		}
	case KindDelete:
		if err := a.Delete(op.Pos, op.End()); err != nil {
			return fmt.Errorf("apply delete [%d, %d): %w", op.Pos, op.End(), err)
		}
	default:
		return fmt.Errorf("apply %s: unknown operation kind", op.Kind)
	}
	return nil
}

// Description returns a human-readable description of the operation.
func (op *Operation) Description() string {
	n := op.Runes()
	if op.Kind == KindDelete {
		if n == 1 {
			return "Delete character"
		}
		return fmt.Sprintf("Delete %d characters", n)
	}
	switch {
	case op.Text == "\n":
		return "Insert newline"
	case op.Text == "\t":
		return "Insert tab"
	case n == 1:
		return fmt.Sprintf("Type '%s'", op.Text)
	case n <= 20:
		return fmt.Sprintf("Insert %q", op.Text)
	default:
		return fmt.Sprintf("Insert %d characters", n)
	}
}

// Clone creates a copy of the operation.
func (op *Operation) Clone() *Operation {
	clone := *op
	return &clone
}

// OperationInfo provides read-only info about a sequence.
// Used for displaying undo/redo history to users.
type OperationInfo struct {
	Description string    // Human-readable description
	Timestamp   time.Time // When the sequence was closed
	Operations  int       // Number of operations in the sequence
	RuneDelta   int       // Positive for insertions, negative for deletions
}

// OperationList is a collection of operations that are applied together.
type OperationList []*Operation

// Invert returns a list of inverse operations in reverse order.
func (ops OperationList) Invert() OperationList {
	result := make(OperationList, len(ops))
	for i, op := range ops {
		result[len(ops)-1-i] = op.Invert()
	}
	return result
}

// TotalRuneDelta returns the total change in document length.
func (ops OperationList) TotalRuneDelta() int {
	total := 0
	for _, op := range ops {
		total += op.RuneDelta()
	}
	return total
}
