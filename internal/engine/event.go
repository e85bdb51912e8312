package engine

import "fmt"

// ChangeKind categorizes a change to the document.
type ChangeKind uint8

const (
	// ChangeInsert is an insertion of Text at Start.
	ChangeInsert ChangeKind = iota
	// ChangeDelete is a removal of Text from [Start, OldEnd).
	ChangeDelete
)

// String returns a human-readable name for the change kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeInsert:
		return "Insert"
	case ChangeDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// Phase says whether an event is delivered before or after the tree changes.
type Phase uint8

const (
	// PhaseBefore events are delivered while the tree still holds the old text.
	PhaseBefore Phase = iota
	// PhaseAfter events are delivered once the tree holds the new text.
	PhaseAfter
)

// String returns a human-readable name for the phase.
func (p Phase) String() string {
	if p == PhaseBefore {
		return "Before"
	}
	return "After"
}

// Reader is the read-only view of a document handed to listeners,
// decorators and transformations.
type Reader interface {
	Len() int
	LineCount() int
	String() string
	Substring(start, end int) (string, error)
	RuneAt(pos int) (rune, error)
	LineStart(line int) (int, error)
	LineEnd(line int) (int, error)
	FindLineString(line int) (string, error)
	FindLineAndColumnFromOffset(offset int) (line, col int, err error)
	OffsetFromLineAndColumn(line, col int) (int, error)
}

// ChangeEvent describes one edit. Events are passed by value and are not
// retained by the document.
//
// For an insertion OldEnd == Start and NewEnd == Start + len(Text).
// For a deletion NewEnd == Start and OldEnd == Start + len(Text).
// Lengths are in runes.
type ChangeEvent struct {
	Kind   ChangeKind
	Phase  Phase
	Start  int
	OldEnd int // End of the affected range before the edit
	NewEnd int // End of the affected range after the edit
	Text   string
	Source Reader
}

// OldRange returns the affected range in pre-edit coordinates.
func (e ChangeEvent) OldRange() Range {
	return Range{Start: e.Start, End: e.OldEnd}
}

// NewRange returns the affected range in post-edit coordinates.
func (e ChangeEvent) NewRange() Range {
	return Range{Start: e.Start, End: e.NewEnd}
}

// Delta returns the change in document length.
func (e ChangeEvent) Delta() int {
	return e.NewEnd - e.OldEnd
}

// MapOffset maps a pre-edit offset to post-edit coordinates.
// Offsets inside a deleted range collapse to Start.
func (e ChangeEvent) MapOffset(off int) int {
	switch {
	case off < e.Start:
		return off
	case off >= e.OldEnd:
		return off + e.Delta()
	default:
		return e.Start
	}
}

// String returns a compact description of the event.
func (e ChangeEvent) String() string {
	return fmt.Sprintf("%s %s [%d:%d)->[%d:%d)", e.Phase, e.Kind, e.Start, e.OldEnd, e.Start, e.NewEnd)
}

// ChangeListener is notified around every mutation.
// BeforeTextChange is called before the tree changes, AfterTextChange after.
type ChangeListener interface {
	BeforeTextChange(ev ChangeEvent)
	AfterTextChange(ev ChangeEvent)
}

// ListenerFunc adapts a function into a ChangeListener. It is called for
// both phases; ev.Phase tells them apart.
type ListenerFunc func(ev ChangeEvent)

// BeforeTextChange implements ChangeListener.
func (f ListenerFunc) BeforeTextChange(ev ChangeEvent) { f(ev) }

// AfterTextChange implements ChangeListener.
func (f ListenerFunc) AfterTextChange(ev ChangeEvent) { f(ev) }

// WidthListener is implemented by listeners that react to content width
// changes, such as layout engines.
type WidthListener interface {
	ContentWidthChanged(width float64)
}
