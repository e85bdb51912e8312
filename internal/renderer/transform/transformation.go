package transform

import (
	"errors"
	"fmt"

	"github.com/dshills/bigtext/internal/engine"
)

// Transformation installs spans into a View and keeps them current.
//
// The View removes every span an edit invalidates before the edit and
// shifts the others after it. A transformation reinstalls only the spans
// it lost, rescanning the region around the edit.
type Transformation interface {
	// Name identifies the transformation. It is the Owner of its spans.
	Name() string
	// Initialize performs the first full scan and installs every span.
	Initialize(r engine.Reader, v *View) error
	// BeforeTextChange is called before the edit and before the View
	// drops invalidated spans.
	BeforeTextChange(ev engine.ChangeEvent, v *View) error
	// AfterTextChange is called after the edit and after the View shifted
	// the surviving spans.
	AfterTextChange(ev engine.ChangeEvent, v *View) error
}

// Rescanner is implemented by transformations that can rebuild their spans
// over part of the document, for example once a collapsed block that
// hid them is expanded.
type Rescanner interface {
	// Rescan replaces the transformation's spans overlapping r.
	Rescan(r engine.Range, v *View) error
}

// addOrSkip installs s and ignores conflicts with spans installed by
// earlier transformations.
func addOrSkip(v *View, s Span) error {
	if err := v.Add(s); err != nil && !errors.Is(err, ErrSpanOverlap) {
		return err
	}
	return nil
}

// touchedLines returns the post-edit range of the lines an edit touched.
func touchedLines(r engine.Reader, ev engine.ChangeEvent) (engine.Range, error) {
	first, _, err := r.FindLineAndColumnFromOffset(ev.Start)
	if err != nil {
		return engine.Range{}, err
	}
	last, _, err := r.FindLineAndColumnFromOffset(ev.NewEnd)
	if err != nil {
		return engine.Range{}, err
	}
	start, _ := r.LineStart(first)
	end, _ := r.LineEnd(last)
	return engine.Range{Start: start, End: end}, nil
}

// MultipleTransformation applies its children in order. Earlier children
// win conflicts: a later child cannot install a span overlapping one an
// earlier child installed.
type MultipleTransformation struct {
	children []Transformation
}

// NewMultipleTransformation composes children in order.
func NewMultipleTransformation(children ...Transformation) *MultipleTransformation {
	return &MultipleTransformation{children: children}
}

// Name implements Transformation.
func (m *MultipleTransformation) Name() string {
	return "multiple"
}

// Children returns the composed transformations.
func (m *MultipleTransformation) Children() []Transformation {
	return append([]Transformation(nil), m.children...)
}

// Initialize implements Transformation.
func (m *MultipleTransformation) Initialize(r engine.Reader, v *View) error {
	return m.each(func(t Transformation) error { return t.Initialize(r, v) })
}

// BeforeTextChange implements Transformation.
func (m *MultipleTransformation) BeforeTextChange(ev engine.ChangeEvent, v *View) error {
	return m.each(func(t Transformation) error { return t.BeforeTextChange(ev, v) })
}

// AfterTextChange implements Transformation.
func (m *MultipleTransformation) AfterTextChange(ev engine.ChangeEvent, v *View) error {
	return m.each(func(t Transformation) error { return t.AfterTextChange(ev, v) })
}

// Rescan implements Rescanner. Children that are not Rescanners keep
// their spans.
func (m *MultipleTransformation) Rescan(r engine.Range, v *View) error {
	return m.each(func(t Transformation) error {
		if rs, ok := t.(Rescanner); ok {
			return rs.Rescan(r, v)
		}
		return nil
	})
}

// each calls fn for every child; a failing child does not stop the others.
func (m *MultipleTransformation) each(fn func(Transformation) error) error {
	var errs []error
	for _, t := range m.children {
		if err := fn(t); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
		}
	}
	return errors.Join(errs...)
}
