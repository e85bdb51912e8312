package decor

import (
	"errors"

	"github.com/dshills/bigtext/internal/engine"
)

// Decorator annotates text without changing it.
//
// Decorate receives the text of the original range and returns it with
// spans appended; it must not change the text or existing spans, and must
// be free of side effects.
type Decorator interface {
	Name() string
	Initialize(r engine.Reader) error
	BeforeTextChange(ev engine.ChangeEvent) error
	AfterTextChange(ev engine.ChangeEvent) error
	Decorate(in StyledText, original engine.Range) StyledText
}

// MultipleDecorator applies its children in order. Later children see the
// spans of earlier ones and take precedence where they overlap.
type MultipleDecorator struct {
	children []Decorator
}

// NewMultipleDecorator composes children in order.
func NewMultipleDecorator(children ...Decorator) *MultipleDecorator {
	return &MultipleDecorator{children: children}
}

// Name implements Decorator.
func (m *MultipleDecorator) Name() string {
	return "multiple"
}

// Children returns the composed decorators.
func (m *MultipleDecorator) Children() []Decorator {
	return append([]Decorator(nil), m.children...)
}

// Initialize implements Decorator.
func (m *MultipleDecorator) Initialize(r engine.Reader) error {
	var errs []error
	for _, d := range m.children {
		errs = append(errs, d.Initialize(r))
	}
	return errors.Join(errs...)
}

// BeforeTextChange implements Decorator.
func (m *MultipleDecorator) BeforeTextChange(ev engine.ChangeEvent) error {
	var errs []error
	for _, d := range m.children {
		errs = append(errs, d.BeforeTextChange(ev))
	}
	return errors.Join(errs...)
}

// AfterTextChange implements Decorator.
func (m *MultipleDecorator) AfterTextChange(ev engine.ChangeEvent) error {
	var errs []error
	for _, d := range m.children {
		errs = append(errs, d.AfterTextChange(ev))
	}
	return errors.Join(errs...)
}

// Decorate implements Decorator.
func (m *MultipleDecorator) Decorate(in StyledText, original engine.Range) StyledText {
	for _, d := range m.children {
		in = d.Decorate(in, original)
	}
	return in
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

// match is a located occurrence kept by the line-rescanning decorators.
type match struct {
	rng engine.Range
	// decorator specific payload
	name string
	kind int
}

// matchIndex is a sorted list of non-overlapping matches maintained by
// rescanning the lines each edit touches.
type matchIndex struct {
	items []match
}

// update replaces the matches of the touched lines. Matches never span a
// line break, so they fall entirely before, inside or after the lines.
// Found matches lie inside the post-edit lines, in order.
func (x *matchIndex) update(lines engine.Range, ev engine.ChangeEvent, found []match) {
	oldEnd := lines.End - ev.Delta()
	out := make([]match, 0, len(x.items)+len(found))
	i := 0
	for ; i < len(x.items) && x.items[i].rng.Start < lines.Start; i++ {
		out = append(out, x.items[i])
	}
	out = append(out, found...)
	for ; i < len(x.items); i++ {
		m := x.items[i]
		if m.rng.Start <= oldEnd {
			continue
		}
		m.rng = m.rng.Shift(ev.Delta())
		out = append(out, m)
	}
	x.items = out
}

// overlapping returns the matches overlapping r.
func (x *matchIndex) overlapping(r engine.Range) []match {
	i := searchEnd(x.items, r.Start)
	var out []match
	for ; i < len(x.items) && x.items[i].rng.Start < r.End; i++ {
		out = append(out, x.items[i])
	}
	return out
}

// searchEnd returns the index of the first match ending after off.
func searchEnd(items []match, off int) int {
	lo, hi := 0, len(items)
	for lo < hi {
		m := (lo + hi) / 2
		if items[m].rng.End > off {
			hi = m
		} else {
			lo = m + 1
		}
	}
	return lo
}
