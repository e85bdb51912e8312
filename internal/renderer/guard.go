package renderer

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dshills/bigtext/internal/engine"
	"github.com/dshills/bigtext/internal/renderer/decor"
	"github.com/dshills/bigtext/internal/renderer/transform"
)

// ErrComponentFailed wraps errors and panics raised by decorators and
// transformations.
var ErrComponentFailed = errors.New("component failed")

// protect runs fn and converts a panic into an error.
func protect(name, phase string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s %s: panic: %v: %w", name, phase, r, ErrComponentFailed)
		}
	}()
	if err := fn(); err != nil {
		return fmt.Errorf("%s %s: %w: %w", name, phase, ErrComponentFailed, err)
	}
	return nil
}

// degradedSet is a sorted list of disjoint original ranges in which a
// component renders as passthrough. All covers the whole document.
type degradedSet struct {
	all    bool
	ranges []engine.Range
}

func (s *degradedSet) reset() {
	s.all = false
	s.ranges = nil
}

// add merges r into the set.
func (s *degradedSet) add(r engine.Range) {
	out := make([]engine.Range, 0, len(s.ranges)+1)
	for _, x := range s.ranges {
		if x.Touches(r) {
			r = r.Union(x)
			continue
		}
		out = append(out, x)
	}
	out = append(out, r)
	slices.SortFunc(out, func(a, b engine.Range) int { return a.Start - b.Start })
	s.ranges = out
}

// shift maps the set through an edit. Ranges grow with insertions inside
// them and shrink with deletions.
func (s *degradedSet) shift(ev engine.ChangeEvent) {
	out := s.ranges[:0]
	for _, r := range s.ranges {
		end := r.End
		if end > ev.Start {
			end = ev.MapOffset(end)
		}
		nr := engine.Range{Start: ev.MapOffset(r.Start), End: end}
		if !nr.IsEmpty() {
			out = append(out, nr)
		}
	}
	s.ranges = out
}

func (s *degradedSet) covers(r engine.Range) bool {
	if s.all {
		return true
	}
	for _, x := range s.ranges {
		if x.ContainsRange(r) {
			return true
		}
	}
	return false
}

// clip removes the degraded parts of span, which is relative to base.
func (s *degradedSet) clip(span decor.StyleSpan, base int) []decor.StyleSpan {
	if s.all {
		return nil
	}
	out := []decor.StyleSpan{span}
	for _, x := range s.ranges {
		a, b := x.Start-base, x.End-base
		var next []decor.StyleSpan
		for _, sp := range out {
			if b <= sp.Start || a >= sp.End {
				next = append(next, sp)
				continue
			}
			if sp.Start < a {
				left := sp
				left.End = a
				next = append(next, left)
			}
			if b < sp.End {
				right := sp
				right.Start = b
				next = append(next, right)
			}
		}
		out = next
	}
	return out
}

type transformSlot struct {
	t      transform.Transformation
	owners []string
	failed bool
}

// ownersOf returns the span owners of t, looking through compositions.
func ownersOf(t transform.Transformation) []string {
	if m, ok := t.(interface {
		Children() []transform.Transformation
	}); ok {
		var out []string
		for _, c := range m.Children() {
			out = append(out, ownersOf(c)...)
		}
		return out
	}
	return []string{t.Name()}
}

type decoratorSlot struct {
	d        decor.Decorator
	degraded degradedSet
	pending  bool // BeforeTextChange failed for the current edit
}
