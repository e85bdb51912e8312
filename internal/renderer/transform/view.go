// Package transform maintains a transformed view of a document: ranges of
// original text replaced by substitute content, with a monotonic offset
// mapping between original and transformed coordinates.
package transform

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/bigtext/internal/engine"
)

// Errors returned by views and transformations.
var (
	// ErrSpanOverlap indicates a span overlapping one already installed.
	ErrSpanOverlap = errors.New("span overlaps an existing span")

	// ErrInvalidSpan indicates an empty, out of range or malformed span.
	ErrInvalidSpan = errors.New("invalid span")

	// ErrPartialOverlap indicates collapsed ranges that overlap without
	// one containing the other.
	ErrPartialOverlap = errors.New("collapsed ranges partially overlap")
)

// Mapping says how positions inside a span map between coordinate spaces.
type Mapping uint8

const (
	// WholeBlock maps the whole original range to the start of its
	// replacement, and every replacement position back to the range start.
	WholeBlock Mapping = iota
	// Incremental maps position i of the range to position i of a
	// replacement of equal length.
	Incremental
)

// String returns the mapping name.
func (m Mapping) String() string {
	if m == Incremental {
		return "Incremental"
	}
	return "WholeBlock"
}

// Span replaces an original range with substitute content.
type Span struct {
	Range       engine.Range // original coordinates
	Replacement string
	Mapping     Mapping
	Owner       string
	Style       tcell.Style
}

func (s Span) replacementLen() int {
	return utf8.RuneCountInString(s.Replacement)
}

func (s Span) delta() int {
	return s.replacementLen() - s.Range.Len()
}

// Segment is a contiguous piece of transformed text. Span is nil for
// untransformed text.
type Segment struct {
	Original    engine.Range
	Transformed engine.Range
	Text        string
	Span        *Span
}

// View holds the non-overlapping spans installed over one document, sorted
// by original start.
type View struct {
	src   engine.Reader
	spans []Span
	cum   []int // cum[i] is the total delta of spans[:i]
	dirty bool
}

// NewView creates an empty view over src.
func NewView(src engine.Reader) *View {
	return &View{src: src, cum: []int{0}}
}

// Source returns the viewed document.
func (v *View) Source() engine.Reader {
	return v.src
}

// Spans returns a copy of the installed spans.
func (v *View) Spans() []Span {
	return append([]Span(nil), v.spans...)
}

// SpanCount returns the number of installed spans.
func (v *View) SpanCount() int {
	return len(v.spans)
}

// SpansOwnedBy returns the spans installed by owner.
func (v *View) SpansOwnedBy(owner string) []Span {
	var out []Span
	for _, s := range v.spans {
		if s.Owner == owner {
			out = append(out, s)
		}
	}
	return out
}

// Add installs s. Spans must be non-empty, lie inside the document and not
// overlap installed spans; an Incremental replacement must have the length
// of its range.
func (v *View) Add(s Span) error {
	switch {
	case s.Range.IsEmpty() || !s.Range.IsValid() || s.Range.End > v.src.Len():
		return fmt.Errorf("span %s (length %d): %w", s.Range, v.src.Len(), ErrInvalidSpan)
	case s.Mapping == Incremental && s.replacementLen() != s.Range.Len():
		return fmt.Errorf("incremental span %s with %d rune replacement: %w", s.Range, s.replacementLen(), ErrInvalidSpan)
	}
	i := sort.Search(len(v.spans), func(i int) bool { return v.spans[i].Range.Start >= s.Range.End })
	if i > 0 && v.spans[i-1].Range.End > s.Range.Start {
		return fmt.Errorf("span %s over %s owned by %s: %w", s.Range, v.spans[i-1].Range, v.spans[i-1].Owner, ErrSpanOverlap)
	}
	v.spans = append(v.spans, Span{})
	copy(v.spans[i+1:], v.spans[i:])
	v.spans[i] = s
	v.dirty = true
	return nil
}

// Remove removes the spans owned by owner that overlap r. An empty owner
// matches every span. It returns the removed spans.
func (v *View) Remove(owner string, r engine.Range) []Span {
	return v.removeIf(func(s Span) bool {
		return (owner == "" || s.Owner == owner) && s.Range.Overlaps(r)
	})
}

// RemoveOwned removes every span owned by owner.
func (v *View) RemoveOwned(owner string) []Span {
	return v.removeIf(func(s Span) bool { return s.Owner == owner })
}

// Clear removes every span.
func (v *View) Clear() {
	v.spans = v.spans[:0]
	v.dirty = true
}

func (v *View) removeIf(match func(Span) bool) []Span {
	var removed []Span
	out := v.spans[:0]
	for _, s := range v.spans {
		if match(s) {
			removed = append(removed, s)
			continue
		}
		out = append(out, s)
	}
	clear(v.spans[len(out):])
	v.spans = out
	if len(removed) > 0 {
		v.dirty = true
	}
	return removed
}

// Affected reports whether an edit invalidates a span over r: a deletion
// overlapping r, or an insertion strictly inside it.
func Affected(r engine.Range, ev engine.ChangeEvent) bool {
	if ev.Kind == engine.ChangeInsert {
		return r.Start < ev.Start && ev.Start < r.End
	}
	return r.Overlaps(ev.OldRange())
}

// BeforeTextChange restores the original text of every span the edit
// invalidates and returns the removed spans.
func (v *View) BeforeTextChange(ev engine.ChangeEvent) []Span {
	return v.removeIf(func(s Span) bool { return Affected(s.Range, ev) })
}

// AfterTextChange shifts the spans after the edit.
func (v *View) AfterTextChange(ev engine.ChangeEvent) {
	delta := ev.Delta()
	if delta == 0 {
		return
	}
	i := sort.Search(len(v.spans), func(i int) bool { return v.spans[i].Range.Start >= ev.Start })
	for ; i < len(v.spans); i++ {
		v.spans[i].Range = v.spans[i].Range.Shift(delta)
	}
	v.dirty = true
}

func (v *View) prefix() []int {
	if v.dirty || len(v.cum) != len(v.spans)+1 {
		v.cum = v.cum[:0]
		v.cum = append(v.cum, 0)
		for _, s := range v.spans {
			v.cum = append(v.cum, v.cum[len(v.cum)-1]+s.delta())
		}
		v.dirty = false
	}
	return v.cum
}

// transformedStart returns the transformed offset at which span i begins.
func (v *View) transformedStart(i int) int {
	return v.spans[i].Range.Start + v.prefix()[i]
}

// Len returns the transformed length.
func (v *View) Len() int {
	cum := v.prefix()
	return v.src.Len() + cum[len(cum)-1]
}

// OriginalToTransformed maps an original offset to transformed
// coordinates. Offsets inside a WholeBlock span map to its start.
func (v *View) OriginalToTransformed(x int) int {
	cum := v.prefix()
	i := sort.Search(len(v.spans), func(i int) bool { return v.spans[i].Range.End > x })
	if i < len(v.spans) && v.spans[i].Range.Start <= x {
		s := v.spans[i]
		ts := s.Range.Start + cum[i]
		if s.Mapping == Incremental {
			return ts + x - s.Range.Start
		}
		return ts
	}
	return x + cum[i]
}

// OriginalRangeToTransformed maps an original range to the transformed
// range covering it. A range ending inside a WholeBlock span includes the
// whole replacement.
func (v *View) OriginalRangeToTransformed(r engine.Range) engine.Range {
	a := v.OriginalToTransformed(r.Start)
	b := v.OriginalToTransformed(r.End)
	cum := v.prefix()
	i := sort.Search(len(v.spans), func(i int) bool { return v.spans[i].Range.End > r.End })
	if i < len(v.spans) {
		s := v.spans[i]
		if s.Mapping == WholeBlock && !r.IsEmpty() && s.Range.Start < r.End && r.Start < s.Range.End {
			b = s.Range.Start + cum[i] + s.replacementLen()
		}
	}
	return engine.Range{Start: a, End: max(a, b)}
}

// TransformedToOriginal maps a transformed offset to original coordinates.
// Positions inside a WholeBlock replacement map to the start of its range.
func (v *View) TransformedToOriginal(y int) int {
	cum := v.prefix()
	// first span whose replacement ends after y
	i := sort.Search(len(v.spans), func(i int) bool {
		return v.spans[i].Range.End+cum[i+1] > y
	})
	if i < len(v.spans) {
		s := v.spans[i]
		ts := s.Range.Start + cum[i]
		if y >= ts {
			if s.Mapping == Incremental {
				return s.Range.Start + y - ts
			}
			return s.Range.Start
		}
	}
	return min(max(y-cum[i], 0), v.src.Len())
}

// Segments returns the transformed text in [a, b) as segments.
func (v *View) Segments(a, b int) ([]Segment, error) {
	if a < 0 || b < a || b > v.Len() {
		return nil, fmt.Errorf("transformed range [%d:%d) (length %d): %w", a, b, v.Len(), engine.ErrOutOfRange)
	}
	cum := v.prefix()
	var out []Segment
	i := sort.Search(len(v.spans), func(i int) bool { return v.spans[i].Range.End+cum[i+1] > a })
	pos := a
	for pos < b {
		if i < len(v.spans) {
			s := v.spans[i]
			ts := s.Range.Start + cum[i]
			te := ts + s.replacementLen()
			if pos < ts {
				end := min(b, ts)
				seg, err := v.plain(pos, end, cum[i])
				if err != nil {
					return nil, err
				}
				out = append(out, seg)
				pos = end
				continue
			}
			if pos < te {
				end := min(b, te)
				seg := Segment{
					Transformed: engine.Range{Start: pos, End: end},
					Text:        sliceRunes(s.Replacement, pos-ts, end-ts),
					Span:        &s,
				}
				if s.Mapping == Incremental {
					seg.Original = engine.Range{Start: s.Range.Start + pos - ts, End: s.Range.Start + end - ts}
				} else {
					seg.Original = s.Range
				}
				out = append(out, seg)
				pos = end
			}
			i++
			continue
		}
		seg, err := v.plain(pos, b, cum[len(v.spans)])
		if err != nil {
			return nil, err
		}
		out = append(out, seg)
		pos = b
	}
	return out, nil
}

func (v *View) plain(a, b, delta int) (Segment, error) {
	orig := engine.Range{Start: a - delta, End: b - delta}
	text, err := v.src.Substring(orig.Start, orig.End)
	if err != nil {
		return Segment{}, err
	}
	return Segment{Original: orig, Transformed: engine.Range{Start: a, End: b}, Text: text}, nil
}

// Substring returns the transformed text in [a, b).
func (v *View) Substring(a, b int) (string, error) {
	segs, err := v.Segments(a, b)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, s := range segs {
		sb.WriteString(s.Text)
	}
	return sb.String(), nil
}

// String returns the whole transformed text.
func (v *View) String() string {
	s, _ := v.Substring(0, v.Len())
	return s
}

func sliceRunes(s string, start, end int) string {
	if start == 0 && end >= utf8.RuneCountInString(s) {
		return s
	}
	r := []rune(s)
	return string(r[start:end])
}
