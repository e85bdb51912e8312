package transform

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/bigtext/internal/engine"
)

// everything overlaps every non-empty range of a document.
var everything = engine.Range{Start: 0, End: math.MaxInt}

// DefaultCollapseMarker replaces each collapsed range.
const DefaultCollapseMarker = "…"

// CollapserName is the owner name of collapsed spans.
const CollapserName = "collapse"

// Collapser replaces user-chosen ranges with a marker. Collapsed spans take
// precedence over spans of other owners.
//
// Ranges follow the text: an insertion strictly inside a range grows it, a
// deletion shrinks it, and a range whose text is deleted disappears.
//
// Spans of other owners under a collapsed range are kept aside and put
// back when the range is expanded, unless an edit invalidated them.
type Collapser struct {
	marker string
	style  tcell.Style
	ranges []engine.Range // sorted, disjoint
	src    engine.Reader
	view   *View
	hit    []int  // indexes of ranges invalidated by the pending edit
	hidden []Span // other owners' spans under collapsed ranges, by start
}

// CollapserOption configures a Collapser.
type CollapserOption func(*Collapser)

// WithMarker sets the replacement text. An empty marker selects the default.
func WithMarker(marker string) CollapserOption {
	return func(c *Collapser) {
		if marker != "" {
			c.marker = marker
		}
	}
}

// WithMarkerStyle sets the style of the marker.
func WithMarkerStyle(style tcell.Style) CollapserOption {
	return func(c *Collapser) {
		c.style = style
	}
}

// NewCollapser creates a collapser with no collapsed ranges.
func NewCollapser(opts ...CollapserOption) *Collapser {
	c := &Collapser{marker: DefaultCollapseMarker, style: tcell.StyleDefault}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements Transformation.
func (c *Collapser) Name() string {
	return CollapserName
}

// Marker returns the replacement text.
func (c *Collapser) Marker() string {
	return c.marker
}

// Ranges returns the collapsed ranges in document order.
func (c *Collapser) Ranges() []engine.Range {
	if len(c.ranges) == 0 {
		return nil
	}
	return slices.Clone(c.ranges)
}

// Initialize implements Transformation.
func (c *Collapser) Initialize(r engine.Reader, v *View) error {
	c.src, c.view = r, v
	v.RemoveOwned(CollapserName)
	c.hidden = c.hidden[:0]
	kept := c.ranges[:0]
	for _, rg := range c.ranges {
		if rg.End > r.Len() {
			continue
		}
		kept = append(kept, rg)
	}
	c.ranges = kept
	return c.install(c.ranges)
}

func (c *Collapser) install(ranges []engine.Range) error {
	if c.view == nil {
		return nil
	}
	for _, rg := range ranges {
		for _, s := range c.view.Remove("", rg) {
			if s.Owner != CollapserName {
				c.hidden = append(c.hidden, s)
			}
		}
		if err := c.view.Add(Span{Range: rg, Replacement: c.marker, Mapping: WholeBlock, Owner: CollapserName, Style: c.style}); err != nil {
			return err
		}
	}
	slices.SortFunc(c.hidden, func(a, b Span) int { return a.Range.Start - b.Range.Start })
	return nil
}

// restore puts the hidden spans overlapping r back into the view. A span
// still covered by another collapsed range stays hidden; one that no
// longer fits the document is dropped.
func (c *Collapser) restore(r engine.Range) {
	if c.view == nil {
		return
	}
	kept := c.hidden[:0]
	for _, s := range c.hidden {
		if !s.Range.Overlaps(r) {
			kept = append(kept, s)
			continue
		}
		if err := c.view.Add(s); errors.Is(err, ErrSpanOverlap) {
			kept = append(kept, s)
		}
	}
	clear(c.hidden[len(kept):])
	c.hidden = kept
}

// Rescan implements Rescanner. Collapsed spans do not depend on the text
// under them.
func (c *Collapser) Rescan(engine.Range, *View) error {
	return nil
}

// normalizeRanges sorts ranges, merges identical duplicates and drops
// ranges strictly contained in another. Partially overlapping pairs are
// rejected with ErrPartialOverlap.
func normalizeRanges(ranges []engine.Range, length int) ([]engine.Range, error) {
	rs := slices.Clone(ranges)
	for _, r := range rs {
		if r.IsEmpty() || !r.IsValid() || r.End > length {
			return nil, fmt.Errorf("collapse %s (length %d): %w", r, length, engine.ErrOutOfRange)
		}
	}
	// by start, longer first, so a container precedes what it contains
	slices.SortFunc(rs, func(a, b engine.Range) int {
		if a.Start != b.Start {
			return a.Start - b.Start
		}
		return b.End - a.End
	})
	out := make([]engine.Range, 0, len(rs))
	for _, r := range rs {
		if n := len(out); n > 0 {
			last := out[n-1]
			if last.ContainsRange(r) {
				continue
			}
			if last.Overlaps(r) {
				return nil, fmt.Errorf("%s and %s: %w", last, r, ErrPartialOverlap)
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// SetCollapsedRanges replaces the collapsed ranges. On error nothing
// changes.
func (c *Collapser) SetCollapsedRanges(ranges []engine.Range) error {
	length := 0
	if c.src != nil {
		length = c.src.Len()
	} else {
		for _, r := range ranges {
			length = max(length, r.End)
		}
	}
	rs, err := normalizeRanges(ranges, length)
	if err != nil {
		return err
	}
	if c.view != nil {
		c.view.RemoveOwned(CollapserName)
	}
	c.restore(everything)
	c.ranges = rs
	return c.install(c.ranges)
}

// Collapse adds r to the collapsed ranges. A range containing existing
// ranges replaces them; a range inside an existing one changes nothing.
func (c *Collapser) Collapse(r engine.Range) error {
	return c.SetCollapsedRanges(append(c.Ranges(), r))
}

// Expand removes the collapsed range containing offset and reports
// whether there was one.
func (c *Collapser) Expand(offset int) (engine.Range, bool) {
	i := slices.IndexFunc(c.ranges, func(r engine.Range) bool { return r.Contains(offset) })
	if i < 0 {
		return engine.Range{}, false
	}
	r := c.ranges[i]
	c.ranges = slices.Delete(c.ranges, i, i+1)
	if c.view != nil {
		c.view.Remove(CollapserName, r)
	}
	c.restore(r)
	return r, true
}

// ExpandAll removes every collapsed range.
func (c *Collapser) ExpandAll() {
	c.ranges = c.ranges[:0]
	if c.view != nil {
		c.view.RemoveOwned(CollapserName)
	}
	c.restore(everything)
}

// IsCollapsed reports whether offset lies in a collapsed range.
func (c *Collapser) IsCollapsed(offset int) bool {
	return slices.ContainsFunc(c.ranges, func(r engine.Range) bool { return r.Contains(offset) })
}

// BeforeTextChange implements Transformation.
func (c *Collapser) BeforeTextChange(ev engine.ChangeEvent, _ *View) error {
	c.hidden = slices.DeleteFunc(c.hidden, func(s Span) bool { return Affected(s.Range, ev) })
	c.hit = c.hit[:0]
	for i, r := range c.ranges {
		if Affected(r, ev) {
			c.hit = append(c.hit, i)
		}
	}
	return nil
}

// AfterTextChange implements Transformation.
func (c *Collapser) AfterTextChange(ev engine.ChangeEvent, v *View) error {
	mapEnd := func(off int) int {
		if off <= ev.Start {
			return off
		}
		return ev.MapOffset(off)
	}
	var reinstall []engine.Range
	kept := c.ranges[:0]
	h := 0
	for i, r := range c.ranges {
		nr := engine.Range{Start: ev.MapOffset(r.Start), End: mapEnd(r.End)}
		invalidated := h < len(c.hit) && c.hit[h] == i
		if invalidated {
			h++
		}
		if nr.IsEmpty() {
			continue
		}
		kept = append(kept, nr)
		if invalidated {
			reinstall = append(reinstall, nr)
		}
	}
	c.ranges = kept
	c.hit = c.hit[:0]
	if delta := ev.Delta(); delta != 0 {
		for i := range c.hidden {
			if c.hidden[i].Range.Start >= ev.Start {
				c.hidden[i].Range = c.hidden[i].Range.Shift(delta)
			}
		}
	}
	c.view = v
	return c.install(reinstall)
}
