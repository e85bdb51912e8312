package decor

import (
	"fmt"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/dshills/bigtext/internal/engine"
)

// DefaultMatchTimeout bounds the time spent matching one line.
const DefaultMatchTimeout = time.Second

// SearchDecorator highlights the matches of a regular expression. Matches
// are found within lines; edits rescan only the lines they touched.
type SearchDecorator struct {
	theme   *Theme
	re      *regexp2.Regexp
	pattern string
	index   matchIndex
	src     engine.Reader
}

// NewSearchDecorator creates a decorator with no pattern. A nil theme
// selects DefaultTheme.
func NewSearchDecorator(theme *Theme) *SearchDecorator {
	if theme == nil {
		theme = DefaultTheme()
	}
	return &SearchDecorator{theme: theme}
}

// Name implements Decorator.
func (d *SearchDecorator) Name() string {
	return "search"
}

// Pattern returns the current pattern.
func (d *SearchDecorator) Pattern() string {
	return d.pattern
}

// SetPattern compiles pattern and rescans the document. An empty pattern
// clears the search.
func (d *SearchDecorator) SetPattern(pattern string, opts regexp2.RegexOptions) error {
	if pattern == "" {
		d.re, d.pattern = nil, ""
		d.index.items = nil
		return nil
	}
	re, err := regexp2.Compile(pattern, opts)
	if err != nil {
		return fmt.Errorf("search pattern %q: %w", pattern, err)
	}
	re.MatchTimeout = DefaultMatchTimeout
	d.re, d.pattern = re, pattern
	if d.src == nil {
		return nil
	}
	return d.Initialize(d.src)
}

// Initialize implements Decorator.
func (d *SearchDecorator) Initialize(r engine.Reader) error {
	d.src = r
	d.index.items = nil
	if d.re == nil {
		return nil
	}
	found, err := d.scan(r, engine.Range{Start: 0, End: r.Len()})
	if err != nil {
		return err
	}
	d.index.items = found
	return nil
}

// BeforeTextChange implements Decorator.
func (d *SearchDecorator) BeforeTextChange(engine.ChangeEvent) error {
	return nil
}

// AfterTextChange implements Decorator.
func (d *SearchDecorator) AfterTextChange(ev engine.ChangeEvent) error {
	if d.re == nil {
		return nil
	}
	lines, err := touchedLines(ev.Source, ev)
	if err != nil {
		return err
	}
	found, err := d.scan(ev.Source, lines)
	if err != nil {
		return err
	}
	d.index.update(lines, ev, found)
	return nil
}

// scan matches every line of rg separately.
func (d *SearchDecorator) scan(r engine.Reader, rg engine.Range) ([]match, error) {
	first, _, err := r.FindLineAndColumnFromOffset(rg.Start)
	if err != nil {
		return nil, err
	}
	last, _, err := r.FindLineAndColumnFromOffset(rg.End)
	if err != nil {
		return nil, err
	}
	var out []match
	for line := first; line <= last; line++ {
		text, err := r.FindLineString(line)
		if err != nil {
			return nil, err
		}
		start, _ := r.LineStart(line)
		m, err := d.re.FindStringMatch(text)
		for ; m != nil && err == nil; m, err = d.re.FindNextMatch(m) {
			if m.Length == 0 {
				continue
			}
			out = append(out, match{rng: engine.Range{Start: start + m.Index, End: start + m.Index + m.Length}})
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	return out, nil
}

// Matches returns every match in document order.
func (d *SearchDecorator) Matches() []engine.Range {
	out := make([]engine.Range, 0, len(d.index.items))
	for _, m := range d.index.items {
		out = append(out, m.rng)
	}
	return out
}

// Count returns the number of matches.
func (d *SearchDecorator) Count() int {
	return len(d.index.items)
}

// Next returns the first match starting after offset, wrapping around to
// the first match.
func (d *SearchDecorator) Next(offset int) (engine.Range, bool) {
	items := d.index.items
	if len(items) == 0 {
		return engine.Range{}, false
	}
	for _, m := range items[searchEnd(items, offset):] {
		if m.rng.Start > offset {
			return m.rng, true
		}
	}
	return items[0].rng, true
}

// Prev returns the last match starting before offset, wrapping around to
// the last match.
func (d *SearchDecorator) Prev(offset int) (engine.Range, bool) {
	items := d.index.items
	if len(items) == 0 {
		return engine.Range{}, false
	}
	for i := min(searchEnd(items, offset), len(items)-1); i >= 0; i-- {
		if items[i].rng.Start < offset {
			return items[i].rng, true
		}
	}
	return items[len(items)-1].rng, true
}

// Decorate implements Decorator.
func (d *SearchDecorator) Decorate(in StyledText, original engine.Range) StyledText {
	style, _ := d.theme.StyleFor(TagSearchMatch)
	for _, m := range d.index.overlapping(original) {
		in = in.WithSpan(StyleSpan{
			Start: m.rng.Start - original.Start,
			End:   m.rng.End - original.Start,
			Style: style,
			Tag:   TagSearchMatch,
		})
	}
	return in
}
