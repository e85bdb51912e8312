package decor

import (
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/dshills/bigtext/internal/engine"
)

// LineTag tags runes [Start, End) of one line.
type LineTag struct {
	Start int
	End   int
	Tag   string
}

// LineTagger finds the stretches of a line to decorate. The result must
// depend on the line text alone.
type LineTagger interface {
	TagLine(line string) ([]LineTag, error)
}

// LineTaggerFunc adapts a function into a LineTagger.
type LineTaggerFunc func(line string) ([]LineTag, error)

// TagLine implements LineTagger.
func (f LineTaggerFunc) TagLine(line string) ([]LineTag, error) { return f(line) }

// TaggerDecorator decorates the tags a LineTagger reports, styled by the
// theme entry for each tag. Only the lines an edit touches are retagged.
// A tag overlapping an earlier tag on the same line is dropped.
type TaggerDecorator struct {
	name   string
	tagger LineTagger
	theme  *Theme
	index  matchIndex
}

// NewTaggerDecorator creates a decorator named name.
func NewTaggerDecorator(name string, t LineTagger, theme *Theme) *TaggerDecorator {
	if theme == nil {
		theme = DefaultTheme()
	}
	return &TaggerDecorator{name: name, tagger: t, theme: theme}
}

// Name implements Decorator.
func (d *TaggerDecorator) Name() string {
	return d.name
}

// Tags returns the tagged ranges in document order.
func (d *TaggerDecorator) Tags() []engine.Range {
	out := make([]engine.Range, len(d.index.items))
	for i, m := range d.index.items {
		out[i] = m.rng
	}
	return out
}

// Initialize implements Decorator.
func (d *TaggerDecorator) Initialize(r engine.Reader) error {
	d.index.items = nil
	found, err := d.scan(r, engine.Range{Start: 0, End: r.Len()})
	if err != nil {
		return err
	}
	d.index.items = found
	return nil
}

// BeforeTextChange implements Decorator.
func (d *TaggerDecorator) BeforeTextChange(engine.ChangeEvent) error {
	return nil
}

// AfterTextChange implements Decorator.
func (d *TaggerDecorator) AfterTextChange(ev engine.ChangeEvent) error {
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

// scan tags every line intersecting rg. rg starts at a line start.
func (d *TaggerDecorator) scan(r engine.Reader, rg engine.Range) ([]match, error) {
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
		if text == "" {
			continue
		}
		tags, err := d.tagger.TagLine(text)
		if err != nil {
			return nil, fmt.Errorf("%s: line %d: %w", d.name, line, err)
		}
		start, _ := r.LineStart(line)
		out = appendLineTags(out, tags, start, utf8.RuneCountInString(text))
	}
	return out, nil
}

// appendLineTags appends the valid tags of one line, sorted and without
// overlaps, in document coordinates.
func appendLineTags(dst []match, tags []LineTag, lineStart, lineLen int) []match {
	tags = slices.Clone(tags)
	slices.SortStableFunc(tags, func(a, b LineTag) int { return a.Start - b.Start })
	end := 0
	for _, t := range tags {
		if t.Start < end || t.Start >= t.End || t.End > lineLen {
			continue
		}
		dst = append(dst, match{
			rng:  engine.Range{Start: lineStart + t.Start, End: lineStart + t.End},
			name: t.Tag,
		})
		end = t.End
	}
	return dst
}

// Decorate implements Decorator.
func (d *TaggerDecorator) Decorate(in StyledText, original engine.Range) StyledText {
	for _, m := range d.index.overlapping(original) {
		style, _ := d.theme.StyleFor(m.name)
		in = in.WithSpan(StyleSpan{
			Start: m.rng.Start - original.Start,
			End:   m.rng.End - original.Start,
			Style: style,
			Tag:   m.name,
		})
	}
	return in
}
