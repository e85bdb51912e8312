package transform

import (
	"maps"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/bigtext/internal/engine"
)

// GlyphName is the owner name of substituted glyphs.
const GlyphName = "glyph"

// DefaultGlyphs returns the default substitutions: C0 control characters
// other than the line feed become their control pictures, a tab becomes an
// arrow and DEL becomes ␡.
func DefaultGlyphs() map[rune]rune {
	m := make(map[rune]rune, 33)
	for r := rune(0); r < 0x20; r++ {
		if r != '\n' {
			m[r] = 0x2400 + r
		}
	}
	m['\t'] = '→'
	m[0x7f] = '␡'
	return m
}

// GlyphSubstitution replaces single characters with visible glyphs using an
// Incremental mapping, so offsets are preserved. Edits rescan only the
// lines they touched.
type GlyphSubstitution struct {
	glyphs map[rune]rune
	style  tcell.Style
}

// NewGlyphSubstitution creates a substitution. A nil map selects
// DefaultGlyphs. Substituting the line feed is not supported.
func NewGlyphSubstitution(glyphs map[rune]rune, style tcell.Style) *GlyphSubstitution {
	if glyphs == nil {
		glyphs = DefaultGlyphs()
	} else {
		glyphs = maps.Clone(glyphs)
	}
	delete(glyphs, '\n')
	return &GlyphSubstitution{glyphs: glyphs, style: style}
}

// Name implements Transformation.
func (g *GlyphSubstitution) Name() string {
	return GlyphName
}

// Initialize implements Transformation.
func (g *GlyphSubstitution) Initialize(r engine.Reader, v *View) error {
	v.RemoveOwned(GlyphName)
	return g.scan(r, v, engine.Range{Start: 0, End: r.Len()})
}

// BeforeTextChange implements Transformation.
func (g *GlyphSubstitution) BeforeTextChange(engine.ChangeEvent, *View) error {
	return nil
}

// AfterTextChange implements Transformation.
func (g *GlyphSubstitution) AfterTextChange(ev engine.ChangeEvent, v *View) error {
	lines, err := touchedLines(v.Source(), ev)
	if err != nil {
		return err
	}
	v.Remove(GlyphName, lines)
	return g.scan(v.Source(), v, lines)
}

// Rescan implements Rescanner.
func (g *GlyphSubstitution) Rescan(r engine.Range, v *View) error {
	v.Remove(GlyphName, r)
	return g.scan(v.Source(), v, r)
}

func (g *GlyphSubstitution) scan(r engine.Reader, v *View, rg engine.Range) error {
	if rg.IsEmpty() {
		return nil
	}
	text, err := r.Substring(rg.Start, rg.End)
	if err != nil {
		return err
	}
	off := rg.Start
	for _, ch := range text {
		if sub, ok := g.glyphs[ch]; ok {
			s := Span{
				Range:       engine.Range{Start: off, End: off + 1},
				Replacement: string(sub),
				Mapping:     Incremental,
				Owner:       GlyphName,
				Style:       g.style,
			}
			if err := addOrSkip(v, s); err != nil {
				return err
			}
		}
		off++
	}
	return nil
}

// Substitute applies the substitutions to s.
func (g *GlyphSubstitution) Substitute(s string) string {
	return strings.Map(func(r rune) rune {
		if sub, ok := g.glyphs[r]; ok {
			return sub
		}
		return r
	}, s)
}
