package decor

import (
	"maps"
	"slices"

	"github.com/dlclark/regexp2"

	"github.com/dshills/bigtext/internal/engine"
)

// Placeholder patterns: {{name}} references a variable and ${{fn(args)}}
// calls a function. Neither spans a line break.
var placeholderRE = regexp2.MustCompile(
	`\$\{\{[ \t]*(?<fn>[A-Za-z_]\w*)\((?<args>[^()\n]*)\)[ \t]*\}\}|\{\{[ \t]*(?<var>[A-Za-z_][\w.-]*)[ \t]*\}\}`,
	regexp2.None)

const (
	kindVariable = iota
	kindFunction
)

// Placeholder is a variable reference or function call found in the text.
type Placeholder struct {
	Range    engine.Range
	Name     string
	Function bool
	Known    bool
}

// VariableDecorator highlights {{variable}} references and ${{function()}}
// calls, styling known and unknown names differently. Edits rescan only
// the lines they touched.
type VariableDecorator struct {
	theme     *Theme
	variables map[string]string
	functions map[string]bool
	index     matchIndex
}

// NewVariableDecorator creates a decorator that knows the given variables
// and function names. A nil theme selects DefaultTheme.
func NewVariableDecorator(variables map[string]string, functions []string, theme *Theme) *VariableDecorator {
	if theme == nil {
		theme = DefaultTheme()
	}
	d := &VariableDecorator{theme: theme, functions: make(map[string]bool)}
	d.SetVariables(variables)
	for _, f := range functions {
		d.functions[f] = true
	}
	return d
}

// Name implements Decorator.
func (d *VariableDecorator) Name() string {
	return "variables"
}

// SetVariables replaces the known variables. Styling follows on the next
// Decorate; the placeholder index is unaffected.
func (d *VariableDecorator) SetVariables(variables map[string]string) {
	d.variables = maps.Clone(variables)
	if d.variables == nil {
		d.variables = make(map[string]string)
	}
}

// Lookup returns the value of a known variable.
func (d *VariableDecorator) Lookup(name string) (string, bool) {
	v, ok := d.variables[name]
	return v, ok
}

// Placeholders returns every placeholder in document order.
func (d *VariableDecorator) Placeholders() []Placeholder {
	out := make([]Placeholder, 0, len(d.index.items))
	for _, m := range d.index.items {
		out = append(out, d.placeholder(m))
	}
	return out
}

func (d *VariableDecorator) placeholder(m match) Placeholder {
	p := Placeholder{Range: m.rng, Name: m.name, Function: m.kind == kindFunction}
	if p.Function {
		p.Known = d.functions[m.name]
	} else {
		_, p.Known = d.variables[m.name]
	}
	return p
}

// Initialize implements Decorator.
func (d *VariableDecorator) Initialize(r engine.Reader) error {
	found, err := scanPlaceholders(r, engine.Range{Start: 0, End: r.Len()})
	if err != nil {
		return err
	}
	d.index.items = found
	return nil
}

// BeforeTextChange implements Decorator.
func (d *VariableDecorator) BeforeTextChange(engine.ChangeEvent) error {
	return nil
}

// AfterTextChange implements Decorator.
func (d *VariableDecorator) AfterTextChange(ev engine.ChangeEvent) error {
	lines, err := touchedLines(ev.Source, ev)
	if err != nil {
		return err
	}
	found, err := scanPlaceholders(ev.Source, lines)
	if err != nil {
		return err
	}
	d.index.update(lines, ev, found)
	return nil
}

func scanPlaceholders(r engine.Reader, rg engine.Range) ([]match, error) {
	if rg.IsEmpty() {
		return nil, nil
	}
	text, err := r.Substring(rg.Start, rg.End)
	if err != nil {
		return nil, err
	}
	var out []match
	m, err := placeholderRE.FindStringMatch(text)
	for ; m != nil && err == nil; m, err = placeholderRE.FindNextMatch(m) {
		pm := match{rng: engine.Range{Start: rg.Start + m.Index, End: rg.Start + m.Index + m.Length}}
		if g := m.GroupByName("fn"); g != nil && len(g.Captures) > 0 {
			pm.name, pm.kind = g.String(), kindFunction
		} else {
			pm.name, pm.kind = m.GroupByName("var").String(), kindVariable
		}
		out = append(out, pm)
	}
	return out, err
}

// Decorate implements Decorator.
func (d *VariableDecorator) Decorate(in StyledText, original engine.Range) StyledText {
	for _, m := range d.index.overlapping(original) {
		p := d.placeholder(m)
		tag := TagVariable
		switch {
		case p.Function && p.Known:
			tag = TagFunction
		case p.Function:
			tag = TagFunctionUnknown
		case !p.Known:
			tag = TagVariableUnknown
		}
		style, _ := d.theme.StyleFor(tag)
		in = in.WithSpan(StyleSpan{
			Start: m.rng.Start - original.Start,
			End:   m.rng.End - original.Start,
			Style: style,
			Tag:   tag,
		})
	}
	return in
}

// Functions returns the known function names, sorted.
func (d *VariableDecorator) Functions() []string {
	return slices.Sorted(maps.Keys(d.functions))
}
