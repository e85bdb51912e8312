package decor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
)

// ErrInvalidStyle indicates a style description that cannot be parsed.
var ErrInvalidStyle = errors.New("invalid style")

// Tags set by the bundled decorators. Themes may style them by name.
const (
	TagVariable        = "variable"
	TagVariableUnknown = "variable.unknown"
	TagFunction        = "function"
	TagFunctionUnknown = "function.unknown"
	TagSearchMatch     = "search.match"
)

// Theme maps token types and tags to styles.
//
// Token types are matched by longest prefix, so "LiteralString" styles
// "LiteralStringDouble" unless the latter has its own entry. Tags are
// matched the same way on dotted segments, so "variable" styles
// "variable.unknown".
type Theme struct {
	Name    string
	Default tcell.Style
	Styles  map[string]tcell.Style
}

// DefaultTheme returns the built-in theme.
func DefaultTheme() *Theme {
	base := tcell.StyleDefault
	return &Theme{
		Name:    "default",
		Default: base,
		Styles: map[string]tcell.Style{
			"Keyword":          base.Foreground(tcell.ColorPurple).Bold(true),
			"NameTag":          base.Foreground(tcell.ColorTeal),
			"NameFunction":     base.Foreground(tcell.ColorBlue),
			"LiteralString":    base.Foreground(tcell.ColorGreen),
			"LiteralNumber":    base.Foreground(tcell.ColorOlive),
			"Comment":          base.Foreground(tcell.ColorGray).Italic(true),
			"Operator":         base.Foreground(tcell.ColorSilver),
			"Punctuation":      base.Foreground(tcell.ColorSilver),
			TagVariable:        base.Foreground(tcell.ColorAqua).Bold(true),
			TagVariableUnknown: base.Foreground(tcell.ColorRed).Underline(true),
			TagFunction:        base.Foreground(tcell.ColorFuchsia).Bold(true),
			TagFunctionUnknown: base.Foreground(tcell.ColorRed).Underline(true),
			TagSearchMatch:     base.Background(tcell.ColorYellow).Foreground(tcell.ColorBlack),
		},
	}
}

// NewTheme builds a theme from style descriptions such as
// "bold #ff8800 on black". Entries override the default theme.
func NewTheme(name string, descriptions map[string]string) (*Theme, error) {
	t := DefaultTheme()
	t.Name = name
	for key, desc := range descriptions {
		style, err := ParseStyle(desc)
		if err != nil {
			return nil, fmt.Errorf("theme %s: %s: %w", name, key, err)
		}
		t.Styles[key] = style
	}
	return t, nil
}

// ParseStyle parses a space separated style description: attribute words
// (bold, italic, underline, reverse, dim, blink, strikethrough), a
// foreground color, and "on" followed by a background color. Colors are
// names known to tcell or #rrggbb.
func ParseStyle(desc string) (tcell.Style, error) {
	style := tcell.StyleDefault
	fields := strings.Fields(strings.ToLower(desc))
	for i := 0; i < len(fields); i++ {
		switch f := fields[i]; f {
		case "bold":
			style = style.Bold(true)
		case "italic":
			style = style.Italic(true)
		case "underline":
			style = style.Underline(true)
		case "reverse":
			style = style.Reverse(true)
		case "dim":
			style = style.Dim(true)
		case "blink":
			style = style.Blink(true)
		case "strikethrough":
			style = style.StrikeThrough(true)
		case "on":
			if i+1 >= len(fields) {
				return style, fmt.Errorf("%q: missing background color: %w", desc, ErrInvalidStyle)
			}
			i++
			c, err := parseColor(fields[i])
			if err != nil {
				return style, fmt.Errorf("%q: %w", desc, err)
			}
			style = style.Background(c)
		default:
			c, err := parseColor(f)
			if err != nil {
				return style, fmt.Errorf("%q: %w", desc, err)
			}
			style = style.Foreground(c)
		}
	}
	return style, nil
}

func parseColor(name string) (tcell.Color, error) {
	if name == "default" {
		return tcell.ColorDefault, nil
	}
	c := tcell.GetColor(name)
	if c == tcell.ColorDefault {
		return c, fmt.Errorf("unknown color %q: %w", name, ErrInvalidStyle)
	}
	return c, nil
}

// StyleFor returns the style of a token type or tag and reports whether
// any entry matched.
func (t *Theme) StyleFor(key string) (tcell.Style, bool) {
	if s, ok := t.Styles[key]; ok {
		return s, true
	}
	best := -1
	var style tcell.Style
	for k, s := range t.Styles {
		if len(k) > best && strings.HasPrefix(key, k) {
			best, style = len(k), s
		}
	}
	if best < 0 {
		return t.Default, false
	}
	return style, true
}
