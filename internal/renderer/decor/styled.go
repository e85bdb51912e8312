// Package decor annotates document text with presentation styles.
//
// Decorators are bound to one document. They keep an incremental index
// (a syntax tree, a match list) current through change events and answer
// Decorate calls purely from that index.
package decor

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
)

// StyleSpan styles the runes [Start, End) of a StyledText.
type StyleSpan struct {
	Start int
	End   int
	Style tcell.Style
	Tag   string
}

// StyledText is text with style spans. Later spans take precedence where
// spans overlap.
type StyledText struct {
	Text  string
	Spans []StyleSpan
}

// Plain returns unstyled text.
func Plain(text string) StyledText {
	return StyledText{Text: text}
}

// Len returns the rune length of the text.
func (t StyledText) Len() int {
	return utf8.RuneCountInString(t.Text)
}

// WithSpan returns t with sp appended, clipped to the text. Empty spans are
// dropped.
func (t StyledText) WithSpan(sp StyleSpan) StyledText {
	sp.Start = max(sp.Start, 0)
	sp.End = min(sp.End, t.Len())
	if sp.Start >= sp.End {
		return t
	}
	spans := make([]StyleSpan, len(t.Spans), len(t.Spans)+1)
	copy(spans, t.Spans)
	t.Spans = append(spans, sp)
	return t
}

// StyleAt returns the style of rune i and the tags of every span covering it.
func (t StyledText) StyleAt(i int) (tcell.Style, []string) {
	style := tcell.StyleDefault
	var tags []string
	for _, sp := range t.Spans {
		if sp.Start <= i && i < sp.End {
			style = sp.Style
			if sp.Tag != "" {
				tags = append(tags, sp.Tag)
			}
		}
	}
	return style, tags
}

// HasTag reports whether a span tagged tag covers rune i.
func (t StyledText) HasTag(i int, tag string) bool {
	for _, sp := range t.Spans {
		if sp.Tag == tag && sp.Start <= i && i < sp.End {
			return true
		}
	}
	return false
}

// Slice returns runes [start, end) with spans clipped and rebased.
func (t StyledText) Slice(start, end int) StyledText {
	runes := []rune(t.Text)
	start = min(max(start, 0), len(runes))
	end = min(max(end, start), len(runes))
	out := StyledText{Text: string(runes[start:end])}
	for _, sp := range t.Spans {
		s, e := max(sp.Start, start), min(sp.End, end)
		if s < e {
			out.Spans = append(out.Spans, StyleSpan{Start: s - start, End: e - start, Style: sp.Style, Tag: sp.Tag})
		}
	}
	return out
}

// Append returns t followed by other.
func (t StyledText) Append(other StyledText) StyledText {
	n := t.Len()
	out := StyledText{Text: t.Text + other.Text}
	out.Spans = append(out.Spans, t.Spans...)
	for _, sp := range other.Spans {
		sp.Start += n
		sp.End += n
		out.Spans = append(out.Spans, sp)
	}
	return out
}

// Run is a maximal stretch of runes sharing one style.
type Run struct {
	Text  string
	Style tcell.Style
}

// Runs splits the text into runs of uniform style.
func (t StyledText) Runs() []Run {
	if t.Text == "" {
		return nil
	}
	// style boundaries
	cuts := []int{0, t.Len()}
	for _, sp := range t.Spans {
		cuts = append(cuts, sp.Start, sp.End)
	}
	sort.Ints(cuts)

	runes := []rune(t.Text)
	var out []Run
	for i := 0; i+1 < len(cuts); i++ {
		a, b := cuts[i], cuts[i+1]
		if a == b {
			continue
		}
		style, _ := t.StyleAt(a)
		if n := len(out); n > 0 && out[n-1].Style == style {
			out[n-1].Text += string(runes[a:b])
			continue
		}
		out = append(out, Run{Text: string(runes[a:b]), Style: style})
	}
	return out
}

// String returns the text.
func (t StyledText) String() string {
	return t.Text
}

// Markup renders t with every tagged stretch wrapped as [tag|text], for
// diagnostics and tests. Overlapping tags nest by span order.
func (t StyledText) Markup() string {
	runes := []rune(t.Text)
	var sb strings.Builder
	var open []string
	for i := 0; i <= len(runes); i++ {
		var tags []string
		if i < len(runes) {
			_, tags = t.StyleAt(i)
		}
		// close tags that end here
		k := 0
		for k < len(open) && k < len(tags) && open[k] == tags[k] {
			k++
		}
		for j := len(open) - 1; j >= k; j-- {
			sb.WriteByte(']')
		}
		for _, tag := range tags[k:] {
			sb.WriteString("[" + tag + "|")
		}
		open = tags
		if i < len(runes) {
			sb.WriteRune(runes[i])
		}
	}
	return sb.String()
}
