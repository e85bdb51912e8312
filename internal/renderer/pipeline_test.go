package renderer

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/bigtext/internal/engine"
	"github.com/dshills/bigtext/internal/renderer/decor"
	"github.com/dshills/bigtext/internal/renderer/layout"
	"github.com/dshills/bigtext/internal/renderer/transform"
)

// flakyDecorator tags everything it decorates. It fails edits inserting
// "!" and panics on demand.
type flakyDecorator struct {
	failInit bool
	panics   bool
}

func (d *flakyDecorator) Name() string { return "flaky" }

func (d *flakyDecorator) Initialize(engine.Reader) error {
	if d.failInit {
		return errors.New("boom")
	}
	return nil
}

func (d *flakyDecorator) BeforeTextChange(engine.ChangeEvent) error { return nil }

func (d *flakyDecorator) AfterTextChange(ev engine.ChangeEvent) error {
	if strings.Contains(ev.Text, "!") {
		return errors.New("cannot handle !")
	}
	return nil
}

func (d *flakyDecorator) Decorate(in decor.StyledText, _ engine.Range) decor.StyledText {
	if d.panics {
		panic("decorate")
	}
	return in.WithSpan(decor.StyleSpan{Start: 0, End: in.Len(), Tag: "flaky"})
}

// brokenTransformation uppercases one rune and fails every edit.
type brokenTransformation struct {
	at       int
	failInit bool
}

func (b *brokenTransformation) Name() string { return "broken" }

func (b *brokenTransformation) Initialize(r engine.Reader, v *transform.View) error {
	ch, err := r.RuneAt(b.at)
	if err != nil {
		return err
	}
	if err := v.Add(transform.Span{
		Range:       engine.Range{Start: b.at, End: b.at + 1},
		Replacement: strings.ToUpper(string(ch)),
		Mapping:     transform.Incremental,
		Owner:       b.Name(),
	}); err != nil {
		return err
	}
	if b.failInit {
		return errors.New("init failed")
	}
	return nil
}

func (b *brokenTransformation) BeforeTextChange(engine.ChangeEvent, *transform.View) error {
	return nil
}

func (b *brokenTransformation) AfterTextChange(engine.ChangeEvent, *transform.View) error {
	return errors.New("edit failed")
}

func newSearch(t *testing.T, pattern string) *decor.SearchDecorator {
	t.Helper()
	s := decor.NewSearchDecorator(decor.DefaultTheme())
	if err := s.SetPattern(pattern, 0); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRenderCollapsedWithSearch(t *testing.T) {
	doc := engine.New(engine.WithContent("foo bar {baz foo} foo"))
	c := transform.NewCollapser()
	if err := c.Collapse(engine.Range{Start: 8, End: 17}); err != nil {
		t.Fatal(err)
	}
	p, err := New(doc, WithTransformations(c), WithDecorators(newSearch(t, "foo")))
	if err != nil {
		t.Fatal(err)
	}

	got, err := p.Render(engine.Range{Start: 0, End: doc.Len()})
	if err != nil {
		t.Fatal(err)
	}
	if want := "[search.match|foo] bar [collapse|…] [search.match|foo]"; got.Markup() != want {
		t.Errorf("Render = %q, want %q", got.Markup(), want)
	}

	inside, err := p.Render(engine.Range{Start: 10, End: 11})
	if err != nil {
		t.Fatal(err)
	}
	if inside.Markup() != "[collapse|…]" {
		t.Errorf("Render inside block = %q", inside.Markup())
	}

	part, err := p.RenderTransformed(4, 11)
	if err != nil {
		t.Fatal(err)
	}
	if want := "bar [collapse|…] [search.match|f]"; part.Markup() != want {
		t.Errorf("RenderTransformed = %q, want %q", part.Markup(), want)
	}

	if _, err := p.Render(engine.Range{Start: 0, End: 100}); !errors.Is(err, engine.ErrOutOfRange) {
		t.Errorf("Render out of range: err = %v", err)
	}
}

func TestExpandRestoresHiddenSpans(t *testing.T) {
	doc := engine.New(engine.WithContent("ab{\t}cd"))
	glyphs := transform.NewGlyphSubstitution(transform.DefaultGlyphs(), decor.DefaultTheme().Default)
	c := transform.NewCollapser()
	p, err := New(doc, WithTransformations(glyphs, c))
	if err != nil {
		t.Fatal(err)
	}
	if got := p.View().String(); got != "ab{→}cd" {
		t.Fatalf("view = %q", got)
	}
	if err := p.Collapse(engine.Range{Start: 2, End: 5}); err != nil {
		t.Fatal(err)
	}
	if got := p.View().String(); got != "ab…cd" {
		t.Fatalf("collapsed view = %q", got)
	}
	if !p.Expand(3) {
		t.Fatal("Expand(3) = false")
	}
	if got := p.View().String(); got != "ab{→}cd" {
		t.Errorf("expanded view = %q", got)
	}
	if p.Expand(3) {
		t.Error("second Expand(3) = true")
	}
}

// rescanRecorder counts full scans and records the ranges it rescans.
type rescanRecorder struct {
	inits   int
	rescans []engine.Range
}

func (r *rescanRecorder) Name() string { return "recorder" }

func (r *rescanRecorder) Initialize(engine.Reader, *transform.View) error {
	r.inits++
	return nil
}

func (r *rescanRecorder) BeforeTextChange(engine.ChangeEvent, *transform.View) error { return nil }
func (r *rescanRecorder) AfterTextChange(engine.ChangeEvent, *transform.View) error  { return nil }

func (r *rescanRecorder) Rescan(rg engine.Range, _ *transform.View) error {
	r.rescans = append(r.rescans, rg)
	return nil
}

func TestExpandRescansExpandedLines(t *testing.T) {
	doc := engine.New(engine.WithContent("ab{\t}cd\nzz\t\nend"))
	c := transform.NewCollapser()
	glyphs := transform.NewGlyphSubstitution(transform.DefaultGlyphs(), decor.DefaultTheme().Default)
	rec := &rescanRecorder{}
	p, err := New(doc, WithTransformations(c, glyphs, rec))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Collapse(engine.Range{Start: 2, End: 5}); err != nil {
		t.Fatal(err)
	}
	// a tab typed under the collapsed block gets no glyph until expanded
	if err := doc.InsertAt(3, "\t"); err != nil {
		t.Fatal(err)
	}
	if got, want := p.View().String(), "ab…cd\nzz→\nend"; got != want {
		t.Fatalf("collapsed view = %q, want %q", got, want)
	}
	if !p.Expand(3) {
		t.Fatal("Expand(3) = false")
	}
	if got, want := p.View().String(), "ab{→→}cd\nzz→\nend"; got != want {
		t.Errorf("expanded view = %q, want %q", got, want)
	}
	if rec.inits != 1 {
		t.Errorf("Initialize calls = %d, want 1", rec.inits)
	}
	if diff := cmp.Diff([]engine.Range{{Start: 0, End: 8}}, rec.rescans); diff != "" {
		t.Errorf("rescanned ranges (-want +got):\n%s", diff)
	}
}

func TestFailingDecoratorDegradesTouchedLines(t *testing.T) {
	doc := engine.New(engine.WithContent("foo\nbar\nbaz"))
	p, err := New(doc, WithDecorators(&flakyDecorator{}, newSearch(t, "ba")))
	if err != nil {
		t.Fatal(err)
	}

	if err := doc.InsertAt(5, "!"); err != nil {
		t.Fatalf("edit must succeed: %v", err)
	}
	if doc.String() != "foo\nb!ar\nbaz" {
		t.Fatalf("doc = %q", doc.String())
	}
	if diff := cmp.Diff([]engine.Range{{Start: 4, End: 8}}, p.Degraded("flaky")); diff != "" {
		t.Errorf("Degraded mismatch (-want +got):\n%s", diff)
	}
	if !p.Failed("flaky") || p.Failed("search") {
		t.Errorf("Failed(flaky) = %v, Failed(search) = %v", p.Failed("flaky"), p.Failed("search"))
	}

	got, err := p.Render(engine.Range{Start: 0, End: doc.Len()})
	if err != nil {
		t.Fatal(err)
	}
	if want := "[flaky|foo\n]b!ar[flaky|\n[search.match|ba]z]"; got.Markup() != want {
		t.Errorf("Render = %q, want %q", got.Markup(), want)
	}

	if err := doc.InsertAt(0, "x"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]engine.Range{{Start: 5, End: 9}}, p.Degraded("flaky")); diff != "" {
		t.Errorf("shifted Degraded mismatch (-want +got):\n%s", diff)
	}

	p.Refresh()
	if p.Failed("flaky") {
		t.Error("Refresh did not clear degraded state")
	}
}

func TestPanickingDecoratorIsSkipped(t *testing.T) {
	doc := engine.New(engine.WithContent("one two"))
	p, err := New(doc, WithDecorators(&flakyDecorator{panics: true}, newSearch(t, "two")))
	if err != nil {
		t.Fatal(err)
	}
	got, err := p.Render(engine.Range{Start: 0, End: doc.Len()})
	if err != nil {
		t.Fatal(err)
	}
	if want := "one [search.match|two]"; got.Markup() != want {
		t.Errorf("Render = %q, want %q", got.Markup(), want)
	}
}

func TestDecoratorFailingInitialize(t *testing.T) {
	doc := engine.New(engine.WithContent("abc"))
	p, err := New(doc, WithDecorators(&flakyDecorator{failInit: true}))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]engine.Range{{Start: 0, End: 3}}, p.Degraded("flaky")); diff != "" {
		t.Errorf("Degraded mismatch (-want +got):\n%s", diff)
	}
	got, err := p.Render(engine.Range{Start: 0, End: 3})
	if err != nil {
		t.Fatal(err)
	}
	if got.Markup() != "abc" {
		t.Errorf("Render = %q", got.Markup())
	}
}

func TestFailingTransformationPassesThroughTouchedLines(t *testing.T) {
	doc := engine.New(engine.WithContent("abc\ndef"))
	p, err := New(doc, WithTransformations(&brokenTransformation{at: 5}))
	if err != nil {
		t.Fatal(err)
	}
	if got := p.View().String(); got != "abc\ndEf" {
		t.Fatalf("view = %q", got)
	}

	if err := doc.InsertAt(0, "z"); err != nil {
		t.Fatal(err)
	}
	if got := p.View().String(); got != "zabc\ndEf" {
		t.Errorf("view after unrelated edit = %q", got)
	}

	if err := doc.InsertAt(6, "z"); err != nil {
		t.Fatal(err)
	}
	if got := p.View().String(); got != "zabc\ndzef" {
		t.Errorf("view after failing edit = %q", got)
	}
}

func TestTransformationFailingInitialize(t *testing.T) {
	doc := engine.New(engine.WithContent("abc"))
	p, err := New(doc, WithTransformations(&brokenTransformation{at: 1, failInit: true}))
	if err != nil {
		t.Fatal(err)
	}
	if !p.Failed("broken") {
		t.Error("Failed(broken) = false")
	}
	if n := p.View().SpanCount(); n != 0 {
		t.Errorf("SpanCount = %d, want 0", n)
	}
	if got := p.View().String(); got != "abc" {
		t.Errorf("view = %q", got)
	}
}

func TestPipelineLayout(t *testing.T) {
	doc := engine.New(engine.WithContent("abcdefgh"), engine.WithContentWidth(4))
	p, err := New(doc, WithLayout(layout.NewCellOracle(false)))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{0, 4}, p.Layout().RowStarts()); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	if err := doc.InsertAt(0, "xy"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{0, 4, 8}, p.Layout().RowStarts()); diff != "" {
		t.Errorf("rows after edit mismatch (-want +got):\n%s", diff)
	}

	p.Close()
	if err := doc.InsertAt(0, "xxxx"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{0, 4, 8}, p.Layout().RowStarts()); diff != "" {
		t.Errorf("closed pipeline followed edit (-want +got):\n%s", diff)
	}
	if doc.ListenerCount() != 0 {
		t.Errorf("ListenerCount = %d after Close", doc.ListenerCount())
	}
}
