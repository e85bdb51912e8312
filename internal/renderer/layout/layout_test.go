package layout

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/bigtext/internal/engine"
)

func newDoc(t *testing.T, text string) *engine.BigText {
	t.Helper()
	return engine.New(engine.WithContent(text))
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width float64
		want  []int
	}{
		{"empty", "", 10, []int{0}},
		{"no wrap", "hello world", 0, []int{0}},
		{"fits", "abcd", 4, []int{0}},
		{"wraps", "abcdefghij", 4, []int{0, 4, 8}},
		{"lines", "ab\ncd", 10, []int{0, 3}},
		{"trailing newline", "ab\n", 10, []int{0, 3}},
		{"empty lines", "\n\n", 10, []int{0, 1, 2}},
		{"wrap then line", "abcde\nfg", 3, []int{0, 3, 6}},
		{"wide", "中中中", 4, []int{0, 2}},
		{"narrower than glyph", "中中", 1, []int{0, 1}},
		{"tab stops", "a\tbcdef", 6, []int{0, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(newDoc(t, tt.text), NewCellOracle(false), tt.width)
			if diff := cmp.Diff(tt.want, e.RowStarts()); diff != "" {
				t.Errorf("RowStarts() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWrapKeepsClustersTogether(t *testing.T) {
	text := strings.Repeat("e\u0301", 3)
	e := New(newDoc(t, text), NewGraphemeOracle(), 2)
	if diff := cmp.Diff([]int{0, 4}, e.RowStarts()); diff != "" {
		t.Errorf("RowStarts() mismatch (-want +got):\n%s", diff)
	}
}

func TestRowQueries(t *testing.T) {
	doc := newDoc(t, "abcdefg\nhi\n")
	e := New(doc, NewCellOracle(false), 4)
	// rows: "abcd" "efg" "hi" ""
	if got := e.NumOfRows(); got != 4 {
		t.Fatalf("NumOfRows() = %d, want 4", got)
	}

	var rows []string
	for i := 0; i < e.NumOfRows(); i++ {
		s, err := e.FindRowString(i)
		if err != nil {
			t.Fatalf("FindRowString(%d): %v", i, err)
		}
		rows = append(rows, s)
	}
	if diff := cmp.Diff([]string{"abcd", "efg", "hi", ""}, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}

	ends := []int{4, 7, 10, 11}
	for i, want := range ends {
		got, err := e.RowEnd(i)
		if err != nil || got != want {
			t.Errorf("RowEnd(%d) = %d, %v; want %d", i, got, err, want)
		}
	}

	offsets := []struct{ off, row, col int }{
		{0, 0, 0},
		{3, 0, 3},
		{4, 1, 0},
		{7, 1, 3}, // line break belongs to the row it ends
		{8, 2, 0},
		{11, 3, 0},
	}
	for _, tt := range offsets {
		row, col, err := e.FindRowPositionByOffset(tt.off)
		if err != nil || row != tt.row || col != tt.col {
			t.Errorf("FindRowPositionByOffset(%d) = %d, %d, %v; want %d, %d", tt.off, row, col, err, tt.row, tt.col)
		}
	}

	if got, err := e.FindRenderCharIndexByLineAndColumn(1, 2); err != nil || got != 6 {
		t.Errorf("FindRenderCharIndexByLineAndColumn(1, 2) = %d, %v; want 6", got, err)
	}
	if got, err := e.FindRenderCharIndexByLineAndColumn(1, 3); err != nil || got != 7 {
		t.Errorf("FindRenderCharIndexByLineAndColumn(1, 3) = %d, %v; want 7", got, err)
	}
}

func TestRowQueriesOutOfRange(t *testing.T) {
	e := New(newDoc(t, "abc"), NewCellOracle(false), 0)
	checks := map[string]error{}
	_, checks["RowStart(-1)"] = e.RowStart(-1)
	_, checks["RowStart(1)"] = e.RowStart(1)
	_, checks["RowEnd(1)"] = e.RowEnd(1)
	_, checks["FindRowString(2)"] = e.FindRowString(2)
	_, checks["FindRowIndexByOffset(4)"] = e.FindRowIndexByOffset(4)
	_, checks["FindRowIndexByOffset(-1)"] = e.FindRowIndexByOffset(-1)
	_, checks["FindRenderCharIndexByLineAndColumn(0, 4)"] = e.FindRenderCharIndexByLineAndColumn(0, 4)
	_, checks["FindRenderCharIndexByLineAndColumn(0, -1)"] = e.FindRenderCharIndexByLineAndColumn(0, -1)
	for name, err := range checks {
		if !errors.Is(err, ErrOutOfRange) {
			t.Errorf("%s error = %v, want ErrOutOfRange", name, err)
		}
	}
}

func randomText(rng *rand.Rand, n int) string {
	const alphabet = "abcdefgh \t中\u00e9\n\n"
	runes := []rune(alphabet)
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteRune(runes[rng.Intn(len(runes))])
	}
	return sb.String()
}

func TestIncrementalMatchesFullLayout(t *testing.T) {
	oracles := map[string]Oracle{
		"cell":     NewCellOracle(false),
		"grapheme": NewGraphemeOracle(),
	}
	for name, oracle := range oracles {
		t.Run(name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(7))
			doc := engine.New(engine.WithContent(randomText(rng, 5000)), engine.WithChunkCapacity(64))
			e := New(doc, oracle, 12)
			if _, err := doc.AddListener(e); err != nil {
				t.Fatal(err)
			}

			for i := 0; i < 400; i++ {
				n := doc.Len()
				if rng.Intn(3) > 0 || n == 0 {
					pos := rng.Intn(n + 1)
					if err := doc.InsertAt(pos, randomText(rng, 1+rng.Intn(40))); err != nil {
						t.Fatal(err)
					}
				} else {
					start := rng.Intn(n)
					end := min(n, start+1+rng.Intn(60))
					if err := doc.Delete(start, end); err != nil {
						t.Fatal(err)
					}
				}

				want := New(doc, oracle, 12).RowStarts()
				if diff := cmp.Diff(want, e.RowStarts()); diff != "" {
					t.Fatalf("edit %d: incremental layout mismatch (-full +incremental):\n%s", i, diff)
				}
			}
		})
	}
}

func TestContentWidthChange(t *testing.T) {
	doc := newDoc(t, strings.Repeat("x", 20))
	e := New(doc, NewCellOracle(false), 10)
	if _, err := doc.AddListener(e); err != nil {
		t.Fatal(err)
	}
	if got := e.NumOfRows(); got != 2 {
		t.Fatalf("NumOfRows() = %d, want 2", got)
	}

	doc.SetContentWidth(5)
	if got := e.ContentWidth(); got != 5 {
		t.Errorf("ContentWidth() = %v, want 5", got)
	}
	if got := e.NumOfRows(); got != 4 {
		t.Errorf("NumOfRows() after width change = %d, want 4", got)
	}
}

func TestWithTabWidth(t *testing.T) {
	e := New(newDoc(t, "\t\tab"), NewCellOracle(false), 10, WithTabWidth(8))
	// first tab fills a row of width 8, the second overflows it
	if diff := cmp.Diff([]int{0, 1}, e.RowStarts()); diff != "" {
		t.Errorf("RowStarts() mismatch (-want +got):\n%s", diff)
	}
}

func TestTabStopsAdvance(t *testing.T) {
	tabs := NewTabStops(4)
	tests := []struct {
		x, space, want float64
	}{
		{0, 1, 4},
		{1, 1, 3},
		{3.5, 1, 0.5},
		{4, 1, 4},
		{0, 7, 28},
		{10, 7, 18},
	}
	for _, tt := range tests {
		if got := tabs.Advance(tt.x, tt.space); got != tt.want {
			t.Errorf("Advance(%v, %v) = %v, want %v", tt.x, tt.space, got, tt.want)
		}
	}
	if got := NewTabStops(0).TabWidth(); got != DefaultTabWidth {
		t.Errorf("NewTabStops(0).TabWidth() = %d, want %d", got, DefaultTabWidth)
	}
}

func TestCellOracle(t *testing.T) {
	o := NewCellOracle(false)
	tests := []struct {
		r    rune
		want float64
	}{
		{'a', 1},
		{'中', 2},
		{'\u0301', 1}, // zero width is charged one cell
		{'\x00', 1},
	}
	for _, tt := range tests {
		if got := o.FindCharWidth(tt.r); got != tt.want {
			t.Errorf("FindCharWidth(%q) = %v, want %v", tt.r, got, tt.want)
		}
	}

	// '±' is ambiguous width
	if got := NewCellOracle(true).FindCharWidth('±'); got != 2 {
		t.Errorf("east asian FindCharWidth('±') = %v, want 2", got)
	}
}

func TestMeasuredOracle(t *testing.T) {
	var measured []string
	measure := func(g string) float64 {
		measured = append(measured, g)
		if g == "x" {
			return 0
		}
		return 7
	}
	o := NewMeasuredOracle(measure)

	o.MeasureFullText("aa中日")
	if got := o.FindCharWidth('a'); got != 7 {
		t.Errorf("FindCharWidth('a') = %v, want 7", got)
	}
	if got := o.FindCharWidth('x'); got != 7 {
		t.Errorf("FindCharWidth('x') = %v, want fallback 7", got)
	}

	// "M" is the fallback measurement; wide runes share one measurement.
	if diff := cmp.Diff([]string{"M", "a", "中", "x"}, measured); diff != "" {
		t.Errorf("measured glyphs mismatch (-want +got):\n%s", diff)
	}

	stats := o.Stats()
	want := CacheStats{Size: 3, Hits: 3, Misses: 3}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("Stats() mismatch (-want +got):\n%s", diff)
	}
	if got := stats.HitRate(); got != 0.5 {
		t.Errorf("HitRate() = %v, want 0.5", got)
	}

	o.SetWideGlyph('W')
	o.FindCharWidth('中')
	if last := measured[len(measured)-1]; last != "W" {
		t.Errorf("after SetWideGlyph measured %q, want \"W\"", last)
	}
}

func TestRowStoreReplace(t *testing.T) {
	var starts []int
	for i := 0; i < 1000; i++ {
		starts = append(starts, i*10)
	}
	var s rowStore
	s.reset(starts)
	if got := s.len(); got != 1000 {
		t.Fatalf("len() = %d, want 1000", got)
	}

	// Replace rows 300..302 (offsets 3000, 3010, 3020) with two rows and
	// shrink the text by 5.
	s.replace(300, 303, []int{3000, 3012}, -5)

	var want []int
	want = append(want, starts[:300]...)
	want = append(want, 3000, 3012)
	for _, v := range starts[303:] {
		want = append(want, v-5)
	}
	if diff := cmp.Diff(want, s.all()); diff != "" {
		t.Fatalf("all() mismatch (-want +got):\n%s", diff)
	}
	if got := s.len(); got != 999 {
		t.Errorf("len() = %d, want 999", got)
	}
	for i, v := range want {
		if got := s.start(i); got != v {
			t.Fatalf("start(%d) = %d, want %d", i, got, v)
		}
	}
	if got := s.upperBound(3011); got != 301 {
		t.Errorf("upperBound(3011) = %d, want 301", got)
	}
	if got := s.upperBound(-1); got != 0 {
		t.Errorf("upperBound(-1) = %d, want 0", got)
	}
	if got := s.upperBound(1 << 30); got != 999 {
		t.Errorf("upperBound(max) = %d, want 999", got)
	}
}
