package layout

import (
	"sync"
	"sync/atomic"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
	"golang.org/x/text/width"
)

// Oracle reports glyph advance widths in a caller-defined unit.
// Widths are always positive. Implementations must be safe for concurrent
// use when shared across documents.
type Oracle interface {
	// MeasureFullText lets the oracle precompute widths for every glyph of text.
	MeasureFullText(text string)
	// FindCharWidth returns the advance width of r.
	FindCharWidth(r rune) float64
}

// ClusterOracle is implemented by oracles that measure whole grapheme
// clusters. The layout engine never breaks a row inside a cluster when its
// oracle implements this interface.
type ClusterOracle interface {
	Oracle
	ClusterWidth(cluster string) float64
}

// CellOracle measures terminal cells with go-runewidth.
// Zero-width and control runes occupy one cell.
type CellOracle struct {
	cond *runewidth.Condition
}

// NewCellOracle creates a cell oracle. With eastAsian, ambiguous-width
// runes occupy two cells.
func NewCellOracle(eastAsian bool) *CellOracle {
	cond := runewidth.NewCondition()
	cond.EastAsianWidth = eastAsian
	return &CellOracle{cond: cond}
}

// MeasureFullText implements Oracle. Cell widths need no precomputation.
func (o *CellOracle) MeasureFullText(string) {}

// FindCharWidth implements Oracle.
func (o *CellOracle) FindCharWidth(r rune) float64 {
	return float64(max(o.cond.RuneWidth(r), 1))
}

// GraphemeOracle measures grapheme clusters in terminal cells with uniseg.
type GraphemeOracle struct{}

// NewGraphemeOracle creates a grapheme oracle.
func NewGraphemeOracle() *GraphemeOracle {
	return &GraphemeOracle{}
}

// MeasureFullText implements Oracle.
func (o *GraphemeOracle) MeasureFullText(string) {}

// FindCharWidth implements Oracle.
func (o *GraphemeOracle) FindCharWidth(r rune) float64 {
	return float64(max(uniseg.StringWidth(string(r)), 1))
}

// ClusterWidth implements ClusterOracle.
func (o *GraphemeOracle) ClusterWidth(cluster string) float64 {
	return float64(max(uniseg.StringWidth(cluster), 1))
}

// Measurer returns the advance width of a single glyph, typically from font
// metrics.
type Measurer func(glyph string) float64

// DefaultWideGlyph is the representative glyph measured for every wide or
// fullwidth rune.
const DefaultWideGlyph = '中'

// MeasuredOracle caches widths reported by a Measurer. Wide and fullwidth
// runes are all charged the width of one representative glyph, so a CJK
// document needs a single measurement for its ideographs.
type MeasuredOracle struct {
	mu       sync.RWMutex
	measure  Measurer
	widths   map[rune]float64
	wide     rune
	fallback float64

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewMeasuredOracle creates an oracle backed by measure.
func NewMeasuredOracle(measure Measurer) *MeasuredOracle {
	o := &MeasuredOracle{
		measure: measure,
		widths:  make(map[rune]float64),
		wide:    DefaultWideGlyph,
	}
	o.fallback = o.measure("M")
	if o.fallback <= 0 {
		o.fallback = 1
	}
	return o
}

// SetWideGlyph changes the representative glyph for wide runes and drops
// cached widths.
func (o *MeasuredOracle) SetWideGlyph(r rune) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.wide = r
	o.widths = make(map[rune]float64)
}

// MeasureFullText implements Oracle.
func (o *MeasuredOracle) MeasureFullText(text string) {
	for _, r := range text {
		o.FindCharWidth(r)
	}
}

// FindCharWidth implements Oracle.
func (o *MeasuredOracle) FindCharWidth(r rune) float64 {
	key := o.canonical(r)

	o.mu.RLock()
	w, ok := o.widths[key]
	o.mu.RUnlock()
	if ok {
		o.hits.Add(1)
		return w
	}
	o.misses.Add(1)

	w = o.measure(string(key))
	if w <= 0 {
		w = o.fallback
	}
	o.mu.Lock()
	o.widths[key] = w
	o.mu.Unlock()
	return w
}

// canonical maps wide and fullwidth runes to the representative glyph.
func (o *MeasuredOracle) canonical(r rune) rune {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		o.mu.RLock()
		defer o.mu.RUnlock()
		return o.wide
	}
	return r
}

// CacheStats holds cache statistics.
type CacheStats struct {
	Size   int
	Hits   uint64
	Misses uint64
}

// HitRate returns the cache hit rate (0.0 to 1.0).
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Stats returns cache statistics.
func (o *MeasuredOracle) Stats() CacheStats {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return CacheStats{
		Size:   len(o.widths),
		Hits:   o.hits.Load(),
		Misses: o.misses.Load(),
	}
}
