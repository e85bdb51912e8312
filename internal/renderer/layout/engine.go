// Package layout wraps document lines into visual rows.
//
// An Engine keeps the start offset of every row of one document in a
// blocked row store. It listens to document changes and recomputes only the
// lines an edit touched; rows after the edit are shifted, not recomputed.
package layout

import (
	"fmt"
	"unicode/utf8"

	"github.com/rivo/uniseg"

	"github.com/dshills/bigtext/internal/engine"
	"github.com/dshills/bigtext/internal/logging"
)

// ErrOutOfRange indicates a row, column or offset outside current bounds.
var ErrOutOfRange = engine.ErrOutOfRange

// Option configures an Engine.
type Option func(*Engine)

// WithTabWidth sets the tab width in spaces.
func WithTabWidth(n int) Option {
	return func(e *Engine) {
		e.tabs = NewTabStops(n)
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine computes visual rows for one document.
// A row is a contiguous offset range. A line break always ends a row and is
// not part of the row's text. Text ending in a line break, and empty text,
// end with an empty row.
type Engine struct {
	src    engine.Reader
	oracle Oracle
	width  float64 // <= 0 disables wrapping
	tabs   TabStops
	rows   rowStore
	logger *logging.Logger
}

// New creates a layout engine for src and performs a full layout.
// Width is in oracle units; zero or less disables wrapping.
func New(src engine.Reader, oracle Oracle, width float64, opts ...Option) *Engine {
	e := &Engine{
		src:    src,
		oracle: oracle,
		width:  width,
		tabs:   NewTabStops(DefaultTabWidth),
		logger: logging.Null(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent("layout")
	e.Relayout()
	return e
}

// ContentWidth returns the wrap width.
func (e *Engine) ContentWidth() float64 {
	return e.width
}

// SetContentWidth changes the wrap width and relayouts the whole document.
func (e *Engine) SetContentWidth(width float64) {
	e.width = width
	e.Relayout()
}

// ContentWidthChanged implements engine.WidthListener.
func (e *Engine) ContentWidthChanged(width float64) {
	e.SetContentWidth(width)
}

// Relayout recomputes every row.
func (e *Engine) Relayout() {
	lines := e.src.LineCount()
	starts := make([]int, 0, lines)
	starts = e.layoutLines(starts, 0, lines-1)
	e.rows.reset(starts)
	e.logger.Debug("full layout: %d lines, %d rows", lines, len(starts))
}

// layoutLines appends the row starts of lines [first, last] to dst.
func (e *Engine) layoutLines(dst []int, first, last int) []int {
	for line := first; line <= last; line++ {
		start, err := e.src.LineStart(line)
		if err != nil {
			break
		}
		text, err := e.src.FindLineString(line)
		if err != nil {
			break
		}
		dst = e.wrapLine(dst, text, start)
	}
	return dst
}

// wrapLine appends the row starts of one line of text beginning at offset
// start. Every line yields at least one row.
func (e *Engine) wrapLine(dst []int, text string, start int) []int {
	dst = append(dst, start)
	if e.width <= 0 || text == "" {
		return dst
	}
	e.oracle.MeasureFullText(text)

	var space float64
	x := 0.0
	off := start
	step := func(glyph string, runes int, w float64) {
		if glyph == "\t" {
			if space == 0 {
				space = e.oracle.FindCharWidth(' ')
			}
			w = e.tabs.Advance(x, space)
		}
		// Break before the glyph that would overflow; a row holds at least one glyph.
		if x > 0 && x+w > e.width {
			dst = append(dst, off)
			x = 0
			if glyph == "\t" {
				w = e.tabs.Advance(0, space)
			}
		}
		x += w
		off += runes
	}

	if co, ok := e.oracle.(ClusterOracle); ok {
		state := -1
		rest := text
		var cluster string
		for len(rest) > 0 {
			cluster, rest, _, state = uniseg.StepString(rest, state)
			step(cluster, utf8.RuneCountInString(cluster), co.ClusterWidth(cluster))
		}
		return dst
	}
	for i, r := range text {
		step(text[i:i+utf8.RuneLen(r)], 1, e.oracle.FindCharWidth(r))
	}
	return dst
}

// BeforeTextChange implements engine.ChangeListener.
func (e *Engine) BeforeTextChange(engine.ChangeEvent) {}

// AfterTextChange implements engine.ChangeListener. The rows of the lines
// touched by the edit are recomputed and later rows shifted.
func (e *Engine) AfterTextChange(ev engine.ChangeEvent) {
	firstLine, _, err := e.src.FindLineAndColumnFromOffset(ev.Start)
	if err != nil {
		e.logger.Warn("change %s outside document, relayout: %v", ev, err)
		e.Relayout()
		return
	}
	lastLine, _, err := e.src.FindLineAndColumnFromOffset(ev.NewEnd)
	if err != nil {
		e.logger.Warn("change %s outside document, relayout: %v", ev, err)
		e.Relayout()
		return
	}
	lineStart, _ := e.src.LineStart(firstLine)
	lineEnd, _ := e.src.LineEnd(lastLine)

	// Rows of the touched lines in pre-edit coordinates. Text before the
	// edit is unchanged, so the first line starts at the same offset.
	from := e.rows.upperBound(lineStart - 1)
	to := e.rows.upperBound(lineEnd - ev.Delta())

	starts := e.layoutLines(nil, firstLine, lastLine)
	e.rows.replace(from, to, starts, ev.Delta())
}

// Queries

// NumOfRows returns the number of visual rows.
func (e *Engine) NumOfRows() int {
	return e.rows.len()
}

// RowStarts returns every row start offset.
func (e *Engine) RowStarts() []int {
	return e.rows.all()
}

func (e *Engine) checkRow(row int) error {
	if row < 0 || row >= e.rows.len() {
		return fmt.Errorf("row %d (rows %d): %w", row, e.rows.len(), ErrOutOfRange)
	}
	return nil
}

// RowStart returns the offset at which row begins.
func (e *Engine) RowStart(row int) (int, error) {
	if err := e.checkRow(row); err != nil {
		return 0, err
	}
	return e.rows.start(row), nil
}

// RowEnd returns the offset just past the last character of row, excluding
// a terminating line break.
func (e *Engine) RowEnd(row int) (int, error) {
	if err := e.checkRow(row); err != nil {
		return 0, err
	}
	if row == e.rows.len()-1 {
		return e.src.Len(), nil
	}
	next := e.rows.start(row + 1)
	if r, err := e.src.RuneAt(next - 1); err == nil && r == '\n' {
		return next - 1, nil
	}
	return next, nil
}

// FindRowString returns the text of row.
func (e *Engine) FindRowString(row int) (string, error) {
	start, err := e.RowStart(row)
	if err != nil {
		return "", err
	}
	end, _ := e.RowEnd(row)
	return e.src.Substring(start, end)
}

// FindRowIndexByOffset returns the row holding offset. A line break belongs
// to the row it ends; Len belongs to the last row.
func (e *Engine) FindRowIndexByOffset(offset int) (int, error) {
	if offset < 0 || offset > e.src.Len() {
		return 0, fmt.Errorf("offset %d (length %d): %w", offset, e.src.Len(), ErrOutOfRange)
	}
	return e.rows.upperBound(offset) - 1, nil
}

// FindRowPositionByOffset returns the row holding offset and the column of
// offset within it.
func (e *Engine) FindRowPositionByOffset(offset int) (row, col int, err error) {
	row, err = e.FindRowIndexByOffset(offset)
	if err != nil {
		return 0, 0, err
	}
	return row, offset - e.rows.start(row), nil
}

// FindRenderCharIndexByLineAndColumn returns the offset of column col on
// visual row row. The column may equal the row length.
func (e *Engine) FindRenderCharIndexByLineAndColumn(row, col int) (int, error) {
	start, err := e.RowStart(row)
	if err != nil {
		return 0, err
	}
	end, _ := e.RowEnd(row)
	if col < 0 || start+col > end {
		return 0, fmt.Errorf("column %d on row %d (length %d): %w", col, row, end-start, ErrOutOfRange)
	}
	return start + col, nil
}
