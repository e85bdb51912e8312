package engine

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dshills/bigtext/internal/engine/history"
	"github.com/dshills/bigtext/internal/engine/rope"
	"github.com/dshills/bigtext/internal/logging"
)

type listenerEntry struct {
	id int
	l  ChangeListener
}

// BigText is a large-text editing buffer.
// It is not safe for concurrent use; wrap it with Concurrent.
type BigText struct {
	id      uuid.UUID
	tree    *rope.Tree
	history *history.History

	listeners []listenerEntry
	nextID    int

	// Configuration
	undoEnabled  bool
	maxUndo      int
	contentWidth float64
	logger       *logging.Logger
	treeOpts     []rope.Option

	// Initialization
	initContent string
}

// New creates a new BigText with the given options.
func New(opts ...Option) *BigText {
	b := newBigText(opts)
	b.tree = rope.FromString(b.initContent, b.treeOpts...)
	b.initContent = ""
	return b
}

// NewFromReader creates a BigText holding everything read from r.
func NewFromReader(r io.Reader, opts ...Option) (*BigText, error) {
	b := newBigText(opts)
	tree, err := rope.FromReader(r, b.treeOpts...)
	if err != nil {
		return nil, err
	}
	b.tree = tree
	return b, nil
}

func newBigText(opts []Option) *BigText {
	b := &BigText{
		id:           uuid.New(),
		undoEnabled:  true,
		maxUndo:      DefaultMaxUndoSequences,
		contentWidth: DefaultContentWidth,
		logger:       logging.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.history = history.NewHistory(b.maxUndo)
	b.logger = b.logger.WithComponent("bigtext").WithField("id", b.id.String()[:8])
	return b
}

// ID returns the instance identifier.
func (b *BigText) ID() uuid.UUID {
	return b.id
}

// Read operations

// Len returns the document length in runes.
func (b *BigText) Len() int {
	return b.tree.Len()
}

// ByteLen returns the document length in UTF-8 bytes.
func (b *BigText) ByteLen() int {
	return b.tree.ByteLen()
}

// LineCount returns the number of lines.
func (b *BigText) LineCount() int {
	return b.tree.LineCount()
}

// IsEmpty returns true if the document holds no text.
func (b *BigText) IsEmpty() bool {
	return b.tree.IsEmpty()
}

// String materializes the whole document. Avoid it on hot paths.
func (b *BigText) String() string {
	return b.tree.String()
}

// BuildString is an alias for String.
func (b *BigText) BuildString() string {
	return b.tree.String()
}

// Substring returns the text in [start, end).
func (b *BigText) Substring(start, end int) (string, error) {
	return b.tree.Substring(start, end)
}

// RuneAt returns the rune at pos.
func (b *BigText) RuneAt(pos int) (rune, error) {
	return b.tree.RuneAt(pos)
}

// LineStart returns the offset at which line begins.
func (b *BigText) LineStart(line int) (int, error) {
	return b.tree.LineStart(line)
}

// LineEnd returns the offset of the end of line, excluding its line break.
func (b *BigText) LineEnd(line int) (int, error) {
	return b.tree.LineEnd(line)
}

// FindLineString returns the text of line without its line break.
func (b *BigText) FindLineString(line int) (string, error) {
	return b.tree.FindLineString(line)
}

// FindLineAndColumnFromOffset converts an offset to a line and column.
func (b *BigText) FindLineAndColumnFromOffset(offset int) (int, int, error) {
	return b.tree.FindLineAndColumnFromOffset(offset)
}

// OffsetFromLineAndColumn converts a line and column to an offset.
func (b *BigText) OffsetFromLineAndColumn(line, col int) (int, error) {
	return b.tree.OffsetFromLineAndColumn(line, col)
}

// NewReader streams the current text.
func (b *BigText) NewReader() io.Reader {
	return b.tree.NewReader()
}

// Tree exposes the chunk tree for diagnostics.
func (b *BigText) Tree() *rope.Tree {
	return b.tree
}

// Write operations

// InsertAt inserts text at rune offset pos. Invalid UTF-8 in text is
// stored as U+FFFD, one per run of bad bytes.
func (b *BigText) InsertAt(pos int, text string) error {
	if pos < 0 || pos > b.tree.Len() {
		return fmt.Errorf("insert at %d (length %d): %w", pos, b.tree.Len(), ErrOutOfRange)
	}
	if text == "" {
		return nil
	}
	text = rope.ValidUTF8(text)
	ev := ChangeEvent{
		Kind:   ChangeInsert,
		Start:  pos,
		OldEnd: pos,
		NewEnd: pos + utf8.RuneCountInString(text),
		Text:   text,
		Source: b,
	}
	b.notifyBefore(ev)
	if err := b.tree.InsertAt(pos, text); err != nil {
		return err
	}
	b.record(history.NewInsertOperation(pos, text))
	b.notifyAfter(ev)
	return nil
}

// Append adds text at the end of the document. Invalid UTF-8 is handled
// as by InsertAt.
func (b *BigText) Append(text string) {
	if text == "" {
		return
	}
	text = rope.ValidUTF8(text)
	pos := b.tree.Len()
	ev := ChangeEvent{
		Kind:   ChangeInsert,
		Start:  pos,
		OldEnd: pos,
		NewEnd: pos + utf8.RuneCountInString(text),
		Text:   text,
		Source: b,
	}
	b.notifyBefore(ev)
	b.tree.Append(text)
	b.record(history.NewInsertOperation(pos, text))
	b.notifyAfter(ev)
}

// Delete removes the text in [start, end).
func (b *BigText) Delete(start, end int) error {
	if start < 0 || start > end || end > b.tree.Len() {
		return fmt.Errorf("delete [%d, %d) (length %d): %w", start, end, b.tree.Len(), ErrOutOfRange)
	}
	removed, err := b.tree.Substring(start, end)
	if err != nil {
		return err
	}
	if start == end {
		return nil
	}
	ev := ChangeEvent{
		Kind:   ChangeDelete,
		Start:  start,
		OldEnd: end,
		NewEnd: start,
		Text:   removed,
		Source: b,
	}
	b.notifyBefore(ev)
	if err := b.tree.Delete(start, end); err != nil {
		return err
	}
	b.record(history.NewDeleteOperation(start, removed))
	b.notifyAfter(ev)
	return nil
}

// Replace substitutes text for [start, end) as a deletion then an insertion.
func (b *BigText) Replace(start, end int, text string) error {
	if err := b.Delete(start, end); err != nil {
		return err
	}
	return b.InsertAt(start, text)
}

// History

func (b *BigText) record(op *history.Operation) {
	if b.undoEnabled {
		b.history.Record(op)
	}
}

// RecordCurrentChangeSequenceIntoUndoHistory closes the open change
// sequence so it undoes as one unit.
func (b *BigText) RecordCurrentChangeSequenceIntoUndoHistory() {
	b.history.CloseSequence()
}

// Undo reverts the most recent change sequence, closing an open one first.
// It returns false when there is no history.
func (b *BigText) Undo() (bool, error) {
	return b.history.Undo(b)
}

// Redo reapplies the most recently undone sequence.
// It returns false when there is nothing to redo.
func (b *BigText) Redo() (bool, error) {
	return b.history.Redo(b)
}

// CanUndo returns true if undo is available.
func (b *BigText) CanUndo() bool {
	return b.history.CanUndo()
}

// CanRedo returns true if redo is available.
func (b *BigText) CanRedo() bool {
	return b.history.CanRedo()
}

// UndoEnabled returns true if edits are recorded for undo.
func (b *BigText) UndoEnabled() bool {
	return b.undoEnabled
}

// SetUndoEnabled turns undo recording on or off.
// Turning it off clears existing history.
func (b *BigText) SetUndoEnabled(enabled bool) {
	if !enabled {
		b.history.Clear()
	}
	b.undoEnabled = enabled
}

// History exposes the undo history for inspection.
func (b *BigText) History() *history.History {
	return b.history
}

// Layout settings

// ContentWidth returns the width layout engines wrap at.
func (b *BigText) ContentWidth() float64 {
	return b.contentWidth
}

// SetContentWidth changes the content width and notifies listeners that
// implement WidthListener.
func (b *BigText) SetContentWidth(width float64) {
	if width <= 0 || width == b.contentWidth {
		return
	}
	b.contentWidth = width
	for _, e := range b.listeners {
		if wl, ok := e.l.(WidthListener); ok {
			wl.ContentWidthChanged(width)
		}
	}
}

// Listeners

// AddListener registers l to receive change events after every listener
// already registered. The returned function unregisters it.
func (b *BigText) AddListener(l ChangeListener) (func(), error) {
	if l == nil {
		return nil, ErrNilListener
	}
	id := b.nextID
	b.nextID++
	b.listeners = append(b.listeners, listenerEntry{id: id, l: l})
	return func() { b.removeListener(id) }, nil
}

func (b *BigText) removeListener(id int) {
	for i, e := range b.listeners {
		if e.id == id {
			b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
			return
		}
	}
}

// ListenerCount returns the number of registered listeners.
func (b *BigText) ListenerCount() int {
	return len(b.listeners)
}

func (b *BigText) notifyBefore(ev ChangeEvent) {
	ev.Phase = PhaseBefore
	for _, e := range b.listeners {
		e.l.BeforeTextChange(ev)
	}
}

func (b *BigText) notifyAfter(ev ChangeEvent) {
	ev.Phase = PhaseAfter
	for _, e := range b.listeners {
		e.l.AfterTextChange(ev)
	}
}

// Integrity

// CheckIntegrity validates the chunk tree. On a violation it logs the
// failure and rebuilds the tree from its leaves, reporting recovered=true
// with the violation.
func (b *BigText) CheckIntegrity() (recovered bool, err error) {
	if err := b.tree.Validate(); err != nil {
		b.logger.Error("integrity check failed, rebuilding: %v", err)
		b.tree.Rebuild()
		if verr := b.tree.Validate(); verr != nil {
			return false, fmt.Errorf("rebuild: %w", verr)
		}
		return true, err
	}
	return false, nil
}
