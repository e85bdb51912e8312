package engine

import (
	"sync"

	"github.com/google/uuid"
)

// Concurrent wraps one BigText with a read-write mutex.
// Mutations take the write lock and queries take the read lock, so readers
// never observe a tree mid-rebalance. Change events are delivered while the
// write lock is held, before the next edit is accepted.
//
// The lock is not reentrant: calling a Concurrent method from inside
// WithWriteLock deadlocks. Use the *BigText passed to the callback instead.
type Concurrent struct {
	mu sync.RWMutex
	bt *BigText
}

// NewConcurrent wraps bt. The caller must not use bt directly afterwards.
func NewConcurrent(bt *BigText) *Concurrent {
	return &Concurrent{bt: bt}
}

// ID returns the wrapped instance identifier.
func (c *Concurrent) ID() uuid.UUID {
	return c.bt.ID()
}

// WithWriteLock runs fn with exclusive access to the wrapped BigText.
// fn must return promptly and must not call back into c.
func (c *Concurrent) WithWriteLock(fn func(bt *BigText) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.bt)
}

// WithReadLock runs fn with shared access to the wrapped BigText.
// fn must not mutate the document.
func (c *Concurrent) WithReadLock(fn func(bt *BigText) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fn(c.bt)
}

// Write operations

// Append adds text at the end of the document.
func (c *Concurrent) Append(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bt.Append(text)
}

// InsertAt inserts text at rune offset pos.
func (c *Concurrent) InsertAt(pos int, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bt.InsertAt(pos, text)
}

// Delete removes the text in [start, end).
func (c *Concurrent) Delete(start, end int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bt.Delete(start, end)
}

// Replace substitutes text for [start, end).
func (c *Concurrent) Replace(start, end int, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bt.Replace(start, end, text)
}

// Undo reverts the most recent change sequence.
func (c *Concurrent) Undo() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bt.Undo()
}

// Redo reapplies the most recently undone sequence.
func (c *Concurrent) Redo() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bt.Redo()
}

// RecordCurrentChangeSequenceIntoUndoHistory closes the open change sequence.
func (c *Concurrent) RecordCurrentChangeSequenceIntoUndoHistory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bt.RecordCurrentChangeSequenceIntoUndoHistory()
}

// SetContentWidth changes the content width.
func (c *Concurrent) SetContentWidth(width float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bt.SetContentWidth(width)
}

// Read operations

// Len returns the document length in runes.
func (c *Concurrent) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bt.Len()
}

// LineCount returns the number of lines.
func (c *Concurrent) LineCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bt.LineCount()
}

// String materializes the whole document.
func (c *Concurrent) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bt.String()
}

// Substring returns the text in [start, end).
func (c *Concurrent) Substring(start, end int) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bt.Substring(start, end)
}

// RuneAt returns the rune at pos.
func (c *Concurrent) RuneAt(pos int) (rune, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bt.RuneAt(pos)
}

// LineStart returns the offset at which line begins.
func (c *Concurrent) LineStart(line int) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bt.LineStart(line)
}

// LineEnd returns the end offset of line, excluding its line break.
func (c *Concurrent) LineEnd(line int) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bt.LineEnd(line)
}

// FindLineString returns the text of line.
func (c *Concurrent) FindLineString(line int) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bt.FindLineString(line)
}

// FindLineAndColumnFromOffset converts an offset to a line and column.
func (c *Concurrent) FindLineAndColumnFromOffset(offset int) (int, int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bt.FindLineAndColumnFromOffset(offset)
}

// OffsetFromLineAndColumn converts a line and column to an offset.
func (c *Concurrent) OffsetFromLineAndColumn(line, col int) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bt.OffsetFromLineAndColumn(line, col)
}
