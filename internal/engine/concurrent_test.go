package engine

import (
	"strings"
	"sync"
	"testing"
)

func TestConcurrentAppends(t *testing.T) {
	const writers = 10
	perWriter := 1_000_000
	if testing.Short() {
		perWriter = 10_000
	}

	c := NewConcurrent(New(WithUndo(false)))
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				c.Append("_")
			}
		}()
	}
	wg.Wait()

	if got := c.Len(); got != writers*perWriter {
		t.Errorf("Len() = %d, want %d", got, writers*perWriter)
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	c := NewConcurrent(New(WithChunkCapacity(16)))
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				_ = c.InsertAt(0, "ab\n")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				n := c.Len()
				if _, err := c.Substring(0, n); err != nil {
					t.Error(err)
					return
				}
				_ = c.LineCount()
			}
		}()
	}
	wg.Wait()

	if c.Len() != 4*500*3 {
		t.Errorf("Len() = %d, want %d", c.Len(), 4*500*3)
	}
	if c.LineCount() != 4*500+1 {
		t.Errorf("LineCount() = %d, want %d", c.LineCount(), 4*500+1)
	}
}

// rewrite is a compound edit: read the whole text, then replace it with the
// text plus one character. Between the read and the write another writer
// may run.
type rewrite struct {
	bt   *BigText
	seen string
}

func (r *rewrite) read()  { r.seen = r.bt.String() }
func (r *rewrite) write() { _ = r.bt.Delete(0, r.bt.Len()); r.bt.Append(r.seen + "_") }

func TestUnlockedCompoundEditsLoseUpdates(t *testing.T) {
	bt := New()
	a := &rewrite{bt: bt}
	b := &rewrite{bt: bt}

	// Two writers interleave without a lock: both read, then both write.
	a.read()
	b.read()
	b.write()
	a.write()

	if bt.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (one update lost)", bt.Len())
	}
}

func TestWithWriteLockMakesCompoundEditsAtomic(t *testing.T) {
	const writers, perWriter = 8, 200
	c := NewConcurrent(New(WithUndo(false)))

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				_ = c.WithWriteLock(func(bt *BigText) error {
					r := &rewrite{bt: bt}
					r.read()
					r.write()
					return nil
				})
			}
		}()
	}
	wg.Wait()

	if got := c.Len(); got != writers*perWriter {
		t.Errorf("Len() = %d, want %d", got, writers*perWriter)
	}
	if c.String() != strings.Repeat("_", writers*perWriter) {
		t.Error("unexpected content")
	}
}

func TestConcurrentUndoRedo(t *testing.T) {
	c := NewConcurrent(New())
	c.Append("abc")
	c.RecordCurrentChangeSequenceIntoUndoHistory()
	_ = c.InsertAt(0, "x")
	_ = c.Delete(1, 2)

	if ok, _ := c.Undo(); !ok || c.String() != "abc" {
		t.Errorf("Undo() = %v, %q", ok, c.String())
	}
	if ok, _ := c.Redo(); !ok || c.String() != "xbc" {
		t.Errorf("Redo() = %v, %q", ok, c.String())
	}

	err := c.WithReadLock(func(bt *BigText) error {
		line, col, err := bt.FindLineAndColumnFromOffset(2)
		if line != 0 || col != 2 {
			t.Errorf("FindLineAndColumnFromOffset(2) = %d, %d", line, col)
		}
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
}
