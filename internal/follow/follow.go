// Package follow streams the growth of a file into a document.
//
// A Follower remembers how many bytes of the file it has appended. Each
// catch-up appends the bytes written since, holding back an incomplete
// trailing UTF-8 sequence until the rest of it arrives. A file that shrinks
// was truncated or replaced and is reloaded from the start.
package follow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/bigtext/internal/engine"
	"github.com/dshills/bigtext/internal/logging"
)

// DefaultDebounce is the quiet period after a write before catching up.
const DefaultDebounce = 50 * time.Millisecond

// ErrNotRegular indicates the followed path is not a regular file.
var ErrNotRegular = errors.New("not a regular file")

// Option configures a Follower.
type Option func(*Follower)

// WithLogger sets the follower logger.
func WithLogger(l *logging.Logger) Option {
	return func(f *Follower) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithDebounce sets the quiet period after a write event. Zero catches up
// on every event.
func WithDebounce(d time.Duration) Option {
	return func(f *Follower) {
		if d >= 0 {
			f.debounce = d
		}
	}
}

// WithNotify registers fn to be called after every catch-up that changed
// the document, with the number of runes appended. A reload reports the
// full length.
func WithNotify(fn func(appended int)) Option {
	return func(f *Follower) {
		f.notify = fn
	}
}

// Follower appends a file's content to a document as the file grows.
type Follower struct {
	path     string
	doc      *engine.Concurrent
	logger   *logging.Logger
	debounce time.Duration
	notify   func(int)

	mu     sync.Mutex
	offset int64  // bytes of the file consumed
	carry  []byte // incomplete UTF-8 suffix held back
}

// New creates a follower of path feeding doc. Nothing is read until
// CatchUp or Run.
func New(path string, doc *engine.Concurrent, opts ...Option) *Follower {
	f := &Follower{
		path:     path,
		doc:      doc,
		logger:   logging.Null(),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.WithComponent("follow").WithField("path", filepath.Base(path))
	return f
}

// Offset returns the number of file bytes consumed so far.
func (f *Follower) Offset() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offset
}

// CatchUp appends everything written since the previous call and returns
// the number of runes appended.
func (f *Follower) CatchUp() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.path)
	if err != nil {
		return 0, fmt.Errorf("follow %s: %w", f.path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("follow %s: %w", f.path, err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("follow %s: %w", f.path, ErrNotRegular)
	}

	reload := info.Size() < f.offset
	if reload {
		f.logger.Warn("file shrank from %d to %d bytes, reloading", f.offset, info.Size())
		f.offset, f.carry = 0, nil
	}
	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return 0, fmt.Errorf("follow %s: %w", f.path, err)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return 0, fmt.Errorf("follow %s: %w", f.path, err)
	}
	f.offset += int64(len(data))

	data = append(f.carry, data...)
	cut := completePrefix(data)
	text := strings.ToValidUTF8(string(data[:cut]), string(utf8.RuneError))
	f.carry = append([]byte(nil), data[cut:]...)

	appended := 0
	err = f.doc.WithWriteLock(func(bt *engine.BigText) error {
		if reload {
			if err := bt.Delete(0, bt.Len()); err != nil {
				return err
			}
		}
		bt.Append(text)
		appended = bt.Len()
		if !reload {
			appended = utf8.RuneCountInString(text)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("follow %s: %w", f.path, err)
	}
	if f.notify != nil && (appended > 0 || reload) {
		f.notify(appended)
	}
	return appended, nil
}

// completePrefix returns the length of the longest prefix of data that
// does not end inside a UTF-8 sequence.
func completePrefix(data []byte) int {
	for back := 1; back < utf8.UTFMax && back <= len(data); back++ {
		i := len(data) - back
		if !utf8.RuneStart(data[i]) {
			continue
		}
		if !utf8.FullRune(data[i:]) {
			return i
		}
		break
	}
	return len(data)
}

// Run catches up once, then follows the file until ctx is done. The
// parent directory is watched so that a file replaced by rename or
// recreated after removal keeps being followed.
func (f *Follower) Run(ctx context.Context) error {
	if _, err := f.CatchUp(); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("follow %s: %w", f.path, err)
	}
	defer w.Close()

	abs, err := filepath.Abs(f.path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("follow %s: watch: %w", f.path, err)
	}
	f.logger.Debug("watching %s", filepath.Dir(abs))

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}
			if f.debounce == 0 {
				f.catchUpLogged()
				continue
			}
			if timer == nil {
				timer = time.NewTimer(f.debounce)
			} else {
				timer.Reset(f.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			f.catchUpLogged()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("follow %s: %w", f.path, err)
		}
	}
}

func (f *Follower) catchUpLogged() {
	if _, err := f.CatchUp(); err != nil {
		// The file may be between removal and recreation.
		f.logger.Warn("catch up: %v", err)
	}
}
