// Package script runs Lua line taggers.
//
// A script defines a global function tag_line(line) returning a list of
// {start, stop, tag} triples. start and stop are 1-based inclusive byte
// positions, the convention of string.find, so a tagger for TODO markers
// is:
//
//	function tag_line(line)
//	  local tags = {}
//	  local init = 1
//	  while true do
//	    local s, e = string.find(line, "TODO", init, true)
//	    if not s then return tags end
//	    tags[#tags + 1] = {s, e, "todo"}
//	    init = e + 1
//	  end
//	end
//
// Scripts run in a sandbox with only the base, table, string and math
// libraries, and every call is bounded by a timeout.
package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/bigtext/internal/renderer/decor"
)

// TagFunction is the global a script must define.
const TagFunction = "tag_line"

// DefaultTimeout bounds loading a script and each call of its tag function.
const DefaultTimeout = time.Second

var (
	// ErrNoTagFunction is returned when a script does not define TagFunction.
	ErrNoTagFunction = errors.New("script does not define " + TagFunction)

	// ErrBadResult is returned when the tag function returns a malformed value.
	ErrBadResult = errors.New("malformed tag result")

	// ErrClosed is returned by a closed script.
	ErrClosed = errors.New("script is closed")
)

// Option configures a Script.
type Option func(*Script)

// WithTimeout sets the time limit of each call.
func WithTimeout(d time.Duration) Option {
	return func(s *Script) {
		s.timeout = d
	}
}

// Script is a loaded Lua tagger. It implements decor.LineTagger and is safe
// for concurrent use; calls are serialized.
type Script struct {
	name    string
	timeout time.Duration

	mu     sync.Mutex
	L      *lua.LState
	fn     *lua.LFunction
	closed bool
}

// Load compiles and runs source, which must define TagFunction.
func Load(name, source string, opts ...Option) (*Script, error) {
	s := &Script{name: name, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(s)
	}
	s.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	if err := openSafeLibraries(s.L); err != nil {
		s.L.Close()
		return nil, fmt.Errorf("script %s: %w", name, err)
	}

	err := s.protect(func() error {
		return s.L.DoString(source)
	})
	if err != nil {
		s.L.Close()
		return nil, fmt.Errorf("script %s: %w", name, err)
	}
	fn, ok := s.L.GetGlobal(TagFunction).(*lua.LFunction)
	if !ok {
		s.L.Close()
		return nil, fmt.Errorf("script %s: %w", name, ErrNoTagFunction)
	}
	s.fn = fn
	return s, nil
}

// LoadFile loads the script at path, named after the file without its
// extension.
func LoadFile(path string, opts ...Option) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Load(name, string(data), opts...)
}

// openSafeLibraries opens the libraries scripts may use and removes the
// base functions that load code from disk or strings.
func openSafeLibraries(L *lua.LState) error {
	libs := []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
	for _, lib := range libs {
		err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name))
		if err != nil {
			return fmt.Errorf("open %q: %w", lib.name, err)
		}
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
	return nil
}

// Name returns the script name.
func (s *Script) Name() string {
	return s.name
}

// TagLine implements decor.LineTagger.
func (s *Script) TagLine(line string) ([]decor.LineTag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	var ret lua.LValue
	err := s.protect(func() error {
		if err := s.L.CallByParam(lua.P{Fn: s.fn, NRet: 1, Protect: true}, lua.LString(line)); err != nil {
			return err
		}
		ret = s.L.Get(-1)
		s.L.Pop(1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", s.name, err)
	}
	tags, err := convert(line, ret)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", s.name, err)
	}
	return tags, nil
}

// protect runs fn under the call timeout, recovering panics.
func (s *Script) protect(fn func() error) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.L.SetContext(ctx)
	defer s.L.RemoveContext()
	s.L.SetTop(0)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	err = fn()
	if err != nil && ctx.Err() != nil {
		err = fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	return err
}

// convert turns the tag function result into rune-based tags.
func convert(line string, v lua.LValue) ([]decor.LineTag, error) {
	if v == lua.LNil {
		return nil, nil
	}
	list, ok := v.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("got %s, want table: %w", v.Type(), ErrBadResult)
	}
	var tags []decor.LineTag
	for i := 1; i <= list.Len(); i++ {
		entry, ok := list.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("entry %d is not a table: %w", i, ErrBadResult)
		}
		start, ok1 := entry.RawGetInt(1).(lua.LNumber)
		stop, ok2 := entry.RawGetInt(2).(lua.LNumber)
		tag, ok3 := entry.RawGetInt(3).(lua.LString)
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("entry %d: want {start, stop, tag}: %w", i, ErrBadResult)
		}
		from, to := int(start)-1, int(stop)
		if from < 0 || to > len(line) || from > to || !boundary(line, from) || !boundary(line, to) {
			return nil, fmt.Errorf("entry %d: bytes %d..%d not on rune boundaries of a %d byte line: %w",
				i, int(start), int(stop), len(line), ErrBadResult)
		}
		if from == to {
			continue
		}
		runeStart := utf8.RuneCountInString(line[:from])
		tags = append(tags, decor.LineTag{
			Start: runeStart,
			End:   runeStart + utf8.RuneCountInString(line[from:to]),
			Tag:   string(tag),
		})
	}
	return tags, nil
}

func boundary(s string, i int) bool {
	return i == len(s) || utf8.RuneStart(s[i])
}

// Decorator returns a decorator named "script:" plus the script name that
// styles the script's tags with theme.
func (s *Script) Decorator(theme *decor.Theme) *decor.TaggerDecorator {
	return decor.NewTaggerDecorator("script:"+s.name, s, theme)
}

// Close releases the Lua state. Later calls return ErrClosed.
func (s *Script) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}
