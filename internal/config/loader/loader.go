// Package loader reads configuration sources into Go values.
//
// Files are decoded by extension: YAML for .yaml and .yml, TOML for .toml.
// Decoding is strict; keys that match no field are errors. Environment
// variables are collected into nested maps that can be decoded the same way.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat indicates a file extension with no decoder.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// Format identifies a configuration syntax.
type Format int

const (
	// FormatUnknown is the zero Format.
	FormatUnknown Format = iota
	// FormatYAML is YAML 1.2.
	FormatYAML
	// FormatTOML is TOML 1.0.
	FormatTOML
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatTOML:
		return "toml"
	default:
		return "unknown"
	}
}

// FormatOf returns the format selected by the extension of path.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return FormatUnknown, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
}

// FileSystem is an abstraction for reading files.
// testing/fstest.MapFS satisfies it.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
}

// OSFS implements FileSystem using the real OS file system.
type OSFS struct{}

// ReadFile reads the entire file at path.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// DefaultFS returns the default file system (OS).
func DefaultFS() FileSystem {
	return OSFS{}
}

// DecodeError reports a decoding failure. Line and Column are 1-based and
// zero when the decoder does not report a position.
type DecodeError struct {
	Format Format
	Line   int
	Column int
	Err    error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d, column %d: %v", e.Format, e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Format, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode decodes data into v, which must be a pointer. Fields absent from
// data keep their current values.
func Decode(format Format, data []byte, v any) error {
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
			return &DecodeError{Format: format, Err: err}
		}
		return nil
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			de := &DecodeError{Format: format, Err: err}
			var terr *toml.DecodeError
			if errors.As(err, &terr) {
				de.Line, de.Column = terr.Position()
			}
			return de
		}
		return nil
	default:
		return fmt.Errorf("decode %s: %w", format, ErrUnsupportedFormat)
	}
}

// LoadFile reads path from fsys and decodes it into v by extension.
func LoadFile(fsys FileSystem, path string, v any) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	return Decode(format, data, v)
}
