package loader

import (
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
)

type sample struct {
	Name  string            `yaml:"name" toml:"name"`
	Size  int               `yaml:"size" toml:"size"`
	Ratio float64           `yaml:"ratio" toml:"ratio"`
	Tags  map[string]string `yaml:"tags" toml:"tags"`
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path string
		want Format
		err  bool
	}{
		{"a.yaml", FormatYAML, false},
		{"dir/b.YML", FormatYAML, false},
		{"c.toml", FormatTOML, false},
		{"d.json", FormatUnknown, true},
		{"noext", FormatUnknown, true},
	}
	for _, tt := range tests {
		got, err := FormatOf(tt.path)
		if got != tt.want || (err != nil) != tt.err {
			t.Errorf("FormatOf(%q) = %v, %v", tt.path, got, err)
		}
		if tt.err && !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("FormatOf(%q) error = %v, want ErrUnsupportedFormat", tt.path, err)
		}
	}
}

func TestLoadFileKeepsUnsetFields(t *testing.T) {
	fsys := fstest.MapFS{
		"s.yaml": {Data: []byte("size: 3\ntags:\n  a: b\n")},
		"s.toml": {Data: []byte("size = 3\n[tags]\na = \"b\"\n")},
	}
	want := sample{Name: "keep", Size: 3, Ratio: 0.5, Tags: map[string]string{"a": "b"}}
	for _, path := range []string{"s.yaml", "s.toml"} {
		got := sample{Name: "keep", Size: 1, Ratio: 0.5}
		if err := LoadFile(fsys, path, &got); err != nil {
			t.Fatalf("LoadFile(%s): %v", path, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("LoadFile(%s) mismatch (-want +got):\n%s", path, diff)
		}
	}
}

func TestLoadFileErrors(t *testing.T) {
	fsys := fstest.MapFS{
		"unknown.yaml": {Data: []byte("sise: 3\n")},
		"unknown.toml": {Data: []byte("sise = 3\n")},
		"bad.toml":     {Data: []byte("size = 3\nname = \n")},
		"empty.yaml":   {Data: nil},
	}

	var s sample
	if err := LoadFile(fsys, "missing.yaml", &s); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing file: err = %v, want fs.ErrNotExist", err)
	}
	if err := LoadFile(fsys, "empty.yaml", &s); err != nil {
		t.Errorf("empty file: err = %v", err)
	}

	for _, path := range []string{"unknown.yaml", "unknown.toml", "bad.toml"} {
		err := LoadFile(fsys, path, &s)
		var de *DecodeError
		if !errors.As(err, &de) {
			t.Errorf("LoadFile(%s): err = %v, want *DecodeError", path, err)
		}
	}

	err := LoadFile(fsys, "bad.toml", &s)
	var de *DecodeError
	if errors.As(err, &de) && de.Line != 2 {
		t.Errorf("bad.toml: line = %d, want 2", de.Line)
	}
}

func TestEnvLoader(t *testing.T) {
	t.Setenv("TESTCFG_SIZE", "64")
	t.Setenv("TESTCFG_FLAG", "off")
	t.Setenv("TESTCFG_RENDER_COLLAPSE_MARKER", "[...]")
	t.Setenv("TESTCFG_RENDER_VARIABLES", `{"host":"example.com"}`)
	t.Setenv("TESTCFG_LONELY", "x")

	l := NewEnvLoader("TESTCFG_", map[string]string{
		"SIZE": "engine.chunk_capacity",
	})
	l.AddMapping("FLAG", "engine.undo_enabled")

	want := map[string]any{
		"engine": map[string]any{
			"chunk_capacity": int64(64),
			"undo_enabled":   false,
		},
		"render": map[string]any{
			"collapse_marker": "[...]",
			"variables":       map[string]any{"host": "example.com"},
		},
	}
	if diff := cmp.Diff(want, l.Load()); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"", ""},
		{"yes", true},
		{"OFF", false},
		{"1", int64(1)},
		{"-7", int64(-7)},
		{"1.5", 1.5},
		{"1e3", "1e3"},
		{"[1,2]", []any{float64(1), float64(2)}},
		{"[broken", "[broken"},
		{"debug", "debug"},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, parseValue(tt.in)); diff != "" {
			t.Errorf("parseValue(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}
