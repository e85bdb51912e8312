package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/bigtext/internal/engine"
	"github.com/dshills/bigtext/internal/renderer/layout"
)

const yamlConfig = `
engine:
  chunk_capacity: 64
  undo_enabled: false
layout:
  content_width: 40
  oracle: grapheme
render:
  collapse_marker: "[...]"
  theme:
    Keyword: bold red
  variables:
    host: example.com
log:
  level: debug
`

const tomlConfig = `
[engine]
chunk_capacity = 64
undo_enabled = false

[layout]
content_width = 40
oracle = "grapheme"

[render]
collapse_marker = "[...]"

[render.theme]
Keyword = "bold red"

[render.variables]
host = "example.com"

[log]
level = "debug"
`

func TestLoad(t *testing.T) {
	fsys := fstest.MapFS{
		"bigtext.yaml": {Data: []byte(yamlConfig)},
		"bigtext.toml": {Data: []byte(tomlConfig)},
	}
	want := Default()
	want.Engine.ChunkCapacity = 64
	want.Engine.UndoEnabled = false
	want.Layout.ContentWidth = 40
	want.Layout.Oracle = OracleGrapheme
	want.Render.CollapseMarker = "[...]"
	want.Render.Theme = map[string]string{"Keyword": "bold red"}
	want.Render.Variables = map[string]string{"host": "example.com"}
	want.Log.Level = "debug"

	for _, path := range []string{"bigtext.yaml", "bigtext.toml"} {
		got, err := LoadFS(fsys, path)
		if err != nil {
			t.Fatalf("LoadFS(%s): %v", path, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("LoadFS(%s) mismatch (-want +got):\n%s", path, diff)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	fsys := fstest.MapFS{
		"typo.yaml":    {Data: []byte("engine:\n  chunk_capacty: 64\n")},
		"bad.toml":     {Data: []byte("[engine]\nchunk_capacity = \n")},
		"invalid.yaml": {Data: []byte("engine:\n  chunk_capacity: 2\n")},
		"cfg.json":     {Data: []byte("{}")},
	}

	var pe *ParseError
	if _, err := LoadFS(fsys, "typo.yaml"); !errors.As(err, &pe) || pe.Path != "typo.yaml" {
		t.Errorf("typo.yaml: err = %v, want *ParseError", err)
	}
	if _, err := LoadFS(fsys, "bad.toml"); !errors.As(err, &pe) || pe.Line != 2 {
		t.Errorf("bad.toml: err = %v, want *ParseError at line 2", err)
	}
	if _, err := LoadFS(fsys, "invalid.yaml"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("invalid.yaml: err = %v, want ErrInvalidValue", err)
	}
	if _, err := LoadFS(fsys, "cfg.json"); err == nil {
		t.Error("cfg.json: want unsupported format error")
	}
	if _, err := LoadFS(fsys, "missing.yaml"); err == nil {
		t.Error("missing.yaml: want error")
	}
}

func TestValidate(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}

	cfg := Default()
	cfg.Engine.ChunkCapacity = 1
	cfg.Engine.MaxUndoSequences = -1
	cfg.Layout.ContentWidth = 0
	cfg.Layout.TabWidth = 0
	cfg.Layout.Oracle = "proportional"
	cfg.Render.Theme = map[string]string{"Keyword": "sparkly"}
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	if !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("Validate() = %v, want ErrInvalidValue", err)
	}
	for _, path := range []string{
		"engine.chunk_capacity",
		"engine.max_undo_sequences",
		"layout.content_width",
		"layout.tab_width",
		"layout.oracle",
		"render.theme.Keyword",
		"log.level",
	} {
		if !strings.Contains(err.Error(), path) {
			t.Errorf("Validate() does not mention %s: %v", path, err)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("BIGTEXT_CHUNK_CAPACITY", "128")
	t.Setenv("BIGTEXT_UNDO", "off")
	t.Setenv("BIGTEXT_CONTENT_WIDTH", "120")
	t.Setenv("BIGTEXT_LOG_LEVEL", "warn")
	t.Setenv("BIGTEXT_RENDER_COLLAPSE_MARKER", "<>")
	t.Setenv("BIGTEXT_CONFIG", "ignored.yaml")

	cfg := Default()
	if err := cfg.ApplyEnv(EnvPrefix); err != nil {
		t.Fatal(err)
	}
	want := Default()
	want.Engine.ChunkCapacity = 128
	want.Engine.UndoEnabled = false
	want.Layout.ContentWidth = 120
	want.Log.Level = "warn"
	want.Render.CollapseMarker = "<>"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("ApplyEnv mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyEnvInvalidLeavesConfig(t *testing.T) {
	t.Setenv("BIGTEXT_CHUNK_CAPACITY", "3")
	cfg := Default()
	if err := cfg.ApplyEnv(EnvPrefix); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("ApplyEnv = %v, want ErrInvalidValue", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config changed (-want +got):\n%s", diff)
	}

	t.Setenv("BIGTEXT_CHUNK_CAPACITY", "64")
	t.Setenv("BIGTEXT_ENGINE_CHUNKS", "1")
	var pe *ParseError
	if err := cfg.ApplyEnv(EnvPrefix); !errors.As(err, &pe) || pe.Path != "environment" {
		t.Errorf("ApplyEnv unknown key = %v, want *ParseError", err)
	}
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Engine.ChunkCapacity = 32
	cfg.Layout.ContentWidth = 5
	cfg.Render.CollapseMarker = "<>"
	cfg.Render.Theme = map[string]string{"Keyword": "red"}

	doc := engine.New(append(cfg.EngineOptions(), engine.WithContent(strings.Repeat("x", 100)))...)
	if got := doc.ContentWidth(); got != 5 {
		t.Errorf("ContentWidth = %v, want 5", got)
	}
	if got := doc.Tree().ChunkCapacity(); got != 32 {
		t.Errorf("chunk capacity = %d, want 32", got)
	}

	oracle, err := cfg.NewOracle()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := oracle.(*layout.CellOracle); !ok {
		t.Errorf("NewOracle() = %T, want *layout.CellOracle", oracle)
	}

	if got := cfg.NewCollapser().Marker(); got != "<>" {
		t.Errorf("collapse marker = %q", got)
	}
	theme, err := cfg.NewTheme()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := theme.StyleFor("Keyword"); !ok {
		t.Error("theme has no Keyword style")
	}

	var buf bytes.Buffer
	cfg.Log.Level = "warn"
	logger, err := cfg.NewLogger(&buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("log output = %q", buf.String())
	}
}

func TestLoadScripts(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.lua")
	if err := os.WriteFile(good, []byte("function tag_line(line) return {} end"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	cfg.Render.Scripts = []string{good}
	scripts, err := cfg.LoadScripts()
	if err != nil {
		t.Fatal(err)
	}
	if len(scripts) != 1 || scripts[0].Name() != "good" {
		t.Errorf("LoadScripts() = %v", scripts)
	}
	for _, s := range scripts {
		s.Close()
	}

	cfg.Render.Scripts = append(cfg.Render.Scripts, filepath.Join(dir, "missing.lua"))
	if _, err := cfg.LoadScripts(); err == nil {
		t.Error("LoadScripts() with a missing file succeeded")
	}
}
