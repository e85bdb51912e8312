package config

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/dshills/bigtext/internal/config/loader"
	"github.com/dshills/bigtext/internal/engine"
	"github.com/dshills/bigtext/internal/engine/rope"
	"github.com/dshills/bigtext/internal/logging"
	"github.com/dshills/bigtext/internal/renderer/decor"
	"github.com/dshills/bigtext/internal/renderer/layout"
	"github.com/dshills/bigtext/internal/renderer/transform"
	"github.com/dshills/bigtext/internal/script"
)

// Oracle names accepted by layout.oracle.
const (
	OracleCell          = "cell"
	OracleCellEastAsian = "cell-east-asian"
	OracleGrapheme      = "grapheme"
)

// Config is the complete bigtext configuration.
type Config struct {
	Engine EngineConfig `yaml:"engine" toml:"engine"`
	Layout LayoutConfig `yaml:"layout" toml:"layout"`
	Render RenderConfig `yaml:"render" toml:"render"`
	Log    LogConfig    `yaml:"log" toml:"log"`
}

// EngineConfig configures the document buffer.
type EngineConfig struct {
	// ChunkCapacity is the maximum number of runes per chunk.
	ChunkCapacity int `yaml:"chunk_capacity" toml:"chunk_capacity"`
	// UndoEnabled turns undo recording on.
	UndoEnabled bool `yaml:"undo_enabled" toml:"undo_enabled"`
	// MaxUndoSequences bounds the undo history; zero is unbounded.
	MaxUndoSequences int `yaml:"max_undo_sequences" toml:"max_undo_sequences"`
}

// LayoutConfig configures row wrapping.
type LayoutConfig struct {
	ContentWidth float64 `yaml:"content_width" toml:"content_width"`
	Oracle       string  `yaml:"oracle" toml:"oracle"`
	TabWidth     int     `yaml:"tab_width" toml:"tab_width"`
}

// RenderConfig configures transformations and decorators.
type RenderConfig struct {
	CollapseMarker string `yaml:"collapse_marker" toml:"collapse_marker"`
	// ShowControls substitutes visible glyphs for control characters.
	ShowControls bool `yaml:"show_controls" toml:"show_controls"`
	ThemeName    string `yaml:"theme_name" toml:"theme_name"`
	// Theme maps style keys to descriptions such as "bold red on black".
	Theme     map[string]string `yaml:"theme" toml:"theme"`
	Variables map[string]string `yaml:"variables" toml:"variables"`
	Functions []string          `yaml:"functions" toml:"functions"`
	// Scripts lists Lua line taggers to load as decorators.
	Scripts []string `yaml:"scripts" toml:"scripts"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			ChunkCapacity:    rope.DefaultChunkCapacity,
			UndoEnabled:      true,
			MaxUndoSequences: engine.DefaultMaxUndoSequences,
		},
		Layout: LayoutConfig{
			ContentWidth: engine.DefaultContentWidth,
			Oracle:       OracleCell,
			TabWidth:     layout.DefaultTabWidth,
		},
		Render: RenderConfig{
			CollapseMarker: transform.DefaultCollapseMarker,
			ThemeName:      "default",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	return LoadFS(loader.DefaultFS(), path)
}

// LoadFS is Load reading from fsys.
func LoadFS(fsys loader.FileSystem, path string) (*Config, error) {
	cfg := Default()
	if err := loader.LoadFile(fsys, path, cfg); err != nil {
		var de *loader.DecodeError
		if errors.As(err, &de) {
			return nil, &ParseError{Path: path, Line: de.Line, Column: de.Column, Err: de.Err}
		}
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting. Each failure is a
// *ValidationError matching ErrInvalidValue.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(path string, value any, msg string) {
		errs = append(errs, &ValidationError{Path: path, Value: value, Message: msg})
	}

	if c.Engine.ChunkCapacity < rope.MinChunkCapacity {
		invalid("engine.chunk_capacity", c.Engine.ChunkCapacity, fmt.Sprintf("must be at least %d", rope.MinChunkCapacity))
	}
	if c.Engine.MaxUndoSequences < 0 {
		invalid("engine.max_undo_sequences", c.Engine.MaxUndoSequences, "must not be negative")
	}
	if c.Layout.ContentWidth <= 0 {
		invalid("layout.content_width", c.Layout.ContentWidth, "must be positive")
	}
	if c.Layout.TabWidth < 1 {
		invalid("layout.tab_width", c.Layout.TabWidth, "must be positive")
	}
	if _, err := c.NewOracle(); err != nil {
		invalid("layout.oracle", c.Layout.Oracle, err.Error())
	}
	// Sorted for stable messages.
	for _, key := range slices.Sorted(maps.Keys(c.Render.Theme)) {
		if _, err := decor.ParseStyle(c.Render.Theme[key]); err != nil {
			invalid("render.theme."+key, c.Render.Theme[key], err.Error())
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		invalid("log.level", c.Log.Level, "must be debug, info, warn or error")
	}
	return errors.Join(errs...)
}

// EngineOptions converts the engine and layout settings to BigText options.
func (c *Config) EngineOptions() []engine.Option {
	return []engine.Option{
		engine.WithChunkCapacity(c.Engine.ChunkCapacity),
		engine.WithUndo(c.Engine.UndoEnabled),
		engine.WithMaxUndoSequences(c.Engine.MaxUndoSequences),
		engine.WithContentWidth(c.Layout.ContentWidth),
	}
}

// NewOracle returns the width oracle named by layout.oracle.
func (c *Config) NewOracle() (layout.Oracle, error) {
	switch c.Layout.Oracle {
	case OracleCell, "":
		return layout.NewCellOracle(false), nil
	case OracleCellEastAsian:
		return layout.NewCellOracle(true), nil
	case OracleGrapheme:
		return layout.NewGraphemeOracle(), nil
	default:
		return nil, fmt.Errorf("oracle %q: want %s, %s or %s: %w", c.Layout.Oracle, OracleCell, OracleCellEastAsian, OracleGrapheme, ErrInvalidValue)
	}
}

// LayoutOptions converts the layout settings to layout engine options.
func (c *Config) LayoutOptions() []layout.Option {
	return []layout.Option{layout.WithTabWidth(c.Layout.TabWidth)}
}

// NewTheme builds the configured theme over the default one.
func (c *Config) NewTheme() (*decor.Theme, error) {
	return decor.NewTheme(c.Render.ThemeName, c.Render.Theme)
}

// NewCollapser returns a collapser using the configured marker.
func (c *Config) NewCollapser() *transform.Collapser {
	return transform.NewCollapser(transform.WithMarker(c.Render.CollapseMarker))
}

// LoadScripts loads the configured Lua taggers. On error the scripts
// loaded so far are closed.
func (c *Config) LoadScripts() ([]*script.Script, error) {
	var out []*script.Script
	for _, path := range c.Render.Scripts {
		s, err := script.LoadFile(path)
		if err != nil {
			for _, l := range out {
				l.Close()
			}
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// NewLogger returns a logger writing to w at the configured level.
func (c *Config) NewLogger(w io.Writer) (*logging.Logger, error) {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Output = w
	return logging.New(cfg), nil
}
