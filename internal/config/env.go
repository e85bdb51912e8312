package config

import (
	"fmt"
	"maps"

	"gopkg.in/yaml.v3"

	"github.com/dshills/bigtext/internal/config/loader"
)

// EnvPrefix is the prefix of bigtext environment variables.
const EnvPrefix = "BIGTEXT_"

// envMapping lists the short variable names. Any other
// PREFIX_SECTION_KEY variable sets section.key.
func envMapping() map[string]string {
	return map[string]string{
		"CHUNK_CAPACITY": "engine.chunk_capacity",
		"UNDO":           "engine.undo_enabled",
		"MAX_UNDO":       "engine.max_undo_sequences",
		"CONTENT_WIDTH":  "layout.content_width",
		"ORACLE":         "layout.oracle",
		"TAB_WIDTH":      "layout.tab_width",
		"LOG_LEVEL":      "log.level",
	}
}

var sections = map[string]bool{"engine": true, "layout": true, "render": true, "log": true}

// ApplyEnv overrides settings from environment variables named with
// prefix, then validates. Variables outside the engine, layout, render and
// log sections are ignored; unknown keys inside them are errors.
func (c *Config) ApplyEnv(prefix string) error {
	values := loader.NewEnvLoader(prefix, envMapping()).Load()
	for key := range values {
		if !sections[key] {
			delete(values, key)
		}
	}
	if len(values) == 0 {
		return nil
	}

	// Round trip through YAML so env values decode with file semantics.
	data, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	next := *c
	next.Render.Theme = maps.Clone(c.Render.Theme)
	next.Render.Variables = maps.Clone(c.Render.Variables)
	if err := loader.Decode(loader.FormatYAML, data, &next); err != nil {
		return &ParseError{Path: "environment", Err: err}
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	*c = next
	return nil
}
