package loader

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
)

// EnvLoader collects configuration from environment variables.
//
// Mapped variables name their config path explicitly. Other variables
// carrying the prefix are converted by position: PREFIX_SECTION_SOME_KEY
// becomes section.some_key.
type EnvLoader struct {
	prefix  string            // e.g. "BIGTEXT_"
	mapping map[string]string // name without prefix -> config path
}

// NewEnvLoader creates a loader for variables starting with prefix. The
// prefix should include the trailing underscore.
func NewEnvLoader(prefix string, mapping map[string]string) *EnvLoader {
	if mapping == nil {
		mapping = make(map[string]string)
	}
	return &EnvLoader{prefix: prefix, mapping: mapping}
}

// AddMapping maps the variable prefix+name to a config path.
func (l *EnvLoader) AddMapping(name, configPath string) {
	l.mapping[name] = configPath
}

// Load reads the environment into a nested map keyed by path segments.
// Empty values are treated as set.
func (l *EnvLoader) Load() map[string]any {
	config := make(map[string]any)

	for name, path := range l.mapping {
		if val, ok := os.LookupEnv(l.prefix + name); ok {
			setByPath(config, path, parseValue(val))
		}
	}

	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, l.prefix) {
			continue
		}
		key, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		name := strings.TrimPrefix(key, l.prefix)
		if _, mapped := l.mapping[name]; mapped {
			continue
		}
		if path := envToPath(name); path != "" {
			setByPath(config, path, parseValue(value))
		}
	}
	return config
}

// envToPath converts ENGINE_CHUNK_CAPACITY to engine.chunk_capacity.
// Names without a section part yield "".
func envToPath(name string) string {
	section, key, ok := strings.Cut(strings.ToLower(name), "_")
	if !ok || section == "" || key == "" {
		return ""
	}
	return section + "." + key
}

// parseValue converts s to a bool, number, JSON value or string.
func parseValue(s string) any {
	if s == "" {
		return s
	}

	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}

	// Only values with a decimal point are floats.
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}

	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}

	return s
}

// setByPath sets a value in a nested map using a dot-separated path.
func setByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}
