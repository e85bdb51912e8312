// Package config holds the settings of a bigtext process.
//
// Settings come from three layers, lowest first:
//
//  1. Built-in defaults (Default)
//  2. A YAML or TOML file (Load)
//  3. BIGTEXT_* environment variables (ApplyEnv)
//
// A file only overrides the keys it names:
//
//	# bigtext.yaml
//	engine:
//	  chunk_capacity: 4096
//	layout:
//	  content_width: 100
//	  oracle: grapheme
//	render:
//	  theme:
//	    Keyword: bold yellow
//	  variables:
//	    host: example.com
//	  scripts:
//	    - todo.lua
//	log:
//	  level: debug
//
// The same settings in TOML use [engine], [layout], [render] and [log]
// tables. The conversion helpers turn a validated Config into engine
// options, a layout oracle, a theme and a logger.
package config
