package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/bigtext/internal/config"
	"github.com/dshills/bigtext/internal/engine"
	"github.com/dshills/bigtext/internal/logging"
	"github.com/dshills/bigtext/internal/renderer"
	"github.com/dshills/bigtext/internal/renderer/decor"
	"github.com/dshills/bigtext/internal/renderer/transform"
)

// options holds the global flags and the configuration they resolve to.
type options struct {
	configPath string
	logLevel   string
	width      float64
	oracle     string

	stderr io.Writer
	cfg    *config.Config
	logger *logging.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	o := &options{stderr: stderr}
	cmd := &cobra.Command{
		Use:   "bigtext",
		Short: "Inspect large text files through the bigtext buffer",
		Long: `bigtext loads a file into a chunked text buffer and reports on it.

Settings come from built-in defaults, an optional --config file (YAML or
TOML), BIGTEXT_* environment variables and finally flags.

Examples:
  bigtext stats big.log
  bigtext rows -w 40 --from 100 --count 20 notes.txt
  bigtext render --collapse 120:480 --search TODO main.go
  bigtext render --markup --script todo.lua notes.txt
  bigtext folds --level 1 data.json
  bigtext search -i 'error|warn' big.log
  bigtext follow app.log`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.load(cmd)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.PersistentFlags()
	f.StringVarP(&o.configPath, "config", "c", "", "configuration file (.yaml, .yml or .toml)")
	f.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn or error")
	f.Float64VarP(&o.width, "width", "w", 0, "content width to wrap rows at")
	f.StringVar(&o.oracle, "oracle", "", "width oracle: cell, cell-east-asian or grapheme")

	cmd.AddCommand(
		newStatsCmd(o),
		newRowsCmd(o),
		newRenderCmd(o),
		newFoldsCmd(o),
		newSearchCmd(o),
		newFollowCmd(o),
	)
	return cmd
}

// load resolves the configuration layers. Flags win over the environment,
// which wins over the file.
func (o *options) load(cmd *cobra.Command) error {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(config.EnvPrefix); err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if flags.Changed("width") {
		cfg.Layout.ContentWidth = o.width
	}
	if flags.Changed("oracle") {
		cfg.Layout.Oracle = o.oracle
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.NewLogger(o.stderr)
	if err != nil {
		return err
	}
	o.cfg, o.logger = cfg, logger
	o.logger.Debug("configuration resolved: width %v, oracle %s", cfg.Layout.ContentWidth, cfg.Layout.Oracle)
	return nil
}

// engineOptions returns the document options for the resolved config.
func (o *options) engineOptions() []engine.Option {
	return append(o.cfg.EngineOptions(), engine.WithLogger(o.logger))
}

// openDoc loads path into a new document.
func (o *options) openDoc(path string) (*engine.BigText, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc, err := engine.NewFromReader(f, o.engineOptions()...)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	o.logger.Debug("loaded %s: %d runes in %d chunks", path, doc.Len(), doc.Tree().LeafCount())
	return doc, nil
}

// newPipeline binds a pipeline with the configured layout to doc.
func (o *options) newPipeline(doc *engine.BigText, opts ...renderer.Option) (*renderer.Pipeline, error) {
	oracle, err := o.cfg.NewOracle()
	if err != nil {
		return nil, err
	}
	opts = append(opts,
		renderer.WithLayout(oracle, o.cfg.LayoutOptions()...),
		renderer.WithLogger(o.logger),
	)
	return renderer.New(doc, opts...)
}

// glyphs returns the control character substitution when enabled.
func (o *options) glyphs(theme *decor.Theme) []transform.Transformation {
	if !o.cfg.Render.ShowControls {
		return nil
	}
	style, _ := theme.StyleFor("Comment")
	return []transform.Transformation{transform.NewGlyphSubstitution(nil, style)}
}

// parseRange parses "start:end" into a half-open rune range.
func parseRange(s string) (engine.Range, error) {
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return engine.Range{}, fmt.Errorf("range %q: want start:end", s)
	}
	start, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return engine.Range{}, fmt.Errorf("range %q: %w", s, err)
	}
	end, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return engine.Range{}, fmt.Errorf("range %q: %w", s, err)
	}
	return engine.Range{Start: start, End: end}, nil
}
