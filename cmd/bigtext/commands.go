package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/spf13/cobra"

	"github.com/dshills/bigtext/internal/engine"
	"github.com/dshills/bigtext/internal/follow"
	"github.com/dshills/bigtext/internal/renderer"
	"github.com/dshills/bigtext/internal/renderer/decor"
	"github.com/dshills/bigtext/internal/renderer/syntax"
	"github.com/dshills/bigtext/internal/renderer/transform"
)

func newStatsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <file>",
		Short: "Print buffer statistics for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := o.openDoc(args[0])
			if err != nil {
				return err
			}
			p, err := o.newPipeline(doc)
			if err != nil {
				return err
			}
			defer p.Close()

			if recovered, err := doc.CheckIntegrity(); err != nil && !recovered {
				return err
			}
			tree := doc.Tree()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "file:     %s\n", args[0])
			fmt.Fprintf(out, "runes:    %d\n", doc.Len())
			fmt.Fprintf(out, "bytes:    %d\n", doc.ByteLen())
			fmt.Fprintf(out, "lines:    %d\n", doc.LineCount())
			fmt.Fprintf(out, "rows:     %d (width %g, %s)\n", p.Layout().NumOfRows(), doc.ContentWidth(), o.cfg.Layout.Oracle)
			fmt.Fprintf(out, "chunks:   %d (capacity %d)\n", tree.LeafCount(), tree.ChunkCapacity())
			fmt.Fprintf(out, "nodes:    %d (height %d)\n", tree.NodeCount(), tree.Height())
			return nil
		},
	}
}

func newRowsCmd(o *options) *cobra.Command {
	var from, count int
	cmd := &cobra.Command{
		Use:   "rows <file>",
		Short: "Print the wrapped rows of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := o.openDoc(args[0])
			if err != nil {
				return err
			}
			p, err := o.newPipeline(doc)
			if err != nil {
				return err
			}
			defer p.Close()

			lay := p.Layout()
			last := lay.NumOfRows()
			if count > 0 {
				last = min(last, from+count)
			}
			if from < 0 || from > lay.NumOfRows() {
				return fmt.Errorf("row %d (count %d): %w", from, lay.NumOfRows(), engine.ErrOutOfRange)
			}
			glyphs := transform.NewGlyphSubstitution(nil, decor.DefaultTheme().Default)
			out := cmd.OutOrStdout()
			for row := from; row < last; row++ {
				start, _ := lay.RowStart(row)
				text, err := lay.FindRowString(row)
				if err != nil {
					return err
				}
				if o.cfg.Render.ShowControls {
					text = glyphs.Substitute(text)
				}
				fmt.Fprintf(out, "%6d %8d  %s\n", row, start, text)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&from, "from", 0, "first row to print")
	cmd.Flags().IntVar(&count, "count", 0, "number of rows to print (0 prints all)")
	return cmd
}

func newRenderCmd(o *options) *cobra.Command {
	var (
		collapse   []string
		pattern    string
		ignoreCase bool
		markup     bool
		highlight  bool
		scripts    []string
	)
	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Render a file through collapsing and decoration",
		Long: `Render prints the transformed text of a file. Collapsed ranges are
replaced by the configured marker. With --markup, decorated stretches are
printed as [tag|text].`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := o.openDoc(args[0])
			if err != nil {
				return err
			}
			theme, err := o.cfg.NewTheme()
			if err != nil {
				return err
			}

			collapser := o.cfg.NewCollapser()
			var ranges []engine.Range
			for _, s := range collapse {
				r, err := parseRange(s)
				if err != nil {
					return err
				}
				ranges = append(ranges, r)
			}
			if err := collapser.SetCollapsedRanges(ranges); err != nil {
				return err
			}
			transforms := append(o.glyphs(theme), collapser)

			var decorators []decor.Decorator
			if highlight {
				parser, err := syntax.NewChromaParserForFile(args[0])
				switch {
				case errors.Is(err, syntax.ErrUnknownLanguage):
					o.logger.Info("no lexer for %s, highlighting disabled", args[0])
				case err != nil:
					return err
				default:
					decorators = append(decorators, decor.NewSyntaxDecorator(parser, theme))
				}
			}
			if len(o.cfg.Render.Variables) > 0 || len(o.cfg.Render.Functions) > 0 {
				decorators = append(decorators, decor.NewVariableDecorator(o.cfg.Render.Variables, o.cfg.Render.Functions, theme))
			}
			o.cfg.Render.Scripts = append(o.cfg.Render.Scripts, scripts...)
			loaded, err := o.cfg.LoadScripts()
			if err != nil {
				return err
			}
			for _, s := range loaded {
				defer s.Close()
				decorators = append(decorators, s.Decorator(theme))
			}
			if pattern != "" {
				search := decor.NewSearchDecorator(theme)
				if err := search.SetPattern(pattern, regexOptions(ignoreCase)); err != nil {
					return err
				}
				decorators = append(decorators, search)
			}

			p, err := o.newPipeline(doc,
				renderer.WithTransformations(transforms...),
				renderer.WithDecorators(decorators...),
			)
			if err != nil {
				return err
			}
			defer p.Close()

			st, err := p.Render(engine.Range{Start: 0, End: doc.Len()})
			if err != nil {
				return err
			}
			text := st.Text
			if markup {
				text = st.Markup()
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			if !strings.HasSuffix(text, "\n") {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringArrayVar(&collapse, "collapse", nil, "collapse the rune range start:end (repeatable)")
	f.StringVar(&pattern, "search", "", "highlight matches of a regular expression")
	f.BoolVarP(&ignoreCase, "ignore-case", "i", false, "match the search case-insensitively")
	f.BoolVar(&markup, "markup", false, "print decorations as [tag|text]")
	f.BoolVar(&highlight, "highlight", true, "highlight syntax by file name")
	f.StringArrayVar(&scripts, "script", nil, "decorate with a Lua line tagger (repeatable)")
	return cmd
}

func newFoldsCmd(o *options) *cobra.Command {
	var level int
	var all bool
	cmd := &cobra.Command{
		Use:   "folds <file.json>",
		Short: "List or apply the folds of a JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := o.openDoc(args[0])
			if err != nil {
				return err
			}
			collapser := o.cfg.NewCollapser()
			p, err := o.newPipeline(doc, renderer.WithTransformations(collapser))
			if err != nil {
				return err
			}
			defer p.Close()

			folds := transform.NewJSONFolds(doc, collapser)
			folds.MultilineOnly = !all
			out := cmd.OutOrStdout()
			if level <= 0 {
				list, err := folds.Folds()
				if err != nil {
					return err
				}
				for _, f := range list {
					kind := "object"
					if f.Array {
						kind = "array"
					}
					path := f.Path
					if path == "" {
						path = "."
					}
					fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", f.Depth, kind, f.Range, path)
				}
				return nil
			}

			if err := folds.FoldLevel(level); err != nil {
				return err
			}
			fmt.Fprintln(out, p.View().String())
			return nil
		},
	}
	cmd.Flags().IntVar(&level, "level", 0, "collapse every container at this depth and print the result")
	cmd.Flags().BoolVar(&all, "all", false, "include single-line containers")
	return cmd
}

func newSearchCmd(o *options) *cobra.Command {
	var ignoreCase bool
	cmd := &cobra.Command{
		Use:   "search <file> <pattern>",
		Short: "Print the matches of a regular expression",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := o.openDoc(args[0])
			if err != nil {
				return err
			}
			search := decor.NewSearchDecorator(decor.DefaultTheme())
			if err := search.SetPattern(args[1], regexOptions(ignoreCase)); err != nil {
				return err
			}
			if err := search.Initialize(doc); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, m := range search.Matches() {
				line, col, err := doc.FindLineAndColumnFromOffset(m.Start)
				if err != nil {
					return err
				}
				text, err := doc.Substring(m.Start, m.End)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d:%d: %s\n", line+1, col+1, text)
			}
			fmt.Fprintf(out, "%d matches\n", search.Count())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&ignoreCase, "ignore-case", "i", false, "match case-insensitively")
	return cmd
}

func newFollowCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "follow <file>",
		Short: "Print text appended to a file as it grows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Followed documents only grow; keeping their undo history
			// would duplicate the file in memory.
			doc := engine.NewConcurrent(engine.New(append(o.engineOptions(), engine.WithUndo(false))...))
			out := cmd.OutOrStdout()
			f := follow.New(args[0], doc,
				follow.WithLogger(o.logger),
				follow.WithNotify(func(n int) {
					length := doc.Len()
					text, err := doc.Substring(length-min(n, length), length)
					if err != nil {
						o.logger.Error("read appended text: %v", err)
						return
					}
					fmt.Fprint(out, text)
					o.logger.Debug("appended %d runes, %d lines total", n, doc.LineCount())
				}),
			)
			return f.Run(cmd.Context())
		},
	}
}

func regexOptions(ignoreCase bool) regexp2.RegexOptions {
	if ignoreCase {
		return regexp2.IgnoreCase
	}
	return regexp2.None
}
