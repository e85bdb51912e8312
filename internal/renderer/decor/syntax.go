package decor

import (
	"fmt"

	"github.com/dshills/bigtext/internal/engine"
	"github.com/dshills/bigtext/internal/renderer/syntax"
)

// SyntaxDecorator styles text from a syntax tree. It feeds every edit to
// the tree and reparses through its parser.
type SyntaxDecorator struct {
	parser syntax.Parser
	theme  *Theme
	tree   syntax.Tree

	pending syntax.InputEdit
	hasEdit bool
}

// NewSyntaxDecorator creates a decorator using p and theme. A nil theme
// selects DefaultTheme.
func NewSyntaxDecorator(p syntax.Parser, theme *Theme) *SyntaxDecorator {
	if theme == nil {
		theme = DefaultTheme()
	}
	return &SyntaxDecorator{parser: p, theme: theme}
}

// Name implements Decorator.
func (d *SyntaxDecorator) Name() string {
	return "syntax"
}

// Tree returns the current syntax tree, or nil before a successful parse.
func (d *SyntaxDecorator) Tree() syntax.Tree {
	return d.tree
}

// Initialize implements Decorator.
func (d *SyntaxDecorator) Initialize(r engine.Reader) error {
	d.tree = nil
	tree, err := d.parser.Parse(syntax.NewInput(r), nil)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	d.tree = tree
	return nil
}

// BeforeTextChange implements Decorator. Positions before the edit are
// captured while the document still holds the old text.
func (d *SyntaxDecorator) BeforeTextChange(ev engine.ChangeEvent) error {
	start, err := syntax.PointAt(ev.Source, ev.Start)
	if err != nil {
		return err
	}
	oldEnd, err := syntax.PointAt(ev.Source, ev.OldEnd)
	if err != nil {
		return err
	}
	d.pending = syntax.InputEdit{
		StartByte:   ev.Start,
		OldEndByte:  ev.OldEnd,
		NewEndByte:  ev.NewEnd,
		StartPoint:  start,
		OldEndPoint: oldEnd,
	}
	d.hasEdit = true
	return nil
}

// AfterTextChange implements Decorator.
func (d *SyntaxDecorator) AfterTextChange(ev engine.ChangeEvent) error {
	if !d.hasEdit {
		return fmt.Errorf("%s without a preceding before event", ev)
	}
	d.hasEdit = false
	newEnd, err := syntax.PointAt(ev.Source, ev.NewEnd)
	if err != nil {
		return err
	}
	edit := d.pending
	edit.NewEndPoint = newEnd
	if d.tree != nil {
		d.tree.Edit(edit)
	}
	tree, err := d.parser.Parse(syntax.NewInput(ev.Source), d.tree)
	if err != nil {
		return fmt.Errorf("reparse after %s: %w", ev, err)
	}
	d.tree = tree
	return nil
}

// Decorate implements Decorator. Each leaf node overlapping the range is
// styled by its type.
func (d *SyntaxDecorator) Decorate(in StyledText, original engine.Range) StyledText {
	if d.tree == nil {
		return in
	}
	syntax.Walk(d.tree.Root(), original.Start, original.End, func(n syntax.Node) bool {
		if n.ChildCount() > 0 {
			return true
		}
		style, ok := d.theme.StyleFor(n.Type())
		if !ok {
			return false
		}
		in = in.WithSpan(StyleSpan{
			Start: n.StartByte() - original.Start,
			End:   n.EndByte() - original.Start,
			Style: style,
			Tag:   n.Type(),
		})
		return false
	})
	return in
}
