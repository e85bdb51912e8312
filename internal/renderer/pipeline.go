package renderer

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/bigtext/internal/engine"
	"github.com/dshills/bigtext/internal/logging"
	"github.com/dshills/bigtext/internal/renderer/decor"
	"github.com/dshills/bigtext/internal/renderer/layout"
	"github.com/dshills/bigtext/internal/renderer/transform"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTransformations appends transformations. Earlier ones win conflicts.
func WithTransformations(ts ...transform.Transformation) Option {
	return func(p *Pipeline) {
		for _, t := range ts {
			p.transforms = append(p.transforms, &transformSlot{t: t, owners: ownersOf(t)})
		}
	}
}

// WithDecorators appends decorators. Later ones take precedence.
func WithDecorators(ds ...decor.Decorator) Option {
	return func(p *Pipeline) {
		for _, d := range ds {
			p.decorators = append(p.decorators, &decoratorSlot{d: d})
		}
	}
}

// WithLayout attaches a layout engine wrapping at the document's content
// width.
func WithLayout(oracle layout.Oracle, opts ...layout.Option) Option {
	return func(p *Pipeline) {
		p.oracle = oracle
		p.layoutOpts = opts
	}
}

// WithLogger sets the logger used to report component failures.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// Pipeline renders one document through its transformations and
// decorators. It is not safe for concurrent use; callers serialize it
// with the document, for example under engine.Concurrent's locks.
type Pipeline struct {
	doc        *engine.BigText
	view       *transform.View
	transforms []*transformSlot
	decorators []*decoratorSlot
	layout     *layout.Engine
	oracle     layout.Oracle
	layoutOpts []layout.Option
	logger     *logging.Logger
	detach     []func()
}

// New binds a pipeline to doc and performs the first full scan of every
// component. Components failing their first scan are degraded, not fatal.
func New(doc *engine.BigText, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		doc:    doc,
		view:   transform.NewView(doc),
		logger: logging.Null(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithComponent("pipeline")

	p.Refresh()
	detach, err := doc.AddListener(p)
	if err != nil {
		return nil, err
	}
	p.detach = append(p.detach, detach)

	if p.oracle != nil {
		p.layout = layout.New(doc, p.oracle, doc.ContentWidth(), append(p.layoutOpts, layout.WithLogger(p.logger))...)
		detach, err := doc.AddListener(p.layout)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.detach = append(p.detach, detach)
	}
	return p, nil
}

// Close detaches the pipeline from its document.
func (p *Pipeline) Close() {
	for _, d := range p.detach {
		d()
	}
	p.detach = nil
}

// Document returns the bound document.
func (p *Pipeline) Document() *engine.BigText {
	return p.doc
}

// View returns the transformed view.
func (p *Pipeline) View() *transform.View {
	return p.view
}

// Layout returns the layout engine, or nil without WithLayout.
func (p *Pipeline) Layout() *layout.Engine {
	return p.layout
}

// Refresh rescans the whole document with every component and clears
// degraded state.
func (p *Pipeline) Refresh() {
	p.refreshTransformations()
	for _, s := range p.decorators {
		s.degraded.reset()
		s.pending = false
		if err := protect(s.d.Name(), "initialize", func() error { return s.d.Initialize(p.doc) }); err != nil {
			p.logger.WithField("decorator", s.d.Name()).Error("disabled: %v", err)
			s.degraded.all = true
		}
	}
}

func (p *Pipeline) refreshTransformations() {
	p.view.Clear()
	for _, s := range p.transforms {
		s.failed = false
		if err := protect(s.t.Name(), "initialize", func() error { return s.t.Initialize(p.doc, p.view) }); err != nil {
			p.logger.WithField("transformation", s.t.Name()).Error("disabled: %v", err)
			s.failed = true
			p.removeSpans(s, engine.Range{Start: 0, End: p.doc.Len()})
		}
	}
}

func (p *Pipeline) removeSpans(s *transformSlot, r engine.Range) {
	for _, owner := range s.owners {
		if r.Start == 0 && r.End >= p.doc.Len() {
			p.view.RemoveOwned(owner)
			continue
		}
		p.view.Remove(owner, r)
	}
}

// Failed reports whether the named component is degraded anywhere.
func (p *Pipeline) Failed(name string) bool {
	for _, s := range p.transforms {
		if s.t.Name() == name {
			return s.failed
		}
	}
	for _, s := range p.decorators {
		if s.d.Name() == name {
			return s.degraded.all || len(s.degraded.ranges) > 0
		}
	}
	return false
}

// Degraded returns the ranges in which the named decorator renders as
// passthrough.
func (p *Pipeline) Degraded(name string) []engine.Range {
	for _, s := range p.decorators {
		if s.d.Name() != name {
			continue
		}
		if s.degraded.all {
			return []engine.Range{{Start: 0, End: p.doc.Len()}}
		}
		return append([]engine.Range(nil), s.degraded.ranges...)
	}
	return nil
}

// BeforeTextChange implements engine.ChangeListener.
func (p *Pipeline) BeforeTextChange(ev engine.ChangeEvent) {
	for _, s := range p.transforms {
		if s.failed {
			continue
		}
		if err := protect(s.t.Name(), "before change", func() error { return s.t.BeforeTextChange(ev, p.view) }); err != nil {
			p.logger.WithField("transformation", s.t.Name()).Error("%s: %v", ev, err)
		}
	}
	p.view.BeforeTextChange(ev)
	for _, s := range p.decorators {
		s.pending = false
		if s.degraded.all {
			continue
		}
		if err := protect(s.d.Name(), "before change", func() error { return s.d.BeforeTextChange(ev) }); err != nil {
			p.logger.WithField("decorator", s.d.Name()).Error("%s: %v", ev, err)
			s.pending = true
		}
	}
}

// AfterTextChange implements engine.ChangeListener.
func (p *Pipeline) AfterTextChange(ev engine.ChangeEvent) {
	p.view.AfterTextChange(ev)
	affected := p.affectedLines(ev)
	for _, s := range p.transforms {
		if s.failed {
			continue
		}
		if err := protect(s.t.Name(), "after change", func() error { return s.t.AfterTextChange(ev, p.view) }); err != nil {
			p.logger.WithField("transformation", s.t.Name()).Error("%s: passthrough over %s: %v", ev, affected, err)
			p.removeSpans(s, affected)
		}
	}
	for _, s := range p.decorators {
		if s.degraded.all {
			continue
		}
		s.degraded.shift(ev)
		err := protect(s.d.Name(), "after change", func() error { return s.d.AfterTextChange(ev) })
		if err != nil {
			p.logger.WithField("decorator", s.d.Name()).Error("%s: passthrough over %s: %v", ev, affected, err)
		}
		if err != nil || s.pending {
			s.degraded.add(affected)
		}
		s.pending = false
	}
}

// affectedLines returns the lines touched by ev, in post-edit coordinates.
func (p *Pipeline) affectedLines(ev engine.ChangeEvent) engine.Range {
	return p.linesCovering(ev.Start, ev.NewEnd)
}

// linesCovering returns the range of the lines holding offsets start
// through end.
func (p *Pipeline) linesCovering(start, end int) engine.Range {
	first, _, err := p.doc.FindLineAndColumnFromOffset(start)
	if err != nil {
		return engine.Range{Start: 0, End: p.doc.Len()}
	}
	last, _, err := p.doc.FindLineAndColumnFromOffset(end)
	if err != nil {
		return engine.Range{Start: 0, End: p.doc.Len()}
	}
	start, _ = p.doc.LineStart(first)
	end, _ = p.doc.LineEnd(last)
	return engine.Range{Start: start, End: end}
}

// Collapse collapses r through the first Collapser of the pipeline.
func (p *Pipeline) Collapse(r engine.Range) error {
	c := p.collapser()
	if c == nil {
		return fmt.Errorf("collapse %s: no collapser: %w", r, ErrComponentFailed)
	}
	return c.Collapse(r)
}

// Expand expands the collapsed range holding offset. The other
// transformations rescan the lines of the expanded range, so spans they
// could not install while it was collapsed appear.
func (p *Pipeline) Expand(offset int) bool {
	c := p.collapser()
	if c == nil {
		return false
	}
	r, ok := c.Expand(offset)
	if !ok {
		return false
	}
	lines := p.linesCovering(r.Start, r.End)
	for _, s := range p.transforms {
		if !s.failed {
			p.rescan(s, lines)
		}
	}
	return true
}

// rescan rebuilds the spans of s over r. A transformation that cannot
// rescan part of the document is initialized again.
func (p *Pipeline) rescan(s *transformSlot, r engine.Range) {
	log := p.logger.WithField("transformation", s.t.Name())
	rs, ok := s.t.(transform.Rescanner)
	if !ok {
		p.removeSpans(s, engine.Range{Start: 0, End: p.doc.Len()})
		if err := protect(s.t.Name(), "initialize", func() error { return s.t.Initialize(p.doc, p.view) }); err != nil {
			log.Error("disabled: %v", err)
			s.failed = true
			p.removeSpans(s, engine.Range{Start: 0, End: p.doc.Len()})
		}
		return
	}
	if err := protect(s.t.Name(), "rescan", func() error { return rs.Rescan(r, p.view) }); err != nil {
		log.Error("rescan %s: passthrough: %v", r, err)
		p.removeSpans(s, r)
	}
}

func (p *Pipeline) collapser() *transform.Collapser {
	var find func(t transform.Transformation) *transform.Collapser
	find = func(t transform.Transformation) *transform.Collapser {
		switch v := t.(type) {
		case *transform.Collapser:
			return v
		case *transform.MultipleTransformation:
			for _, c := range v.Children() {
				if found := find(c); found != nil {
					return found
				}
			}
		}
		return nil
	}
	for _, s := range p.transforms {
		if c := find(s.t); c != nil {
			return c
		}
	}
	return nil
}

// Render returns the styled, transformed text of an original range. A
// range overlapping a collapsed block includes its whole marker.
func (p *Pipeline) Render(original engine.Range) (decor.StyledText, error) {
	if !original.IsValid() || original.End > p.doc.Len() {
		return decor.StyledText{}, fmt.Errorf("render %s (length %d): %w", original, p.doc.Len(), engine.ErrOutOfRange)
	}
	tr := p.view.OriginalRangeToTransformed(original)
	return p.RenderTransformed(tr.Start, tr.End)
}

// RenderTransformed returns the styled text of transformed range [a, b).
func (p *Pipeline) RenderTransformed(a, b int) (decor.StyledText, error) {
	segs, err := p.view.Segments(a, b)
	if err != nil {
		return decor.StyledText{}, err
	}
	if len(segs) == 0 {
		return decor.Plain(""), nil
	}

	orig := engine.Range{Start: segs[0].Original.Start, End: segs[len(segs)-1].Original.End}
	text, err := p.doc.Substring(orig.Start, orig.End)
	if err != nil {
		return decor.StyledText{}, err
	}
	styled := p.decorate(decor.Plain(text), orig)

	var out decor.StyledText
	for _, seg := range segs {
		rel := engine.Range{Start: seg.Original.Start - orig.Start, End: seg.Original.End - orig.Start}
		var piece decor.StyledText
		switch {
		case seg.Span == nil:
			piece = styled.Slice(rel.Start, rel.End)
		case seg.Span.Mapping == transform.Incremental:
			piece = styled.Slice(rel.Start, rel.End)
			piece.Text = seg.Text
			if seg.Span.Style != tcell.StyleDefault {
				piece = piece.WithSpan(decor.StyleSpan{Start: 0, End: piece.Len(), Style: seg.Span.Style, Tag: seg.Span.Owner})
			}
		default:
			piece = decor.Plain(seg.Text).WithSpan(decor.StyleSpan{Start: 0, End: seg.Transformed.Len(), Style: seg.Span.Style, Tag: seg.Span.Owner})
		}
		out = out.Append(piece)
	}
	return out, nil
}

// decorate applies every decorator to in, isolating failures.
func (p *Pipeline) decorate(in decor.StyledText, original engine.Range) decor.StyledText {
	for _, s := range p.decorators {
		if s.degraded.covers(original) {
			continue
		}
		var out decor.StyledText
		err := protect(s.d.Name(), "decorate", func() error {
			out = s.d.Decorate(in, original)
			if out.Text != in.Text || len(out.Spans) < len(in.Spans) {
				return fmt.Errorf("decorator changed its input")
			}
			return nil
		})
		if err != nil {
			p.logger.WithField("decorator", s.d.Name()).Error("passthrough over %s: %v", original, err)
			continue
		}
		added := out.Spans[len(in.Spans):]
		if len(s.degraded.ranges) == 0 {
			in = out
			continue
		}
		for _, sp := range added {
			for _, kept := range s.degraded.clip(sp, original.Start) {
				in = in.WithSpan(kept)
			}
		}
	}
	return in
}
