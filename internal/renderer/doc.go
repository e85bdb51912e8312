// Package renderer turns a document into styled, transformed text.
//
// A Pipeline binds one BigText to an ordered list of transformations, an
// ordered list of decorators and an optional layout engine. Every change
// event flows through the pipeline before the next edit is accepted:
//
//	BigText edit
//	  ├─ transformations  (replace ranges, maintain the offset mapping)
//	  ├─ decorators       (annotate ranges, maintain their indexes)
//	  └─ layout engine    (recompute rows of the touched lines)
//
// Rendering decorates original text, then substitutes transformed spans.
// A component that fails or panics is logged and degraded to passthrough
// over the affected range; the edit itself always succeeds.
//
// Usage:
//
//	doc := engine.New(engine.WithContent(body))
//	p, _ := renderer.New(doc,
//		renderer.WithTransformations(transform.NewCollapser()),
//		renderer.WithDecorators(decor.NewSearchDecorator(nil)),
//	)
//	out, _ := p.Render(engine.NewRange(0, doc.Len()))
package renderer
