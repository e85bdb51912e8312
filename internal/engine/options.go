package engine

import (
	"github.com/dshills/bigtext/internal/engine/rope"
	"github.com/dshills/bigtext/internal/logging"
)

// Default configuration values.
const (
	DefaultContentWidth     = 80
	DefaultMaxUndoSequences = 0 // unlimited
)

// Option configures a BigText during creation.
type Option func(*BigText)

// WithContent sets the initial content.
func WithContent(content string) Option {
	return func(b *BigText) {
		b.initContent = content
	}
}

// WithChunkCapacity sets the maximum number of runes per tree chunk.
func WithChunkCapacity(capacity int) Option {
	return func(b *BigText) {
		if capacity > 0 {
			b.treeOpts = append(b.treeOpts, rope.WithChunkCapacity(capacity))
		}
	}
}

// WithUndo enables or disables undo recording.
func WithUndo(enabled bool) Option {
	return func(b *BigText) {
		b.undoEnabled = enabled
	}
}

// WithMaxUndoSequences limits the number of closed change sequences kept.
// Zero keeps every sequence.
func WithMaxUndoSequences(n int) Option {
	return func(b *BigText) {
		if n >= 0 {
			b.maxUndo = n
		}
	}
}

// WithContentWidth sets the initial content width used by layout engines.
func WithContentWidth(width float64) Option {
	return func(b *BigText) {
		if width > 0 {
			b.contentWidth = width
		}
	}
}

// WithLogger sets the logger used for integrity reports.
func WithLogger(l *logging.Logger) Option {
	return func(b *BigText) {
		if l != nil {
			b.logger = l
		}
	}
}
