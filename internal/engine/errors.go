package engine

import (
	"errors"

	"github.com/dshills/bigtext/internal/engine/rope"
)

// Errors returned by engine operations.
var (
	// ErrOutOfRange indicates an offset, line or column outside current bounds.
	// The document is left unmodified.
	ErrOutOfRange = rope.ErrOutOfRange

	// ErrInvariantViolation indicates the chunk tree failed a consistency check.
	ErrInvariantViolation = rope.ErrInvariantViolation

	// ErrNilListener indicates a nil listener was registered.
	ErrNilListener = errors.New("nil change listener")
)
