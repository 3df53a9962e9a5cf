package model

import "errors"

// Sentinel errors for precondition and invariant failures. Callers match
// them with errors.Is; messages carry the specifics.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrAlreadyAligned    = errors.New("context already aligned")
	ErrNotFound          = errors.New("not found")
	ErrOutOfBounds       = errors.New("chunk outside level bounds")
	ErrOverlap           = errors.New("chunk overlaps a placed chunk")
)
