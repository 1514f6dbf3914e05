package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the engine.
var (
	// ErrNotFound reports a source path that does not exist at ingestion.
	ErrNotFound = errors.New("source not found")
	// ErrDimensionMismatch reports an embedding whose length differs from
	// the dimensionality the index was created with.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrEmptyQuery reports a blank question.
	ErrEmptyQuery = errors.New("empty query")
	// ErrInvalidTopK reports a non-positive top_k.
	ErrInvalidTopK = errors.New("top_k must be positive")
)

// DimensionError wraps ErrDimensionMismatch with the observed sizes.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: want %d, got %d", ErrDimensionMismatch, e.Want, e.Got)
}

func (e *DimensionError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionError creates a DimensionError.
func NewDimensionError(want, got int) *DimensionError {
	return &DimensionError{Want: want, Got: got}
}
