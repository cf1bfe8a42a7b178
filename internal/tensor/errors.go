package tensor

import (
	"errors"
	"fmt"
)

// ErrContract is wrapped by every contract violation reported by this module:
// shape mismatches, vocabulary indices out of range and malformed masks.
var ErrContract = errors.New("contract violation")

// ShapeError reports a tensor whose shape differs from the one an operation expects.
type ShapeError struct {
	Tensor   string // Name of the offending tensor (e.g., "source_mask")
	Expected Shape  // Expected shape; -1 marks a free dimension
	Actual   Shape  // Observed shape
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: tensor %q: expected shape %v, got %v", ErrContract, e.Tensor, e.Expected, e.Actual)
}

// Unwrap makes ShapeError match ErrContract.
func (e *ShapeError) Unwrap() error { return ErrContract }

// MaskError reports a mask that is not a left-aligned prefix of ones.
type MaskError struct {
	Tensor   string
	Row      int
	Position int
	Reason   string
}

// Error implements the error interface.
func (e *MaskError) Error() string {
	return fmt.Sprintf("%s: mask %q: row %d, position %d: %s", ErrContract, e.Tensor, e.Row, e.Position, e.Reason)
}

// Unwrap makes MaskError match ErrContract.
func (e *MaskError) Unwrap() error { return ErrContract }

// IndexError reports a non-sentinel token id outside the vocabulary.
type IndexError struct {
	Tensor   string
	Row      int
	Position int
	Value    int
	Limit    int // Vocabulary size; valid ids are [0, Limit)
}

// Error implements the error interface.
func (e *IndexError) Error() string {
	return fmt.Sprintf("%s: tensor %q: id %d at [%d, %d] out of range [0, %d)",
		ErrContract, e.Tensor, e.Value, e.Row, e.Position, e.Limit)
}

// Unwrap makes IndexError match ErrContract.
func (e *IndexError) Unwrap() error { return ErrContract }
