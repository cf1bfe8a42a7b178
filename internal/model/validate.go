package model

import (
	"github.com/born-ml/nmt/internal/tensor"
)

// validateBatch checks a token batch and its mask at the model boundary.
//
// Ids are only checked at valid positions. With allowSentinel, negative ids
// are accepted as "no token".
func validateBatch(name string, tokens *tensor.Tokens, mask *tensor.Mask, vocab int, allowSentinel bool) error {
	if tokens == nil {
		return &tensor.ShapeError{Tensor: name, Expected: tensor.Shape{-1, -1}, Actual: nil}
	}
	if err := tokens.Shape().Validate(); err != nil {
		return &tensor.ShapeError{Tensor: name, Expected: tensor.Shape{-1, -1}, Actual: tokens.Shape()}
	}
	if mask == nil {
		return &tensor.ShapeError{Tensor: name + "_mask", Expected: tokens.Shape(), Actual: nil}
	}
	if !mask.Shape().Equal(tokens.Shape()) {
		return &tensor.ShapeError{Tensor: name + "_mask", Expected: tokens.Shape(), Actual: mask.Shape()}
	}
	if err := mask.Validate(name + "_mask"); err != nil {
		return err
	}
	if err := tokens.CheckRange(name, vocab, mask); err != nil {
		return err
	}
	if allowSentinel {
		return nil
	}
	for b := 0; b < tokens.Batch(); b++ {
		for i := 0; i < tokens.Len(); i++ {
			if id := tokens.At(b, i); id < 0 && mask.At(b, i) != 0 {
				return &tensor.IndexError{Tensor: name, Row: b, Position: i, Value: id, Limit: vocab}
			}
		}
	}
	return nil
}

// checkRepresentation verifies an encoder output against its source mask.
func checkRepresentation(repr tensor.Sequence, mask *tensor.Mask, dim int) error {
	if repr.Len() == 0 {
		return &tensor.ShapeError{Tensor: "representation", Expected: tensor.Shape{-1, -1, dim}, Actual: tensor.Shape{0}}
	}
	if repr.Dim() != dim {
		return &tensor.ShapeError{Tensor: "representation", Expected: tensor.Shape{repr.Len(), repr.Batch(), dim}, Actual: repr.Shape()}
	}
	if mask == nil {
		return nil
	}
	if mask.Batch() != repr.Batch() || mask.Len() != repr.Len() {
		return &tensor.ShapeError{Tensor: "source_mask", Expected: tensor.Shape{repr.Batch(), repr.Len()}, Actual: mask.Shape()}
	}
	return mask.Validate("source_mask")
}
