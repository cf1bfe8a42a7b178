package stream

import (
	"github.com/born-ml/nmt/internal/tensor"
)

// Batch is one padded parallel minibatch. Target fields are nil for
// source-only streams.
type Batch struct {
	Source     *tensor.Tokens
	SourceMask *tensor.Mask
	Target     *tensor.Tokens
	TargetMask *tensor.Mask
}

// Size returns the number of sentences in the batch.
func (b *Batch) Size() int {
	if b.Source == nil {
		return 0
	}
	return b.Source.Batch()
}

// Pair is one tokenized sentence pair.
type Pair struct {
	Source []int
	Target []int
}

// NewBatch right-pads the pairs with id 0 and builds their masks.
// Target fields are left nil when every pair lacks a target.
func NewBatch(pairs []Pair) *Batch {
	sources := make([][]int, len(pairs))
	targets := make([][]int, len(pairs))
	hasTarget := false
	for i, p := range pairs {
		sources[i] = p.Source
		targets[i] = p.Target
		hasTarget = hasTarget || p.Target != nil
	}
	b := &Batch{}
	b.Source, b.SourceMask = pad(sources)
	if hasTarget {
		b.Target, b.TargetMask = pad(targets)
	}
	return b
}

func pad(rows [][]int) (*tensor.Tokens, *tensor.Mask) {
	width := 0
	lengths := make([]int, len(rows))
	for i, r := range rows {
		lengths[i] = len(r)
		width = max(width, len(r))
	}
	tokens := tensor.NewTokens(len(rows), width)
	for b, r := range rows {
		for i, id := range r {
			tokens.Set(b, i, id)
		}
	}
	return tokens, tensor.MaskFromLengths(lengths, width)
}
