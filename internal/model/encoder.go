package model

import (
	"github.com/born-ml/nmt/internal/nn"
	"github.com/born-ml/nmt/internal/tensor"
)

// Encoder embeds a source batch and runs a bidirectional GRU over it.
//
// Architecture:
//
//	embeddings = lookup(tokens)                 (time, batch, Embed)
//	fwd        = GRU_f(fwd_fork(embeddings))    forward in time
//	bwd        = GRU_b(back_fork(embeddings))   backward in time
//	repr[t]    = [fwd[t] | bwd[t]]              (time, batch, 2*Dim)
type Encoder struct {
	VocabSize int
	EmbedDim  int
	Dim       int

	Lookup   *nn.LookupTable
	Bidir    *nn.Bidirectional
	FwdFork  *nn.Fork
	BackFork *nn.Fork
}

// NewEncoder creates a bidirectional encoder.
//
// Parameters:
//   - vocabSize: Source vocabulary size
//   - embedDim: Source embedding dimension
//   - dim: Hidden dimension of each direction
//   - init: Initialization scheme
func NewEncoder(vocabSize, embedDim, dim int, init nn.Init) *Encoder {
	return &Encoder{
		VocabSize: vocabSize,
		EmbedDim:  embedDim,
		Dim:       dim,
		Lookup:    nn.NewLookupTable("encoder/embeddings", vocabSize, embedDim, init),
		Bidir:     nn.NewBidirectional("encoder/bidir", dim, init),
		FwdFork:   nn.NewFork("encoder/fwd_fork", embedDim, dim, true, init),
		BackFork:  nn.NewFork("encoder/back_fork", embedDim, dim, true, init),
	}
}

// RepresentationDim returns the feature width of the encoder output.
func (e *Encoder) RepresentationDim() int {
	return 2 * e.Dim
}

// Apply encodes a (batch, time) source batch.
//
// Returns a *tensor.ShapeError, *tensor.MaskError or *tensor.IndexError when
// the inputs violate the batch contract: equal shapes, left-aligned binary
// mask and ids below VocabSize. Negative ids embed to the zero vector.
func (e *Encoder) Apply(tokens *tensor.Tokens, mask *tensor.Mask) (tensor.Sequence, error) {
	if err := validateBatch("source", tokens, mask, e.VocabSize, true); err != nil {
		return nil, err
	}
	return e.apply(tokens, mask), nil
}

func (e *Encoder) apply(tokens *tensor.Tokens, mask *tensor.Mask) tensor.Sequence {
	embeddings := e.Lookup.ApplyTokens(padWithZero(tokens, mask))
	fwdInputs, fwdGates := e.FwdFork.ForwardSeq(embeddings)
	backInputs, backGates := e.BackFork.ForwardSeq(embeddings)
	return e.Bidir.Apply(
		nn.SweepInputs{Inputs: fwdInputs, GateInputs: fwdGates},
		nn.SweepInputs{Inputs: backInputs, GateInputs: backGates},
		mask.Steps(),
	)
}

// FeedforwardParameters returns the lookup and fork parameters.
func (e *Encoder) FeedforwardParameters() []*nn.Parameter {
	return nn.CollectParameters(e.Lookup, e.FwdFork, e.BackFork)
}

// RecurrentParameters returns the parameters of both GRU directions.
func (e *Encoder) RecurrentParameters() []*nn.Parameter {
	return e.Bidir.Parameters()
}

// Parameters returns every encoder parameter.
func (e *Encoder) Parameters() []*nn.Parameter {
	return nn.CollectParameters(e.Lookup, e.Bidir, e.FwdFork, e.BackFork)
}

// padWithZero returns tokens with every padded position set to id 0, so the
// lookup never sees whatever filler the caller used.
func padWithZero(tokens *tensor.Tokens, mask *tensor.Mask) *tensor.Tokens {
	out := tensor.NewTokens(tokens.Batch(), tokens.Len())
	for b := 0; b < tokens.Batch(); b++ {
		for i := 0; i < tokens.Len(); i++ {
			if mask.At(b, i) != 0 {
				out.Set(b, i, tokens.At(b, i))
			}
		}
	}
	return out
}
