package model

import (
	"github.com/born-ml/nmt/internal/nn"
	"github.com/born-ml/nmt/internal/tensor"
	"gonum.org/v1/gonum/mat"
)

// Decoder is the attention decoder: a GRU transition whose initial state is
// learned from the representation, content attention over the source and a
// maxout readout over the target vocabulary.
type Decoder struct {
	VocabSize         int
	EmbedDim          int
	Dim               int
	RepresentationDim int

	Initializer *nn.LearnedInitialState
	Generator   *nn.SequenceGenerator
}

// NewDecoder creates a decoder.
//
// Parameters:
//   - vocabSize: Target vocabulary size
//   - embedDim: Target embedding dimension
//   - dim: Decoder hidden dimension (even, for the maxout readout)
//   - representationDim: Feature width of the encoder output
//   - initFeatures: Trailing representation features the initial state is
//     projected from (the backward sweep width)
//   - init: Initialization scheme
func NewDecoder(vocabSize, embedDim, dim, representationDim, initFeatures int, init nn.Init) *Decoder {
	initializer := nn.NewLearnedInitialState("decoder/state_initializer", initFeatures, dim, init)
	transition := nn.NewGRU("decoder/transition", dim, init, nn.WithInitialStates(initializer))
	attention := nn.NewSequenceContentAttention("decoder/attention", dim, representationDim, dim, init)
	readout := nn.NewReadout("decoder/readout", nn.ReadoutDims{
		Vocab:    vocabSize,
		Embed:    embedDim,
		States:   dim,
		Glimpses: representationDim,
		Merged:   dim,
	}, init)

	return &Decoder{
		VocabSize:         vocabSize,
		EmbedDim:          embedDim,
		Dim:               dim,
		RepresentationDim: representationDim,
		Initializer:       initializer,
		Generator:         nn.NewSequenceGenerator("decoder/sequencegenerator", readout, transition, attention, init),
	}
}

// Context preprocesses an encoder representation for decoding.
// sourceMask may be nil when every source position is valid.
func (d *Decoder) Context(repr tensor.Sequence, sourceMask *tensor.Mask) (nn.Context, error) {
	if err := checkRepresentation(repr, sourceMask, d.RepresentationDim); err != nil {
		return nn.Context{}, err
	}
	var steps [][]float64
	if sourceMask != nil {
		steps = sourceMask.Steps()
	}
	return d.Generator.NewContext(repr, steps), nil
}

// CostMatrix returns the masked teacher-forced token costs [time, batch].
func (d *Decoder) CostMatrix(c nn.Context, targets *tensor.Tokens, targetMask *tensor.Mask, opts ...nn.CostOption) (*mat.Dense, error) {
	if err := d.validateTargets(c, targets, targetMask); err != nil {
		return nil, err
	}
	return d.Generator.CostMatrix(c, targets, targetMask, opts...), nil
}

// Cost returns the batch loss: summed token costs over the number of valid
// target positions in the batch.
func (d *Decoder) Cost(c nn.Context, targets *tensor.Tokens, targetMask *tensor.Mask, opts ...nn.CostOption) (float64, error) {
	if err := d.validateTargets(c, targets, targetMask); err != nil {
		return 0, err
	}
	return d.Generator.Cost(c, targets, targetMask, opts...), nil
}

// Generate decodes freely for twice the source length.
func (d *Decoder) Generate(c nn.Context, emitter nn.Emitter) nn.Generation {
	return d.Generator.Generate(c, 2*c.Attended.Len(), emitter)
}

func (d *Decoder) validateTargets(c nn.Context, targets *tensor.Tokens, targetMask *tensor.Mask) error {
	if err := validateBatch("target", targets, targetMask, d.VocabSize, false); err != nil {
		return err
	}
	if targets.Batch() != c.Attended.Batch() {
		return &tensor.ShapeError{
			Tensor:   "target",
			Expected: tensor.Shape{c.Attended.Batch(), targets.Len()},
			Actual:   targets.Shape(),
		}
	}
	return nil
}

// FeedforwardParameters returns the readout, feedback fork and state
// initializer parameters.
func (d *Decoder) FeedforwardParameters() []*nn.Parameter {
	return nn.CollectParameters(d.Generator.Readout, d.Generator.Fork, d.Initializer)
}

// RecurrentParameters returns the transition GRU weights, without the state
// initializer.
func (d *Decoder) RecurrentParameters() []*nn.Parameter {
	params := d.Generator.Transition.Parameters()
	return params[:len(params)-len(d.Initializer.Parameters())]
}

// Parameters returns every decoder parameter.
func (d *Decoder) Parameters() []*nn.Parameter {
	return d.Generator.Parameters()
}
