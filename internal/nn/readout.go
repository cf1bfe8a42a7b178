package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// MaxoutPieces is the number of pieces the readout maxout reduces over.
const MaxoutPieces = 2

// ReadoutDims describes the sizes of a Readout.
type ReadoutDims struct {
	Vocab    int // Output vocabulary size
	Embed    int // Target embedding dimension (feedback and softmax0 output)
	States   int // Decoder hidden dimension
	Glimpses int // Attended feature dimension
	Merged   int // Merge dimension, must be divisible by MaxoutPieces
}

// Readout maps (state, feedback, glimpse) to vocabulary logits.
//
// Architecture:
//
//	merged = states @ W_s + feedback @ W_f + glimpses @ W_g   (no biases)
//	h      = maxout(merged + b, 2)                            [batch, Merged/2]
//	logits = (h @ W_0) @ W_1 + b_1                            [batch, Vocab]
//
// The readout also owns the feedback lookup that embeds previously emitted
// tokens.
type Readout struct {
	dims ReadoutDims

	Feedback      *LookupFeedback
	MergeStates   *Linear
	MergeFeedback *Linear
	MergeGlimpses *Linear
	MaxoutBias    *Parameter // [1, Merged]
	Softmax0      *Linear    // [Merged/2, Embed], no bias
	Softmax1      *Linear    // [Embed, Vocab] with bias
}

// NewReadout creates a readout head.
func NewReadout(name string, dims ReadoutDims, init Init) *Readout {
	if dims.Merged%MaxoutPieces != 0 {
		panic(fmt.Sprintf("NewReadout: merged dimension %d is not divisible by %d", dims.Merged, MaxoutPieces))
	}
	return &Readout{
		dims:          dims,
		Feedback:      NewLookupFeedback(name+"/lookupfeedback/lookuptable", dims.Vocab, dims.Embed, init),
		MergeStates:   NewLinear(name+"/merge/transform_states", dims.States, dims.Merged, false, init),
		MergeFeedback: NewLinear(name+"/merge/transform_feedback", dims.Embed, dims.Merged, false, init),
		MergeGlimpses: NewLinear(name+"/merge/transform_weighted_averages", dims.Glimpses, dims.Merged, false, init),
		MaxoutBias:    NewParameter(name+"/post_merge/bias.b", init.biases(dims.Merged)),
		Softmax0:      NewLinear(name+"/post_merge/softmax0", dims.Merged/MaxoutPieces, dims.Embed, false, init),
		Softmax1:      NewLinear(name+"/post_merge/softmax1", dims.Embed, dims.Vocab, true, init),
	}
}

// Dims returns the readout sizes.
func (r *Readout) Dims() ReadoutDims {
	return r.dims
}

// Feed embeds previously emitted tokens; negative ids give zero rows.
func (r *Readout) Feed(outputs []int) *mat.Dense {
	return r.Feedback.Feedback(outputs)
}

// Logits computes vocabulary logits for one decoder step.
//
// Parameters:
//   - states: [batch, States] decoder state the step starts from
//   - feedback: [batch, Embed] embedding of the previous token
//   - glimpses: [batch, Glimpses] attention glimpse of this step
//   - dropout: applied to the maxout output, nil to disable
//
// Returns logits [batch, Vocab].
func (r *Readout) Logits(states, feedback, glimpses *mat.Dense, dropout *Dropout) *mat.Dense {
	merged := r.MergeStates.Forward(states)
	merged.Add(merged, r.MergeFeedback.Forward(feedback))
	merged.Add(merged, r.MergeGlimpses.Forward(glimpses))
	addRow(merged, r.MaxoutBias.Data())

	h := dropout.Apply(Maxout(merged, MaxoutPieces))
	return r.Softmax1.Forward(r.Softmax0.Forward(h))
}

// Cost returns the negative log-likelihood of outputs under logits, per row.
func (r *Readout) Cost(logits *mat.Dense, outputs []int) []float64 {
	return CategoricalCrossEntropy(logits, outputs)
}

// Parameters returns every readout parameter, feedback table included.
func (r *Readout) Parameters() []*Parameter {
	params := CollectParameters(r.Feedback, r.MergeStates, r.MergeFeedback, r.MergeGlimpses)
	params = append(params, r.MaxoutBias)
	return append(params, CollectParameters(r.Softmax0, r.Softmax1)...)
}
