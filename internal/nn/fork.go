package nn

import (
	"github.com/born-ml/nmt/internal/tensor"
	"gonum.org/v1/gonum/mat"
)

// Fork projects one input into the two sequences a GRU consumes:
// "inputs" (dim features) and "gate_inputs" (2*dim features).
type Fork struct {
	Inputs *Linear
	Gates  *Linear
}

// NewFork creates a fork from inputDim features to a GRU of dimension dim.
//
// Parameters are named "<name>/fork_inputs.*" and "<name>/fork_gate_inputs.*".
func NewFork(name string, inputDim, dim int, useBias bool, init Init) *Fork {
	return &Fork{
		Inputs: NewLinear(name+"/fork_inputs", inputDim, dim, useBias, init),
		Gates:  NewLinear(name+"/fork_gate_inputs", inputDim, 2*dim, useBias, init),
	}
}

// Forward projects a single step.
func (f *Fork) Forward(x *mat.Dense) (inputs, gates *mat.Dense) {
	return f.Inputs.Forward(x), f.Gates.Forward(x)
}

// ForwardSeq projects every step of a sequence.
func (f *Fork) ForwardSeq(xs tensor.Sequence) (inputs, gates tensor.Sequence) {
	return f.Inputs.ForwardSeq(xs), f.Gates.ForwardSeq(xs)
}

// Parameters returns the parameters of both projections.
func (f *Fork) Parameters() []*Parameter {
	return CollectParameters(f.Inputs, f.Gates)
}
