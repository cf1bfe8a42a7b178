package nn

import (
	"github.com/born-ml/nmt/internal/tensor"
)

// Bidirectional runs two independent GRUs over a sequence, one forward in
// time and one backward, and joins their states per step.
//
// Children()[0] is the forward network and Children()[1] the backward one;
// the concatenation order is (forward, backward), so features [0, dim) of the
// output come from the forward sweep and [dim, 2*dim) from the backward sweep.
type Bidirectional struct {
	Forward  *GRU
	Backward *GRU
}

// NewBidirectional creates two GRUs of dimension dim that share no parameters.
//
// Parameters are named "<name>/forward.*" and "<name>/backward.*".
func NewBidirectional(name string, dim int, init Init) *Bidirectional {
	return &Bidirectional{
		Forward:  NewGRU(name+"/forward", dim, init),
		Backward: NewGRU(name+"/backward", dim, init),
	}
}

// Children returns [forward, backward].
func (b *Bidirectional) Children() []*GRU {
	return []*GRU{b.Forward, b.Backward}
}

// Dim returns the dimension of one direction.
func (b *Bidirectional) Dim() int {
	return b.Forward.Dim()
}

// SweepInputs holds the projected inputs of one direction.
type SweepInputs struct {
	Inputs     tensor.Sequence // [time](batch, dim)
	GateInputs tensor.Sequence // [time](batch, 2*dim)
}

// Sweeps runs both directions and returns them separately, both in original
// time order. mask is time-major and may be nil.
func (b *Bidirectional) Sweeps(forward, backward SweepInputs, mask [][]float64) (fwd, bwd tensor.Sequence) {
	batch := forward.Inputs.Batch()
	fwd = b.Forward.Apply(forward.Inputs, forward.GateInputs, mask, b.Forward.InitialState(batch, nil), false)
	bwd = b.Backward.Apply(backward.Inputs, backward.GateInputs, mask, b.Backward.InitialState(batch, nil), true)
	return fwd, bwd
}

// Apply runs both directions and concatenates their states per step:
// out[t] = [fwd[t] | bwd[t]], shape (time, batch, 2*dim).
func (b *Bidirectional) Apply(forward, backward SweepInputs, mask [][]float64) tensor.Sequence {
	fwd, bwd := b.Sweeps(forward, backward, mask)
	return fwd.Concat(bwd)
}

// Parameters returns the parameters of both directions.
func (b *Bidirectional) Parameters() []*Parameter {
	return CollectParameters(b.Forward, b.Backward)
}
