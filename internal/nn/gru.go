package nn

import (
	"fmt"

	"github.com/born-ml/nmt/internal/tensor"
	"gonum.org/v1/gonum/mat"
)

// StatesName is the name of the GRU hidden state.
const StatesName = "states"

// InitialStates supplies the value a recurrent state variable starts from.
//
// Implementations receive the attended representation when the cell runs
// inside an attention decoder and nil otherwise.
type InitialStates interface {
	// Initial returns the starting value of state name for a batch.
	// A dimension of 0 denotes a placeholder state, returned as a
	// (batch, 1) zero column.
	Initial(name string, batch, dim int, attended tensor.Sequence) *mat.Dense
}

// ZeroStates starts every state at zero.
type ZeroStates struct{}

// Initial implements InitialStates.
func (ZeroStates) Initial(_ string, batch, dim int, _ tensor.Sequence) *mat.Dense {
	if dim == 0 {
		return mat.NewDense(batch, 1, nil)
	}
	return mat.NewDense(batch, dim, nil)
}

// LearnedInitialState projects the attended representation into the
// decoder's starting hidden state:
//
//	states_0 = tanh(attended[0, :, -Features:] @ W + b)
//
// With a bidirectional encoder the last Features columns of the first step
// are the backward sweep's summary of the whole sentence. States other than
// StatesName, and calls without an attended context, start at zero.
type LearnedInitialState struct {
	Transformer *Linear
	Features    int
}

// NewLearnedInitialState creates the initializer MLP (features -> dim, tanh).
func NewLearnedInitialState(name string, features, dim int, init Init) *LearnedInitialState {
	return &LearnedInitialState{
		Transformer: NewLinear(name, features, dim, true, init),
		Features:    features,
	}
}

// Initial implements InitialStates.
func (l *LearnedInitialState) Initial(name string, batch, dim int, attended tensor.Sequence) *mat.Dense {
	if name != StatesName || attended.Len() == 0 {
		return ZeroStates{}.Initial(name, batch, dim, attended)
	}
	width := attended.Dim()
	if width < l.Features {
		panic(fmt.Sprintf("LearnedInitialState: attended has %d features, need at least %d", width, l.Features))
	}
	first := mat.DenseCopyOf(attended[0].Slice(0, attended.Batch(), width-l.Features, width))
	return Tanh(l.Transformer.Forward(first))
}

// Parameters returns the initializer parameters.
func (l *LearnedInitialState) Parameters() []*Parameter {
	return l.Transformer.Parameters()
}

// GRU is a gated recurrent unit.
//
// Update rule for one step, with gate_inputs = [update | reset] projections of
// the input:
//
//	z  = sigmoid(gate_inputs[:, :dim] + s @ U_z)
//	r  = sigmoid(gate_inputs[:, dim:] + s @ U_r)
//	h~ = tanh((r * s) @ U + inputs)
//	s' = z * h~ + (1 - z) * s
//
// Rows whose mask is 0 keep their previous state.
type GRU struct {
	name         string
	dim          int
	stateToState *Parameter // U: [dim, dim]
	stateToGates *Parameter // [U_z | U_r]: [dim, 2*dim]
	initial      InitialStates
}

// GRUOption configures a GRU.
type GRUOption func(*GRU)

// WithInitialStates replaces the zero initial state with s.
func WithInitialStates(s InitialStates) GRUOption {
	return func(g *GRU) {
		g.initial = s
	}
}

// NewGRU creates a GRU of dimension dim.
//
// Each [dim, dim] block of the recurrent weights is drawn separately from
// init.Recurrent.
func NewGRU(name string, dim int, init Init, opts ...GRUOption) *GRU {
	var gates mat.Dense
	gates.Augment(init.recurrent(dim), init.recurrent(dim))

	g := &GRU{
		name:         name,
		dim:          dim,
		stateToState: NewParameter(name+".state_to_state", init.recurrent(dim)),
		stateToGates: NewParameter(name+".state_to_gates", mat.DenseCopyOf(&gates)),
		initial:      ZeroStates{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Dim returns the hidden dimension.
func (g *GRU) Dim() int {
	return g.dim
}

// InitialState returns the starting hidden state for a batch.
func (g *GRU) InitialState(batch int, attended tensor.Sequence) *mat.Dense {
	return g.initial.Initial(StatesName, batch, g.dim, attended)
}

// Initial returns the starting value of any named state through the
// configured strategy.
func (g *GRU) Initial(name string, batch, dim int, attended tensor.Sequence) *mat.Dense {
	return g.initial.Initial(name, batch, dim, attended)
}

// Step advances the hidden state by one time step.
//
// Parameters:
//   - states: [batch, dim] previous hidden state
//   - inputs: [batch, dim] candidate input projection
//   - gateInputs: [batch, 2*dim] update and reset input projections
//   - mask: per-row validity, nil when every row is valid
//
// Returns the next hidden state [batch, dim].
func (g *GRU) Step(states, inputs, gateInputs *mat.Dense, mask []float64) *mat.Dense {
	batch, dim := states.Dims()
	if dim != g.dim {
		panic(fmt.Sprintf("GRU.Step(%s): expected state with %d features, got %d", g.name, g.dim, dim))
	}
	if r, c := inputs.Dims(); r != batch || c != g.dim {
		panic(fmt.Sprintf("GRU.Step(%s): inputs shape (%d, %d), want (%d, %d)", g.name, r, c, batch, g.dim))
	}
	if r, c := gateInputs.Dims(); r != batch || c != 2*g.dim {
		panic(fmt.Sprintf("GRU.Step(%s): gate inputs shape (%d, %d), want (%d, %d)", g.name, r, c, batch, 2*g.dim))
	}
	if mask != nil && len(mask) != batch {
		panic(fmt.Sprintf("GRU.Step(%s): mask has %d rows, want %d", g.name, len(mask), batch))
	}

	gates := mat.NewDense(batch, 2*g.dim, nil)
	gates.Mul(states, g.stateToGates.Value())
	gates.Add(gates, gateInputs)
	Sigmoid(gates)

	reset := mat.NewDense(batch, g.dim, nil)
	for b := 0; b < batch; b++ {
		s := states.RawRowView(b)
		r := gates.RawRowView(b)[g.dim:]
		dst := reset.RawRowView(b)
		for j := range dst {
			dst[j] = s[j] * r[j]
		}
	}

	candidate := mat.NewDense(batch, g.dim, nil)
	candidate.Mul(reset, g.stateToState.Value())
	candidate.Add(candidate, inputs)
	Tanh(candidate)

	next := mat.NewDense(batch, g.dim, nil)
	for b := 0; b < batch; b++ {
		s := states.RawRowView(b)
		dst := next.RawRowView(b)
		if mask != nil && mask[b] == 0 {
			copy(dst, s)
			continue
		}
		z := gates.RawRowView(b)[:g.dim]
		h := candidate.RawRowView(b)
		for j := range dst {
			dst[j] = z[j]*h[j] + (1-z[j])*s[j]
		}
		if mask != nil && mask[b] != 1 {
			m := mask[b]
			for j := range dst {
				dst[j] = m*dst[j] + (1-m)*s[j]
			}
		}
	}
	return next
}

// Apply runs the GRU over a whole sequence.
//
// mask is time-major (mask[t][b]) and may be nil. With reverse set the sweep
// runs from the last step to the first, which is the same as applying the GRU
// to the time-reversed sequence with the time-reversed mask and reversing the
// result; the output is always in original time order.
//
// Returns the hidden state after every step.
func (g *GRU) Apply(inputs, gateInputs tensor.Sequence, mask [][]float64, initial *mat.Dense, reverse bool) tensor.Sequence {
	if inputs.Len() != gateInputs.Len() {
		panic(fmt.Sprintf("GRU.Apply(%s): %d input steps, %d gate input steps", g.name, inputs.Len(), gateInputs.Len()))
	}
	if mask != nil && len(mask) != inputs.Len() {
		panic(fmt.Sprintf("GRU.Apply(%s): %d mask steps for %d input steps", g.name, len(mask), inputs.Len()))
	}

	out := make(tensor.Sequence, inputs.Len())
	states := initial
	for i := range inputs {
		t := i
		if reverse {
			t = inputs.Len() - 1 - i
		}
		var m []float64
		if mask != nil {
			m = mask[t]
		}
		states = g.Step(states, inputs[t], gateInputs[t], m)
		out[t] = states
	}
	return out
}

// Parameters returns the recurrent weights and any parameters of the
// initial-state strategy.
func (g *GRU) Parameters() []*Parameter {
	params := []*Parameter{g.stateToState, g.stateToGates}
	if m, ok := g.initial.(Module); ok {
		params = append(params, m.Parameters()...)
	}
	return params
}
