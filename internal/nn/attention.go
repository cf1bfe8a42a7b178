package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/nmt/internal/tensor"
	"gonum.org/v1/gonum/mat"
)

// SequenceContentAttention scores every attended step against the decoder
// state and averages the attended vectors with the resulting weights.
//
// Architecture (Bahdanau-style additive attention):
//
//	energies[t, b] = v · tanh(attended[t, b] @ W_a + b_a + state[b] @ U_a)
//	weights[:, b]  = masked softmax of energies[:, b] over time
//	glimpse[b]     = sum_t weights[t, b] * attended[t, b]
//
// W_a, b_a is the preprocessor (applied once per sequence), U_a the state
// transformer and v the energy computer.
type SequenceContentAttention struct {
	stateDim    int
	attendedDim int
	matchDim    int

	Preprocessor     *Linear // [attendedDim, matchDim] with bias
	StateTransformer *Linear // [stateDim, matchDim], no bias
	EnergyComputer   *Linear // [matchDim, 1], no bias
}

// NewSequenceContentAttention creates an attention module.
//
// Parameters:
//   - name: Parameter name prefix
//   - stateDim: Decoder state dimension
//   - attendedDim: Feature dimension of the attended sequence
//   - matchDim: Dimension of the shared match space
//   - init: Initialization scheme
func NewSequenceContentAttention(name string, stateDim, attendedDim, matchDim int, init Init) *SequenceContentAttention {
	return &SequenceContentAttention{
		stateDim:         stateDim,
		attendedDim:      attendedDim,
		matchDim:         matchDim,
		Preprocessor:     NewLinear(name+"/preprocess", attendedDim, matchDim, true, init),
		StateTransformer: NewLinear(name+"/state_trans/transform_states", stateDim, matchDim, false, init),
		EnergyComputer:   NewLinear(name+"/energy_comp/linear", matchDim, 1, false, init),
	}
}

// AttendedDim returns the feature dimension of the attended sequence.
func (a *SequenceContentAttention) AttendedDim() int {
	return a.attendedDim
}

// Preprocess projects every attended step into the match space.
// The result only depends on the attended sequence and is reused across
// decoder steps.
func (a *SequenceContentAttention) Preprocess(attended tensor.Sequence) tensor.Sequence {
	if attended.Dim() != a.attendedDim {
		panic(fmt.Sprintf("SequenceContentAttention.Preprocess: expected %d attended features, got %d", a.attendedDim, attended.Dim()))
	}
	return a.Preprocessor.ForwardSeq(attended)
}

// TakeGlimpses computes the glimpse for one decoder step.
//
// Parameters:
//   - state: [batch, stateDim] current decoder state
//   - attended: (time, batch, attendedDim) encoder representation
//   - mask: time-major validity mask[t][b], nil when every position is valid
//
// Returns the glimpse [batch, attendedDim] and the weights [time, batch].
func (a *SequenceContentAttention) TakeGlimpses(state *mat.Dense, attended tensor.Sequence, mask [][]float64) (glimpse, weights *mat.Dense) {
	return a.TakeGlimpsesPreprocessed(state, attended, a.Preprocess(attended), mask)
}

// TakeGlimpsesPreprocessed is TakeGlimpses with the preprocessed attended
// sequence supplied by the caller.
func (a *SequenceContentAttention) TakeGlimpsesPreprocessed(state *mat.Dense, attended, preprocessed tensor.Sequence, mask [][]float64) (glimpse, weights *mat.Dense) {
	energies := a.ComputeEnergies(state, preprocessed)
	weights = MaskedSoftmax(energies, mask)
	return WeightedAverages(weights, attended), weights
}

// ComputeEnergies returns the unnormalized scores [time, batch].
func (a *SequenceContentAttention) ComputeEnergies(state *mat.Dense, preprocessed tensor.Sequence) *mat.Dense {
	batch, _ := state.Dims()
	if preprocessed.Batch() != batch {
		panic(fmt.Sprintf("SequenceContentAttention: state batch %d, attended batch %d", batch, preprocessed.Batch()))
	}
	transformed := a.StateTransformer.Forward(state)

	energies := mat.NewDense(preprocessed.Len(), batch, nil)
	match := mat.NewDense(batch, a.matchDim, nil)
	for t, pre := range preprocessed {
		match.Add(pre, transformed)
		Tanh(match)
		e := a.EnergyComputer.Forward(match) // [batch, 1]
		for b := 0; b < batch; b++ {
			energies.Set(t, b, e.At(b, 0))
		}
	}
	return energies
}

// MaskedSoftmax normalizes energies [time, batch] over time, per batch column,
// restricted to positions where mask[t][b] is nonzero.
//
// Masked positions get weight 0 and never enter the normalizer. The maximum
// is taken over valid positions only, so large masked energies cannot
// underflow the valid ones. A column with no valid position yields all-zero
// weights instead of NaN.
func MaskedSoftmax(energies *mat.Dense, mask [][]float64) *mat.Dense {
	time, batch := energies.Dims()
	if mask != nil && len(mask) != time {
		panic(fmt.Sprintf("MaskedSoftmax: %d mask steps for %d energy steps", len(mask), time))
	}
	valid := func(t, b int) float64 {
		if mask == nil {
			return 1
		}
		return mask[t][b]
	}

	weights := mat.NewDense(time, batch, nil)
	for b := 0; b < batch; b++ {
		maxVal := math.Inf(-1)
		for t := 0; t < time; t++ {
			if valid(t, b) != 0 && energies.At(t, b) > maxVal {
				maxVal = energies.At(t, b)
			}
		}
		if math.IsInf(maxVal, -1) {
			continue
		}

		var sum float64
		for t := 0; t < time; t++ {
			m := valid(t, b)
			if m == 0 {
				continue
			}
			w := math.Exp(energies.At(t, b)-maxVal) * m
			weights.Set(t, b, w)
			sum += w
		}
		if sum == 0 {
			continue
		}
		for t := 0; t < time; t++ {
			weights.Set(t, b, weights.At(t, b)/sum)
		}
	}
	return weights
}

// WeightedAverages returns sum_t weights[t, b] * attended[t][b] as [batch, dim].
func WeightedAverages(weights *mat.Dense, attended tensor.Sequence) *mat.Dense {
	time, batch := weights.Dims()
	if time != attended.Len() || batch != attended.Batch() {
		panic(fmt.Sprintf("WeightedAverages: weights (%d, %d) do not match attended %v", time, batch, attended.Shape()))
	}
	out := mat.NewDense(batch, attended.Dim(), nil)
	for t, step := range attended {
		for b := 0; b < batch; b++ {
			w := weights.At(t, b)
			if w == 0 {
				continue
			}
			dst := out.RawRowView(b)
			src := step.RawRowView(b)
			for j := range dst {
				dst[j] += w * src[j]
			}
		}
	}
	return out
}

// Parameters returns the preprocessor, state transformer and energy parameters.
func (a *SequenceContentAttention) Parameters() []*Parameter {
	return CollectParameters(a.Preprocessor, a.StateTransformer, a.EnergyComputer)
}
