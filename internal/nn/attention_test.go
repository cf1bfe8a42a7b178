package nn_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/born-ml/nmt/internal/nn"
	"github.com/born-ml/nmt/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestMaskedSoftmax_RandomMasks(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	const time, batch = 6, 5

	for trial := 0; trial < 50; trial++ {
		energies := mat.NewDense(time, batch, nil)
		for i := range energies.RawMatrix().Data {
			energies.RawMatrix().Data[i] = 10 * rng.NormFloat64()
		}
		lengths := make([]int, batch)
		for b := range lengths {
			lengths[b] = 1 + rng.Intn(time)
		}
		mask := tensor.MaskFromLengths(lengths, time).Steps()

		w := nn.MaskedSoftmax(energies, mask)
		for b := 0; b < batch; b++ {
			var sum float64
			for i := 0; i < time; i++ {
				v := w.At(i, b)
				if i >= lengths[b] {
					assert.Equal(t, 0.0, v, "masked weight (trial %d, t=%d, b=%d)", trial, i, b)
					continue
				}
				assert.GreaterOrEqual(t, v, 0.0)
				sum += v
			}
			assert.InDelta(t, 1.0, sum, 1e-9)
		}
	}
}

func TestMaskedSoftmax_AllMaskedIsZero(t *testing.T) {
	energies := mat.NewDense(3, 2, []float64{
		1, 1000,
		2, 2000,
		3, 3000,
	})
	mask := [][]float64{{1, 0}, {1, 0}, {0, 0}}

	w := nn.MaskedSoftmax(energies, mask)
	for i := 0; i < 3; i++ {
		assert.Equal(t, 0.0, w.At(i, 1))
		assert.False(t, math.IsNaN(w.At(i, 0)))
	}
	assert.InDelta(t, 1.0, w.At(0, 0)+w.At(1, 0), 1e-12)
	assert.Equal(t, 0.0, w.At(2, 0))
}

func TestMaskedSoftmax_LargeMaskedEnergyIgnored(t *testing.T) {
	// A huge energy at a padded position must not underflow the valid ones.
	energies := mat.NewDense(3, 1, []float64{0, 1, 1e6})
	w := nn.MaskedSoftmax(energies, [][]float64{{1}, {1}, {0}})

	e := math.Exp(1)
	assert.InDelta(t, 1/(1+e), w.At(0, 0), 1e-12)
	assert.InDelta(t, e/(1+e), w.At(1, 0), 1e-12)
	assert.Equal(t, 0.0, w.At(2, 0))
}

func TestSequenceContentAttention_TakeGlimpses(t *testing.T) {
	const time, batch, stateDim, attDim = 4, 3, 5, 6
	att := nn.NewSequenceContentAttention("attention", stateDim, attDim, 7, testInit(22))
	rng := rand.New(rand.NewSource(23))

	attended := randomSequence(rng, time, batch, attDim)
	state := randomSequence(rng, 1, batch, stateDim)[0]
	mask := tensor.MaskFromLengths([]int{4, 2, 0}, time).Steps()

	glimpse, weights := att.TakeGlimpses(state, attended, mask)

	r, c := weights.Dims()
	require.Equal(t, time, r)
	require.Equal(t, batch, c)
	r, c = glimpse.Dims()
	require.Equal(t, batch, r)
	require.Equal(t, attDim, c)

	// Glimpse equals the weighted sum of the attended vectors.
	for b := 0; b < batch; b++ {
		want := make([]float64, attDim)
		for i := 0; i < time; i++ {
			for j := range want {
				want[j] += weights.At(i, b) * attended[i].At(b, j)
			}
		}
		assert.InDeltaSlice(t, want, glimpse.RawRowView(b), 1e-12)
	}

	// Row 2 is fully masked: zero weights and zero glimpse, no NaN.
	assert.Equal(t, make([]float64, attDim), glimpse.RawRowView(2))
	assert.Equal(t, 0.0, weights.At(2, 1))
	assert.Equal(t, 0.0, weights.At(3, 1))

	t.Run("preprocessed path matches", func(t *testing.T) {
		g2, w2 := att.TakeGlimpsesPreprocessed(state, attended, att.Preprocess(attended), mask)
		assertDenseEqual(t, glimpse, g2)
		assertDenseEqual(t, weights, w2)
	})

	t.Run("energies follow the additive form", func(t *testing.T) {
		energies := att.ComputeEnergies(state, att.Preprocess(attended))
		pre := att.Preprocessor.Forward(attended[1])
		trans := att.StateTransformer.Forward(state)
		v := att.EnergyComputer.Weight().Value()
		var e float64
		for j := 0; j < 7; j++ {
			e += v.At(j, 0) * math.Tanh(pre.At(0, j)+trans.At(0, j))
		}
		assert.InDelta(t, e, energies.At(1, 0), 1e-12)
	})
}

func TestSequenceContentAttention_ShapeMismatchPanics(t *testing.T) {
	att := nn.NewSequenceContentAttention("attention", 2, 3, 4, testInit(1))
	rng := rand.New(rand.NewSource(1))
	attended := randomSequence(rng, 2, 2, 5)
	assert.Panics(t, func() { att.TakeGlimpses(mat.NewDense(2, 2, nil), attended, nil) })

	good := randomSequence(rng, 2, 2, 3)
	assert.Panics(t, func() { att.TakeGlimpses(mat.NewDense(3, 2, nil), good, nil) })
}
