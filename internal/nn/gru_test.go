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

// zeroRecurrent clears the recurrent weights so that with zero gate inputs
// both gates are 0.5 and s' = 0.5*tanh(x) + 0.5*s.
func zeroRecurrent(t *testing.T, g *nn.GRU) {
	t.Helper()
	for _, p := range g.Parameters() {
		require.NoError(t, p.Load(make([]float64, p.Size()), p.Shape()))
	}
}

func column(values ...float64) tensor.Sequence {
	seq := make(tensor.Sequence, len(values))
	for i, v := range values {
		seq[i] = mat.NewDense(1, 1, []float64{v})
	}
	return seq
}

func TestGRU_Step_Formula(t *testing.T) {
	g := nn.NewGRU("gru", 2, testInit(4))
	rng := rand.New(rand.NewSource(5))

	states := mat.NewDense(1, 2, []float64{0.3, -0.2})
	inputs := mat.NewDense(1, 2, []float64{rng.NormFloat64(), rng.NormFloat64()})
	gateInputs := mat.NewDense(1, 4, []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()})

	next := g.Step(states, inputs, gateInputs, nil)

	params := g.Parameters()
	u := params[0].Value()
	ug := params[1].Value()

	var gates mat.Dense
	gates.Mul(states, ug)
	gates.Add(&gates, gateInputs)
	sig := func(x float64) float64 { return 1 / (1 + math.Exp(-x)) }
	z := []float64{sig(gates.At(0, 0)), sig(gates.At(0, 1))}
	r := []float64{sig(gates.At(0, 2)), sig(gates.At(0, 3))}

	reset := mat.NewDense(1, 2, []float64{r[0] * states.At(0, 0), r[1] * states.At(0, 1)})
	var cand mat.Dense
	cand.Mul(reset, u)
	cand.Add(&cand, inputs)

	for j := 0; j < 2; j++ {
		h := math.Tanh(cand.At(0, j))
		want := z[j]*h + (1-z[j])*states.At(0, j)
		assert.InDelta(t, want, next.At(0, j), tol)
	}
}

func TestGRU_Step_ShapeMismatchPanics(t *testing.T) {
	g := nn.NewGRU("gru", 2, testInit(4))
	states := mat.NewDense(1, 2, nil)
	assert.Panics(t, func() { g.Step(states, mat.NewDense(1, 3, nil), mat.NewDense(1, 4, nil), nil) })
	assert.Panics(t, func() { g.Step(states, mat.NewDense(1, 2, nil), mat.NewDense(1, 2, nil), nil) })
	assert.Panics(t, func() { g.Step(states, mat.NewDense(1, 2, nil), mat.NewDense(1, 4, nil), []float64{1, 1}) })
}

func TestGRU_Apply_PaddingFreezesState(t *testing.T) {
	const dim = 3
	g := nn.NewGRU("gru", dim, testInit(8))
	rng := rand.New(rand.NewSource(9))

	inputs := randomSequence(rng, 4, 2, dim)
	gateInputs := randomSequence(rng, 4, 2, 2*dim)
	mask := tensor.MaskFromLengths([]int{4, 2}, 4).Steps()

	for _, reverse := range []bool{false, true} {
		out := g.Apply(inputs, gateInputs, mask, g.InitialState(2, nil), reverse)
		require.Equal(t, 4, out.Len())

		if !reverse {
			// Row 1 has two valid steps; later states repeat step 1.
			assert.Equal(t, out[1].RawRowView(1), out[2].RawRowView(1))
			assert.Equal(t, out[1].RawRowView(1), out[3].RawRowView(1))
			assert.NotEqual(t, out[2].RawRowView(0), out[3].RawRowView(0))
		} else {
			// Sweeping backward, the padded steps come first and keep the zero state.
			assert.Equal(t, []float64{0, 0, 0}, out[3].RawRowView(1))
			assert.Equal(t, []float64{0, 0, 0}, out[2].RawRowView(1))
		}
	}
}

func TestGRU_Apply_ReverseMatchesReversedInput(t *testing.T) {
	const dim = 2
	g := nn.NewGRU("gru", dim, testInit(10))
	rng := rand.New(rand.NewSource(11))

	inputs := randomSequence(rng, 5, 3, dim)
	gateInputs := randomSequence(rng, 5, 3, 2*dim)
	m := tensor.MaskFromLengths([]int{5, 3, 1}, 5)
	mask := m.Steps()

	reversedMask := make([][]float64, len(mask))
	for i := range mask {
		reversedMask[i] = mask[len(mask)-1-i]
	}

	got := g.Apply(inputs, gateInputs, mask, g.InitialState(3, nil), true)
	want := g.Apply(inputs.Reverse(), gateInputs.Reverse(), reversedMask, g.InitialState(3, nil), false).Reverse()
	for i := range got {
		assertDenseEqual(t, want[i], got[i], "step %d", i)
	}
}

func TestZeroStates(t *testing.T) {
	s := nn.ZeroStates{}.Initial("states", 3, 4, nil)
	r, c := s.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 4, c)

	placeholder := nn.ZeroStates{}.Initial("cells", 3, 0, nil)
	r, c = placeholder.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 1, c)
}

func TestLearnedInitialState(t *testing.T) {
	init := nn.NewLearnedInitialState("initializer", 2, 2, testInit(1))
	require.NoError(t, init.Transformer.Weight().Load([]float64{1, 0, 0, 1}, tensor.Shape{2, 2}))

	attended := tensor.Sequence{
		mat.NewDense(2, 4, []float64{
			9, 9, 0.5, -1,
			9, 9, 2, 0,
		}),
		mat.NewDense(2, 4, []float64{7, 7, 7, 7, 7, 7, 7, 7}),
	}

	g := nn.NewGRU("transition", 2, testInit(2), nn.WithInitialStates(init))
	s := g.InitialState(2, attended)

	// Only the last two features of the first step enter the projection.
	assert.InDelta(t, math.Tanh(0.5), s.At(0, 0), tol)
	assert.InDelta(t, math.Tanh(-1), s.At(0, 1), tol)
	assert.InDelta(t, math.Tanh(2), s.At(1, 0), tol)
	assert.InDelta(t, 0.0, s.At(1, 1), tol)

	t.Run("other states start at zero", func(t *testing.T) {
		other := g.Initial("cells", 2, 3, attended)
		assert.Equal(t, make([]float64, 6), other.RawMatrix().Data)
	})

	t.Run("no attended context", func(t *testing.T) {
		zero := g.InitialState(2, nil)
		assert.Equal(t, make([]float64, 4), zero.RawMatrix().Data)
	})

	t.Run("parameters include the initializer", func(t *testing.T) {
		names := make([]string, 0)
		for _, p := range g.Parameters() {
			names = append(names, p.Name())
		}
		assert.Contains(t, names, "initializer.W")
		assert.Contains(t, names, "initializer.b")
	})
}
