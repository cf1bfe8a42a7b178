package nn_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/born-ml/nmt/internal/nn"
	"github.com/born-ml/nmt/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	genVocab    = 7
	genEmbed    = 4
	genHidden   = 6
	genAttended = 8
)

func newTestGenerator(seed int64) *nn.SequenceGenerator {
	init := testInit(seed)
	readout := nn.NewReadout("decoder/readout", nn.ReadoutDims{
		Vocab:    genVocab,
		Embed:    genEmbed,
		States:   genHidden,
		Glimpses: genAttended,
		Merged:   genHidden,
	}, init)
	transition := nn.NewGRU("decoder/transition", genHidden, init,
		nn.WithInitialStates(nn.NewLearnedInitialState("decoder/initializer", genAttended/2, genHidden, init)))
	attention := nn.NewSequenceContentAttention("decoder/attention", genHidden, genAttended, genHidden, init)
	return nn.NewSequenceGenerator("decoder", readout, transition, attention, init)
}

var argmax = nn.EmitterFunc(func(logits *mat.Dense) []int {
	rows, _ := logits.Dims()
	out := make([]int, rows)
	for b := range out {
		out[b] = floats.MaxIdx(logits.RawRowView(b))
	}
	return out
})

func randomTargets(rng *rand.Rand, batch, time int) *tensor.Tokens {
	tokens := tensor.NewTokens(batch, time)
	for b := 0; b < batch; b++ {
		for i := 0; i < time; i++ {
			tokens.Set(b, i, rng.Intn(genVocab))
		}
	}
	return tokens
}

func TestSequenceGenerator_CostMatchesReferenceNLL(t *testing.T) {
	gen := newTestGenerator(31)
	rng := rand.New(rand.NewSource(32))
	attended := randomSequence(rng, 3, 2, genAttended)
	ctx := gen.NewContext(attended, nil)
	targets := randomTargets(rng, 2, 4)

	logits := gen.ForcedLogits(ctx, targets, nil)
	require.Len(t, logits, 4)

	var total float64
	for step, l := range logits {
		for b := 0; b < 2; b++ {
			probs := nn.Softmax(l.RawRowView(b))
			total -= math.Log(probs[targets.At(b, step)])
		}
	}
	want := total / 8

	assert.InDelta(t, want, gen.Cost(ctx, targets, tensor.OnesMask(2, 4)), 1e-9)
	assert.InDelta(t, want, gen.Cost(ctx, targets, nil), 1e-9)
}

func TestSequenceGenerator_FirstStepUsesInitialState(t *testing.T) {
	gen := newTestGenerator(33)
	rng := rand.New(rand.NewSource(34))
	attended := randomSequence(rng, 5, 2, genAttended)
	ctx := gen.NewContext(attended, nil)

	run := gen.Start(ctx)
	assert.Equal(t, nn.PhaseInitial, run.Phase())
	assert.Equal(t, []int{nn.InitialOutput, nn.InitialOutput}, run.State().Outputs)

	states := gen.Transition.InitialState(2, attended)
	glimpses, _ := gen.Attention.TakeGlimpses(states, attended, nil)
	want := gen.Readout.Logits(states, mat.NewDense(2, genEmbed, nil), glimpses, nil)

	got, _, _ := run.Logits()
	assertDenseEqual(t, want, got)
}

func TestSequenceGenerator_MaskedTargets(t *testing.T) {
	gen := newTestGenerator(35)
	rng := rand.New(rand.NewSource(36))
	attended := randomSequence(rng, 3, 2, genAttended)
	ctx := gen.NewContext(attended, nil)

	targets := randomTargets(rng, 2, 4)
	// Padding ids are never looked up, even when out of range.
	targets.Set(1, 2, genVocab+10)
	targets.Set(1, 3, -1)
	mask := tensor.MaskFromLengths([]int{4, 2}, 4)

	costs := gen.CostMatrix(ctx, targets, mask)
	assert.Equal(t, 0.0, costs.At(2, 1))
	assert.Equal(t, 0.0, costs.At(3, 1))
	assert.InDelta(t, mat.Sum(costs)/6, gen.Cost(ctx, targets, mask), 1e-12)

	// Rows are independent: row 1 alone over its valid prefix gives the same costs.
	single := gen.NewContext(attended.Tile(1, 1), nil)
	prefix, err := tensor.TokensFromRows([][]int{{targets.At(1, 0), targets.At(1, 1)}})
	require.NoError(t, err)
	alone := gen.CostMatrix(single, prefix, nil)
	assert.InDelta(t, alone.At(0, 0), costs.At(0, 1), 1e-9)
	assert.InDelta(t, alone.At(1, 0), costs.At(1, 1), 1e-9)
}

func TestSequenceGenerator_EmptyMaskCostIsZero(t *testing.T) {
	gen := newTestGenerator(37)
	rng := rand.New(rand.NewSource(38))
	ctx := gen.NewContext(randomSequence(rng, 2, 1, genAttended), nil)

	targets := randomTargets(rng, 1, 3)
	assert.Equal(t, 0.0, gen.Cost(ctx, targets, tensor.NewMask(1, 3)))
}

func TestSequenceGenerator_GenerateIsDeterministic(t *testing.T) {
	gen := newTestGenerator(39)
	rng := rand.New(rand.NewSource(40))
	const sourceLen = 3
	attended := randomSequence(rng, sourceLen, 2, genAttended)
	ctx := gen.NewContext(attended, nil)

	first := gen.Generate(ctx, 2*sourceLen, argmax)
	second := gen.Generate(ctx, 2*sourceLen, argmax)

	assert.Equal(t, tensor.Shape{2, 2 * sourceLen}, first.Outputs.Shape())
	assert.Len(t, first.Logits, 2*sourceLen)
	assert.Len(t, first.Weights, 2*sourceLen)
	assert.Equal(t, first.Outputs.Data(), second.Outputs.Data())
	for _, id := range first.Outputs.Data() {
		assert.GreaterOrEqual(t, id, 0)
		assert.Less(t, id, genVocab)
	}
}

func TestSequenceGenerator_GenerateRoundTrip(t *testing.T) {
	gen := newTestGenerator(41)
	rng := rand.New(rand.NewSource(42))
	attended := randomSequence(rng, 4, 3, genAttended)
	mask := tensor.MaskFromLengths([]int{4, 3, 2}, 4).Steps()
	ctx := gen.NewContext(attended, mask)

	generation := gen.Generate(ctx, 8, argmax)

	// Teacher forcing with the greedy output replays the generator's logits.
	forced := gen.ForcedLogits(ctx, generation.Outputs, nil)
	require.Len(t, forced, len(generation.Logits))
	for step := range forced {
		assertDenseEqual(t, generation.Logits[step], forced[step], "step %d", step)
	}
	assertDenseEqual(t, generation.Costs, gen.CostMatrix(ctx, generation.Outputs, nil))
}

func TestRun_Phases(t *testing.T) {
	gen := newTestGenerator(43)
	rng := rand.New(rand.NewSource(44))
	run := gen.Start(gen.NewContext(randomSequence(rng, 2, 1, genAttended), nil))

	assert.Equal(t, nn.PhaseInitial, run.Phase())
	_, out := run.Step(argmax.Emit, nil)
	assert.Equal(t, nn.PhaseStep, run.Phase())
	assert.Equal(t, 1, run.Steps())
	assert.Equal(t, out, run.State().Outputs)

	run.Finish()
	assert.Equal(t, nn.PhaseDone, run.Phase())
	assert.Equal(t, "done", run.Phase().String())
	assert.Panics(t, func() { run.Logits() })
}

func TestRun_AttentionWeightsRespectMask(t *testing.T) {
	gen := newTestGenerator(45)
	rng := rand.New(rand.NewSource(46))
	mask := tensor.MaskFromLengths([]int{3, 1}, 3).Steps()
	generation := gen.Generate(gen.NewContext(randomSequence(rng, 3, 2, genAttended), mask), 6, argmax)

	for _, w := range generation.Weights {
		assert.InDelta(t, 1.0, w.At(0, 0)+w.At(1, 0)+w.At(2, 0), 1e-9)
		assert.InDelta(t, 1.0, w.At(0, 1), 1e-12)
		assert.Equal(t, 0.0, w.At(1, 1))
		assert.Equal(t, 0.0, w.At(2, 1))
	}
}

func TestSequenceGenerator_ParametersAreUnique(t *testing.T) {
	gen := newTestGenerator(47)
	names := make(map[string]bool)
	for _, p := range gen.Parameters() {
		assert.False(t, names[p.Name()], "duplicate parameter %s", p.Name())
		names[p.Name()] = true
	}
	assert.True(t, names["decoder/initializer.W"])
	assert.True(t, names["decoder/readout/post_merge/softmax1.b"])
}
