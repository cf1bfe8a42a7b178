package generate

import (
	"math/rand"
	"testing"

	"github.com/born-ml/nmt/internal/nn"
	"github.com/born-ml/nmt/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const (
	testVocab    = 7
	testEOS      = testVocab - 1
	testHidden   = 6
	testAttended = 8
)

func newTestGenerator(seed int64) *nn.SequenceGenerator {
	init := nn.DefaultInit(0.5, seed)
	readout := nn.NewReadout("decoder/readout", nn.ReadoutDims{
		Vocab:    testVocab,
		Embed:    4,
		States:   testHidden,
		Glimpses: testAttended,
		Merged:   testHidden,
	}, init)
	transition := nn.NewGRU("decoder/transition", testHidden, init,
		nn.WithInitialStates(nn.NewLearnedInitialState("decoder/initializer", testAttended/2, testHidden, init)))
	attention := nn.NewSequenceContentAttention("decoder/attention", testHidden, testAttended, testHidden, init)
	return nn.NewSequenceGenerator("decoder", readout, transition, attention, init)
}

func testContext(gen *nn.SequenceGenerator, seed int64, time int) nn.Context {
	rng := rand.New(rand.NewSource(seed))
	seq := tensor.NewSequence(time, 1, testAttended)
	for _, step := range seq {
		data := step.RawMatrix().Data
		for i := range data {
			data[i] = rng.NormFloat64()
		}
	}
	return gen.NewContext(seq, nil)
}

// rescore returns the teacher-forced cost of tokens.
func rescore(t *testing.T, gen *nn.SequenceGenerator, c nn.Context, tokens []int) float64 {
	t.Helper()
	targets, err := tensor.TokensFromSlice(tokens, 1, len(tokens))
	require.NoError(t, err)
	return mat.Sum(gen.CostMatrix(c, targets, tensor.OnesMask(1, len(tokens))))
}

func TestBeamSearch_WidthOneIsGreedy(t *testing.T) {
	gen := newTestGenerator(3)
	c := testContext(gen, 4, 5)
	const maxLength = 10

	greedy := gen.Generate(c, maxLength, Greedy)
	want := greedy.Outputs.Row(0)
	wantCost := 0.0
	for i, y := range want {
		wantCost += greedy.Costs.At(i, 0)
		if y == testEOS {
			want = want[:i+1]
			break
		}
	}

	search := &BeamSearch{Generator: gen, BeamSize: 1, EOS: testEOS}
	hyps, err := search.Search(c, maxLength)
	require.NoError(t, err)
	require.Len(t, hyps, 1)
	assert.Equal(t, want, hyps[0].Tokens)
	assert.InDelta(t, wantCost, hyps[0].Cost, 1e-9)
	assert.Equal(t, want[len(want)-1] == testEOS, hyps[0].Finished)
}

func TestBeamSearch_CostsMatchTeacherForcing(t *testing.T) {
	for _, seed := range []int64{1, 2, 5} {
		gen := newTestGenerator(seed)
		c := testContext(gen, seed+10, 4)
		search := &BeamSearch{Generator: gen, BeamSize: 4, EOS: testEOS}

		hyps, err := search.Search(c, 8)
		require.NoError(t, err)
		require.NotEmpty(t, hyps)
		require.LessOrEqual(t, len(hyps), 4)

		for i, h := range hyps {
			require.NotEmpty(t, h.Tokens)
			assert.InDelta(t, rescore(t, gen, c, h.Tokens), h.Cost, 1e-9, "seed %d hyp %d", seed, i)
			if i > 0 {
				assert.LessOrEqual(t, hyps[i-1].Cost, h.Cost)
			}
			for j, y := range h.Tokens {
				if y == testEOS {
					assert.Equal(t, len(h.Tokens)-1, j, "EOS only at the end")
				}
			}
			if h.Finished {
				assert.Equal(t, testEOS, h.Tokens[len(h.Tokens)-1])
			} else {
				assert.Len(t, h.Tokens, 8)
			}
		}
	}
}

func TestBeamSearch_LengthNormalization(t *testing.T) {
	gen := newTestGenerator(7)
	c := testContext(gen, 8, 3)
	search := &BeamSearch{Generator: gen, BeamSize: 5, EOS: testEOS}

	hyps, err := search.Search(c, 6, WithLengthNormalization(true))
	require.NoError(t, err)
	for i := 1; i < len(hyps); i++ {
		assert.LessOrEqual(t, hyps[i-1].NormalizedCost(), hyps[i].NormalizedCost())
	}

	plain, err := search.Search(c, 6)
	require.NoError(t, err)
	assert.ElementsMatch(t, plain, hyps, "normalization only reorders")
}

func TestBeamSearch_Deterministic(t *testing.T) {
	gen := newTestGenerator(9)
	c := testContext(gen, 9, 4)
	search := &BeamSearch{Generator: gen, BeamSize: 3, EOS: testEOS}

	a, err := search.Search(c, 8)
	require.NoError(t, err)
	b, err := search.Search(c, 8)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBeamSearch_InvalidArguments(t *testing.T) {
	gen := newTestGenerator(1)
	c := testContext(gen, 1, 3)

	tests := []struct {
		name      string
		beam      int
		maxLength int
		ctx       nn.Context
	}{
		{"zero beam", 0, 5, c},
		{"zero length", 2, 0, c},
		{"batch of two", 2, 5, gen.NewContext(c.Attended.Tile(0, 2), nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			search := &BeamSearch{Generator: gen, BeamSize: tt.beam, EOS: testEOS}
			_, err := search.Search(tt.ctx, tt.maxLength)
			assert.ErrorIs(t, err, ErrBeam)
		})
	}
}

func TestTileContext_Mask(t *testing.T) {
	gen := newTestGenerator(1)
	c := testContext(gen, 1, 3)
	c.Mask = [][]float64{{1}, {1}, {0}}

	tiled := tileContext(c, 3)
	assert.Equal(t, [][]float64{{1, 1, 1}, {1, 1, 1}, {0, 0, 0}}, tiled.Mask)
	assert.Equal(t, tensor.Shape{3, 3, testAttended}, tiled.Attended.Shape())
	assert.Equal(t, c.Preprocessed[2].RawRowView(0), tiled.Preprocessed[2].RawRowView(2))
}

func TestSingleSentence(t *testing.T) {
	tokens, err := tensor.TokensFromRows([][]int{{1, 2, 3}, {4, 5, 0}})
	require.NoError(t, err)
	mask := tensor.MaskFromLengths([]int{3, 2}, 3)

	one, oneMask := SingleSentence(tokens, mask, 1)
	assert.Equal(t, []int{4, 5}, one.Row(0))
	assert.Equal(t, tensor.Shape{1, 2}, oneMask.Shape())
}
