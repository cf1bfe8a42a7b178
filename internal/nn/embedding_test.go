package nn_test

import (
	"testing"

	"github.com/born-ml/nmt/internal/nn"
	"github.com/born-ml/nmt/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupTable_Apply(t *testing.T) {
	table := nn.NewLookupTable("emb", 3, 2, testInit(1))
	require.NoError(t, table.W.Load([]float64{
		1, 2,
		3, 4,
		5, 6,
	}, tensor.Shape{3, 2}))

	out := table.Apply([]int{2, 0})
	assert.Equal(t, []float64{5, 6, 1, 2}, out.RawMatrix().Data)

	assert.Panics(t, func() { table.Apply([]int{3}) })
}

func TestLookupTable_SentinelTokens(t *testing.T) {
	table := nn.NewLookupTable("emb", 3, 2, testInit(1))
	tokens, err := tensor.TokensFromRows([][]int{{1, -1}, {-5, 2}})
	require.NoError(t, err)

	seq := table.ApplyTokens(tokens)
	require.Len(t, seq, 2)
	assert.Equal(t, table.W.Value().RawRowView(1), seq[0].RawRowView(0))
	assert.Equal(t, []float64{0, 0}, seq[0].RawRowView(1))
	assert.Equal(t, []float64{0, 0}, seq[1].RawRowView(0))
	assert.Equal(t, table.W.Value().RawRowView(2), seq[1].RawRowView(1))
}

func TestLookupFeedback_SentinelIsZero(t *testing.T) {
	fb := nn.NewLookupFeedback("fb", 4, 3, testInit(7))

	// Whatever the table holds, negative ids produce exact zeros.
	for _, id := range []int{-1, -2, -100} {
		row := fb.Feedback([]int{id}).RawRowView(0)
		assert.Equal(t, []float64{0, 0, 0}, row, "id %d", id)
	}

	out := fb.Feedback([]int{1, -1, 3})
	assert.Equal(t, fb.Table.W.Value().RawRowView(1), out.RawRowView(0))
	assert.Equal(t, []float64{0, 0, 0}, out.RawRowView(1))
	assert.Equal(t, fb.Table.W.Value().RawRowView(3), out.RawRowView(2))
}

func TestLookupFeedback_OutOfRangePanics(t *testing.T) {
	fb := nn.NewLookupFeedback("fb", 4, 3, testInit(7))
	assert.Panics(t, func() { fb.Feedback([]int{4}) })
}

func TestLookupFeedback_FeedbackShape(t *testing.T) {
	fb := nn.NewLookupFeedback("fb", 5, 2, testInit(2))

	out, shape := fb.FeedbackShape([]int{0, -1, 2, 3, -1, 4}, tensor.Shape{2, 3})
	assert.Equal(t, tensor.Shape{2, 3, 2}, shape)
	rows, cols := out.Dims()
	assert.Equal(t, 6, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, []float64{0, 0}, out.RawRowView(1))
	assert.Equal(t, []float64{0, 0}, out.RawRowView(4))

	assert.Panics(t, func() { fb.FeedbackShape([]int{0, 1}, tensor.Shape{3}) })
}

func TestLookupFeedback_FeedbackTokens(t *testing.T) {
	fb := nn.NewLookupFeedback("fb", 5, 2, testInit(2))
	tokens, err := tensor.TokensFromRows([][]int{{1, 2, -1}, {3, -1, -1}})
	require.NoError(t, err)

	seq := fb.FeedbackTokens(tokens)
	assert.Equal(t, tensor.Shape{3, 2, 2}, seq.Shape())
	assert.Equal(t, fb.Table.W.Value().RawRowView(3), seq[0].RawRowView(1))
	assert.Equal(t, []float64{0, 0}, seq[1].RawRowView(1))
}
