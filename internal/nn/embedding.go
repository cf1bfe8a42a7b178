package nn

import (
	"fmt"

	"github.com/born-ml/nmt/internal/tensor"
	"gonum.org/v1/gonum/mat"
)

// LookupTable is a lookup table that maps token ids to dense vectors.
//
// Architecture:
//   - W: [Length, Dim] learnable parameter
//   - Apply: ids [n] -> embeddings [n, Dim]
type LookupTable struct {
	W      *Parameter // Embedding matrix [Length, Dim]
	Length int        // Vocabulary size
	Dim    int        // Embedding dimension
}

// NewLookupTable creates a lookup table initialized with init.Weights.
//
// The parameter is named "<name>.W".
func NewLookupTable(name string, length, dim int, init Init) *LookupTable {
	return &LookupTable{
		W:      NewParameter(name+".W", init.weights(length, dim)),
		Length: length,
		Dim:    dim,
	}
}

// Apply returns the embeddings of ids as a [len(ids), Dim] matrix.
//
// Negative ids are sentinels and embed to the zero vector. Panics if an id
// is at or above Length.
func (l *LookupTable) Apply(ids []int) *mat.Dense {
	out := mat.NewDense(len(ids), l.Dim, nil)
	for i, id := range ids {
		if id < 0 {
			continue
		}
		if id >= l.Length {
			panic(fmt.Sprintf("LookupTable.Apply: id %d at position %d out of range [0, %d)", id, i, l.Length))
		}
		out.SetRow(i, l.W.Value().RawRowView(id))
	}
	return out
}

// ApplyTokens embeds a (batch, time) token matrix into a time-major sequence.
func (l *LookupTable) ApplyTokens(tokens *tensor.Tokens) tensor.Sequence {
	out := make(tensor.Sequence, tokens.Len())
	for t := range out {
		out[t] = l.Apply(tokens.Step(t))
	}
	return out
}

// Parameters returns [W].
func (l *LookupTable) Parameters() []*Parameter {
	return []*Parameter{l.W}
}

// LookupFeedback embeds previously emitted tokens for the decoder.
//
// Negative ids are the "no previous token" sentinel used at the start of
// generation and map to the zero vector without touching the table. Ids at or
// above the vocabulary size are a caller error.
type LookupFeedback struct {
	Table *LookupTable
}

// NewLookupFeedback creates a feedback brick owning its own lookup table.
func NewLookupFeedback(name string, vocabSize, dim int, init Init) *LookupFeedback {
	return &LookupFeedback{Table: NewLookupTable(name, vocabSize, dim, init)}
}

// Dim returns the feedback dimension.
func (f *LookupFeedback) Dim() int {
	return f.Table.Dim
}

// Feedback embeds a flat list of ids into a [len(ids), Dim] matrix.
func (f *LookupFeedback) Feedback(ids []int) *mat.Dense {
	return f.Table.Apply(ids)
}

// FeedbackShape embeds an id tensor of arbitrary rank.
//
// ids holds the tensor row-major; the result is the flattened [N, Dim]
// matrix together with its logical shape, shape + (Dim,).
func (f *LookupFeedback) FeedbackShape(ids []int, shape tensor.Shape) (*mat.Dense, tensor.Shape) {
	if shape.NumElements() != len(ids) {
		panic(fmt.Sprintf("LookupFeedback.FeedbackShape: shape %v requires %d ids, got %d", shape, shape.NumElements(), len(ids)))
	}
	return f.Feedback(ids), shape.Append(f.Table.Dim)
}

// FeedbackTokens embeds a (batch, time) token matrix into a time-major sequence.
func (f *LookupFeedback) FeedbackTokens(tokens *tensor.Tokens) tensor.Sequence {
	out := make(tensor.Sequence, tokens.Len())
	for t := range out {
		out[t] = f.Feedback(tokens.Step(t))
	}
	return out
}

// Parameters returns the table parameters.
func (f *LookupFeedback) Parameters() []*Parameter {
	return f.Table.Parameters()
}
