package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Sequence is a time-major 3-D tensor (time, batch, features): one
// (batch, features) matrix per time step.
type Sequence []*mat.Dense

// NewSequence allocates a zero-filled (time, batch, dim) sequence.
func NewSequence(time, batch, dim int) Sequence {
	s := make(Sequence, time)
	for t := range s {
		s[t] = mat.NewDense(batch, dim, nil)
	}
	return s
}

// Len returns the number of time steps.
func (s Sequence) Len() int { return len(s) }

// Batch returns the batch size (0 for an empty sequence).
func (s Sequence) Batch() int {
	if len(s) == 0 {
		return 0
	}
	r, _ := s[0].Dims()
	return r
}

// Dim returns the feature dimension (0 for an empty sequence).
func (s Sequence) Dim() int {
	if len(s) == 0 {
		return 0
	}
	_, c := s[0].Dims()
	return c
}

// Shape returns (time, batch, features).
func (s Sequence) Shape() Shape { return Shape{s.Len(), s.Batch(), s.Dim()} }

// Reverse returns the steps in reverse time order. Matrices are shared, not copied.
func (s Sequence) Reverse() Sequence {
	out := make(Sequence, len(s))
	for t := range s {
		out[len(s)-1-t] = s[t]
	}
	return out
}

// Concat joins s and other along the feature axis, s first.
// Panics if the sequences differ in length or batch size.
func (s Sequence) Concat(other Sequence) Sequence {
	if s.Len() != other.Len() || s.Batch() != other.Batch() {
		panic(fmt.Sprintf("Sequence.Concat: shapes %v and %v disagree on (time, batch)", s.Shape(), other.Shape()))
	}
	out := make(Sequence, len(s))
	for t := range s {
		var joined mat.Dense
		joined.Augment(s[t], other[t])
		out[t] = &joined
	}
	return out
}

// Slice returns features [from, to) of every step as copies.
func (s Sequence) Slice(from, to int) Sequence {
	out := make(Sequence, len(s))
	for t := range s {
		out[t] = mat.DenseCopyOf(s[t].Slice(0, s.Batch(), from, to))
	}
	return out
}

// Tile returns a sequence whose batch consists of n copies of row b.
// Used to expand a single source sentence across beam hypotheses.
func (s Sequence) Tile(b, n int) Sequence {
	out := make(Sequence, len(s))
	for t := range s {
		row := s[t].RawRowView(b)
		m := mat.NewDense(n, len(row), nil)
		for i := 0; i < n; i++ {
			m.SetRow(i, row)
		}
		out[t] = m
	}
	return out
}
