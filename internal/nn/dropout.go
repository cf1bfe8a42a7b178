package nn

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Dropout zeroes each activation with probability Rate and scales the
// survivors by 1/(1-Rate), so the expected activation is unchanged.
//
// Dropout holds its own random source and is not safe for concurrent use.
type Dropout struct {
	Rate float64
	rng  *rand.Rand
}

// NewDropout creates a dropout transform. rate must lie in [0, 1).
func NewDropout(rate float64, seed int64) *Dropout {
	if rate < 0 || rate >= 1 {
		panic(fmt.Sprintf("NewDropout: rate must be in [0, 1), got %g", rate))
	}
	return &Dropout{
		Rate: rate,
		rng:  rand.New(rand.NewSource(seed)), //nolint:gosec // Reproducible masks
	}
}

// Apply drops activations of m in place and returns m.
func (d *Dropout) Apply(m *mat.Dense) *mat.Dense {
	if d == nil || d.Rate == 0 {
		return m
	}
	keep := 1 - d.Rate
	rows, _ := m.Dims()
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		for j := range row {
			if d.rng.Float64() < d.Rate {
				row[j] = 0
			} else {
				row[j] /= keep
			}
		}
	}
	return m
}
