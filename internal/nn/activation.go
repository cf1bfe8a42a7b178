package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Tanh applies tanh element-wise in place and returns m.
func Tanh(m *mat.Dense) *mat.Dense {
	rows, _ := m.Dims()
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		for j, v := range row {
			row[j] = math.Tanh(v)
		}
	}
	return m
}

// Sigmoid applies the logistic function element-wise in place and returns m.
func Sigmoid(m *mat.Dense) *mat.Dense {
	rows, _ := m.Dims()
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		for j, v := range row {
			row[j] = sigmoid(v)
		}
	}
	return m
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// Maxout takes the maximum over consecutive groups of pieces features:
// out[b, k] = max(x[b, k*pieces], ..., x[b, k*pieces+pieces-1]).
//
// Input shape: [batch, dim] with dim divisible by pieces.
// Output shape: [batch, dim/pieces].
func Maxout(x *mat.Dense, pieces int) *mat.Dense {
	rows, cols := x.Dims()
	if pieces <= 0 || cols%pieces != 0 {
		panic(fmt.Sprintf("Maxout: %d features cannot be split into pieces of %d", cols, pieces))
	}
	outDim := cols / pieces
	out := mat.NewDense(rows, outDim, nil)
	for i := 0; i < rows; i++ {
		in := x.RawRowView(i)
		dst := out.RawRowView(i)
		for k := 0; k < outDim; k++ {
			best := in[k*pieces]
			for p := 1; p < pieces; p++ {
				if v := in[k*pieces+p]; v > best {
					best = v
				}
			}
			dst[k] = best
		}
	}
	return out
}
