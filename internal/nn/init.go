package nn

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Initializer generates initial parameter values.
type Initializer interface {
	// Generate returns a freshly allocated (rows, cols) matrix.
	Generate(rng *rand.Rand, rows, cols int) *mat.Dense
}

// IsotropicGaussian draws every value from N(Mean, Std²).
type IsotropicGaussian struct {
	Std  float64
	Mean float64
}

// Generate implements Initializer.
func (g IsotropicGaussian) Generate(rng *rand.Rand, rows, cols int) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = g.Mean + g.Std*rng.NormFloat64()
	}
	return mat.NewDense(rows, cols, data)
}

// Constant fills every value with Value.
type Constant struct {
	Value float64
}

// Generate implements Initializer.
func (c Constant) Generate(_ *rand.Rand, rows, cols int) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	if c.Value != 0 {
		data := m.RawMatrix().Data
		for i := range data {
			data[i] = c.Value
		}
	}
	return m
}

// Orthogonal generates a random orthogonal matrix scaled by Scale.
//
// The matrix is the Q factor of a Gaussian matrix, with column signs fixed by
// the diagonal of R so that the distribution is uniform over orthogonal
// matrices. Only square shapes are supported.
type Orthogonal struct {
	Scale float64 // Defaults to 1 when zero
}

// Generate implements Initializer.
func (o Orthogonal) Generate(rng *rand.Rand, rows, cols int) *mat.Dense {
	if rows != cols {
		panic(fmt.Sprintf("Orthogonal: only square matrices are supported, got (%d, %d)", rows, cols))
	}
	scale := o.Scale
	if scale == 0 {
		scale = 1
	}

	a := IsotropicGaussian{Std: 1}.Generate(rng, rows, cols)
	var qr mat.QR
	qr.Factorize(a)

	var q, r mat.Dense
	qr.QTo(&q)
	qr.RTo(&r)

	out := mat.NewDense(rows, cols, nil)
	for j := 0; j < cols; j++ {
		sign := scale
		if r.At(j, j) < 0 {
			sign = -scale
		}
		for i := 0; i < rows; i++ {
			out.Set(i, j, sign*q.At(i, j))
		}
	}
	return out
}

// Init bundles the initialization scheme pushed down to every module.
//
// Weights initializes feed-forward matrices, Biases the bias rows and
// Recurrent the hidden-to-hidden blocks of recurrent cells.
type Init struct {
	Weights   Initializer
	Biases    Initializer
	Recurrent Initializer
	Rng       *rand.Rand
}

// DefaultInit returns the scheme used for translation models:
// IsotropicGaussian(weightScale) weights, zero biases and orthogonal
// recurrent matrices, all drawn from a generator seeded with seed.
func DefaultInit(weightScale float64, seed int64) Init {
	return Init{
		Weights:   IsotropicGaussian{Std: weightScale},
		Biases:    Constant{},
		Recurrent: Orthogonal{},
		Rng:       rand.New(rand.NewSource(seed)), //nolint:gosec // Deterministic seed for reproducible initialization
	}
}

func (in Init) weights(rows, cols int) *mat.Dense {
	return in.Weights.Generate(in.Rng, rows, cols)
}

func (in Init) biases(cols int) *mat.Dense {
	return in.Biases.Generate(in.Rng, 1, cols)
}

func (in Init) recurrent(dim int) *mat.Dense {
	return in.Recurrent.Generate(in.Rng, dim, dim)
}
