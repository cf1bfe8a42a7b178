package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Softmax converts one row of logits to probabilities using the
// max-subtraction trick.
func Softmax(logits []float64) []float64 {
	probs := make([]float64, len(logits))
	maxVal := floats.Max(logits)
	var sum float64
	for i, v := range logits {
		probs[i] = math.Exp(v - maxVal)
		sum += probs[i]
	}
	floats.Scale(1/sum, probs)
	return probs
}

// LogSoftmax returns log(softmax(logits)) computed via log-sum-exp.
func LogSoftmax(logits []float64) []float64 {
	lse := floats.LogSumExp(logits)
	out := make([]float64, len(logits))
	for i, v := range logits {
		out[i] = v - lse
	}
	return out
}

// CategoricalCrossEntropy returns -log softmax(logits[b])[targets[b]] per row.
//
// Mathematical Formulation:
//
//	Loss_b = logsumexp(logits_b) - logits_b[target_b]
//
// Panics if a target is outside [0, vocab).
func CategoricalCrossEntropy(logits *mat.Dense, targets []int) []float64 {
	rows, cols := logits.Dims()
	if rows != len(targets) {
		panic(fmt.Sprintf("CategoricalCrossEntropy: %d logit rows for %d targets", rows, len(targets)))
	}
	out := make([]float64, rows)
	for b, y := range targets {
		if y < 0 || y >= cols {
			panic(fmt.Sprintf("CategoricalCrossEntropy: target %d at row %d out of range [0, %d)", y, b, cols))
		}
		row := logits.RawRowView(b)
		out[b] = floats.LogSumExp(row) - row[y]
	}
	return out
}
