package nn

import (
	"fmt"

	"github.com/born-ml/nmt/internal/tensor"
	"gonum.org/v1/gonum/mat"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W + b
// where:
//   - x is the input matrix with shape [batch_size, in_features]
//   - W is the weight matrix with shape [in_features, out_features]
//   - b is the optional bias row with shape [1, out_features]
//   - y is the output matrix with shape [batch_size, out_features]
//
// Example:
//
//	init := nn.DefaultInit(0.01, 1)
//	layer := nn.NewLinear("decoder/readout/softmax1", 620, 501, true, init)
//	logits := layer.Forward(x) // x: [batch, 620] -> [batch, 501]
type Linear struct {
	name        string
	inFeatures  int
	outFeatures int
	weight      *Parameter // [in_features, out_features]
	bias        *Parameter // [1, out_features], nil without bias
}

// NewLinear creates a new Linear layer.
//
// Parameters:
//   - name: Prefix of the parameter names ("<name>.W", "<name>.b")
//   - inFeatures: Number of input features
//   - outFeatures: Number of output features
//   - useBias: Whether to add a bias row
//   - init: Initialization scheme (Weights and Biases are used)
//
// Returns a new Linear layer.
func NewLinear(name string, inFeatures, outFeatures int, useBias bool, init Init) *Linear {
	l := &Linear{
		name:        name,
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter(name+".W", init.weights(inFeatures, outFeatures)),
	}
	if useBias {
		l.bias = NewParameter(name+".b", init.biases(outFeatures))
	}
	return l
}

// Forward computes x @ W + b.
//
// Input shape: [batch_size, in_features]
// Output shape: [batch_size, out_features]
func (l *Linear) Forward(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	if cols != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward(%s): expected input with %d features, got %d", l.name, l.inFeatures, cols))
	}

	out := mat.NewDense(rows, l.outFeatures, nil)
	out.Mul(x, l.weight.Value())
	if l.bias != nil {
		addRow(out, l.bias.Data())
	}
	return out
}

// ForwardSeq applies Forward to every step of a sequence.
func (l *Linear) ForwardSeq(xs tensor.Sequence) tensor.Sequence {
	out := make(tensor.Sequence, len(xs))
	for t, x := range xs {
		out[t] = l.Forward(x)
	}
	return out
}

// Parameters returns [W, b] if bias is present, otherwise [W].
func (l *Linear) Parameters() []*Parameter {
	if l.bias != nil {
		return []*Parameter{l.weight, l.bias}
	}
	return []*Parameter{l.weight}
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter (nil without bias).
func (l *Linear) Bias() *Parameter {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear) OutFeatures() int {
	return l.outFeatures
}

// addRow adds the row vector b to every row of m in place.
func addRow(m *mat.Dense, b []float64) {
	rows, _ := m.Dims()
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		for j := range row {
			row[j] += b[j]
		}
	}
}
