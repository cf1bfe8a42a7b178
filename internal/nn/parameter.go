package nn

import (
	"fmt"

	"github.com/born-ml/nmt/internal/tensor"
	"gonum.org/v1/gonum/mat"
)

// Parameter represents a trainable parameter in a neural network.
//
// Parameters are dense float64 matrices; vectors such as biases are stored as
// (1, n) rows so that every parameter shares one representation. Values are
// mutated in place by optimizers and checkpoint loading only.
//
// Example:
//
//	w := nn.NewParameter("decoder/readout/softmax1.W", mat.NewDense(620, 501, nil))
//	fmt.Println(w.Name(), w.Shape())
type Parameter struct {
	name  string     // Parameter name (e.g., "encoder/fwd_fork/fork_inputs.W")
	value *mat.Dense // The parameter values
}

// NewParameter creates a new trainable parameter.
//
// The matrix must be freshly allocated (contiguous storage).
func NewParameter(name string, value *mat.Dense) *Parameter {
	return &Parameter{name: name, value: value}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Value returns the parameter matrix.
func (p *Parameter) Value() *mat.Dense {
	return p.value
}

// Shape returns (rows, cols).
func (p *Parameter) Shape() tensor.Shape {
	r, c := p.value.Dims()
	return tensor.Shape{r, c}
}

// Size returns the number of scalar values.
func (p *Parameter) Size() int {
	return p.Shape().NumElements()
}

// Data returns the row-major backing slice. Writes modify the parameter.
func (p *Parameter) Data() []float64 {
	return p.value.RawMatrix().Data
}

// Load copies data into the parameter after checking the shape.
func (p *Parameter) Load(data []float64, shape tensor.Shape) error {
	if !shape.Equal(p.Shape()) {
		return &tensor.ShapeError{Tensor: p.name, Expected: p.Shape(), Actual: shape}
	}
	if len(data) != p.Size() {
		return fmt.Errorf("parameter %q: expected %d values, got %d", p.name, p.Size(), len(data))
	}
	copy(p.Data(), data)
	return nil
}

// Clone returns a deep copy of the values.
func (p *Parameter) Clone() *mat.Dense {
	return mat.DenseCopyOf(p.value)
}
