package tensor

import "fmt"

// Mask marks valid (1) and padding (0) positions of a (batch, time) batch.
//
// Well-formed masks are left-aligned: every row is a run of ones followed by
// zeros, with no interior gaps.
type Mask struct {
	batch int
	time  int
	data  []float64
}

// NewMask creates an all-zero (batch, time) mask.
func NewMask(batch, time int) *Mask {
	return &Mask{batch: batch, time: time, data: make([]float64, batch*time)}
}

// OnesMask creates a mask with every position valid.
func OnesMask(batch, time int) *Mask {
	m := NewMask(batch, time)
	for i := range m.data {
		m.data[i] = 1
	}
	return m
}

// MaskFromLengths creates a left-aligned mask with lengths[b] valid positions in row b.
func MaskFromLengths(lengths []int, time int) *Mask {
	m := NewMask(len(lengths), time)
	for b, n := range lengths {
		for i := 0; i < n && i < time; i++ {
			m.data[b*time+i] = 1
		}
	}
	return m
}

// MaskFromSlice wraps data as a (batch, time) mask. The slice is copied.
func MaskFromSlice(data []float64, batch, time int) (*Mask, error) {
	if len(data) != batch*time {
		return nil, &ShapeError{Tensor: "mask", Expected: Shape{batch, time}, Actual: Shape{len(data)}}
	}
	m := NewMask(batch, time)
	copy(m.data, data)
	return m, nil
}

// Shape returns (batch, time).
func (m *Mask) Shape() Shape { return Shape{m.batch, m.time} }

// Batch returns the number of rows.
func (m *Mask) Batch() int { return m.batch }

// Len returns the number of time steps.
func (m *Mask) Len() int { return m.time }

// At returns the mask value of row b at step i.
func (m *Mask) At(b, i int) float64 { return m.data[b*m.time+i] }

// Set stores v at row b, step i.
func (m *Mask) Set(b, i int, v float64) { m.data[b*m.time+i] = v }

// Step returns a copy of step i across the batch.
func (m *Mask) Step(i int) []float64 {
	col := make([]float64, m.batch)
	for b := range col {
		col[b] = m.data[b*m.time+i]
	}
	return col
}

// Steps returns the mask time-major: Steps()[i][b] == At(b, i).
func (m *Mask) Steps() [][]float64 {
	out := make([][]float64, m.time)
	for i := range out {
		out[i] = m.Step(i)
	}
	return out
}

// Lengths returns the number of valid positions per row.
func (m *Mask) Lengths() []int {
	lengths := make([]int, m.batch)
	for b := range lengths {
		for i := 0; i < m.time; i++ {
			if m.At(b, i) != 0 {
				lengths[b]++
			}
		}
	}
	return lengths
}

// Sum returns the number of valid positions in the whole batch.
func (m *Mask) Sum() float64 {
	var s float64
	for _, v := range m.data {
		s += v
	}
	return s
}

// Validate checks that the mask is binary and left-aligned.
func (m *Mask) Validate(name string) error {
	for b := 0; b < m.batch; b++ {
		padded := false
		for i := 0; i < m.time; i++ {
			v := m.At(b, i)
			switch {
			case v != 0 && v != 1:
				return &MaskError{Tensor: name, Row: b, Position: i, Reason: fmt.Sprintf("non-binary value %g", v)}
			case v == 0:
				padded = true
			case padded:
				return &MaskError{Tensor: name, Row: b, Position: i, Reason: "valid position after padding"}
			}
		}
	}
	return nil
}
