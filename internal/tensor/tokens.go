package tensor

// Tokens is a (batch, time) matrix of integer token ids stored row-major.
//
// Negative ids are sentinels meaning "no token"; they are representable in the
// same array so that vectorized consumers never need an optional type.
type Tokens struct {
	batch int
	time  int
	data  []int
}

// NewTokens creates a zero-filled (batch, time) token matrix.
func NewTokens(batch, time int) *Tokens {
	return &Tokens{batch: batch, time: time, data: make([]int, batch*time)}
}

// TokensFromSlice wraps data as a (batch, time) token matrix.
// The slice is copied.
func TokensFromSlice(data []int, batch, time int) (*Tokens, error) {
	if len(data) != batch*time {
		return nil, &ShapeError{Tensor: "tokens", Expected: Shape{batch, time}, Actual: Shape{len(data)}}
	}
	t := NewTokens(batch, time)
	copy(t.data, data)
	return t, nil
}

// TokensFromRows builds a token matrix from equally long rows.
func TokensFromRows(rows [][]int) (*Tokens, error) {
	if len(rows) == 0 {
		return nil, &ShapeError{Tensor: "tokens", Expected: Shape{-1, -1}, Actual: Shape{0}}
	}
	width := len(rows[0])
	t := NewTokens(len(rows), width)
	for b, row := range rows {
		if len(row) != width {
			return nil, &ShapeError{Tensor: "tokens", Expected: Shape{len(rows), width}, Actual: Shape{b, len(row)}}
		}
		copy(t.data[b*width:], row)
	}
	return t, nil
}

// Shape returns (batch, time).
func (t *Tokens) Shape() Shape { return Shape{t.batch, t.time} }

// Batch returns the number of rows.
func (t *Tokens) Batch() int { return t.batch }

// Len returns the number of time steps.
func (t *Tokens) Len() int { return t.time }

// At returns the id of row b at step i.
func (t *Tokens) At(b, i int) int { return t.data[b*t.time+i] }

// Set stores id at row b, step i.
func (t *Tokens) Set(b, i, id int) { t.data[b*t.time+i] = id }

// Row returns a view of row b.
func (t *Tokens) Row(b int) []int { return t.data[b*t.time : (b+1)*t.time] }

// Step returns a copy of the ids at step i across the batch (one time-major column).
func (t *Tokens) Step(i int) []int {
	col := make([]int, t.batch)
	for b := range col {
		col[b] = t.data[b*t.time+i]
	}
	return col
}

// Data returns the row-major backing slice.
func (t *Tokens) Data() []int { return t.data }

// CheckRange reports the first id at a valid position of mask that is not
// below limit. Negative ids are sentinels and always pass. A nil mask marks
// every position valid.
func (t *Tokens) CheckRange(name string, limit int, mask *Mask) error {
	for b := 0; b < t.batch; b++ {
		for i := 0; i < t.time; i++ {
			if mask != nil && mask.At(b, i) == 0 {
				continue
			}
			if id := t.At(b, i); id >= limit {
				return &IndexError{Tensor: name, Row: b, Position: i, Value: id, Limit: limit}
			}
		}
	}
	return nil
}
