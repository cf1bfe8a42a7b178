package checkpoint

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"github.com/born-ml/nmt/internal/nn"
	"github.com/born-ml/nmt/internal/tensor"
)

// File is a decoded parameter file held in memory.
type File struct {
	header Header
	flags  uint32
	data   []byte
}

// Read decodes and validates a parameter file.
func Read(r io.Reader) (*File, error) {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, fmt.Errorf("failed to read fixed header: %w", err)
	}
	if string(fixed[:4]) != MagicBytes {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrInvalidMagic, fixed[:4], MagicBytes)
	}
	if v := binary.LittleEndian.Uint32(fixed[0x04:]); v != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	flags := binary.LittleEndian.Uint32(fixed[0x08:])
	headerSize := binary.LittleEndian.Uint64(fixed[0x10:])
	dataSize := binary.LittleEndian.Uint64(fixed[0x18:])
	if headerSize > MaxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}
	var sum [ChecksumSize]byte
	copy(sum[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	pos := int64(FixedHeaderSize) + int64(headerSize) //nolint:gosec // G115: bounded by MaxHeaderSize
	if _, err := io.CopyN(io.Discard, r, alignedOffset(pos)-pos); err != nil {
		return nil, fmt.Errorf("failed to skip padding: %w", err)
	}

	var data bytes.Buffer
	if _, err := io.CopyN(&data, r, int64(dataSize)); err != nil { //nolint:gosec // G115: validated below
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if err := ValidateChecksum(data.Bytes(), sum); err != nil {
		return nil, err
	}
	if err := ValidateHeader(&header, int64(data.Len())); err != nil {
		return nil, err
	}
	return &File{header: header, flags: flags, data: data.Bytes()}, nil
}

// ReadFile opens and decodes path.
func ReadFile(path string) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the dump directory
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	file, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

// Header returns the decoded JSON header.
func (f *File) Header() Header {
	return f.header
}

// Metadata returns the string metadata.
func (f *File) Metadata() map[string]string {
	return f.header.Metadata
}

// Names returns the tensor names in file order.
func (f *File) Names() []string {
	names := make([]string, len(f.header.Tensors))
	for i, t := range f.header.Tensors {
		names[i] = t.Name
	}
	return names
}

// Tensor returns the values and shape of the named tensor.
func (f *File) Tensor(name string) ([]float64, tensor.Shape, error) {
	meta, ok := f.header.tensor(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrMissingTensor, name)
	}
	raw := f.data[meta.Offset : meta.Offset+meta.Size]
	values := make([]float64, len(raw)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return values, tensor.Shape(meta.Shape).Clone(), nil
}

// Report lists how the tensors of a file matched a parameter set.
type Report struct {
	Loaded  []string // copied into a parameter
	Missing []string // parameters the file does not hold
	Unused  []string // tensors no parameter asked for
}

// Restore copies every tensor whose name matches a parameter. Shapes are
// checked for all matches before any value is written, so a mismatch
// leaves params unchanged.
func (f *File) Restore(params []*nn.Parameter) (Report, error) {
	var report Report
	type match struct {
		param  *nn.Parameter
		values []float64
	}
	var matches []match
	wanted := make(map[string]bool, len(params))
	for _, p := range params {
		wanted[p.Name()] = true
		values, shape, err := f.Tensor(p.Name())
		if err != nil {
			report.Missing = append(report.Missing, p.Name())
			continue
		}
		if !shape.Equal(p.Shape()) {
			return Report{}, &tensor.ShapeError{Tensor: p.Name(), Expected: p.Shape(), Actual: shape}
		}
		matches = append(matches, match{param: p, values: values})
	}
	for _, m := range matches {
		if err := m.param.Load(m.values, m.param.Shape()); err != nil {
			return Report{}, err
		}
		report.Loaded = append(report.Loaded, m.param.Name())
	}
	for _, name := range f.Names() {
		if !wanted[name] {
			report.Unused = append(report.Unused, name)
		}
	}
	slices.Sort(report.Unused)
	return report, nil
}
