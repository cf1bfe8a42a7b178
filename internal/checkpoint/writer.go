package checkpoint

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/born-ml/nmt/internal/nn"
	"github.com/google/uuid"
)

// Write encodes params in order, with optional string metadata.
func Write(w io.Writer, params []*nn.Parameter, metadata map[string]string) error {
	header := Header{
		FormatVersion: FormatVersion,
		DumpID:        uuid.NewString(),
		CreatedAt:     time.Now().UTC(),
		Tensors:       make([]TensorMeta, 0, len(params)),
		Metadata:      metadata,
	}

	var data bytes.Buffer
	var offset int64
	for _, p := range params {
		if err := ValidateTensorName(p.Name()); err != nil {
			return err
		}
		if _, dup := header.tensor(p.Name()); dup {
			return &ValidationError{Type: "duplicate_name", Tensor: p.Name(), Details: "listed twice"}
		}
		size := int64(p.Size()) * 8
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   p.Name(),
			DType:  DTypeFloat64,
			Shape:  p.Shape().Clone(),
			Offset: offset,
			Size:   size,
		})
		buf := make([]byte, size)
		for i, v := range p.Data() {
			binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
		}
		data.Write(buf)
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed, MagicBytes)
	binary.LittleEndian.PutUint32(fixed[0x04:], FormatVersion)
	var flags uint32
	if len(metadata) > 0 {
		flags |= FlagHasMetadata
	}
	binary.LittleEndian.PutUint32(fixed[0x08:], flags)
	binary.LittleEndian.PutUint64(fixed[0x10:], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[0x18:], uint64(data.Len())) //nolint:gosec // G115: length is non-negative
	sum := ComputeChecksum(data.Bytes())
	copy(fixed[ChecksumOffset:], sum[:])

	if _, err := w.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	pos := int64(FixedHeaderSize + len(headerJSON))
	if padding := alignedOffset(pos) - pos; padding > 0 {
		if _, err := w.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}
	if _, err := w.Write(data.Bytes()); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

// WriteFile writes params to path through a temporary file in the same
// directory, so an interrupted dump never truncates the previous one.
func WriteFile(path string, params []*nn.Parameter, metadata map[string]string) error {
	return writeAtomic(path, func(w io.Writer) error {
		return Write(w, params, metadata)
	})
}

func writeAtomic(path string, write func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", tmp.Name(), err)
	}
	return nil
}
