package checkpoint

import (
	"time"
)

// File format constants.
const (
	MagicBytes      = "NMTP"
	FormatVersion   = 1
	FixedHeaderSize = 64 // magic, version, flags, sizes and checksum
	HeaderAlignment = 64 // tensor data starts on a 64-byte boundary
	ChecksumOffset  = 0x20
	ChecksumSize    = 32
	DTypeFloat64    = "float64"
)

// Header flags.
const (
	FlagHasMetadata uint32 = 1 << iota
)

// Header is the JSON section of a parameter file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	DumpID        string            `json:"dump_id"`
	CreatedAt     time.Time         `json:"created_at"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// TensorMeta locates one parameter in the data section.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`   // bytes
}

func (h *Header) tensor(name string) (TensorMeta, bool) {
	for _, t := range h.Tensors {
		if t.Name == name {
			return t, true
		}
	}
	return TensorMeta{}, false
}

func alignedOffset(pos int64) int64 {
	return pos + (HeaderAlignment-pos%HeaderAlignment)%HeaderAlignment
}
