package checkpoint

import (
	"crypto/sha256"
	"fmt"
)

// ComputeChecksum returns the SHA-256 of data.
func ComputeChecksum(data []byte) [ChecksumSize]byte {
	return sha256.Sum256(data)
}

// ValidateChecksum compares data against the stored checksum.
func ValidateChecksum(data []byte, expected [ChecksumSize]byte) error {
	if actual := ComputeChecksum(data); actual != expected {
		return fmt.Errorf("%w: expected %x, got %x", ErrChecksumMismatch, expected[:8], actual[:8])
	}
	return nil
}
