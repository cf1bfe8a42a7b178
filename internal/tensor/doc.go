// Package tensor holds the batched data types of the translation model.
//
// The layout follows the encoder-decoder pipeline:
//   - Tokens: (batch, time) integer ids as delivered by the corpus stream
//   - Mask: (batch, time) 0/1 validity flags, left-aligned
//   - Sequence: time-major (time, batch, features) activations backed by
//     gonum dense matrices
//
// Contract violations (shape mismatches, out-of-vocabulary ids, malformed
// masks) are reported as *ShapeError, *IndexError and *MaskError, all of which
// wrap ErrContract.
package tensor
