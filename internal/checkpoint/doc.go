// Package checkpoint stores model parameters and training progress.
//
// Parameters are written in a small binary format:
//
//	Format Structure:
//	  [0x00: Magic "NMTP"]
//	  [0x04: Version (uint32 LE)]
//	  [0x08: Flags (uint32 LE)]
//	  [0x0C: Reserved (uint32)]
//	  [0x10: Header Size (uint64 LE)]
//	  [0x18: Data Size (uint64 LE)]
//	  [0x20: SHA-256 of the data section (32 bytes)]
//	  [0x40: Header: JSON metadata]
//	  [Tensor data: float64 LE, 64-byte aligned]
//
// A Manager groups the parameter file with the iteration state and the
// training log in one directory, the way a training run is resumed:
//
//	m := checkpoint.NewManager("search_model_fi2en")
//	if err := m.Dump(checkpoint.Snapshot{Parameters: params, State: &status, Log: &log}); err != nil {
//	    return err
//	}
//	report, err := m.Load(checkpoint.Snapshot{Parameters: params, State: &status, Log: &log})
package checkpoint
