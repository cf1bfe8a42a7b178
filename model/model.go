// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package model provides the attention-based encoder-decoder translation
// model.
//
// This package wraps the internal model, configuration and checkpoint
// implementations and provides a clean public API.
//
// Example usage:
//
//	import "github.com/born-ml/nmt/model"
//
//	cfg, err := model.Prototype("wmt15_fi_en_40k")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	m, err := model.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := model.LoadParameters(m, "refBlocks3/params.nmtp"); err != nil {
//	    log.Fatal(err)
//	}
package model

import (
	"github.com/born-ml/nmt/internal/checkpoint"
	"github.com/born-ml/nmt/internal/config"
	"github.com/born-ml/nmt/internal/model"
)

// Model is the bidirectional GRU encoder with an attention GRU decoder.
type Model = model.Model

// Option configures model construction.
type Option = model.Option

// Config holds the model and training options.
type Config = config.Config

// Report lists how a parameter file matched the model parameters.
type Report = checkpoint.Report

// New builds a model with freshly initialized parameters.
func New(cfg Config, opts ...Option) (*Model, error) {
	return model.New(cfg, opts...)
}

// WithLogger sets the logger used during construction.
var WithLogger = model.WithLogger

// Prototype returns a copy of a named configuration.
//
// Known prototypes: "wmt15_fi_en_40k", "wmt15_fi_en_TEST".
func Prototype(name string) (Config, error) {
	return config.Prototype(name)
}

// LoadConfig applies the YAML overrides of path on top of base.
func LoadConfig(path string, base Config) (Config, error) {
	return config.Load(path, base)
}

// SaveParameters writes the model parameters to path.
func SaveParameters(m *Model, path string) error {
	return checkpoint.WriteFile(path, m.Parameters(), nil)
}

// LoadParameters restores the model parameters from path.
func LoadParameters(m *Model, path string) (Report, error) {
	f, err := checkpoint.ReadFile(path)
	if err != nil {
		return Report{}, err
	}
	return f.Restore(m.Parameters())
}
