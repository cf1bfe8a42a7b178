// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the step rules and gradient estimators used to
// train translation models.
//
// # Overview
//
// This package contains:
//   - StepRule: Scale, Momentum, AdaDelta, Adam, StepClipping, CompositeRule
//   - GradientSource: FiniteDifference and SPSA estimators of a scalar cost
//   - GradientDescent: one training step, parameters -= steps
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/nmt/model"
//	    "github.com/born-ml/nmt/optim"
//	)
//
//	func main() {
//	    cfg, _ := model.Prototype("wmt15_fi_en_TEST")
//	    m, _ := model.New(cfg)
//
//	    rule, _ := optim.NewStepRule("AdaDelta", optim.RuleConfig{Clipping: 10})
//	    gd := optim.NewGradientDescent(m.Parameters(), rule, optim.NewSPSA(optim.SPSAConfig{Seed: 1}))
//
//	    for _, b := range batches {
//	        cost, err := gd.Step(func() (float64, error) {
//	            return m.Cost(b.Source, b.SourceMask, b.Target, b.TargetMask)
//	        })
//	        ...
//	    }
//	}
package optim

import (
	"github.com/born-ml/nmt/internal/nn"
	"github.com/born-ml/nmt/internal/optim"
)

// StepRule converts gradients into parameter steps.
type StepRule = optim.StepRule

// RuleConfig holds the options of NewStepRule.
type RuleConfig = optim.RuleConfig

// NewStepRule returns the named rule ("AdaDelta", "Adam", "Scale",
// "Momentum"), preceded by StepClipping when cfg.Clipping is positive.
func NewStepRule(name string, cfg RuleConfig) (StepRule, error) {
	return optim.NewStepRule(name, cfg)
}

// AdaDeltaConfig configures AdaDelta.
type AdaDeltaConfig = optim.AdaDeltaConfig

// NewAdaDelta creates an AdaDelta rule.
func NewAdaDelta(config AdaDeltaConfig) StepRule {
	return optim.NewAdaDelta(config)
}

// AdamConfig configures Adam.
type AdamConfig = optim.AdamConfig

// NewAdam creates an Adam rule with bias correction.
func NewAdam(config AdamConfig) StepRule {
	return optim.NewAdam(config)
}

// Objective evaluates the training cost at the current parameters.
type Objective = optim.Objective

// GradientSource estimates the gradients of an objective.
type GradientSource = optim.GradientSource

// SPSAConfig configures SPSA.
type SPSAConfig = optim.SPSAConfig

// NewSPSA creates a simultaneous perturbation gradient estimator.
func NewSPSA(config SPSAConfig) GradientSource {
	return optim.NewSPSA(config)
}

// FiniteDifference estimates gradients by central differences.
type FiniteDifference = optim.FiniteDifference

// GradientDescent applies a step rule to estimated gradients.
type GradientDescent = optim.GradientDescent

// NewGradientDescent creates a trainer over params.
func NewGradientDescent(params []*nn.Parameter, rule StepRule, source GradientSource) *GradientDescent {
	return optim.NewGradientDescent(params, rule, source)
}
