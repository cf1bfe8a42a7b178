// Package optim trains model parameters by gradient descent.
//
// This package provides:
//   - StepRule: turns gradients into parameter steps (Scale, Momentum,
//     AdaDelta, Adam, StepClipping, CompositeRule)
//   - GradientSource: estimates gradients of a scalar objective
//     (FiniteDifference, SPSA)
//   - GradientDescent: one training step, parameters -= steps
//
// Example usage:
//
//	rule, _ := optim.NewStepRule("AdaDelta", optim.RuleConfig{Clipping: 10})
//	gd := optim.NewGradientDescent(model.Parameters(), rule, optim.NewSPSA(optim.SPSAConfig{Seed: 1}))
//
//	for batch := range batches {
//	    cost, err := gd.Step(func() (float64, error) {
//	        return model.Cost(batch.Source, batch.SourceMask, batch.Target, batch.TargetMask)
//	    })
//	}
package optim

import (
	"errors"
	"fmt"
	"math"

	"github.com/born-ml/nmt/internal/nn"
	"gonum.org/v1/gonum/mat"
)

// ErrNotFinite is returned when an objective or gradient is NaN or infinite.
var ErrNotFinite = errors.New("optim: non-finite value")

// Gradient pairs a parameter with a same-shaped gradient or step.
type Gradient struct {
	Param *nn.Parameter
	Value *mat.Dense
}

// Gradients is ordered like the parameters they were computed for.
type Gradients []Gradient

// Norm returns the L2 norm over every value.
func (g Gradients) Norm() float64 {
	var sum float64
	for _, e := range g {
		for _, v := range e.Value.RawMatrix().Data {
			sum += v * v
		}
	}
	return math.Sqrt(sum)
}

// StepRule converts gradients into the steps subtracted from the parameters.
//
// Rules may keep per-parameter state, so a rule instance belongs to one
// parameter set.
type StepRule interface {
	ComputeSteps(grads Gradients) Gradients
}

// CompositeRule applies rules in order, each to the output of the previous.
type CompositeRule []StepRule

// ComputeSteps implements StepRule.
func (c CompositeRule) ComputeSteps(grads Gradients) Gradients {
	for _, r := range c {
		grads = r.ComputeSteps(grads)
	}
	return grads
}

// RuleConfig holds the hyperparameters NewStepRule reads.
type RuleConfig struct {
	LearningRate float64 // Scale, Momentum and Adam
	Clipping     float64 // global step clipping threshold; 0 disables
}

// NewStepRule returns StepClipping(cfg.Clipping) followed by the named rule:
// "AdaDelta", "Adam", "Scale" or "Momentum".
func NewStepRule(name string, cfg RuleConfig) (StepRule, error) {
	var rule StepRule
	switch name {
	case "AdaDelta", "adadelta":
		rule = NewAdaDelta(AdaDeltaConfig{})
	case "Adam", "adam":
		rule = NewAdam(AdamConfig{LR: cfg.LearningRate})
	case "Scale", "scale", "SGD", "sgd":
		rule = Scale{LearningRate: cfg.LearningRate}
	case "Momentum", "momentum":
		rule = NewMomentum(MomentumConfig{LR: cfg.LearningRate, Momentum: 0.9})
	default:
		return nil, fmt.Errorf("unknown step rule %q", name)
	}
	if cfg.Clipping > 0 {
		return CompositeRule{StepClipping{Threshold: cfg.Clipping}, rule}, nil
	}
	return rule, nil
}

// GradientDescent applies a step rule to estimated gradients.
type GradientDescent struct {
	params []*nn.Parameter
	rule   StepRule
	source GradientSource

	iterations int
	lastNorm   float64
}

// NewGradientDescent creates a trainer over params.
func NewGradientDescent(params []*nn.Parameter, rule StepRule, source GradientSource) *GradientDescent {
	return &GradientDescent{params: params, rule: rule, source: source}
}

// Step estimates the gradients of objective at the current parameters,
// subtracts the rule's steps and returns the objective value reported by
// the gradient source. Parameters are untouched when an error is returned.
func (gd *GradientDescent) Step(objective Objective) (float64, error) {
	cost, grads, err := gd.source.Gradients(objective, gd.params)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return cost, fmt.Errorf("%w: cost %g", ErrNotFinite, cost)
	}
	norm := grads.Norm()
	if math.IsNaN(norm) || math.IsInf(norm, 0) {
		return cost, fmt.Errorf("%w: gradient norm %g", ErrNotFinite, norm)
	}
	gd.lastNorm = norm

	for _, s := range gd.rule.ComputeSteps(grads) {
		v := s.Param.Value()
		v.Sub(v, s.Value)
	}
	gd.iterations++
	return cost, nil
}

// Iterations returns the number of applied steps.
func (gd *GradientDescent) Iterations() int {
	return gd.iterations
}

// GradientNorm returns the norm of the last applied gradient.
func (gd *GradientDescent) GradientNorm() float64 {
	return gd.lastNorm
}

// Parameters returns the trained parameters.
func (gd *GradientDescent) Parameters() []*nn.Parameter {
	return gd.params
}

func zerosLike(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	return mat.NewDense(r, c, nil)
}
