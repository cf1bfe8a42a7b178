package optim

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/born-ml/nmt/internal/nn"
	"gonum.org/v1/gonum/mat"
)

// Objective evaluates the training cost at the current parameter values.
type Objective func() (float64, error)

// GradientSource estimates the gradient of an objective with respect to
// params. It may perturb parameter values while evaluating but restores
// them before returning.
type GradientSource interface {
	Gradients(objective Objective, params []*nn.Parameter) (float64, Gradients, error)
}

// FiniteDifference estimates every coordinate with central differences:
//
//	g_i = (f(θ + h·e_i) - f(θ - h·e_i)) / 2h
//
// It costs 2N+1 evaluations for N scalars, so it only suits small models
// and gradient checks.
type FiniteDifference struct {
	Step float64 // h, default 1e-5
}

// Gradients implements GradientSource. The returned cost is f(θ).
func (fd FiniteDifference) Gradients(objective Objective, params []*nn.Parameter) (float64, Gradients, error) {
	h := fd.Step
	if h == 0 {
		h = 1e-5
	}
	cost, err := objective()
	if err != nil {
		return 0, nil, err
	}
	grads := make(Gradients, len(params))
	for i, p := range params {
		g := zerosLike(p.Value())
		gd := g.RawMatrix().Data
		data := p.Data()
		for j := range data {
			orig := data[j]
			data[j] = orig + h
			plus, err := objective()
			if err != nil {
				data[j] = orig
				return 0, nil, err
			}
			data[j] = orig - h
			minus, err := objective()
			data[j] = orig
			if err != nil {
				return 0, nil, err
			}
			gd[j] = (plus - minus) / (2 * h)
		}
		grads[i] = Gradient{Param: p, Value: g}
	}
	return cost, grads, nil
}

// SPSA is simultaneous perturbation stochastic approximation: all
// coordinates are perturbed at once along a random ±1 direction Δ.
//
//	g_i = (f(θ + cΔ) - f(θ - cΔ)) / (2c·Δ_i)
//
// Two evaluations per estimate regardless of model size.
type SPSA struct {
	c   float64
	rng *rand.Rand
}

// SPSAConfig holds configuration for SPSA.
type SPSAConfig struct {
	Perturbation float64 // c, default 1e-3
	Seed         int64
}

// NewSPSA creates an SPSA gradient source.
func NewSPSA(config SPSAConfig) *SPSA {
	if config.Perturbation == 0 {
		config.Perturbation = 1e-3
	}
	return &SPSA{c: config.Perturbation, rng: rand.New(rand.NewSource(config.Seed))} //nolint:gosec // deterministic perturbations
}

// Gradients implements GradientSource. The returned cost is the mean of
// the two perturbed evaluations.
func (s *SPSA) Gradients(objective Objective, params []*nn.Parameter) (float64, Gradients, error) {
	deltas := make([][]float64, len(params))
	for i, p := range params {
		d := make([]float64, p.Size())
		for j := range d {
			d[j] = 1
			if s.rng.Intn(2) == 0 {
				d[j] = -1
			}
		}
		deltas[i] = d
	}

	orig := make([][]float64, len(params))
	for i, p := range params {
		orig[i] = append([]float64(nil), p.Data()...)
	}
	perturb := func(scale float64) {
		for i, p := range params {
			data := p.Data()
			for j, d := range deltas[i] {
				data[j] = orig[i][j] + scale*d
			}
		}
	}
	restore := func() {
		for i, p := range params {
			copy(p.Data(), orig[i])
		}
	}

	perturb(s.c)
	plus, err := objective()
	if err != nil {
		restore()
		return 0, nil, err
	}
	perturb(-s.c)
	minus, err := objective()
	restore()
	if err != nil {
		return 0, nil, err
	}

	diff := (plus - minus) / (2 * s.c)
	grads := make(Gradients, len(params))
	for i, p := range params {
		g := mat.NewDense(p.Shape()[0], p.Shape()[1], nil)
		gd := g.RawMatrix().Data
		for j, d := range deltas[i] {
			gd[j] = diff / d
		}
		grads[i] = Gradient{Param: p, Value: g}
	}
	return (plus + minus) / 2, grads, nil
}

// NewGradientSource returns the source named by the configuration:
// "spsa" or "finite_difference".
func NewGradientSource(name string, seed int64) (GradientSource, error) {
	switch strings.ToLower(name) {
	case "", "spsa":
		return NewSPSA(SPSAConfig{Seed: seed}), nil
	case "finite_difference", "finite-difference", "fd":
		return FiniteDifference{}, nil
	default:
		return nil, fmt.Errorf("unknown gradient source %q", name)
	}
}
