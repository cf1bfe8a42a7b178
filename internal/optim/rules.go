package optim

import (
	"math"

	"github.com/born-ml/nmt/internal/nn"
	"gonum.org/v1/gonum/mat"
)

// Scale multiplies gradients by a learning rate: plain SGD.
type Scale struct {
	LearningRate float64
}

// ComputeSteps implements StepRule.
func (s Scale) ComputeSteps(grads Gradients) Gradients {
	out := make(Gradients, len(grads))
	for i, g := range grads {
		var step mat.Dense
		step.Scale(s.LearningRate, g.Value)
		out[i] = Gradient{Param: g.Param, Value: &step}
	}
	return out
}

// Momentum is SGD with a velocity term.
//
// Update rule:
//
//	velocity = momentum * velocity + lr * gradient
//	step     = velocity
type Momentum struct {
	lr         float64
	momentum   float64
	velocities map[*nn.Parameter]*mat.Dense
}

// MomentumConfig holds configuration for Momentum.
type MomentumConfig struct {
	LR       float64 // Learning rate (default: 0.01)
	Momentum float64 // Momentum factor, range [0, 1)
}

// NewMomentum creates a momentum rule.
func NewMomentum(config MomentumConfig) *Momentum {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &Momentum{lr: config.LR, momentum: config.Momentum, velocities: make(map[*nn.Parameter]*mat.Dense)}
}

// ComputeSteps implements StepRule.
func (m *Momentum) ComputeSteps(grads Gradients) Gradients {
	out := make(Gradients, len(grads))
	for i, g := range grads {
		v, ok := m.velocities[g.Param]
		if !ok {
			v = zerosLike(g.Value)
			m.velocities[g.Param] = v
		}
		v.Scale(m.momentum, v)
		var scaled mat.Dense
		scaled.Scale(m.lr, g.Value)
		v.Add(v, &scaled)
		out[i] = Gradient{Param: g.Param, Value: mat.DenseCopyOf(v)}
	}
	return out
}

// AdaDelta adapts the step size per coordinate from running averages of
// squared gradients and squared steps.
//
// Update rule:
//
//	msg   = decay * msg + (1-decay) * g²
//	step  = sqrt(msd + eps) / sqrt(msg + eps) * g
//	msd   = decay * msd + (1-decay) * step²
//
// Reference: "ADADELTA: An Adaptive Learning Rate Method" (Zeiler, 2012)
type AdaDelta struct {
	decay float64
	eps   float64
	msg   map[*nn.Parameter][]float64
	msd   map[*nn.Parameter][]float64
}

// AdaDeltaConfig holds configuration for AdaDelta.
type AdaDeltaConfig struct {
	DecayRate float64 // default 0.95
	Epsilon   float64 // default 1e-6
}

// NewAdaDelta creates an AdaDelta rule.
func NewAdaDelta(config AdaDeltaConfig) *AdaDelta {
	if config.DecayRate == 0 {
		config.DecayRate = 0.95
	}
	if config.Epsilon == 0 {
		config.Epsilon = 1e-6
	}
	return &AdaDelta{
		decay: config.DecayRate,
		eps:   config.Epsilon,
		msg:   make(map[*nn.Parameter][]float64),
		msd:   make(map[*nn.Parameter][]float64),
	}
}

// ComputeSteps implements StepRule.
func (a *AdaDelta) ComputeSteps(grads Gradients) Gradients {
	out := make(Gradients, len(grads))
	for i, g := range grads {
		gd := g.Value.RawMatrix().Data
		msg, ok := a.msg[g.Param]
		if !ok {
			msg = make([]float64, len(gd))
			a.msg[g.Param] = msg
		}
		msd, ok := a.msd[g.Param]
		if !ok {
			msd = make([]float64, len(gd))
			a.msd[g.Param] = msd
		}

		step := zerosLike(g.Value)
		sd := step.RawMatrix().Data
		for j, v := range gd {
			msg[j] = a.decay*msg[j] + (1-a.decay)*v*v
			sd[j] = math.Sqrt(msd[j]+a.eps) / math.Sqrt(msg[j]+a.eps) * v
			msd[j] = a.decay*msd[j] + (1-a.decay)*sd[j]*sd[j]
		}
		out[i] = Gradient{Param: g.Param, Value: step}
	}
	return out
}

// Adam implements the Adam (Adaptive Moment Estimation) rule.
//
// Update rule:
//
//	m_t   = beta1 * m_{t-1} + (1-beta1) * gradient
//	v_t   = beta2 * v_{t-1} + (1-beta2) * gradient²
//	m_hat = m_t / (1 - beta1^t)
//	v_hat = v_t / (1 - beta2^t)
//	step  = lr * m_hat / (sqrt(v_hat) + eps)
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64
	t     int
	m     map[*nn.Parameter][]float64
	v     map[*nn.Parameter][]float64
}

// AdamConfig holds configuration for Adam.
type AdamConfig struct {
	LR    float64    // Learning rate (default: 0.002)
	Betas [2]float64 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float64    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates an Adam rule, filling in defaults.
func NewAdam(config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.002
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	return &Adam{
		lr:    config.LR,
		beta1: config.Betas[0],
		beta2: config.Betas[1],
		eps:   config.Eps,
		m:     make(map[*nn.Parameter][]float64),
		v:     make(map[*nn.Parameter][]float64),
	}
}

// ComputeSteps implements StepRule.
func (a *Adam) ComputeSteps(grads Gradients) Gradients {
	a.t++
	bc1 := 1 - math.Pow(a.beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.beta2, float64(a.t))

	out := make(Gradients, len(grads))
	for i, g := range grads {
		gd := g.Value.RawMatrix().Data
		m, ok := a.m[g.Param]
		if !ok {
			m = make([]float64, len(gd))
			a.m[g.Param] = m
		}
		v, ok := a.v[g.Param]
		if !ok {
			v = make([]float64, len(gd))
			a.v[g.Param] = v
		}

		step := zerosLike(g.Value)
		sd := step.RawMatrix().Data
		for j, x := range gd {
			m[j] = a.beta1*m[j] + (1-a.beta1)*x
			v[j] = a.beta2*v[j] + (1-a.beta2)*x*x
			sd[j] = a.lr * (m[j] / bc1) / (math.Sqrt(v[j]/bc2) + a.eps)
		}
		out[i] = Gradient{Param: g.Param, Value: step}
	}
	return out
}

// Timestep returns the number of steps computed so far.
func (a *Adam) Timestep() int {
	return a.t
}

// StepClipping rescales all steps together when their global L2 norm
// exceeds Threshold.
type StepClipping struct {
	Threshold float64
}

// ComputeSteps implements StepRule.
func (c StepClipping) ComputeSteps(grads Gradients) Gradients {
	norm := grads.Norm()
	if c.Threshold <= 0 || norm <= c.Threshold {
		return grads
	}
	scale := c.Threshold / norm
	out := make(Gradients, len(grads))
	for i, g := range grads {
		var step mat.Dense
		step.Scale(scale, g.Value)
		out[i] = Gradient{Param: g.Param, Value: &step}
	}
	return out
}
