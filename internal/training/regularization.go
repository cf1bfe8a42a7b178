package training

import (
	"math/rand"

	"github.com/born-ml/nmt/internal/config"
	"github.com/born-ml/nmt/internal/model"
	"github.com/born-ml/nmt/internal/nn"
	"github.com/born-ml/nmt/internal/optim"
	"github.com/born-ml/nmt/internal/stream"
)

// Regularization perturbs the training cost: Gaussian weight noise on the
// feed-forward and recurrent parameter sets and dropout on the readout.
//
// Noise values and dropout masks are drawn once per step, so every
// evaluation a gradient source makes within one step sees the same
// perturbation.
type Regularization struct {
	WeightNoiseFF  float64 // std of the noise added to the feed-forward set
	WeightNoiseRec float64 // std of the noise added to the recurrent weights
	Dropout        float64 // drop probability, applied when in (0, 1)
	Seed           int64
}

// RegularizationFromConfig reads the regularization options of cfg.
func RegularizationFromConfig(cfg config.Config) Regularization {
	return Regularization{
		WeightNoiseFF:  cfg.WeightNoiseFF,
		WeightNoiseRec: cfg.WeightNoiseRec,
		Dropout:        cfg.Dropout,
		Seed:           cfg.Seed,
	}
}

// Enabled reports whether any perturbation applies.
func (r Regularization) Enabled() bool {
	return r.WeightNoiseFF > 0 || r.WeightNoiseRec > 0 || r.dropoutEnabled()
}

func (r Regularization) dropoutEnabled() bool {
	return r.Dropout > 0 && r.Dropout < 1
}

type noise struct {
	param  *nn.Parameter
	values []float64
}

// Objective returns the cost of batch b under the perturbation of step.
func (r Regularization) Objective(m *model.Model, b *stream.Batch, step int) optim.Objective {
	rng := rand.New(rand.NewSource(r.Seed + int64(step))) //nolint:gosec // Reproducible noise
	var noises []noise
	sample := func(params []*nn.Parameter, std float64) {
		if std <= 0 {
			return
		}
		for _, p := range params {
			values := make([]float64, p.Size())
			for i := range values {
				values[i] = std * rng.NormFloat64()
			}
			noises = append(noises, noise{param: p, values: values})
		}
	}
	sample(m.FeedforwardParameters(), r.WeightNoiseFF)
	sample(m.RecurrentParameters(), r.WeightNoiseRec)
	dropoutSeed := rng.Int63()

	return func() (float64, error) {
		saved := make([][]float64, len(noises))
		for i, n := range noises {
			data := n.param.Data()
			saved[i] = append([]float64(nil), data...)
			for j, v := range n.values {
				data[j] += v
			}
		}
		defer func() {
			for i := len(noises) - 1; i >= 0; i-- {
				copy(noises[i].param.Data(), saved[i])
			}
		}()

		var opts []nn.CostOption
		if r.dropoutEnabled() {
			opts = append(opts, nn.WithDropout(nn.NewDropout(r.Dropout, dropoutSeed)))
		}
		return m.Cost(b.Source, b.SourceMask, b.Target, b.TargetMask, opts...)
	}
}
