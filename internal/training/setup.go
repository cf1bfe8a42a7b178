package training

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/born-ml/nmt/internal/checkpoint"
	"github.com/born-ml/nmt/internal/config"
	"github.com/born-ml/nmt/internal/generate"
	"github.com/born-ml/nmt/internal/model"
	"github.com/born-ml/nmt/internal/optim"
	"github.com/born-ml/nmt/internal/parallel"
	"github.com/born-ml/nmt/internal/stream"
)

// Setup builds the model, algorithm and extensions a configuration asks
// for, over already opened streams.
//
// Extensions, in order: reloading when cfg.Reload, the finish limit,
// monitoring, periodic dumps into cfg.SaveTo, sampling when
// cfg.HookSamples and cfg.SamplingFreq are positive, and BLEU validation
// when a validation set and its references are configured.
func Setup(cfg config.Config, streams *stream.Streams, logger *slog.Logger) (*MainLoop, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := model.New(cfg, model.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	rule, err := optim.NewStepRule(cfg.StepRule, optim.RuleConfig{
		LearningRate: cfg.LearningRate,
		Clipping:     cfg.StepClipping,
	})
	if err != nil {
		return nil, err
	}
	source, err := optim.NewGradientSource(cfg.Gradient, cfg.Seed)
	if err != nil {
		return nil, err
	}
	alg := optim.NewGradientDescent(m.Parameters(), rule, source)

	manager := checkpoint.NewManager(cfg.SaveTo, checkpoint.WithLogger(logger))
	var exts []Extension
	if cfg.Reload {
		exts = append(exts, LoadFromDump{Manager: manager})
	}
	exts = append(exts,
		FinishAfter{Iterations: cfg.FinishAfter},
		&Monitoring{Every: 1},
		Dump{Manager: manager, Every: cfg.SaveFreq},
	)
	if cfg.HookSamples > 0 && cfg.SamplingFreq > 0 {
		exts = append(exts, &Sampler{
			Every:   cfg.SamplingFreq,
			Samples: cfg.HookSamples,
			Source:  streams.Source,
			Target:  streams.Target,
			Seed:    cfg.Seed,
		})
	}
	if cfg.BleuValFreq > 0 && len(streams.Dev) > 0 && cfg.ValSetGrndtruth != "" {
		v, err := newValidator(cfg, m, streams, manager)
		if err != nil {
			return nil, err
		}
		exts = append(exts, v)
	}

	logger.Info("training setup",
		"stream", cfg.Stream,
		"step_rule", cfg.StepRule,
		"gradient", cfg.Gradient,
		"extensions", len(exts),
		"saveto", cfg.SaveTo)
	return NewMainLoop(m, alg, streams.Train,
		WithExtensions(exts...),
		WithRegularization(RegularizationFromConfig(cfg)),
		WithLogger(logger))
}

func newValidator(cfg config.Config, m *model.Model, streams *stream.Streams, manager *checkpoint.Manager) (*BleuValidator, error) {
	refs, err := stream.ReadLines(cfg.ValSetGrndtruth)
	if err != nil {
		return nil, fmt.Errorf("validation references: %w", err)
	}
	if len(refs) != len(streams.Dev) {
		return nil, fmt.Errorf("validation set has %d sentences, references %d", len(streams.Dev), len(refs))
	}
	v := &BleuValidator{
		Translator: generate.NewTranslator(m, m.Decoder.Generator, cfg.BeamSize, streams.Source, streams.Target,
			generate.WithNormalizedCosts(cfg.NormalizedBleu)),
		Sources:    streams.Dev,
		References: refs,
		Every:      cfg.BleuValFreq,
		BurnIn:     cfg.ValBurnIn,
		Patience:   cfg.BleuPatience,
		Manager:    manager,
		KeepBest:   1,
		Parallel:   parallel.SentenceConfig(),
	}
	if cfg.OutputValSet {
		v.OutputPath = cfg.ValSetOut
		if v.OutputPath == "" {
			v.OutputPath = filepath.Join(cfg.SaveTo, "validation_out.txt")
		}
	}
	return v, nil
}
