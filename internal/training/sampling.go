package training

import (
	"context"
	"fmt"
	"slices"

	"github.com/born-ml/nmt/internal/generate"
	"github.com/born-ml/nmt/internal/nn"
	"github.com/born-ml/nmt/internal/stream"
	"github.com/born-ml/nmt/internal/tokenizer"
)

// Sampler decodes the first Samples sentences of the current batch every
// Every iterations and logs source, reference and sample.
type Sampler struct {
	Every   int
	Samples int
	Source  tokenizer.Tokenizer
	Target  tokenizer.Tokenizer
	Emitter nn.Emitter // categorical sampling when nil
	Seed    int64
}

// Sample is one decoded training sentence.
type Sample struct {
	Source    string
	Reference string
	Output    string
	Tokens    []int
	Cost      float64
}

// Name implements Extension.
func (*Sampler) Name() string { return "sampler" }

// AfterBatch implements AfterBatch.
func (s *Sampler) AfterBatch(_ context.Context, l *MainLoop, b *stream.Batch) error {
	if !every(s.Every, l.Status.IterationsDone) || s.Samples <= 0 {
		return nil
	}
	samples, err := s.Draw(l, b)
	if err != nil {
		return err
	}
	for i, smp := range samples {
		l.Logger().Info("sample",
			"iteration", l.Status.IterationsDone,
			"index", i,
			"input", smp.Source,
			"target", smp.Reference,
			"sample", smp.Output,
			"cost", smp.Cost)
	}
	return nil
}

// Draw decodes up to Samples sentences of b.
func (s *Sampler) Draw(l *MainLoop, b *stream.Batch) ([]Sample, error) {
	if s.Emitter == nil {
		cfg := generate.DefaultSamplingConfig()
		cfg.Seed = s.Seed
		s.Emitter = generate.NewSampler(cfg)
	}
	n := min(s.Samples, b.Size())
	out := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		src, _ := generate.SingleSentence(b.Source, b.SourceMask, i)
		gen, err := l.Model.Generate(src, s.Emitter)
		if r, ok := s.Emitter.(interface{ Reset() }); ok {
			r.Reset()
		}
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}

		tokens := truncateInclusive(gen.Outputs.Row(0), s.Target.EosToken())
		var cost float64
		for t := range tokens {
			cost += gen.Costs.At(t, 0)
		}
		smp := Sample{Tokens: slices.Clone(tokens), Cost: cost}
		if smp.Source, err = s.Source.Decode(src.Row(0)); err != nil {
			return nil, fmt.Errorf("decode source: %w", err)
		}
		if b.Target != nil {
			ref, _ := generate.SingleSentence(b.Target, b.TargetMask, i)
			if smp.Reference, err = s.Target.Decode(ref.Row(0)); err != nil {
				return nil, fmt.Errorf("decode reference: %w", err)
			}
		}
		if smp.Output, err = s.Target.Decode(tokens); err != nil {
			return nil, fmt.Errorf("decode sample: %w", err)
		}
		out = append(out, smp)
	}
	return out, nil
}

// truncateInclusive cuts ids after the first eos.
func truncateInclusive(ids []int, eos int) []int {
	if i := slices.Index(ids, eos); eos >= 0 && i >= 0 {
		return ids[:i+1]
	}
	return ids
}
