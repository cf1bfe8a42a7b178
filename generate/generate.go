// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package generate provides decoding utilities for translation models.
//
// This package wraps the internal generate implementations: emission
// policies for free-running decoding and beam search translation.
//
// Example usage:
//
//	import "github.com/born-ml/nmt/generate"
//
//	tr := generate.NewTranslator(m, m.Decoder.Generator, 12, srcVocab, trgVocab,
//	    generate.WithNormalizedCosts(true))
//	out, err := tr.Translate(ctx, "tämä on testi")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(out.Text)
package generate

import (
	"github.com/born-ml/nmt/internal/generate"
	"github.com/born-ml/nmt/internal/nn"
)

// SamplingConfig configures the sampling strategy.
//
// Fields:
//   - Temperature: randomness, 0 = greedy
//   - TopK, TopP, MinP: candidate filters
//   - RepeatPenalty, FrequencyPenalty, PresencePenalty: repetition control
//   - Seed: random seed, -1 = random
type SamplingConfig = generate.SamplingConfig

// DefaultSamplingConfig samples from the model distribution unchanged.
func DefaultSamplingConfig() SamplingConfig {
	return generate.DefaultSamplingConfig()
}

// Sampler draws one token per batch row from logits.
type Sampler = generate.Sampler

// NewSampler creates a sampler.
func NewSampler(config SamplingConfig) *Sampler {
	return generate.NewSampler(config)
}

// Greedy emits the most probable token of every row.
var Greedy nn.Emitter = generate.Greedy

// BeamSearch decodes one sentence with a fixed-width beam.
type BeamSearch = generate.BeamSearch

// Hypothesis is one beam search result.
type Hypothesis = generate.Hypothesis

// SearchOption configures a beam search.
type SearchOption = generate.SearchOption

// WithLengthNormalization ranks hypotheses by cost per token.
func WithLengthNormalization(on bool) SearchOption {
	return generate.WithLengthNormalization(on)
}

// Translator beam-decodes raw sentences.
type Translator = generate.Translator

// Translation is the decoded result of one sentence.
type Translation = generate.Translation

// TranslatorOption configures a Translator.
type TranslatorOption = generate.TranslatorOption

// Encoder builds a decoding context from a source batch.
type Encoder = generate.Encoder

// NewTranslator creates a translator over a model's sequence generator.
var NewTranslator = generate.NewTranslator

// WithNormalizedCosts ranks hypotheses by cost per token.
func WithNormalizedCosts(on bool) TranslatorOption {
	return generate.WithNormalizedCosts(on)
}

// WithMaxLengthRatio bounds the output at ratio times the source length.
func WithMaxLengthRatio(ratio int) TranslatorOption {
	return generate.WithMaxLengthRatio(ratio)
}
