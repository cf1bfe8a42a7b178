package generate

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/born-ml/nmt/internal/nn"
	"github.com/born-ml/nmt/internal/tensor"
	"github.com/born-ml/nmt/internal/tokenizer"
)

// ErrEmptyInput is returned when a sentence encodes to no tokens.
var ErrEmptyInput = errors.New("generate: empty input")

// Encoder builds a decoding context from a source batch.
type Encoder interface {
	Context(source *tensor.Tokens, sourceMask *tensor.Mask) (nn.Context, error)
}

// Translation is the decoded result of one sentence.
type Translation struct {
	Text       string
	Tokens     []int
	Cost       float64
	Finished   bool
	Candidates []Hypothesis
}

// Translator beam-decodes raw sentences.
type Translator struct {
	model  Encoder
	search *BeamSearch
	source tokenizer.Tokenizer
	target tokenizer.Tokenizer

	normalize bool
	maxRatio  int
}

// TranslatorOption configures a Translator.
type TranslatorOption func(*Translator)

// WithNormalizedCosts ranks hypotheses by cost per token.
func WithNormalizedCosts(on bool) TranslatorOption {
	return func(t *Translator) {
		t.normalize = on
	}
}

// WithMaxLengthRatio bounds the output at ratio times the source length.
func WithMaxLengthRatio(ratio int) TranslatorOption {
	return func(t *Translator) {
		t.maxRatio = ratio
	}
}

// NewTranslator creates a translator. The beam stops at the target
// tokenizer's end-of-sequence id.
func NewTranslator(
	model Encoder,
	generator *nn.SequenceGenerator,
	beamSize int,
	source, target tokenizer.Tokenizer,
	opts ...TranslatorOption,
) *Translator {
	t := &Translator{
		model:    model,
		search:   &BeamSearch{Generator: generator, BeamSize: beamSize, EOS: target.EosToken()},
		source:   source,
		target:   target,
		maxRatio: 2,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate encodes text with the source tokenizer, end-of-sequence id
// included, and returns the best hypothesis decoded with the target
// tokenizer.
func (t *Translator) Translate(ctx context.Context, text string) (Translation, error) {
	ids, err := tokenizer.EncodeSentence(t.source, text)
	if err != nil {
		return Translation{}, fmt.Errorf("encode source: %w", err)
	}
	if len(ids) == 0 {
		return Translation{}, ErrEmptyInput
	}
	return t.TranslateIDs(ctx, ids)
}

// TranslateIDs decodes an already tokenized source sentence.
func (t *Translator) TranslateIDs(ctx context.Context, ids []int) (Translation, error) {
	if err := ctx.Err(); err != nil {
		return Translation{}, err
	}
	if len(ids) == 0 {
		return Translation{}, ErrEmptyInput
	}
	source, err := tensor.TokensFromSlice(ids, 1, len(ids))
	if err != nil {
		return Translation{}, err
	}
	c, err := t.model.Context(source, tensor.OnesMask(1, len(ids)))
	if err != nil {
		return Translation{}, fmt.Errorf("encode: %w", err)
	}

	hyps, err := t.search.Search(c, t.maxRatio*len(ids), WithLengthNormalization(t.normalize))
	if err != nil {
		return Translation{}, err
	}
	best, ok := Best(hyps)
	if !ok {
		return Translation{}, fmt.Errorf("%w: no surviving hypothesis", ErrBeam)
	}
	text, err := t.target.Decode(best.Tokens)
	if err != nil {
		return Translation{}, fmt.Errorf("decode target: %w", err)
	}
	return Translation{
		Text:       text,
		Tokens:     slices.Clone(best.Tokens),
		Cost:       best.Cost,
		Finished:   best.Finished,
		Candidates: hyps,
	}, nil
}
