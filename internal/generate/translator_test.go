package generate

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/born-ml/nmt/internal/config"
	"github.com/born-ml/nmt/internal/model"
	"github.com/born-ml/nmt/internal/tokenizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTranslator(t *testing.T, opts ...TranslatorOption) (*Translator, *tokenizer.Vocabulary) {
	t.Helper()
	cfg, err := config.Prototype("wmt15_fi_en_TEST")
	require.NoError(t, err)
	cfg.EncNHids, cfg.DecNHids = 4, 6
	cfg.EncEmbed, cfg.DecEmbed = 3, 5
	cfg.SrcVocabSize, cfg.TrgVocabSize = 8, 8
	cfg.WeightScale = 0.5

	m, err := model.New(cfg, model.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	src, err := tokenizer.NewVocabulary(map[string]int{"yksi": 2, "kaksi": 3, "kolme": 4}, 8, 1)
	require.NoError(t, err)
	trg, err := tokenizer.NewVocabulary(map[string]int{"one": 2, "two": 3, "three": 4, "four": 5, "five": 6}, 8, 1)
	require.NoError(t, err)

	return NewTranslator(m, m.Decoder.Generator, 3, src, trg, opts...), trg
}

func TestTranslator_Translate(t *testing.T) {
	tr, trg := newTestTranslator(t)

	out, err := tr.Translate(context.Background(), "yksi kaksi kolme")
	require.NoError(t, err)
	require.NotEmpty(t, out.Candidates)
	assert.Equal(t, out.Candidates[0].Tokens, out.Tokens)
	assert.LessOrEqual(t, len(out.Tokens), 2*4, "budget is twice the source length, </S> included")

	want, err := trg.Decode(out.Tokens)
	require.NoError(t, err)
	assert.Equal(t, want, out.Text)
	assert.NotContains(t, out.Text, tokenizer.EosWord)

	again, err := tr.Translate(context.Background(), "yksi kaksi kolme")
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestTranslator_Normalized(t *testing.T) {
	tr, _ := newTestTranslator(t, WithNormalizedCosts(true), WithMaxLengthRatio(1))
	out, err := tr.Translate(context.Background(), "kolme kaksi")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out.Tokens), 3)
	for _, h := range out.Candidates[1:] {
		assert.LessOrEqual(t, out.Candidates[0].NormalizedCost(), h.NormalizedCost())
	}
}

func TestTranslator_Errors(t *testing.T) {
	tr, _ := newTestTranslator(t)

	_, err := tr.TranslateIDs(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tr.Translate(ctx, "yksi")
	assert.ErrorIs(t, err, context.Canceled)

	_, err = tr.TranslateIDs(context.Background(), []int{2, 99})
	assert.Error(t, err)
}
