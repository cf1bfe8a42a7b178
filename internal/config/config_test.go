package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrototypes(t *testing.T) {
	assert.Equal(t, []string{"wmt15_fi_en_40k", "wmt15_fi_en_TEST"}, Prototypes())

	for _, name := range Prototypes() {
		t.Run(name, func(t *testing.T) {
			cfg, err := Prototype(name)
			require.NoError(t, err)
			assert.NoError(t, cfg.Validate())
		})
	}

	_, err := Prototype("wmt15_xx")
	assert.True(t, errors.Is(err, ErrUnknownPrototype))
}

func TestPrototype_Values(t *testing.T) {
	cfg, err := Prototype(DefaultPrototype)
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.EncNHids)
	assert.Equal(t, 40001, cfg.TrgVocabSize)
	assert.Equal(t, "AdaDelta", cfg.StepRule)
	assert.False(t, cfg.DropoutEnabled())

	test, err := Prototype("wmt15_fi_en_TEST")
	require.NoError(t, err)
	assert.Equal(t, 100, test.DecNHids)
	assert.Equal(t, 2, test.BeamSize)
	assert.Equal(t, "refBlocks3_TEST", test.SaveTo)

	// Prototypes return independent copies.
	test.BeamSize = 99
	again, _ := Prototype("wmt15_fi_en_TEST")
	assert.Equal(t, 2, again.BeamSize)
}

func TestParse_Overrides(t *testing.T) {
	base, err := Prototype("wmt15_fi_en_TEST")
	require.NoError(t, err)

	cfg, err := Parse([]byte("dec_nhids: 40\ndropout: 0.5\nstream: en-fr\n"), base)
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.DecNHids)
	assert.Equal(t, "en-fr", cfg.Stream)
	assert.True(t, cfg.DropoutEnabled())
	assert.Equal(t, base.EncNHids, cfg.EncNHids)

	_, err = Parse([]byte("no_such_option: 1\n"), base)
	assert.Error(t, err)

	empty, err := Parse(nil, base)
	require.NoError(t, err)
	assert.Equal(t, base, empty)
}

func TestLoad(t *testing.T) {
	base, _ := Prototype("wmt15_fi_en_TEST")
	path := filepath.Join(t.TempDir(), "override.yaml")
	require.NoError(t, os.WriteFile(path, []byte("beam_size: 5\n"), 0o600))

	cfg, err := Load(path, base)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.BeamSize)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), base)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestMarshal_RoundTrip(t *testing.T) {
	base, _ := Prototype(DefaultPrototype)
	data, err := base.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "enc_nhids: 1000")

	back, err := Parse(data, Config{})
	require.NoError(t, err)
	assert.Equal(t, base, back)
}

func TestValidate(t *testing.T) {
	base, _ := Prototype("wmt15_fi_en_TEST")

	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"odd decoder", func(c *Config) { c.DecNHids = 7 }, "dec_nhids must be even"},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, "batch_size must be positive"},
		{"unk is eos", func(c *Config) { c.UnkID = c.TrgVocabSize - 1 }, "unk_id"},
		{"negative freq", func(c *Config) { c.SaveFreq = -1 }, "save_freq"},
		{"negative dropout", func(c *Config) { c.Dropout = -0.1 }, "dropout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.modify(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
