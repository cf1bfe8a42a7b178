// Package config holds the training and model options of a translation run.
//
// A Config is built once at process start from a named prototype, optionally
// overridden by a YAML file, validated and then passed to every constructor.
// Nothing in the module reads configuration from package-level state.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrUnknownPrototype is returned for a prototype name that is not registered.
var ErrUnknownPrototype = errors.New("unknown prototype")

// Config mirrors the option set of the training script.
type Config struct {
	// Model related.
	SeqLen   int    `yaml:"seq_len"`
	EncNHids int    `yaml:"enc_nhids"`
	DecNHids int    `yaml:"dec_nhids"`
	EncEmbed int    `yaml:"enc_embed"`
	DecEmbed int    `yaml:"dec_embed"`
	SaveTo   string `yaml:"saveto"`

	// Optimization related.
	BatchSize    int     `yaml:"batch_size"`
	SortKBatches int     `yaml:"sort_k_batches"`
	StepRule     string  `yaml:"step_rule"`
	StepClipping float64 `yaml:"step_clipping"`
	WeightScale  float64 `yaml:"weight_scale"`
	LearningRate float64 `yaml:"learning_rate"`
	Gradient     string  `yaml:"gradient"`
	Seed         int64   `yaml:"seed"`

	// Regularization related. Dropout is the drop probability and is only
	// applied when below 1.
	WeightNoiseFF  float64 `yaml:"weight_noise_ff"`
	WeightNoiseRec float64 `yaml:"weight_noise_rec"`
	Dropout        float64 `yaml:"dropout"`

	// Vocabulary/dataset related.
	Stream       string `yaml:"stream"`
	Tokenizer    string `yaml:"tokenizer"`
	SrcVocab     string `yaml:"src_vocab"`
	TrgVocab     string `yaml:"trg_vocab"`
	SrcData      string `yaml:"src_data"`
	TrgData      string `yaml:"trg_data"`
	SrcVocabSize int    `yaml:"src_vocab_size"`
	TrgVocabSize int    `yaml:"trg_vocab_size"`
	UnkID        int    `yaml:"unk_id"`

	// Early stopping based on BLEU.
	NormalizedBleu  bool   `yaml:"normalized_bleu"`
	ValSet          string `yaml:"val_set"`
	ValSetGrndtruth string `yaml:"val_set_grndtruth"`
	ValSetOut       string `yaml:"val_set_out"`
	OutputValSet    bool   `yaml:"output_val_set"`
	BeamSize        int    `yaml:"beam_size"`
	BleuPatience    int    `yaml:"bleu_patience"`

	// Timing related.
	Reload       bool `yaml:"reload"`
	SaveFreq     int  `yaml:"save_freq"`
	SamplingFreq int  `yaml:"sampling_freq"`
	BleuValFreq  int  `yaml:"bleu_val_freq"`
	ValBurnIn    int  `yaml:"val_burn_in"`
	FinishAfter  int  `yaml:"finish_after"`

	// Monitoring related.
	HookSamples int `yaml:"hook_samples"`
}

// DropoutEnabled reports whether dropout is applied to the readout.
func (c Config) DropoutEnabled() bool {
	return c.Dropout > 0 && c.Dropout < 1
}

// Load reads YAML overrides from path on top of base.
// Keys missing from the file keep the value of base.
func Load(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path comes from a command-line flag
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := Parse(data, base)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML overrides on top of base. Unknown keys are an error.
func Parse(data []byte, base Config) (Config, error) {
	cfg := base
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return cfg, nil
}

// Marshal renders the configuration as YAML, for logging and dumps.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks that the options describe a buildable model and a
// runnable schedule.
func (c Config) Validate() error {
	var errs []error
	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	positive("seq_len", c.SeqLen)
	positive("enc_nhids", c.EncNHids)
	positive("dec_nhids", c.DecNHids)
	positive("enc_embed", c.EncEmbed)
	positive("dec_embed", c.DecEmbed)
	positive("batch_size", c.BatchSize)
	positive("sort_k_batches", c.SortKBatches)
	positive("src_vocab_size", c.SrcVocabSize)
	positive("trg_vocab_size", c.TrgVocabSize)
	positive("beam_size", c.BeamSize)

	if c.DecNHids%2 != 0 {
		errs = append(errs, fmt.Errorf("dec_nhids must be even for the maxout readout, got %d", c.DecNHids))
	}
	if c.UnkID <= 0 || c.UnkID >= c.SrcVocabSize-1 || c.UnkID >= c.TrgVocabSize-1 {
		errs = append(errs, fmt.Errorf("unk_id %d collides with <S>=0 or </S>=vocab_size-1", c.UnkID))
	}
	if c.WeightScale <= 0 {
		errs = append(errs, fmt.Errorf("weight_scale must be positive, got %g", c.WeightScale))
	}
	if c.StepClipping < 0 {
		errs = append(errs, fmt.Errorf("step_clipping must not be negative, got %g", c.StepClipping))
	}
	if c.Dropout < 0 {
		errs = append(errs, fmt.Errorf("dropout must not be negative, got %g", c.Dropout))
	}
	if c.WeightNoiseFF < 0 || c.WeightNoiseRec < 0 {
		errs = append(errs, errors.New("weight noise must not be negative"))
	}
	for name, v := range map[string]int{
		"save_freq":     c.SaveFreq,
		"sampling_freq": c.SamplingFreq,
		"bleu_val_freq": c.BleuValFreq,
		"val_burn_in":   c.ValBurnIn,
		"finish_after":  c.FinishAfter,
		"hook_samples":  c.HookSamples,
		"bleu_patience": c.BleuPatience,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", name, v))
		}
	}
	return errors.Join(errs...)
}

// Prototype returns a copy of the named prototype configuration.
func Prototype(name string) (Config, error) {
	fn, ok := prototypes[name]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q (known: %v)", ErrUnknownPrototype, name, Prototypes())
	}
	return fn(), nil
}

// Prototypes returns the registered prototype names, sorted.
func Prototypes() []string {
	names := make([]string, 0, len(prototypes))
	for name := range prototypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
