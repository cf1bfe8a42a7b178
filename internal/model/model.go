// Package model assembles the RNNsearch encoder-decoder from nn modules and
// validates batches at its entry points.
//
// Every method of Model that accepts caller data returns an error wrapping
// tensor.ErrContract when shapes, masks or ids are malformed; the nn layers
// underneath assume valid input.
package model

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"github.com/born-ml/nmt/internal/config"
	"github.com/born-ml/nmt/internal/nn"
	"github.com/born-ml/nmt/internal/tensor"
)

// Model is a bidirectional-encoder attention-decoder translation model.
type Model struct {
	Encoder *Encoder
	Decoder *Decoder

	logger *slog.Logger
}

// Option configures a Model.
type Option func(*options)

type options struct {
	logger *slog.Logger
	init   *nn.Init
}

// WithLogger sets the logger used for construction and loading messages.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithInit replaces the initialization scheme derived from the config.
func WithInit(init nn.Init) Option {
	return func(o *options) {
		o.init = &init
	}
}

// New builds a model from cfg.
//
// Weights are drawn from IsotropicGaussian(weight_scale), biases start at 0
// and recurrent matrices are orthogonal, all seeded by cfg.Seed.
func New(cfg config.Config, opts ...Option) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model config: %w", err)
	}
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	init := nn.DefaultInit(cfg.WeightScale, cfg.Seed)
	if o.init != nil {
		init = *o.init
	}

	enc := NewEncoder(cfg.SrcVocabSize, cfg.EncEmbed, cfg.EncNHids, init)
	dec := NewDecoder(cfg.TrgVocabSize, cfg.DecEmbed, cfg.DecNHids, enc.RepresentationDim(), cfg.EncNHids, init)
	m := &Model{Encoder: enc, Decoder: dec, logger: o.logger}
	m.logShapes()
	return m, nil
}

// Encode validates and encodes a source batch.
func (m *Model) Encode(source *tensor.Tokens, sourceMask *tensor.Mask) (tensor.Sequence, error) {
	repr, err := m.Encoder.Apply(source, sourceMask)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return repr, nil
}

// Cost returns the training loss of a parallel batch.
func (m *Model) Cost(source *tensor.Tokens, sourceMask *tensor.Mask, target *tensor.Tokens, targetMask *tensor.Mask, opts ...nn.CostOption) (float64, error) {
	c, err := m.context(source, sourceMask)
	if err != nil {
		return 0, err
	}
	cost, err := m.Decoder.Cost(c, target, targetMask, opts...)
	if err != nil {
		return 0, fmt.Errorf("cost: %w", err)
	}
	return cost, nil
}

// Context encodes a source batch and prepares it for step-wise decoding.
func (m *Model) Context(source *tensor.Tokens, sourceMask *tensor.Mask) (nn.Context, error) {
	return m.context(source, sourceMask)
}

func (m *Model) context(source *tensor.Tokens, sourceMask *tensor.Mask) (nn.Context, error) {
	repr, err := m.Encode(source, sourceMask)
	if err != nil {
		return nn.Context{}, err
	}
	c, err := m.Decoder.Context(repr, sourceMask)
	if err != nil {
		return nn.Context{}, fmt.Errorf("decoder context: %w", err)
	}
	return c, nil
}

// Generate encodes source with every position valid and decodes for twice
// its length with emitter.
func (m *Model) Generate(source *tensor.Tokens, emitter nn.Emitter) (nn.Generation, error) {
	if source == nil {
		return nn.Generation{}, &tensor.ShapeError{Tensor: "source", Expected: tensor.Shape{-1, -1}}
	}
	c, err := m.context(source, tensor.OnesMask(source.Batch(), source.Len()))
	if err != nil {
		return nn.Generation{}, err
	}
	return m.Decoder.Generate(c, emitter), nil
}

// Parameters returns every model parameter, encoder first.
func (m *Model) Parameters() []*nn.Parameter {
	return nn.CollectParameters(m.Encoder, m.Decoder)
}

// ParameterMap indexes the parameters by name.
func (m *Model) ParameterMap() map[string]*nn.Parameter {
	params := m.Parameters()
	out := make(map[string]*nn.Parameter, len(params))
	for _, p := range params {
		out[p.Name()] = p
	}
	return out
}

// FeedforwardParameters is the weight-noise set: encoder lookup and forks,
// decoder readout, feedback fork and state initializer.
func (m *Model) FeedforwardParameters() []*nn.Parameter {
	return append(m.Encoder.FeedforwardParameters(), m.Decoder.FeedforwardParameters()...)
}

// RecurrentParameters returns the GRU weights of encoder and decoder.
func (m *Model) RecurrentParameters() []*nn.Parameter {
	return append(m.Encoder.RecurrentParameters(), m.Decoder.RecurrentParameters()...)
}

// ParameterCount returns the number of scalar parameters.
func (m *Model) ParameterCount() int {
	var n int
	for _, p := range m.Parameters() {
		n += p.Size()
	}
	return n
}

// ShapeCount is the number of parameters sharing one shape.
type ShapeCount struct {
	Shape tensor.Shape
	Count int
}

// ShapeCensus groups the parameters by shape, most common first.
func (m *Model) ShapeCensus() []ShapeCount {
	counts := make(map[string]*ShapeCount)
	var order []*ShapeCount
	for _, p := range m.Parameters() {
		key := p.Shape().String()
		if c, ok := counts[key]; ok {
			c.Count++
			continue
		}
		c := &ShapeCount{Shape: p.Shape(), Count: 1}
		counts[key] = c
		order = append(order, c)
	}
	slices.SortStableFunc(order, func(a, b *ShapeCount) int {
		return cmp.Compare(b.Count, a.Count)
	})
	out := make([]ShapeCount, len(order))
	for i, c := range order {
		out[i] = *c
	}
	return out
}

func (m *Model) logShapes() {
	for _, c := range m.ShapeCensus() {
		m.logger.Debug("parameter shape", "shape", c.Shape.String(), "count", c.Count)
	}
	for _, p := range m.Parameters() {
		m.logger.Debug("parameter", "name", p.Name(), "shape", p.Shape().String())
	}
	m.logger.Info("model built",
		"parameters", len(m.Parameters()),
		"values", m.ParameterCount())
}
