// Package generate turns decoder logits into translations: emission
// policies for free-running generation and beam search over the decoder
// step API.
package generate

import (
	"math"
	"math/rand"
	"slices"

	"github.com/born-ml/nmt/internal/nn"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SamplingConfig configures the sampling strategy for free-running decoding.
type SamplingConfig struct {
	// Temperature controls randomness. 0 = greedy, 1 = the model distribution.
	Temperature float64

	// TopK limits sampling to top K tokens. 0 = disabled.
	TopK int

	// TopP (nucleus sampling) limits to tokens with cumulative prob < P. 1.0 = disabled.
	TopP float64

	// MinP filters tokens with prob < max_prob * MinP. 0 = disabled.
	MinP float64

	// Repetition control over the tokens each row emitted so far.
	RepeatPenalty    float64 // Penalty for repeated tokens. 1.0 = no penalty.
	FrequencyPenalty float64 // Penalty based on frequency. 0 = disabled.
	PresencePenalty  float64 // Penalty for presence. 0 = disabled.
	RepeatWindow     int     // Number of tokens to consider. 0 = all.

	// Seed for reproducibility. -1 = random.
	Seed int64
}

// DefaultSamplingConfig samples from the model distribution unchanged.
func DefaultSamplingConfig() SamplingConfig {
	return SamplingConfig{
		Temperature:   1.0,
		TopP:          1.0,
		RepeatPenalty: 1.0,
		Seed:          -1,
	}
}

// Sampler draws tokens from logits. It implements nn.Emitter and keeps the
// tokens of every batch row for the repetition penalties; call Reset
// between runs.
//
// A Sampler is not safe for concurrent use.
type Sampler struct {
	config  SamplingConfig
	rng     *rand.Rand
	history [][]int
}

var _ nn.Emitter = (*Sampler)(nil)

// NewSampler creates a new sampler with the given configuration.
func NewSampler(config SamplingConfig) *Sampler {
	var rng *rand.Rand
	if config.Seed >= 0 {
		rng = rand.New(rand.NewSource(config.Seed)) //nolint:gosec // Intentional deterministic seed for reproducibility
	} else {
		rng = rand.New(rand.NewSource(rand.Int63())) //nolint:gosec // User requested random seed
	}
	return &Sampler{config: config, rng: rng}
}

// Emit samples one token per logits row.
func (s *Sampler) Emit(logits *mat.Dense) []int {
	rows, _ := logits.Dims()
	if len(s.history) != rows {
		s.history = make([][]int, rows)
	}
	out := make([]int, rows)
	for b := range out {
		out[b] = s.Sample(logits.RawRowView(b), s.history[b])
		s.history[b] = append(s.history[b], out[b])
	}
	return out
}

// Reset forgets the emitted tokens.
func (s *Sampler) Reset() {
	s.history = nil
}

// Sample returns the next token id from one row of logits.
//
// The sampling process:
//  1. Apply repetition penalty
//  2. Apply frequency/presence penalties
//  3. Apply temperature scaling (argmax at temperature 0)
//  4. Apply Top-K filtering
//  5. Apply Top-P (nucleus) filtering
//  6. Apply Min-P filtering
//  7. Sample from the distribution
func (s *Sampler) Sample(logits []float64, previous []int) int {
	logits = slices.Clone(logits)
	previous = s.window(previous)

	if s.config.RepeatPenalty != 0 && s.config.RepeatPenalty != 1.0 && len(previous) > 0 {
		s.applyRepetitionPenalty(logits, previous)
	}
	if s.config.FrequencyPenalty != 0 || s.config.PresencePenalty != 0 {
		s.applyFrequencyPenalty(logits, previous)
	}

	if s.config.Temperature <= 0 {
		return floats.MaxIdx(logits)
	}
	if s.config.Temperature != 1.0 {
		floats.Scale(1/s.config.Temperature, logits)
	}

	if s.config.TopK > 0 && s.config.TopK < len(logits) {
		s.topKFilter(logits)
	}
	if s.config.TopP > 0 && s.config.TopP < 1.0 {
		s.topPFilter(logits)
	}
	if s.config.MinP > 0 {
		s.minPFilter(logits)
	}
	return s.multinomial(softmax(logits))
}

func (s *Sampler) window(prev []int) []int {
	if w := s.config.RepeatWindow; w > 0 && len(prev) > w {
		return prev[len(prev)-w:]
	}
	return prev
}

// applyRepetitionPenalty penalizes tokens that appeared recently.
func (s *Sampler) applyRepetitionPenalty(logits []float64, prev []int) {
	seen := make(map[int]bool, len(prev))
	for _, tok := range prev {
		if seen[tok] || tok < 0 || tok >= len(logits) {
			continue
		}
		seen[tok] = true
		if logits[tok] > 0 {
			logits[tok] /= s.config.RepeatPenalty
		} else {
			logits[tok] *= s.config.RepeatPenalty
		}
	}
}

// applyFrequencyPenalty penalizes based on token frequency.
func (s *Sampler) applyFrequencyPenalty(logits []float64, prev []int) {
	freq := make(map[int]int, len(prev))
	for _, tok := range prev {
		freq[tok]++
	}
	for tok, count := range freq {
		if tok < 0 || tok >= len(logits) {
			continue
		}
		logits[tok] -= s.config.FrequencyPenalty*float64(count) + s.config.PresencePenalty
	}
}

// topKFilter sets every logit below the k-th largest to -inf.
func (s *Sampler) topKFilter(logits []float64) {
	sorted := slices.Clone(logits)
	slices.SortFunc(sorted, func(a, b float64) int {
		switch {
		case a > b:
			return -1
		case a < b:
			return 1
		}
		return 0
	})
	threshold := sorted[s.config.TopK-1]
	for i := range logits {
		if logits[i] < threshold {
			logits[i] = math.Inf(-1)
		}
	}
}

// topPFilter keeps the smallest prefix of tokens, by decreasing
// probability, whose mass exceeds TopP.
func (s *Sampler) topPFilter(logits []float64) {
	probs := softmax(logits)
	order := make([]int, len(probs))
	floats.Argsort(slices.Clone(probs), order)
	slices.Reverse(order)

	var cum float64
	keep := make([]bool, len(logits))
	for _, idx := range order {
		keep[idx] = true
		cum += probs[idx]
		if cum > s.config.TopP {
			break
		}
	}
	for i := range logits {
		if !keep[i] {
			logits[i] = math.Inf(-1)
		}
	}
}

// minPFilter keeps tokens with prob >= max_prob * minP.
func (s *Sampler) minPFilter(logits []float64) {
	probs := softmax(logits)
	threshold := floats.Max(probs) * s.config.MinP
	for i := range logits {
		if probs[i] < threshold {
			logits[i] = math.Inf(-1)
		}
	}
}

// multinomial samples from a categorical distribution.
func (s *Sampler) multinomial(probs []float64) int {
	r := s.rng.Float64()
	var cum float64
	last := 0
	for i, p := range probs {
		if p == 0 {
			continue
		}
		cum += p
		last = i
		if r < cum {
			return i
		}
	}
	// Rounding left r above the total mass.
	return last
}

// softmax converts logits to probabilities; -inf logits get probability 0.
func softmax(logits []float64) []float64 {
	probs := make([]float64, len(logits))
	maxVal := floats.Max(logits)
	if math.IsInf(maxVal, -1) {
		return probs
	}
	var sum float64
	for i, v := range logits {
		if math.IsInf(v, -1) {
			continue
		}
		probs[i] = math.Exp(v - maxVal)
		sum += probs[i]
	}
	floats.Scale(1/sum, probs)
	return probs
}

// Greedy emits the most probable token of every row.
var Greedy nn.Emitter = nn.EmitterFunc(func(logits *mat.Dense) []int {
	rows, _ := logits.Dims()
	out := make([]int, rows)
	for b := range out {
		out[b] = floats.MaxIdx(logits.RawRowView(b))
	}
	return out
})
