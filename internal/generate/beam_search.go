package generate

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/born-ml/nmt/internal/nn"
	"github.com/born-ml/nmt/internal/tensor"
	"gonum.org/v1/gonum/mat"
)

// ErrBeam is returned for invalid beam search arguments.
var ErrBeam = errors.New("generate: invalid beam search")

// BeamSearch decodes one source sentence with a fixed-width beam.
//
// At every step each live hypothesis is extended by every target token; the
// BeamSize cheapest extensions survive. A hypothesis that emitted EOS is
// finished and only extends with EOS again at no cost, so its total stays
// fixed. The search ends when every surviving hypothesis is finished or the
// step budget is spent.
type BeamSearch struct {
	Generator *nn.SequenceGenerator
	BeamSize  int
	EOS       int
}

// Hypothesis is one beam search result.
type Hypothesis struct {
	Tokens   []int   // emitted tokens, up to and including EOS when finished
	Cost     float64 // summed negative log-likelihood of Tokens
	Finished bool
}

// NormalizedCost returns the cost per emitted token.
func (h Hypothesis) NormalizedCost() float64 {
	if len(h.Tokens) == 0 {
		return h.Cost
	}
	return h.Cost / float64(len(h.Tokens))
}

// SearchOption configures a search.
type SearchOption func(*searchOptions)

type searchOptions struct {
	normalize bool
}

// WithLengthNormalization ranks hypotheses by cost per token.
func WithLengthNormalization(on bool) SearchOption {
	return func(o *searchOptions) {
		o.normalize = on
	}
}

// Search decodes the single sentence of c for at most maxLength steps and
// returns the surviving hypotheses, best first.
func (s *BeamSearch) Search(c nn.Context, maxLength int, opts ...SearchOption) ([]Hypothesis, error) {
	if s.BeamSize < 1 {
		return nil, fmt.Errorf("%w: beam size %d", ErrBeam, s.BeamSize)
	}
	if c.Attended.Batch() != 1 {
		return nil, fmt.Errorf("%w: context batch %d, want 1", ErrBeam, c.Attended.Batch())
	}
	if maxLength < 1 {
		return nil, fmt.Errorf("%w: max length %d", ErrBeam, maxLength)
	}
	o := searchOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	k := s.BeamSize
	tiled := tileContext(c, k)
	run := s.Generator.Start(tiled)

	costs := make([]float64, k)
	for i := 1; i < k; i++ {
		// Identical rows at the first step; only row 0 may expand.
		costs[i] = math.Inf(1)
	}
	prefixes := make([][]int, k)
	finished := make([]bool, k)

	for step := 0; step < maxLength; step++ {
		logits, glimpses, weights := run.Logits()
		cands := s.candidates(logits, costs, finished)
		if len(cands) == 0 {
			break
		}

		parents := make([]int, k)
		outputs := make([]int, k)
		nextCosts := make([]float64, k)
		nextPrefixes := make([][]int, k)
		nextFinished := make([]bool, k)
		for i := 0; i < k; i++ {
			if i >= len(cands) {
				// Fewer live extensions than the beam: pad with a dead row.
				parents[i], outputs[i], nextCosts[i] = cands[0].parent, s.EOS, math.Inf(1)
				nextPrefixes[i] = prefixes[cands[0].parent]
				nextFinished[i] = true
				continue
			}
			cd := cands[i]
			parents[i], outputs[i], nextCosts[i] = cd.parent, cd.token, cd.cost
			if finished[cd.parent] {
				nextPrefixes[i] = prefixes[cd.parent]
				nextFinished[i] = true
				continue
			}
			nextPrefixes[i] = append(slices.Clone(prefixes[cd.parent]), cd.token)
			nextFinished[i] = cd.token == s.EOS
		}

		state := reorder(run.State(), parents)
		run = s.Generator.StartFrom(tiled, state)
		run.Advance(outputs, selectRows(glimpses, parents), selectCols(weights, parents), nil)

		costs, prefixes, finished = nextCosts, nextPrefixes, nextFinished
		if allDone(costs, finished) {
			break
		}
	}
	run.Finish()

	var out []Hypothesis
	for i := 0; i < k; i++ {
		if math.IsInf(costs[i], 1) {
			continue
		}
		out = append(out, Hypothesis{Tokens: prefixes[i], Cost: costs[i], Finished: finished[i]})
	}
	rank := func(h Hypothesis) float64 { return h.Cost }
	if o.normalize {
		rank = Hypothesis.NormalizedCost
	}
	slices.SortStableFunc(out, func(a, b Hypothesis) int {
		return cmp.Compare(rank(a), rank(b))
	})
	return out, nil
}

type candidate struct {
	parent int
	token  int
	cost   float64
}

// candidates returns the BeamSize cheapest finite extensions, cheapest first.
func (s *BeamSearch) candidates(logits *mat.Dense, costs []float64, finished []bool) []candidate {
	rows, vocab := logits.Dims()
	var all []candidate
	for b := 0; b < rows; b++ {
		if math.IsInf(costs[b], 1) {
			continue
		}
		if finished[b] {
			all = append(all, candidate{parent: b, token: s.EOS, cost: costs[b]})
			continue
		}
		logp := nn.LogSoftmax(logits.RawRowView(b))
		for v := 0; v < vocab; v++ {
			all = append(all, candidate{parent: b, token: v, cost: costs[b] - logp[v]})
		}
	}
	slices.SortStableFunc(all, func(a, b candidate) int {
		return cmp.Compare(a.cost, b.cost)
	})
	return all[:min(len(all), s.BeamSize)]
}

func allDone(costs []float64, finished []bool) bool {
	for i, f := range finished {
		if !f && !math.IsInf(costs[i], 1) {
			return false
		}
	}
	return true
}

// tileContext repeats the single sentence of c across k batch rows.
func tileContext(c nn.Context, k int) nn.Context {
	out := nn.Context{
		Attended:     c.Attended.Tile(0, k),
		Preprocessed: c.Preprocessed.Tile(0, k),
	}
	if c.Mask != nil {
		out.Mask = make([][]float64, len(c.Mask))
		for t, m := range c.Mask {
			row := make([]float64, k)
			for i := range row {
				row[i] = m[0]
			}
			out.Mask[t] = row
		}
	}
	return out
}

// reorder gathers the decoder state of the chosen parents.
func reorder(s nn.DecoderState, parents []int) nn.DecoderState {
	outputs := make([]int, len(parents))
	for i, p := range parents {
		outputs[i] = s.Outputs[p]
	}
	return nn.DecoderState{
		States:   selectRows(s.States, parents),
		Outputs:  outputs,
		Glimpses: selectRows(s.Glimpses, parents),
		Weights:  selectCols(s.Weights, parents),
	}
}

func selectRows(m *mat.Dense, rows []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(rows), c, nil)
	for i, r := range rows {
		out.SetRow(i, m.RawRowView(r))
	}
	return out
}

func selectCols(m *mat.Dense, cols []int) *mat.Dense {
	r, _ := m.Dims()
	out := mat.NewDense(r, len(cols), nil)
	for j, c := range cols {
		for i := 0; i < r; i++ {
			out.Set(i, j, m.At(i, c))
		}
	}
	return out
}

// Best returns the cheapest hypothesis of hyps, which must be sorted.
func Best(hyps []Hypothesis) (Hypothesis, bool) {
	if len(hyps) == 0 {
		return Hypothesis{}, false
	}
	return hyps[0], true
}

// SingleSentence returns row b of tokens and mask as a batch of one,
// truncated to its valid length.
func SingleSentence(tokens *tensor.Tokens, mask *tensor.Mask, b int) (*tensor.Tokens, *tensor.Mask) {
	n := tokens.Len()
	if mask != nil {
		n = mask.Lengths()[b]
	}
	row := slices.Clone(tokens.Row(b)[:n])
	out, _ := tensor.TokensFromSlice(row, 1, n)
	return out, tensor.OnesMask(1, n)
}
