// Package bleu scores translations with corpus-level BLEU-4, matching
// multi-bleu.perl: whitespace tokens, clipped n-gram counts summed over the
// corpus, geometric mean of the four precisions and a brevity penalty
// against the reference closest in length.
package bleu

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/born-ml/nmt/internal/parallel"
	"gonum.org/v1/gonum/floats"
)

// MaxOrder is the longest n-gram counted.
const MaxOrder = 4

// ErrMismatch is returned when hypotheses and references differ in count.
var ErrMismatch = errors.New("bleu: hypothesis and reference counts differ")

// Stats are the sufficient statistics of a corpus score.
type Stats struct {
	Matches   [MaxOrder]int // clipped n-gram matches per order
	Totals    [MaxOrder]int // hypothesis n-grams per order
	HypLength int
	RefLength int
	Sentences int
}

// Add accumulates one hypothesis against its references.
func (s *Stats) Add(hypothesis string, references ...string) {
	hyp := strings.Fields(hypothesis)
	refs := make([][]string, len(references))
	for i, r := range references {
		refs[i] = strings.Fields(r)
	}

	s.Sentences++
	s.HypLength += len(hyp)
	s.RefLength += closestLength(len(hyp), refs)

	for n := 1; n <= MaxOrder; n++ {
		hypCounts := ngrams(hyp, n)
		maxRef := make(map[string]int)
		for _, r := range refs {
			for g, c := range ngrams(r, n) {
				maxRef[g] = max(maxRef[g], c)
			}
		}
		for g, c := range hypCounts {
			s.Matches[n-1] += min(c, maxRef[g])
		}
		s.Totals[n-1] += max(len(hyp)-n+1, 0)
	}
}

// Merge adds the statistics of other.
func (s *Stats) Merge(other Stats) {
	for i := range s.Matches {
		s.Matches[i] += other.Matches[i]
		s.Totals[i] += other.Totals[i]
	}
	s.HypLength += other.HypLength
	s.RefLength += other.RefLength
	s.Sentences += other.Sentences
}

// Precisions returns the modified n-gram precision per order.
func (s Stats) Precisions() [MaxOrder]float64 {
	var p [MaxOrder]float64
	for i := range p {
		if s.Totals[i] > 0 {
			p[i] = float64(s.Matches[i]) / float64(s.Totals[i])
		}
	}
	return p
}

// BrevityPenalty returns exp(1 - r/c) when the hypotheses are shorter
// than the references, else 1.
func (s Stats) BrevityPenalty() float64 {
	if s.HypLength == 0 {
		return 0
	}
	if s.HypLength >= s.RefLength {
		return 1
	}
	return math.Exp(1 - float64(s.RefLength)/float64(s.HypLength))
}

// Score returns BLEU in [0, 100]. Any order without a match scores 0.
func (s Stats) Score() float64 {
	p := s.Precisions()
	logs := make([]float64, MaxOrder)
	for i, v := range p {
		if v == 0 {
			return 0
		}
		logs[i] = math.Log(v)
	}
	return 100 * s.BrevityPenalty() * math.Exp(floats.Sum(logs)/MaxOrder)
}

// String formats the score the way multi-bleu.perl prints it.
func (s Stats) String() string {
	p := s.Precisions()
	ratio := 0.0
	if s.RefLength > 0 {
		ratio = float64(s.HypLength) / float64(s.RefLength)
	}
	return fmt.Sprintf("BLEU = %.2f, %.1f/%.1f/%.1f/%.1f (BP=%.3f, ratio=%.3f, hyp_len=%d, ref_len=%d)",
		s.Score(), 100*p[0], 100*p[1], 100*p[2], 100*p[3],
		s.BrevityPenalty(), ratio, s.HypLength, s.RefLength)
}

// Corpus scores hypotheses against one reference each.
func Corpus(hypotheses, references []string) (Stats, error) {
	return CorpusWith(hypotheses, references, parallel.DefaultConfig())
}

// CorpusWith is Corpus with the sentence statistics counted under cfg.
func CorpusWith(hypotheses, references []string, cfg parallel.Config) (Stats, error) {
	if len(hypotheses) != len(references) {
		return Stats{}, fmt.Errorf("%w: %d vs %d", ErrMismatch, len(hypotheses), len(references))
	}
	per := make([]Stats, len(hypotheses))
	parallel.For(len(hypotheses), func(i int) {
		per[i].Add(hypotheses[i], references[i])
	}, cfg)

	var s Stats
	for _, one := range per {
		s.Merge(one)
	}
	return s, nil
}

// Score reads hypotheses from r and scores them against the lines of
// referencePath, one sentence per line.
func Score(r io.Reader, referencePath string) (Stats, error) {
	hyps, err := readLines(r)
	if err != nil {
		return Stats{}, fmt.Errorf("read hypotheses: %w", err)
	}
	f, err := os.Open(referencePath) //nolint:gosec // G304: path comes from the configuration
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open references: %w", err)
	}
	defer f.Close()
	refs, err := readLines(f)
	if err != nil {
		return Stats{}, fmt.Errorf("read references: %w", err)
	}
	return Corpus(hyps, refs)
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// closestLength returns the reference length closest to hypLen, the
// shorter one on ties.
func closestLength(hypLen int, refs [][]string) int {
	best, bestDiff := 0, math.MaxInt
	for _, r := range refs {
		d := len(r) - hypLen
		if d < 0 {
			d = -d
		}
		if d < bestDiff || (d == bestDiff && len(r) < best) {
			best, bestDiff = len(r), d
		}
	}
	return best
}

func ngrams(tokens []string, n int) map[string]int {
	counts := make(map[string]int)
	for i := 0; i+n <= len(tokens); i++ {
		counts[strings.Join(tokens[i:i+n], " ")]++
	}
	return counts
}
