package bleu

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/born-ml/nmt/internal/parallel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerfectMatch(t *testing.T) {
	s, err := Corpus(
		[]string{"the cat sat on the mat", "a b c d e"},
		[]string{"the cat sat on the mat", "a b c d e"},
	)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, s.Score(), 1e-9)
	assert.InDelta(t, 1.0, s.BrevityPenalty(), 0)
	assert.Equal(t, 2, s.Sentences)
}

func TestNoFourGramScoresZero(t *testing.T) {
	s, err := Corpus([]string{"the cat sat"}, []string{"the cat sat"})
	require.NoError(t, err)
	assert.Zero(t, s.Totals[3])
	assert.Zero(t, s.Score())
}

func TestClippedCounts(t *testing.T) {
	var s Stats
	s.Add("the the the the the the the", "the cat is on the mat")
	assert.Equal(t, 2, s.Matches[0], "unigram 'the' clipped to its reference count")
	assert.Equal(t, 7, s.Totals[0])
	assert.Equal(t, 6, s.Totals[1])
}

func TestKnownScore(t *testing.T) {
	var s Stats
	s.Add("a b c d e f", "a b c d x f g")

	assert.Equal(t, [MaxOrder]int{5, 3, 2, 1}, s.Matches)
	assert.Equal(t, [MaxOrder]int{6, 5, 4, 3}, s.Totals)
	bp := math.Exp(1 - 7.0/6.0)
	want := 100 * bp * math.Exp((math.Log(5.0/6)+math.Log(3.0/5)+math.Log(2.0/4)+math.Log(1.0/3))/4)
	assert.InDelta(t, want, s.Score(), 1e-9)
	assert.InDelta(t, bp, s.BrevityPenalty(), 1e-12)
}

func TestClosestReference(t *testing.T) {
	var s Stats
	s.Add("a b c d", "a b", "a b c d e", "a b c")
	// lengths 2, 5, 3: distance 1 ties between 5 and 3, the shorter wins
	assert.Equal(t, 3, s.RefLength)
}

func TestMergeMatchesCorpus(t *testing.T) {
	hyps := []string{"a b c d e", "x y z w v u"}
	refs := []string{"a b c d f", "x y z w v"}
	whole, err := Corpus(hyps, refs)
	require.NoError(t, err)

	var parts Stats
	for i := range hyps {
		var one Stats
		one.Add(hyps[i], refs[i])
		parts.Merge(one)
	}
	assert.Equal(t, whole, parts)
}

func TestCorpusParallelMatchesSequential(t *testing.T) {
	var hyps, refs []string
	for i := 0; i < 300; i++ {
		hyps = append(hyps, strings.Repeat("a b c ", i%7+1)+"d")
		refs = append(refs, strings.Repeat("a b c ", i%5+1)+"e")
	}

	seq, err := CorpusWith(hyps, refs, parallel.Config{})
	require.NoError(t, err)
	par, err := CorpusWith(hyps, refs, parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 16})
	require.NoError(t, err)
	assert.Equal(t, seq, par)
	assert.Equal(t, 300, par.Sentences)

	_, err = CorpusWith(hyps, refs[:1], parallel.Config{})
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestEmptyHypotheses(t *testing.T) {
	s, err := Corpus([]string{""}, []string{"a b c d"})
	require.NoError(t, err)
	assert.Zero(t, s.Score())
	assert.Zero(t, s.BrevityPenalty())
}

func TestCorpusMismatch(t *testing.T) {
	_, err := Corpus([]string{"a"}, nil)
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestScoreFromFiles(t *testing.T) {
	ref := filepath.Join(t.TempDir(), "ref.txt")
	require.NoError(t, os.WriteFile(ref, []byte("a b c d e\nf g h i j\n"), 0o600))

	s, err := Score(strings.NewReader("a b c d e\nf g h i j\n"), ref)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, s.Score(), 1e-9)
	assert.True(t, strings.HasPrefix(s.String(), "BLEU = 100.00, 100.0/100.0/100.0/100.0 (BP=1.000"))

	_, err = Score(strings.NewReader("a\n"), ref)
	assert.ErrorIs(t, err, ErrMismatch)
}
