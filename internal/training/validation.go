package training

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/born-ml/nmt/internal/bleu"
	"github.com/born-ml/nmt/internal/checkpoint"
	"github.com/born-ml/nmt/internal/generate"
	"github.com/born-ml/nmt/internal/parallel"
	"github.com/born-ml/nmt/internal/stream"
)

// BleuValidator beam-decodes the validation sources every Every
// iterations once BurnIn iterations are done, scores them against the
// references and keeps the best model. After Patience validations without
// improvement it requests the finish; zero patience never stops.
type BleuValidator struct {
	Translator *generate.Translator
	Sources    [][]int  // tokenized, end-of-sequence id included
	References []string // one line per source

	Every    int
	BurnIn   int
	Patience int

	OutputPath string              // hypotheses are written here when set
	Manager    *checkpoint.Manager // best models are saved here when set
	KeepBest   int
	Parallel   parallel.Config
}

// Name implements Extension.
func (*BleuValidator) Name() string { return "bleu_validator" }

// AfterBatch implements AfterBatch.
func (v *BleuValidator) AfterBatch(ctx context.Context, l *MainLoop, _ *stream.Batch) error {
	it := l.Status.IterationsDone
	if it < v.BurnIn || !every(v.Every, it) {
		return nil
	}
	_, err := v.Validate(ctx, l)
	return err
}

// Validate scores the current parameters and updates the best model,
// patience and log.
func (v *BleuValidator) Validate(ctx context.Context, l *MainLoop) (bleu.Stats, error) {
	hyps, err := v.Translate(ctx)
	if err != nil {
		return bleu.Stats{}, err
	}
	stats, err := bleu.Corpus(hyps, v.References)
	if err != nil {
		return bleu.Stats{}, err
	}
	if v.OutputPath != "" {
		if err := writeLines(v.OutputPath, hyps); err != nil {
			return bleu.Stats{}, err
		}
	}

	it := l.Status.IterationsDone
	score := stats.Score()
	l.Log.Add(it, "validation_bleu", score)
	l.Status.Validations++
	logger := l.Logger()
	logger.Info("validation", "iteration", it, "bleu", stats.String())

	if l.Status.Validations == 1 || score > l.Status.BestBleu {
		l.Status.BestBleu = score
		l.Status.ValidationsWithoutImprovement = 0
		if v.Manager != nil {
			if _, err := v.Manager.SaveBest(l.Model.Parameters(), score, v.KeepBest); err != nil {
				return stats, err
			}
		}
		return stats, nil
	}
	l.Status.ValidationsWithoutImprovement++
	if v.Patience > 0 && l.Status.ValidationsWithoutImprovement >= v.Patience {
		l.RequestFinish(fmt.Sprintf("no BLEU improvement in %d validations", v.Patience))
	}
	return stats, nil
}

// Translate decodes every source sentence, in parallel under v.Parallel.
func (v *BleuValidator) Translate(ctx context.Context) ([]string, error) {
	if len(v.Sources) != len(v.References) {
		return nil, fmt.Errorf("%w: %d sources, %d references", bleu.ErrMismatch, len(v.Sources), len(v.References))
	}
	hyps := make([]string, len(v.Sources))
	err := parallel.ForEach(ctx, len(v.Sources), func(ctx context.Context, i int) error {
		tr, err := v.Translator.TranslateIDs(ctx, v.Sources[i])
		if errors.Is(err, generate.ErrEmptyInput) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("sentence %d: %w", i, err)
		}
		hyps[i] = tr.Text
		return nil
	}, v.Parallel)
	if err != nil {
		return nil, err
	}
	return hyps, nil
}

func writeLines(path string, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write validation output: %w", err)
	}
	return nil
}
