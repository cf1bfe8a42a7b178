// Package training runs the main loop of a translation model: optimizer
// steps over the corpus stream with extensions for monitoring, dumps,
// reloading, sampling and BLEU validation.
package training

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/born-ml/nmt/internal/model"
	"github.com/born-ml/nmt/internal/optim"
	"github.com/born-ml/nmt/internal/stream"
)

// Errors returned by the main loop.
var (
	ErrEmptyEpoch  = errors.New("training: epoch produced no batches")
	ErrNoTargets   = errors.New("training: batch has no targets")
	ErrNilRequired = errors.New("training: model, algorithm and stream are required")
)

// Algorithm applies one training step for an objective.
type Algorithm interface {
	Step(objective optim.Objective) (float64, error)
	GradientNorm() float64
}

var _ Algorithm = (*optim.GradientDescent)(nil)

// MainLoop trains a model on a batch stream.
//
// The loop is not safe for concurrent use; extensions run on the loop's
// goroutine between steps.
type MainLoop struct {
	Model     *model.Model
	Algorithm Algorithm
	Stream    stream.Iterator

	Status Status
	Log    *Log

	regularization Regularization
	extensions     []Extension
	logger         *slog.Logger
	appliedInEpoch int
}

// Option configures a MainLoop.
type Option func(*MainLoop)

// WithExtensions appends extensions, run in the order given.
func WithExtensions(exts ...Extension) Option {
	return func(l *MainLoop) {
		l.extensions = append(l.extensions, exts...)
	}
}

// WithRegularization perturbs the training cost.
func WithRegularization(r Regularization) Option {
	return func(l *MainLoop) {
		l.regularization = r
	}
}

// WithLogger sets the loop logger, also used by the extensions.
func WithLogger(logger *slog.Logger) Option {
	return func(l *MainLoop) {
		l.logger = logger
	}
}

// NewMainLoop creates a main loop.
func NewMainLoop(m *model.Model, alg Algorithm, it stream.Iterator, opts ...Option) (*MainLoop, error) {
	if m == nil || alg == nil || it == nil {
		return nil, ErrNilRequired
	}
	l := &MainLoop{
		Model:     m,
		Algorithm: alg,
		Stream:    it,
		Log:       NewLog(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Logger returns the loop logger.
func (l *MainLoop) Logger() *slog.Logger { return l.logger }

// Extensions returns the registered extensions.
func (l *MainLoop) Extensions() []Extension { return l.extensions }

// RequestFinish stops the loop after the current batch.
func (l *MainLoop) RequestFinish(reason string) {
	if !l.Status.FinishRequested {
		l.logger.Info("training finish requested", "reason", reason, "iterations", l.Status.IterationsDone)
	}
	l.Status.FinishRequested = true
}

// Run trains until an extension requests the finish, ctx is canceled or
// an error occurs. After-training extensions run in every case except a
// failing before-training extension.
func (l *MainLoop) Run(ctx context.Context) (err error) {
	for _, e := range l.extensions {
		if b, ok := e.(BeforeTraining); ok {
			if err := b.BeforeTraining(ctx, l); err != nil {
				return fmt.Errorf("%s: %w", e.Name(), err)
			}
		}
	}
	l.Status.Finished = false
	l.logger.Info("training started",
		"iterations_done", l.Status.IterationsDone,
		"epochs_done", l.Status.EpochsDone)

	defer func() {
		l.Status.Finished = true
		for _, e := range l.extensions {
			if a, ok := e.(AfterTraining); ok {
				if aerr := a.AfterTraining(context.WithoutCancel(ctx), l); aerr != nil {
					err = errors.Join(err, fmt.Errorf("%s: %w", e.Name(), aerr))
				}
			}
		}
		l.logger.Info("training finished",
			"iterations_done", l.Status.IterationsDone,
			"epochs_done", l.Status.EpochsDone,
			"error", err)
	}()

	if err := l.skipConsumed(); err != nil {
		return err
	}
	for !l.Status.FinishRequested {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := l.Stream.Next()
		if errors.Is(err, io.EOF) {
			if err := l.endEpoch(ctx); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("read batch: %w", err)
		}
		applied, err := l.step(batch)
		if err != nil {
			return err
		}
		if !applied {
			continue
		}
		for _, e := range l.extensions {
			if a, ok := e.(AfterBatch); ok {
				if err := a.AfterBatch(ctx, l, batch); err != nil {
					return fmt.Errorf("%s: %w", e.Name(), err)
				}
			}
		}
	}
	return nil
}

// skipConsumed advances a reloaded stream past the batches of the current
// epoch that were already trained on.
func (l *MainLoop) skipConsumed() error {
	n := l.Status.BatchesInEpoch
	if n == 0 {
		return nil
	}
	for i := 0; i < n; i++ {
		if _, err := l.Stream.Next(); err != nil {
			if errors.Is(err, io.EOF) {
				l.logger.Warn("stream shorter than dumped position", "batches", n, "available", i)
				l.Status.BatchesInEpoch = 0
				return l.Stream.Reset()
			}
			return fmt.Errorf("skip consumed batches: %w", err)
		}
	}
	l.appliedInEpoch = n
	l.logger.Info("resumed stream position", "epoch", l.Status.EpochsDone, "batches_skipped", n)
	return nil
}

func (l *MainLoop) endEpoch(ctx context.Context) error {
	if l.Status.BatchesInEpoch == 0 {
		return ErrEmptyEpoch
	}
	if l.appliedInEpoch == 0 {
		return fmt.Errorf("%w: every batch of epoch %d was skipped", optim.ErrNotFinite, l.Status.EpochsDone)
	}
	l.Status.EpochsDone++
	l.Status.BatchesInEpoch = 0
	l.appliedInEpoch = 0
	l.logger.Info("epoch done", "epochs_done", l.Status.EpochsDone, "iterations_done", l.Status.IterationsDone)
	for _, e := range l.extensions {
		if a, ok := e.(AfterEpoch); ok {
			if err := a.AfterEpoch(ctx, l); err != nil {
				return fmt.Errorf("%s: %w", e.Name(), err)
			}
		}
	}
	if err := l.Stream.Reset(); err != nil {
		return fmt.Errorf("reset stream: %w", err)
	}
	return nil
}

// step trains on one batch. It reports false when the update was skipped
// because the cost or the gradient was not finite.
func (l *MainLoop) step(b *stream.Batch) (bool, error) {
	if b.Target == nil {
		return false, ErrNoTargets
	}
	start := time.Now()
	objective := l.regularization.Objective(l.Model, b, l.Status.IterationsDone)
	cost, err := l.Algorithm.Step(objective)
	l.Status.BatchesInEpoch++
	if errors.Is(err, optim.ErrNotFinite) {
		l.Status.SkippedBatches++
		l.logger.Warn("skipping batch", "iteration", l.Status.IterationsDone, "error", err)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("iteration %d: %w", l.Status.IterationsDone, err)
	}

	l.Status.IterationsDone++
	l.appliedInEpoch++
	it := l.Status.IterationsDone
	l.Log.Add(it, "cost", cost)
	l.Log.Add(it, "gradient_norm", l.Algorithm.GradientNorm())
	l.Log.Add(it, "batch_size", float64(b.Size()))
	l.Log.Add(it, "iteration_time", time.Since(start).Seconds())
	l.logger.Debug("batch done", "iteration", it, "cost", cost, "elapsed", time.Since(start))
	return true, nil
}
