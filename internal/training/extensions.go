package training

import (
	"context"

	"github.com/born-ml/nmt/internal/checkpoint"
	"github.com/born-ml/nmt/internal/stream"
)

// Extension is a named hook of the main loop. It implements one or more
// of BeforeTraining, AfterBatch, AfterEpoch and AfterTraining.
type Extension interface {
	Name() string
}

// BeforeTraining runs once before the first batch.
type BeforeTraining interface {
	Extension
	BeforeTraining(ctx context.Context, l *MainLoop) error
}

// AfterBatch runs after every applied step.
type AfterBatch interface {
	Extension
	AfterBatch(ctx context.Context, l *MainLoop, b *stream.Batch) error
}

// AfterEpoch runs when the stream is exhausted, before it is reset.
type AfterEpoch interface {
	Extension
	AfterEpoch(ctx context.Context, l *MainLoop) error
}

// AfterTraining runs once when the loop stops.
type AfterTraining interface {
	Extension
	AfterTraining(ctx context.Context, l *MainLoop) error
}

// every reports whether a hook with period n fires at iteration it.
func every(n, it int) bool {
	return n > 0 && it > 0 && it%n == 0
}

// FinishAfter requests the finish after a number of iterations or epochs.
// Zero disables a limit.
type FinishAfter struct {
	Iterations int
	Epochs     int
}

// Name implements Extension.
func (FinishAfter) Name() string { return "finish_after" }

// AfterBatch implements AfterBatch.
func (f FinishAfter) AfterBatch(_ context.Context, l *MainLoop, _ *stream.Batch) error {
	if f.Iterations > 0 && l.Status.IterationsDone >= f.Iterations {
		l.RequestFinish("iteration limit")
	}
	return nil
}

// AfterEpoch implements AfterEpoch.
func (f FinishAfter) AfterEpoch(_ context.Context, l *MainLoop) error {
	if f.Epochs > 0 && l.Status.EpochsDone >= f.Epochs {
		l.RequestFinish("epoch limit")
	}
	return nil
}

// Monitoring reports the mean training cost every Every iterations and
// records it as "train_cost_mean".
type Monitoring struct {
	Every int

	sum   float64
	count int
}

// Name implements Extension.
func (*Monitoring) Name() string { return "monitoring" }

// AfterBatch implements AfterBatch.
func (m *Monitoring) AfterBatch(_ context.Context, l *MainLoop, b *stream.Batch) error {
	it := l.Status.IterationsDone
	cost, _ := l.Log.Get(it, "cost")
	m.sum += cost
	m.count++
	if !every(max(m.Every, 1), it) {
		return nil
	}
	mean := m.sum / float64(m.count)
	m.sum, m.count = 0, 0
	l.Log.Add(it, "train_cost_mean", mean)
	norm, _ := l.Log.Get(it, "gradient_norm")
	l.Logger().Info("training",
		"iteration", it,
		"epoch", l.Status.EpochsDone,
		"cost", cost,
		"cost_mean", mean,
		"gradient_norm", norm,
		"batch_size", b.Size())
	return nil
}

// Dump saves parameters, status and log every Every iterations and when
// training stops.
type Dump struct {
	Manager *checkpoint.Manager
	Every   int
}

// Name implements Extension.
func (Dump) Name() string { return "dump" }

// AfterBatch implements AfterBatch.
func (d Dump) AfterBatch(_ context.Context, l *MainLoop, _ *stream.Batch) error {
	if !every(d.Every, l.Status.IterationsDone) {
		return nil
	}
	return d.dump(l)
}

// AfterTraining implements AfterTraining.
func (d Dump) AfterTraining(_ context.Context, l *MainLoop) error {
	return d.dump(l)
}

func (d Dump) dump(l *MainLoop) error {
	return d.Manager.Dump(snapshot(l))
}

func snapshot(l *MainLoop) checkpoint.Snapshot {
	return checkpoint.Snapshot{
		Parameters: l.Model.Parameters(),
		State:      l.Status,
		Log:        l.Log,
	}
}

// LoadFromDump restores a previous dump before training. A missing dump
// starts a fresh run; a broken part is logged and skipped.
type LoadFromDump struct {
	Manager *checkpoint.Manager
}

// Name implements Extension.
func (LoadFromDump) Name() string { return "load_from_dump" }

// BeforeTraining implements BeforeTraining.
func (d LoadFromDump) BeforeTraining(_ context.Context, l *MainLoop) error {
	if !d.Manager.Exists() {
		l.Logger().Info("no dump to reload, starting fresh", "dir", d.Manager.Dir())
		return nil
	}
	var status Status
	log := NewLog()
	report, _ := d.Manager.Load(checkpoint.Snapshot{
		Parameters: l.Model.Parameters(),
		State:      &status,
		Log:        log,
	})
	if report.StateErr == nil {
		status.FinishRequested = false
		status.Finished = false
		l.Status = status
	}
	if report.LogErr == nil {
		l.Log = log
	}
	l.Logger().Info("reloaded dump",
		"dir", d.Manager.Dir(),
		"iterations_done", l.Status.IterationsDone,
		"parameters", len(report.Parameters.Loaded))
	return nil
}
