package training

import (
	"slices"
	"sort"
)

// Record holds the values logged at one iteration.
type Record map[string]float64

// Log is the training log: one record per iteration that logged anything,
// keyed by the number of iterations done when it was written.
type Log struct {
	Rows map[int]Record `json:"rows"`
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{Rows: make(map[int]Record)}
}

// Add stores value under key at iteration it.
func (l *Log) Add(it int, key string, value float64) {
	if l.Rows == nil {
		l.Rows = make(map[int]Record)
	}
	row, ok := l.Rows[it]
	if !ok {
		row = make(Record)
		l.Rows[it] = row
	}
	row[key] = value
}

// Get returns the value of key at iteration it.
func (l *Log) Get(it int, key string) (float64, bool) {
	v, ok := l.Rows[it][key]
	return v, ok
}

// Last returns the latest iteration that logged key, and its value.
func (l *Log) Last(key string) (int, float64, bool) {
	its := l.Iterations()
	for _, it := range slices.Backward(its) {
		if v, ok := l.Rows[it][key]; ok {
			return it, v, true
		}
	}
	return 0, 0, false
}

// Iterations returns the logged iterations in increasing order.
func (l *Log) Iterations() []int {
	its := make([]int, 0, len(l.Rows))
	for it := range l.Rows {
		its = append(its, it)
	}
	sort.Ints(its)
	return its
}

// Status is the progress of a run. It is dumped as the iteration state so
// a reloaded run resumes at the same batch.
type Status struct {
	IterationsDone  int  `json:"iterations_done"`
	EpochsDone      int  `json:"epochs_done"`
	BatchesInEpoch  int  `json:"batches_in_epoch"` // consumed in the current epoch
	SkippedBatches  int  `json:"skipped_batches"`
	FinishRequested bool `json:"training_finish_requested"`
	Finished        bool `json:"training_finished"`

	Validations                   int     `json:"validations"`
	BestBleu                      float64 `json:"best_bleu"`
	ValidationsWithoutImprovement int     `json:"validations_without_improvement"`
}
