// Package stream reads parallel corpora into padded, length-sorted
// minibatches.
//
// The pipeline of a training stream:
//
//	read pairs -> tokenize (+ </S>) -> drop pairs longer than seq_len ->
//	take batch_size*sort_k_batches pairs -> sort by target length ->
//	split into batches -> right-pad with masks
package stream

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/born-ml/nmt/internal/tokenizer"
)

// ErrUnaligned is returned when the two sides of a parallel corpus have a
// different number of lines.
var ErrUnaligned = errors.New("stream: parallel files have different lengths")

// Iterator yields batches until io.EOF ends the epoch.
type Iterator interface {
	// Next returns the next batch, or io.EOF after the last one.
	Next() (*Batch, error)

	// Reset rewinds the iterator to the start of the corpus.
	Reset() error

	// Close releases the underlying files.
	Close() error
}

// Options configures a ParallelText stream.
type Options struct {
	BatchSize    int
	SortKBatches int
	SeqLen       int // 0 disables the length filter
}

// ParallelText streams sentence pairs from two aligned text files.
type ParallelText struct {
	srcPath, trgPath string
	srcTok, trgTok   tokenizer.Tokenizer
	opts             Options

	src, trg *os.File
	srcSc    *bufio.Scanner
	trgSc    *bufio.Scanner
	pending  []*Batch
	line     int
	filtered int
}

var _ Iterator = (*ParallelText)(nil)

// OpenParallelText opens an aligned source/target corpus.
func OpenParallelText(srcPath, trgPath string, srcTok, trgTok tokenizer.Tokenizer, opts Options) (*ParallelText, error) {
	if opts.BatchSize < 1 {
		return nil, fmt.Errorf("stream: batch size %d", opts.BatchSize)
	}
	opts.SortKBatches = max(opts.SortKBatches, 1)
	p := &ParallelText{srcPath: srcPath, trgPath: trgPath, srcTok: srcTok, trgTok: trgTok, opts: opts}
	if err := p.open(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *ParallelText) open() error {
	src, err := os.Open(p.srcPath) //nolint:gosec // G304: path comes from the configuration
	if err != nil {
		return fmt.Errorf("failed to open source corpus: %w", err)
	}
	trg, err := os.Open(p.trgPath) //nolint:gosec // G304: path comes from the configuration
	if err != nil {
		src.Close()
		return fmt.Errorf("failed to open target corpus: %w", err)
	}
	p.src, p.trg = src, trg
	p.srcSc, p.trgSc = newScanner(src), newScanner(trg)
	p.pending = nil
	p.line = 0
	return nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return sc
}

// Next returns the next batch of the epoch.
func (p *ParallelText) Next() (*Batch, error) {
	if len(p.pending) == 0 {
		if err := p.fill(); err != nil {
			return nil, err
		}
	}
	b := p.pending[0]
	p.pending = p.pending[1:]
	return b, nil
}

// fill reads one sorting group and splits it into batches.
func (p *ParallelText) fill() error {
	group := make([]Pair, 0, p.opts.BatchSize*p.opts.SortKBatches)
	for len(group) < cap(group) {
		pair, err := p.readPair()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if p.tooLong(pair) {
			p.filtered++
			continue
		}
		group = append(group, pair)
	}
	if len(group) == 0 {
		return io.EOF
	}

	slices.SortStableFunc(group, func(a, b Pair) int {
		return cmp.Compare(len(a.Target), len(b.Target))
	})
	for start := 0; start < len(group); start += p.opts.BatchSize {
		p.pending = append(p.pending, NewBatch(group[start:min(start+p.opts.BatchSize, len(group))]))
	}
	return nil
}

func (p *ParallelText) readPair() (Pair, error) {
	srcOK, trgOK := p.srcSc.Scan(), p.trgSc.Scan()
	if err := errors.Join(p.srcSc.Err(), p.trgSc.Err()); err != nil {
		return Pair{}, fmt.Errorf("read corpus: %w", err)
	}
	switch {
	case !srcOK && !trgOK:
		return Pair{}, io.EOF
	case srcOK != trgOK:
		return Pair{}, fmt.Errorf("%w: line %d", ErrUnaligned, p.line+1)
	}
	p.line++

	src, err := tokenizer.EncodeSentence(p.srcTok, p.srcSc.Text())
	if err != nil {
		return Pair{}, fmt.Errorf("line %d: source: %w", p.line, err)
	}
	trg, err := tokenizer.EncodeSentence(p.trgTok, p.trgSc.Text())
	if err != nil {
		return Pair{}, fmt.Errorf("line %d: target: %w", p.line, err)
	}
	return Pair{Source: src, Target: trg}, nil
}

func (p *ParallelText) tooLong(pair Pair) bool {
	return p.opts.SeqLen > 0 && (len(pair.Source) > p.opts.SeqLen || len(pair.Target) > p.opts.SeqLen)
}

// Filtered returns the number of pairs dropped by the length filter so far.
func (p *ParallelText) Filtered() int {
	return p.filtered
}

// Reset reopens both files.
func (p *ParallelText) Reset() error {
	if err := p.Close(); err != nil {
		return err
	}
	return p.open()
}

// Close closes both files.
func (p *ParallelText) Close() error {
	var errs []error
	if p.src != nil {
		errs = append(errs, p.src.Close())
	}
	if p.trg != nil {
		errs = append(errs, p.trg.Close())
	}
	p.src, p.trg = nil, nil
	return errors.Join(errs...)
}

// Slice iterates over batches held in memory.
type Slice struct {
	batches []*Batch
	pos     int
}

var _ Iterator = (*Slice)(nil)

// NewSlice returns an iterator over batches.
func NewSlice(batches ...*Batch) *Slice {
	return &Slice{batches: batches}
}

// Next returns the next batch or io.EOF.
func (s *Slice) Next() (*Batch, error) {
	if s.pos >= len(s.batches) {
		return nil, io.EOF
	}
	s.pos++
	return s.batches[s.pos-1], nil
}

// Reset rewinds to the first batch.
func (s *Slice) Reset() error {
	s.pos = 0
	return nil
}

// Close is a no-op.
func (s *Slice) Close() error { return nil }
