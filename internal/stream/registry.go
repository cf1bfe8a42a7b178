package stream

import (
	"fmt"
	"sort"
	"sync"

	"github.com/born-ml/nmt/internal/config"
	"github.com/born-ml/nmt/internal/tokenizer"
)

// Streams are the iterators of one training run.
type Streams struct {
	Train  Iterator
	Dev    [][]int // tokenized validation sources, empty without val_set
	Source tokenizer.Tokenizer
	Target tokenizer.Tokenizer
}

// Close closes the training iterator.
func (s *Streams) Close() error {
	if s.Train == nil {
		return nil
	}
	return s.Train.Close()
}

// Factory builds the streams of a configuration.
type Factory func(cfg config.Config) (*Streams, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

func init() {
	Register("fi-en", openConfigured)
	Register("en-fr", openConfigured)
}

// Register makes a stream available under name, replacing any previous one.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = f
}

// Names returns the registered stream names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Open builds the streams named by cfg.Stream.
func Open(cfg config.Config) (*Streams, error) {
	mu.RLock()
	f, ok := factories[cfg.Stream]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown stream %q (have %v)", cfg.Stream, Names())
	}
	return f(cfg)
}

// Tokenizers builds the source and target tokenizers of cfg.
func Tokenizers(cfg config.Config) (src, trg tokenizer.Tokenizer, err error) {
	src, err = tokenizer.New(tokenizer.Options{
		Spec: cfg.Tokenizer, VocabPath: cfg.SrcVocab, Size: cfg.SrcVocabSize, Unk: cfg.UnkID,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("source tokenizer: %w", err)
	}
	trg, err = tokenizer.New(tokenizer.Options{
		Spec: cfg.Tokenizer, VocabPath: cfg.TrgVocab, Size: cfg.TrgVocabSize, Unk: cfg.UnkID,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("target tokenizer: %w", err)
	}
	return src, trg, nil
}

// openConfigured reads the corpus and validation files named in cfg.
func openConfigured(cfg config.Config) (*Streams, error) {
	src, trg, err := Tokenizers(cfg)
	if err != nil {
		return nil, err
	}
	train, err := OpenParallelText(cfg.SrcData, cfg.TrgData, src, trg, Options{
		BatchSize:    cfg.BatchSize,
		SortKBatches: cfg.SortKBatches,
		SeqLen:       cfg.SeqLen,
	})
	if err != nil {
		return nil, err
	}
	s := &Streams{Train: train, Source: src, Target: trg}
	if cfg.ValSet != "" {
		s.Dev, err = ReadSentences(cfg.ValSet, src)
		if err != nil {
			train.Close()
			return nil, fmt.Errorf("validation set: %w", err)
		}
	}
	return s, nil
}
