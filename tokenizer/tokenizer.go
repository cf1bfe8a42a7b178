// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tokenizer provides text tokenization for translation models.
//
// Every model-facing tokenizer shares one id layout: <S> is 0, </S> is the
// last id and <UNK> is the configured unknown id.
//
// Supported tokenizers:
//   - Vocabulary: whitespace words over a fixed dictionary
//   - TikToken: OpenAI BPE encodings, remapped into the model vocabulary
//   - BPE: HuggingFace tokenizer.json models, remapped likewise
package tokenizer

import (
	"io"

	"github.com/born-ml/nmt/internal/tokenizer"
)

// Reserved words.
const (
	BosWord = tokenizer.BosWord
	EosWord = tokenizer.EosWord
	UnkWord = tokenizer.UnkWord
)

// Tokenizer is the core interface for text tokenization.
type Tokenizer = tokenizer.Tokenizer

// Vocabulary is a whitespace word tokenizer.
type Vocabulary = tokenizer.Vocabulary

// Options selects and sizes a tokenizer.
type Options = tokenizer.Options

// New builds the tokenizer described by opts.
//
// opts.Spec is "word" (default), "tiktoken[:encoding]" or "bpe:<tokenizer.json>".
func New(opts Options) (Tokenizer, error) {
	return tokenizer.New(opts)
}

// NewVocabulary builds a vocabulary from a word to id map.
func NewVocabulary(words map[string]int, size, unk int) (*Vocabulary, error) {
	return tokenizer.NewVocabulary(words, size, unk)
}

// LoadVocabulary reads a JSON or text vocabulary file.
func LoadVocabulary(path string, size, unk int) (*Vocabulary, error) {
	return tokenizer.LoadVocabulary(path, size, unk)
}

// BuildVocabulary keeps the most frequent words of a corpus.
func BuildVocabulary(r io.Reader, size int) (*Vocabulary, error) {
	return tokenizer.BuildVocabulary(r, size)
}

// EncodeSentence encodes text and appends the end-of-sequence id.
func EncodeSentence(t Tokenizer, text string) ([]int, error) {
	return tokenizer.EncodeSentence(t, text)
}
