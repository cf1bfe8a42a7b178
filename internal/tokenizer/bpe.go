package tokenizer

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// BPETokenizer applies byte-pair merges to whitespace-separated words.
//
// It loads the model section of a HuggingFace tokenizer.json. Its ids are
// native; wrap it with Remap to use it as a model vocabulary.
type BPETokenizer struct {
	vocab        map[string]int
	reverseVocab map[int]string
	ranks        map[pair]int
	bosToken     int
	eosToken     int
	unkToken     int
	special      map[int]bool
}

type pair struct {
	first  string
	second string
}

// NewBPETokenizer creates a BPE tokenizer; earlier merges have priority.
func NewBPETokenizer(vocab map[string]int, merges []pair) *BPETokenizer {
	reverse := make(map[int]string, len(vocab))
	for token, id := range vocab {
		reverse[id] = token
	}
	ranks := make(map[pair]int, len(merges))
	for i, m := range merges {
		if _, ok := ranks[m]; !ok {
			ranks[m] = i
		}
	}
	return &BPETokenizer{
		vocab:        vocab,
		reverseVocab: reverse,
		ranks:        ranks,
		bosToken:     -1,
		eosToken:     -1,
		unkToken:     -1,
		special:      make(map[int]bool),
	}
}

// SetSpecialTokens configures special ids; -1 leaves one unset.
func (b *BPETokenizer) SetSpecialTokens(bos, eos, unk int) {
	b.bosToken, b.eosToken, b.unkToken = bos, eos, unk
	for _, id := range []int{bos, eos, unk} {
		if id >= 0 {
			b.special[id] = true
		}
	}
}

// Encode splits text on whitespace and merges each word's runes.
// Pieces missing from the vocabulary become the unknown id, or are dropped
// when there is none.
func (b *BPETokenizer) Encode(text string) ([]int, error) {
	var tokens []int
	for _, word := range strings.Fields(text) {
		for _, piece := range b.merge(word) {
			if id, ok := b.vocab[piece]; ok {
				tokens = append(tokens, id)
			} else if b.unkToken >= 0 {
				tokens = append(tokens, b.unkToken)
			}
		}
	}
	return tokens, nil
}

func (b *BPETokenizer) merge(word string) []string {
	pieces := strings.Split(word, "")
	for len(pieces) > 1 {
		best, bestRank := -1, len(b.ranks)
		for i := 0; i < len(pieces)-1; i++ {
			if rank, ok := b.ranks[pair{pieces[i], pieces[i+1]}]; ok && rank < bestRank {
				best, bestRank = i, rank
			}
		}
		if best < 0 {
			break
		}
		pieces[best] += pieces[best+1]
		pieces = append(pieces[:best+1], pieces[best+2:]...)
	}
	return pieces
}

// Decode concatenates the pieces of ids, stopping at the end-of-sequence id.
func (b *BPETokenizer) Decode(ids []int) (string, error) {
	var sb strings.Builder
	for _, id := range truncateAtEOS(ids, b.eosToken) {
		if text, ok := b.reverseVocab[id]; ok {
			sb.WriteString(text)
		} else {
			sb.WriteString("�")
		}
	}
	return sb.String(), nil
}

// VocabSize returns the number of vocabulary entries.
func (b *BPETokenizer) VocabSize() int { return len(b.vocab) }

// BosToken returns the beginning-of-sequence id, or -1.
func (b *BPETokenizer) BosToken() int { return b.bosToken }

// EosToken returns the end-of-sequence id, or -1.
func (b *BPETokenizer) EosToken() int { return b.eosToken }

// UnkToken returns the unknown id, or -1.
func (b *BPETokenizer) UnkToken() int { return b.unkToken }

// IsSpecialToken reports whether id is a configured special id.
func (b *BPETokenizer) IsSpecialToken(id int) bool { return b.special[id] }

// huggingFaceTokenizer is the subset of tokenizer.json that is read.
type huggingFaceTokenizer struct {
	Model struct {
		Type   string         `json:"type"`
		Vocab  map[string]int `json:"vocab"`
		Merges []string       `json:"merges"`
	} `json:"model"`
	AddedTokens []struct {
		ID      int    `json:"id"`
		Content string `json:"content"`
		Special bool   `json:"special"`
	} `json:"added_tokens"`
}

// LoadBPEFromHuggingFace loads a BPE tokenizer from a tokenizer.json file.
func LoadBPEFromHuggingFace(path string) (*BPETokenizer, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read tokenizer.json: %w", err)
	}

	var config huggingFaceTokenizer
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse tokenizer.json: %w", err)
	}
	if config.Model.Type != "" && config.Model.Type != "BPE" {
		return nil, fmt.Errorf("unsupported tokenizer model %q", config.Model.Type)
	}

	var merges []pair
	for _, m := range config.Model.Merges {
		if parts := strings.Fields(m); len(parts) == 2 {
			merges = append(merges, pair{parts[0], parts[1]})
		}
	}

	tok := NewBPETokenizer(config.Model.Vocab, merges)
	bos, eos, unk := -1, -1, -1
	for _, added := range config.AddedTokens {
		if !added.Special {
			continue
		}
		tok.special[added.ID] = true
		content := strings.ToLower(added.Content)
		switch {
		case strings.Contains(content, "bos") || content == "<s>":
			bos = added.ID
		case strings.Contains(content, "eos") || content == "</s>":
			eos = added.ID
		case strings.Contains(content, "unk"):
			unk = added.ID
		}
	}
	tok.SetSpecialTokens(bos, eos, unk)
	return tok, nil
}
