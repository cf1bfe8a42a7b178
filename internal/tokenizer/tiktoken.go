package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// encodingCL100kBase is the encoding name for GPT-4 and GPT-3.5-turbo.
	encodingCL100kBase = "cl100k_base"
	// encodingP50kBase is the encoding name for GPT-3.
	encodingP50kBase = "p50k_base"
	// encodingR50kBase is the encoding name for older GPT-3 models.
	encodingR50kBase = "r50k_base"
)

// TikToken wraps the pkoukk/tiktoken-go byte-level BPE encodings.
//
// Its ids are native tiktoken ids; wrap it with Remap to use it as a model
// vocabulary.
type TikToken struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// NewTikToken loads a tiktoken encoding such as "cl100k_base".
func NewTikToken(encodingName string) (*TikToken, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encodingName, err)
	}
	return &TikToken{encoding: encoding, name: encodingName}, nil
}

// Encode converts text to native token ids.
func (t *TikToken) Encode(text string) ([]int, error) {
	return t.encoding.Encode(text, nil, nil), nil
}

// Decode converts native ids back to text.
func (t *TikToken) Decode(ids []int) (string, error) {
	return t.encoding.Decode(truncateAtEOS(ids, t.EosToken())), nil
}

// VocabSize returns the number of mergeable ranks of the encoding.
func (t *TikToken) VocabSize() int {
	// tiktoken-go does not expose the rank count.
	switch t.name {
	case encodingCL100kBase:
		return 100256
	case encodingP50kBase, encodingR50kBase:
		return 50257
	default:
		return 100000
	}
}

// BosToken returns -1; tiktoken has no beginning-of-sequence token.
func (t *TikToken) BosToken() int { return -1 }

// EosToken returns the <|endoftext|> id.
func (t *TikToken) EosToken() int {
	switch t.name {
	case encodingCL100kBase:
		return 100257
	case encodingP50kBase, encodingR50kBase:
		return 50256
	default:
		return -1
	}
}

// UnkToken returns -1; byte-level BPE never produces unknown tokens.
func (t *TikToken) UnkToken() int { return -1 }

// IsSpecialToken reports whether id is <|endoftext|> or a cl100k ChatML id.
func (t *TikToken) IsSpecialToken(id int) bool {
	if id == t.EosToken() {
		return true
	}
	return t.name == encodingCL100kBase && id >= 100256 && id <= 100276
}

// Name returns the encoding name.
func (t *TikToken) Name() string {
	return t.name
}
