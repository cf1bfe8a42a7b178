package tokenizer

import (
	"fmt"
	"strings"
)

// Kinds accepted by New.
const (
	KindWord     = "word"
	KindTikToken = "tiktoken"
	KindBPE      = "bpe"
)

// Options describes one side of a translation vocabulary.
type Options struct {
	// Spec selects the tokenizer: "" or "word" for a Vocabulary read from
	// VocabPath, "tiktoken:<encoding>" or "bpe:<tokenizer.json>".
	Spec      string
	VocabPath string
	Size      int
	Unk       int
}

// New builds the tokenizer described by opts. Subword tokenizers are
// remapped into [0, opts.Size).
func New(opts Options) (Tokenizer, error) {
	kind, arg, _ := strings.Cut(opts.Spec, ":")
	switch kind {
	case "", KindWord:
		return LoadVocabulary(opts.VocabPath, opts.Size, opts.Unk)
	case KindTikToken:
		if arg == "" {
			arg = encodingCL100kBase
		}
		tok, err := NewTikToken(arg)
		if err != nil {
			return nil, err
		}
		return Remap(tok, opts.Size, opts.Unk)
	case KindBPE:
		tok, err := LoadBPEFromHuggingFace(arg)
		if err != nil {
			return nil, err
		}
		return Remap(tok, opts.Size, opts.Unk)
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", opts.Spec)
	}
}
