// Package tokenizer maps sentences to the integer ids of a translation
// vocabulary.
//
// Three tokenizers are available:
//   - Vocabulary: whitespace words over a dictionary file (text or JSON)
//   - TikToken: byte-level BPE encodings from pkoukk/tiktoken-go
//   - BPETokenizer: merges from a HuggingFace tokenizer.json
//
// Every model-facing tokenizer shares one id layout: <S> is 0, <UNK> is
// the configured unknown id and </S> is size-1. Subword tokenizers are
// brought into that layout with Remap.
//
// Example usage:
//
//	tok, err := tokenizer.New(tokenizer.Options{
//	    VocabPath: "vocab.en.json",
//	    Size:      40000,
//	    Unk:       1,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ids, err := tokenizer.EncodeSentence(tok, "a small test")
package tokenizer
