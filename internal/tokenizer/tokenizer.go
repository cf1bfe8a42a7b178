package tokenizer

// Tokenizer maps text to model ids and back.
//
// Ids always lie in [0, VocabSize()). Implementations whose native id space
// does not fit the model vocabulary are wrapped with Remap.
type Tokenizer interface {
	// Encode converts text to token ids, without the end-of-sequence id.
	Encode(text string) ([]int, error)

	// Decode converts ids back to text. Decoding stops at the first
	// end-of-sequence id.
	Decode(ids []int) (string, error)

	// VocabSize returns the number of ids the tokenizer may produce.
	VocabSize() int

	// BosToken returns the beginning-of-sequence id, or -1.
	BosToken() int

	// EosToken returns the end-of-sequence id, or -1.
	EosToken() int

	// UnkToken returns the unknown-word id, or -1.
	UnkToken() int

	// IsSpecialToken reports whether id is a reserved id.
	IsSpecialToken(id int) bool
}

// EncodeSentence encodes text and appends the end-of-sequence id when the
// tokenizer has one.
func EncodeSentence(t Tokenizer, text string) ([]int, error) {
	ids, err := t.Encode(text)
	if err != nil {
		return nil, err
	}
	if eos := t.EosToken(); eos >= 0 {
		ids = append(ids, eos)
	}
	return ids, nil
}

// truncateAtEOS returns ids up to, not including, the first eos.
func truncateAtEOS(ids []int, eos int) []int {
	if eos < 0 {
		return ids
	}
	for i, id := range ids {
		if id == eos {
			return ids[:i]
		}
	}
	return ids
}
