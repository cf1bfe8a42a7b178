package tokenizer

import "fmt"

// Remapped places a subword tokenizer into a translation vocabulary of a
// fixed size.
//
// The reserved ids follow Vocabulary: <S> is 0, <UNK> is unk and </S> is
// size-1. Native id n becomes n+unk+1; native ids that would land on or
// beyond size-1 become unk, as do the inner tokenizer's own special ids.
type Remapped struct {
	inner  Tokenizer
	size   int
	unk    int
	offset int
}

// Remap wraps inner into a vocabulary of size ids.
func Remap(inner Tokenizer, size, unk int) (*Remapped, error) {
	if size < 3 || unk <= 0 || unk >= size-1 {
		return nil, fmt.Errorf("%w: size %d, unk id %d", ErrVocabulary, size, unk)
	}
	return &Remapped{inner: inner, size: size, unk: unk, offset: unk + 1}, nil
}

// Inner returns the wrapped tokenizer.
func (r *Remapped) Inner() Tokenizer { return r.inner }

// Encode encodes text with the inner tokenizer and shifts its ids.
func (r *Remapped) Encode(text string) ([]int, error) {
	native, err := r.inner.Encode(text)
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(native))
	for i, n := range native {
		ids[i] = r.toModel(n)
	}
	return ids, nil
}

// Decode stops at </S>, drops reserved ids and decodes the rest with the
// inner tokenizer.
func (r *Remapped) Decode(ids []int) (string, error) {
	ids = truncateAtEOS(ids, r.size-1)
	native := make([]int, 0, len(ids))
	for _, id := range ids {
		if id >= r.offset && id < r.size-1 {
			native = append(native, id-r.offset)
		}
	}
	return r.inner.Decode(native)
}

func (r *Remapped) toModel(native int) int {
	if native < 0 || r.inner.IsSpecialToken(native) {
		return r.unk
	}
	id := native + r.offset
	if id >= r.size-1 {
		return r.unk
	}
	return id
}

// VocabSize returns the model vocabulary size.
func (r *Remapped) VocabSize() int { return r.size }

// BosToken returns 0.
func (r *Remapped) BosToken() int { return 0 }

// EosToken returns size-1.
func (r *Remapped) EosToken() int { return r.size - 1 }

// UnkToken returns the unknown id.
func (r *Remapped) UnkToken() int { return r.unk }

// IsSpecialToken reports whether id is a reserved id or below the offset.
func (r *Remapped) IsSpecialToken(id int) bool {
	return id < r.offset || id == r.size-1
}
