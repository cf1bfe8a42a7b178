package tokenizer

import (
	"bufio"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// Reserved words of a translation vocabulary.
const (
	BosWord = "<S>"
	EosWord = "</S>"
	UnkWord = "<UNK>"
)

// ErrVocabulary is returned for malformed vocabulary files or sizes.
var ErrVocabulary = errors.New("tokenizer: invalid vocabulary")

// Vocabulary is a whitespace word tokenizer over a fixed-size dictionary.
//
// Id layout:
//
//	0          <S>
//	unk        <UNK>
//	size-1     </S>
//
// Words missing from the dictionary, or whose id is >= size, map to unk.
type Vocabulary struct {
	ids   map[string]int
	words []string
	size  int
	unk   int
}

// NewVocabulary builds a vocabulary of size ids from a word to id map.
// The reserved words are forced to their ids and override any entry that
// shares those ids.
func NewVocabulary(words map[string]int, size, unk int) (*Vocabulary, error) {
	if size < 3 {
		return nil, fmt.Errorf("%w: size %d, need at least 3", ErrVocabulary, size)
	}
	if unk <= 0 || unk >= size-1 {
		return nil, fmt.Errorf("%w: unk id %d outside (0, %d)", ErrVocabulary, unk, size-1)
	}

	v := &Vocabulary{
		ids:   make(map[string]int, min(len(words), size)),
		words: make([]string, size),
		size:  size,
		unk:   unk,
	}
	reserved := func(id int) bool { return id == 0 || id == unk || id == size-1 }
	for w, id := range words {
		if id < 0 || id >= size || reserved(id) || w == BosWord || w == EosWord || w == UnkWord {
			continue
		}
		v.ids[w] = id
		v.words[id] = w
	}
	for w, id := range map[string]int{BosWord: 0, UnkWord: unk, EosWord: size - 1} {
		v.ids[w] = id
		v.words[id] = w
	}
	return v, nil
}

// LoadVocabulary reads a vocabulary file.
//
// Files ending in .json hold a {"word": id} object. Other files hold one
// word per line, either alone (the line number is the id) or followed by
// whitespace and an explicit id.
func LoadVocabulary(path string, size, unk int) (*Vocabulary, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open vocabulary: %w", err)
	}
	defer f.Close()

	var words map[string]int
	if strings.EqualFold(filepath.Ext(path), ".json") {
		words, err = readJSONWords(f)
	} else {
		words, err = readTextWords(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewVocabulary(words, size, unk)
}

func readJSONWords(r io.Reader) (map[string]int, error) {
	var words map[string]int
	if err := json.NewDecoder(r).Decode(&words); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVocabulary, err)
	}
	return words, nil
}

func readTextWords(r io.Reader) (map[string]int, error) {
	words := make(map[string]int)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		switch len(fields) {
		case 0:
			// Blank lines still consume an id.
		case 1:
			words[fields[0]] = line
		case 2:
			id, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %w", ErrVocabulary, line+1, err)
			}
			words[fields[0]] = id
		default:
			return nil, fmt.Errorf("%w: line %d: expected \"word [id]\"", ErrVocabulary, line+1)
		}
		line++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return words, nil
}

// BuildVocabulary counts the whitespace words of r and keeps the size-3
// most frequent ones, ties broken alphabetically. Ids 0, 1 and size-1 are
// reserved for <S>, <UNK> and </S>.
func BuildVocabulary(r io.Reader, size int) (*Vocabulary, error) {
	counts := make(map[string]int)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		for _, w := range strings.Fields(sc.Text()) {
			counts[w]++
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}

	ranked := make([]string, 0, len(counts))
	for w := range counts {
		if w != BosWord && w != EosWord && w != UnkWord {
			ranked = append(ranked, w)
		}
	}
	slices.SortFunc(ranked, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})

	words := make(map[string]int, size)
	for i, w := range ranked {
		id := i + 2
		if id >= size-1 {
			break
		}
		words[w] = id
	}
	return NewVocabulary(words, size, 1)
}

// WriteJSON writes the vocabulary as a {"word": id} object.
func (v *Vocabulary) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v.ids)
}

// Encode splits text on whitespace and maps each word to its id.
func (v *Vocabulary) Encode(text string) ([]int, error) {
	fields := strings.Fields(text)
	ids := make([]int, len(fields))
	for i, w := range fields {
		ids[i] = v.ID(w)
	}
	return ids, nil
}

// Decode joins the words of ids with single spaces, skipping <S> and
// stopping at </S>. Ids without a word render as <UNK>.
func (v *Vocabulary) Decode(ids []int) (string, error) {
	ids = truncateAtEOS(ids, v.size-1)
	words := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		words = append(words, v.Word(id))
	}
	return strings.Join(words, " "), nil
}

// ID returns the id of w, or the unknown id.
func (v *Vocabulary) ID(w string) int {
	if id, ok := v.ids[w]; ok {
		return id
	}
	return v.unk
}

// Word returns the word of id, or <UNK> for unassigned ids.
func (v *Vocabulary) Word(id int) string {
	if id < 0 || id >= v.size || v.words[id] == "" {
		return UnkWord
	}
	return v.words[id]
}

// Len returns the number of words with an id, the reserved ones included.
func (v *Vocabulary) Len() int {
	return len(v.ids)
}

// VocabSize returns the size the vocabulary was built with.
func (v *Vocabulary) VocabSize() int { return v.size }

// BosToken returns 0.
func (v *Vocabulary) BosToken() int { return 0 }

// EosToken returns size-1.
func (v *Vocabulary) EosToken() int { return v.size - 1 }

// UnkToken returns the unknown id.
func (v *Vocabulary) UnkToken() int { return v.unk }

// IsSpecialToken reports whether id is one of the reserved ids.
func (v *Vocabulary) IsSpecialToken(id int) bool {
	return id == 0 || id == v.unk || id == v.size-1
}
