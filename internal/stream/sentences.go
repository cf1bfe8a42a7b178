package stream

import (
	"fmt"
	"os"

	"github.com/born-ml/nmt/internal/tokenizer"
)

// ReadLines returns the lines of a text file without their line endings.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	sc := newScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}

// ReadSentences tokenizes every line of path, appending </S>. It is the
// source-only development stream: one sentence per entry, no length filter.
func ReadSentences(path string, tok tokenizer.Tokenizer) ([][]int, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return nil, err
	}
	out := make([][]int, len(lines))
	for i, line := range lines {
		ids, err := tokenizer.EncodeSentence(tok, line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, i+1, err)
		}
		out[i] = ids
	}
	return out, nil
}
