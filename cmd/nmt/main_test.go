package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersion(t *testing.T) {
	code, out, _ := runCmd(t, "", "version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "nmt "+version+"\n", out)
}

func TestUsage(t *testing.T) {
	code, _, errOut := runCmd(t, "")
	assert.Equal(t, 2, code)
	for _, c := range commands {
		assert.Contains(t, errOut, c.name)
	}

	code, _, errOut = runCmd(t, "", "serve")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, `unknown command "serve"`)
}

func TestScore(t *testing.T) {
	ref := filepath.Join(t.TempDir(), "ref.en")
	require.NoError(t, os.WriteFile(ref, []byte("a b c d e\n"), 0o600))

	code, out, errOut := runCmd(t, "a b c d e\n", "score", "-ref", ref)
	require.Equal(t, 0, code, errOut)
	assert.True(t, strings.HasPrefix(out, "BLEU = 100.00"))

	code, _, errOut = runCmd(t, "", "score")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "-ref is required")
}

func TestVocab(t *testing.T) {
	out := filepath.Join(t.TempDir(), "vocab.json")
	code, _, errOut := runCmd(t, "b a b c b a\n", "vocab", "-size", "5", "-output", out)
	require.Equal(t, 0, code, errOut)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var words map[string]int
	require.NoError(t, json.Unmarshal(data, &words))
	assert.Equal(t, map[string]int{"<S>": 0, "<UNK>": 1, "b": 2, "a": 3, "</S>": 4}, words)
}

func TestTranslateMissingModel(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("saveto: "+dir+"\n"), 0o600))

	code, _, errOut := runCmd(t, "yksi\n", "translate", "-proto", "wmt15_fi_en_TEST", "-config", cfgPath, "-log-level", "error")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "params.nmtp")
}

func TestBadFlags(t *testing.T) {
	code, _, _ := runCmd(t, "", "train", "-log-level", "loud")
	assert.Equal(t, 1, code)

	code, _, _ = runCmd(t, "", "vocab", "-h")
	assert.Equal(t, 2, code)
}
