package checkpoint

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testState struct {
	Iterations int     `json:"iterations"`
	BestBleu   float64 `json:"best_bleu"`
}

func quietManager(dir string) *Manager {
	return NewManager(dir, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestManagerDumpLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "search_model")
	m := quietManager(dir)
	assert.False(t, m.Exists())

	state := testState{Iterations: 42, BestBleu: 13.5}
	log := map[string]float64{"cost": 3.25}
	require.NoError(t, m.Dump(Snapshot{Parameters: testParams(), State: state, Log: log}))
	assert.True(t, m.Exists())

	params := zeroParams()
	var gotState testState
	var gotLog map[string]float64
	report, err := m.Load(Snapshot{Parameters: params, State: &gotState, Log: &gotLog})
	require.NoError(t, err)
	assert.Len(t, report.Parameters.Loaded, 2)
	assert.Equal(t, state, gotState)
	assert.Equal(t, log, gotLog)
	assert.Equal(t, testParams()[0].Data(), params[0].Data())
}

func TestManagerLoadNoDump(t *testing.T) {
	m := quietManager(t.TempDir())
	_, err := m.Load(Snapshot{Parameters: zeroParams()})
	assert.ErrorIs(t, err, ErrNoDump)
}

func TestManagerLoadContinuesPastBrokenPart(t *testing.T) {
	dir := t.TempDir()
	m := quietManager(dir)
	require.NoError(t, m.Dump(Snapshot{Parameters: testParams(), State: testState{Iterations: 7}}))
	require.NoError(t, os.WriteFile(m.Path(StateFile), []byte("{not json"), 0o600))

	params := zeroParams()
	var state testState
	var log map[string]float64
	report, err := m.Load(Snapshot{Parameters: params, State: &state, Log: &log})
	require.Error(t, err)
	assert.NoError(t, report.ParamsErr)
	assert.Error(t, report.StateErr)
	assert.ErrorIs(t, report.LogErr, os.ErrNotExist)
	assert.Equal(t, testParams()[0].Data(), params[0].Data(), "parameters still restored")
}

func TestManagerSaveBest(t *testing.T) {
	dir := t.TempDir()
	m := quietManager(dir)
	clock := time.Unix(1000, 0)
	m.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	first, err := m.SaveBest(testParams(), 10.5, 1)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "best_bleu_model_1001_BLEU10.50.nmtp"), first)
	assert.FileExists(t, first)

	skipped, err := m.SaveBest(testParams(), 9, 1)
	require.NoError(t, err)
	assert.Empty(t, skipped)

	second, err := m.SaveBest(testParams(), 12, 1)
	require.NoError(t, err)
	assert.FileExists(t, second)
	assert.NoFileExists(t, first)
	require.Len(t, m.BestModels(), 1)
	assert.InDelta(t, 12.0, m.BestModels()[0].Score, 0)

	f, err := ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, "12.00", f.Metadata()["bleu"])
}

func TestManagerTracksBestAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	first := quietManager(dir)
	old, err := first.SaveBest(testParams(), 10.5, 1)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "best_bleu_model_x_BLEU1.00.nmtp"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o600))

	restarted := quietManager(dir)
	best := restarted.BestModels()
	require.Len(t, best, 1)
	assert.Equal(t, old, best[0].Path)
	assert.InDelta(t, 10.5, best[0].Score, 1e-9)
	assert.False(t, restarted.IsBest(9))

	skipped, err := restarted.SaveBest(testParams(), 9, 1)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.FileExists(t, old)

	restarted.now = func() time.Time { return time.Unix(5000, 0) }
	newer, err := restarted.SaveBest(testParams(), 11, 1)
	require.NoError(t, err)
	assert.FileExists(t, newer)
	assert.NoFileExists(t, old)
	require.Len(t, restarted.BestModels(), 1)
}

func TestParseBestName(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		ok    bool
	}{
		{"best_bleu_model_1001_BLEU10.50.nmtp", 10.5, true},
		{"best_bleu_model_1001_BLEU0.00.nmtp", 0, true},
		{"best_bleu_model_1001_BLEU10.50.json", 0, false},
		{"best_bleu_model_x_BLEU10.50.nmtp", 0, false},
		{"params.nmtp", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, ok := parseBestName(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.score, score, 1e-9)
		})
	}
}

func TestManagerSaveBestKeepsSeveral(t *testing.T) {
	m := quietManager(t.TempDir())
	var paths []string
	for _, score := range []float64{1, 2, 3} {
		p, err := m.SaveBest(testParams(), score, 2)
		require.NoError(t, err)
		paths = append(paths, p)
	}
	best := m.BestModels()
	require.Len(t, best, 2)
	assert.InDelta(t, 2.0, best[0].Score, 0)
	assert.InDelta(t, 3.0, best[1].Score, 0)
	assert.NoFileExists(t, paths[0])
	assert.True(t, m.IsBest(2.5))
	assert.False(t, m.IsBest(2))
}
