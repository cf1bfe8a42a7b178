package checkpoint

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/born-ml/nmt/internal/nn"
)

// Dump file names inside a Manager directory.
const (
	ParametersFile = "params.nmtp"
	StateFile      = "iterations_state.json"
	LogFile        = "log.json"
)

// Snapshot names the parts of a dump. Nil parts are skipped. State and
// Log are encoded as JSON; on load they must be pointers.
type Snapshot struct {
	Parameters []*nn.Parameter
	Metadata   map[string]string
	State      any
	Log        any
}

// LoadReport is the outcome of Manager.Load, one entry per part.
type LoadReport struct {
	Parameters Report
	ParamsErr  error
	StateErr   error
	LogErr     error
}

// Manager saves and restores training dumps in one directory.
type Manager struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
	best   []BestModel
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger used for load and save steps.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a manager rooted at dir. The directory is created on
// the first dump. Best models already in dir are tracked.
func NewManager(dir string, opts ...ManagerOption) *Manager {
	m := &Manager{dir: dir, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	m.best = m.scanBest()
	return m
}

const (
	bestPrefix = "best_bleu_model_"
	bestScore  = "_BLEU"
	bestExt    = ".nmtp"
)

// scanBest lists the best model files of the directory, worst first.
func (m *Manager) scanBest() []BestModel {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil
	}
	var best []BestModel
	for _, e := range entries {
		score, ok := parseBestName(e.Name())
		if !ok || e.IsDir() {
			continue
		}
		best = append(best, BestModel{Score: score, Path: m.Path(e.Name())})
	}
	slices.SortStableFunc(best, func(a, b BestModel) int {
		return cmp.Compare(a.Score, b.Score)
	})
	if len(best) > 0 {
		m.logger.Info("best models found", "dir", m.dir, "count", len(best), "best", best[len(best)-1].Score)
	}
	return best
}

func parseBestName(name string) (float64, bool) {
	rest, ok := strings.CutPrefix(name, bestPrefix)
	if !ok {
		return 0, false
	}
	rest, ok = strings.CutSuffix(rest, bestExt)
	if !ok {
		return 0, false
	}
	i := strings.LastIndex(rest, bestScore)
	if i < 0 {
		return 0, false
	}
	if _, err := strconv.ParseInt(rest[:i], 10, 64); err != nil {
		return 0, false
	}
	score, err := strconv.ParseFloat(rest[i+len(bestScore):], 64)
	if err != nil {
		return 0, false
	}
	return score, true
}

// Dir returns the dump directory.
func (m *Manager) Dir() string { return m.dir }

// Path returns the path of name inside the dump directory.
func (m *Manager) Path(name string) string {
	return filepath.Join(m.dir, name)
}

// Dump writes every non-nil part of s.
func (m *Manager) Dump(s Snapshot) error {
	if err := os.MkdirAll(m.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create dump directory: %w", err)
	}
	start := m.now()
	if s.Parameters != nil {
		if err := WriteFile(m.Path(ParametersFile), s.Parameters, s.Metadata); err != nil {
			return fmt.Errorf("dump parameters: %w", err)
		}
	}
	if s.State != nil {
		if err := writeJSON(m.Path(StateFile), s.State); err != nil {
			return fmt.Errorf("dump iteration state: %w", err)
		}
	}
	if s.Log != nil {
		if err := writeJSON(m.Path(LogFile), s.Log); err != nil {
			return fmt.Errorf("dump log: %w", err)
		}
	}
	m.logger.Info("dump saved", "dir", m.dir, "elapsed", m.now().Sub(start))
	return nil
}

// Exists reports whether the directory holds any dump part.
func (m *Manager) Exists() bool {
	for _, name := range []string{ParametersFile, StateFile, LogFile} {
		if _, err := os.Stat(m.Path(name)); err == nil {
			return true
		}
	}
	return false
}

// Load restores every non-nil part of s. A part that fails is logged and
// skipped; the others are still loaded. The returned error joins the part
// errors and is ErrNoDump when the directory holds no dump at all.
func (m *Manager) Load(s Snapshot) (LoadReport, error) {
	if !m.Exists() {
		return LoadReport{}, fmt.Errorf("%w in %s", ErrNoDump, m.dir)
	}
	var report LoadReport
	if s.Parameters != nil {
		report.Parameters, report.ParamsErr = m.LoadParameters(s.Parameters)
		if report.ParamsErr != nil {
			m.logger.Error("failed to load parameters", "dir", m.dir, "error", report.ParamsErr)
		} else {
			m.logger.Info("parameters loaded",
				"loaded", len(report.Parameters.Loaded),
				"missing", len(report.Parameters.Missing),
				"unused", len(report.Parameters.Unused))
			for _, name := range report.Parameters.Missing {
				m.logger.Warn("parameter not in dump", "name", name)
			}
			for _, name := range report.Parameters.Unused {
				m.logger.Warn("dump tensor not used", "name", name)
			}
		}
	}
	if s.State != nil {
		if report.StateErr = readJSON(m.Path(StateFile), s.State); report.StateErr != nil {
			m.logger.Error("failed to load iteration state", "dir", m.dir, "error", report.StateErr)
		} else {
			m.logger.Info("iteration state loaded")
		}
	}
	if s.Log != nil {
		if report.LogErr = readJSON(m.Path(LogFile), s.Log); report.LogErr != nil {
			m.logger.Error("failed to load log", "dir", m.dir, "error", report.LogErr)
		} else {
			m.logger.Info("log loaded")
		}
	}
	return report, errors.Join(report.ParamsErr, report.StateErr, report.LogErr)
}

// LoadParameters restores params from the dump's parameter file.
func (m *Manager) LoadParameters(params []*nn.Parameter) (Report, error) {
	f, err := ReadFile(m.Path(ParametersFile))
	if err != nil {
		return Report{}, err
	}
	return f.Restore(params)
}

// BestModel is one kept best-scoring parameter file.
type BestModel struct {
	Score float64
	Path  string
}

// IsBest reports whether score beats the worst tracked model.
func (m *Manager) IsBest(score float64) bool {
	return len(m.best) == 0 || m.best[0].Score < score
}

// SaveBest writes params as a best model when score beats the worst of the
// keep tracked ones, removing that worst file once keep are tracked. It
// returns the new path, or "" when score did not qualify.
func (m *Manager) SaveBest(params []*nn.Parameter, score float64, keep int) (string, error) {
	if !m.IsBest(score) {
		return "", nil
	}
	keep = max(keep, 1)
	if err := os.MkdirAll(m.dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create dump directory: %w", err)
	}
	for len(m.best) >= keep {
		old := m.best[0]
		if err := os.Remove(old.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			m.logger.Warn("failed to remove old best model", "path", old.Path, "error", err)
		}
		m.best = m.best[1:]
	}

	name := fmt.Sprintf("%s%d%s%.2f%s", bestPrefix, m.now().Unix(), bestScore, score, bestExt)
	path := m.Path(name)
	meta := map[string]string{"bleu": fmt.Sprintf("%.2f", score)}
	if err := WriteFile(path, params, meta); err != nil {
		return "", fmt.Errorf("save best model: %w", err)
	}
	m.best = append(m.best, BestModel{Score: score, Path: path})
	slices.SortStableFunc(m.best, func(a, b BestModel) int {
		return cmp.Compare(a.Score, b.Score)
	})
	m.logger.Info("best model saved", "path", path, "bleu", score)
	return path, nil
}

// BestModels returns the tracked best models, worst first.
func (m *Manager) BestModels() []BestModel {
	return slices.Clone(m.best)
}

func writeJSON(path string, v any) error {
	return writeAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
		}
		return nil
	})
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the dump directory
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
