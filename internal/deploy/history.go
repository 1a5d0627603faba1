package deploy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"snowbank/internal/common"
	"snowbank/internal/config"
	"snowbank/internal/logging"
	"snowbank/pkg/errors"
)

// History keeps one JSON file per deploy run.
type History struct {
	dir           string
	mu            sync.RWMutex
	runs          map[string]*RunRecord
	maxRuns       int
	retentionDays int
}

// DefaultHistoryDir is ~/.snowbank/history unless SNOWBANK_CONFIG_DIR moves it.
func DefaultHistoryDir() string {
	return filepath.Join(config.GetConfigPath(), "history")
}

// NewHistory opens (and creates) the history directory.
func NewHistory(dir string) (*History, error) {
	if dir == "" {
		dir = DefaultHistoryDir()
	}
	if err := os.MkdirAll(dir, common.DirPermissionSecure); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFileOperation, "failed to create history directory").
			WithContext("dir", dir)
	}

	h := &History{
		dir:           dir,
		runs:          make(map[string]*RunRecord),
		maxRuns:       100,
		retentionDays: 90,
	}
	if err := h.load(); err != nil {
		return nil, err
	}
	return h, nil
}

// Dir returns the storage directory.
func (h *History) Dir() string {
	return h.dir
}

// Record stores a new run.
func (h *History) Record(run *RunRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.runs[run.ID] = run
	if err := h.save(run); err != nil {
		return err
	}
	h.cleanup()
	return nil
}

// Update applies fn to a stored run and persists it.
func (h *History) Update(id string, fn func(*RunRecord)) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	run, ok := h.runs[id]
	if !ok {
		return errors.New(errors.ErrCodeFileNotFound, "deployment run not found").
			WithContext("run_id", id)
	}
	fn(run)
	return h.save(run)
}

// Get returns a run by id or id prefix.
func (h *History) Get(id string) (*RunRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if run, ok := h.runs[id]; ok {
		return run, nil
	}

	var match *RunRecord
	for key, run := range h.runs {
		if len(id) >= 4 && len(key) > len(id) && key[:len(id)] == id {
			if match != nil {
				return nil, errors.Newf(errors.ErrCodeInvalidInput, "run id prefix %s is ambiguous", id)
			}
			match = run
		}
	}
	if match == nil {
		return nil, errors.New(errors.ErrCodeFileNotFound, "deployment run not found").
			WithContext("run_id", id)
	}
	return match, nil
}

// List returns up to limit runs, newest first. limit <= 0 returns all.
func (h *History) List(limit int) []*RunRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	runs := make([]*RunRecord, 0, len(h.runs))
	for _, run := range h.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartTime.After(runs[j].StartTime)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs
}

// Latest returns the newest completed run for database, or nil.
func (h *History) Latest(database string) *RunRecord {
	for _, run := range h.List(0) {
		if run.Database == database && run.State == StateCompleted {
			return run
		}
	}
	return nil
}

func (h *History) fileName(id string) string {
	return filepath.Join(h.dir, "run-"+id+".json")
}

func (h *History) load() error {
	files, err := filepath.Glob(filepath.Join(h.dir, "run-*.json"))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "failed to list history")
	}

	for _, file := range files {
		run, err := h.read(file)
		if err != nil {
			logging.Warn().Err(err).Str("file", file).Msg("skipping unreadable history file")
			continue
		}
		h.runs[run.ID] = run
	}
	return nil
}

func (h *History) read(path string) (*RunRecord, error) {
	validated, err := common.ValidatePath(path, h.dir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(validated) // #nosec G304 - path is validated
	if err != nil {
		return nil, err
	}

	var run RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, err
	}
	if run.ID == "" {
		return nil, errors.New(errors.ErrCodeFileOperation, "history file has no run id")
	}
	return &run, nil
}

func (h *History) save(run *RunRecord) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode run")
	}
	if err := os.WriteFile(h.fileName(run.ID), data, common.FilePermissionSecure); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "failed to write run history").
			WithContext("run_id", run.ID)
	}
	return nil
}

func (h *History) cleanup() {
	cutoff := time.Now().AddDate(0, 0, -h.retentionDays)

	runs := make([]*RunRecord, 0, len(h.runs))
	for id, run := range h.runs {
		if run.StartTime.Before(cutoff) {
			h.remove(id)
			continue
		}
		runs = append(runs, run)
	}

	if len(runs) <= h.maxRuns {
		return
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartTime.Before(runs[j].StartTime)
	})
	for _, run := range runs[:len(runs)-h.maxRuns] {
		h.remove(run.ID)
	}
}

func (h *History) remove(id string) {
	delete(h.runs, id)
	if err := os.Remove(h.fileName(id)); err != nil && !os.IsNotExist(err) {
		logging.Warn().Err(err).Str("run_id", id).Msg("failed to remove old history file")
	}
}
