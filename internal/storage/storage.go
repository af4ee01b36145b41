package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/maltedev/shop-compare/internal/models"
)

// RunStore keeps finished search runs in a JSON file so results survive a
// restart.
type RunStore struct {
	mu       sync.RWMutex
	runs     map[string]*models.RunReport
	filename string
	maxRuns  int
}

func NewRunStore(filename string, maxRuns int) (*RunStore, error) {
	rs := &RunStore{
		runs:     make(map[string]*models.RunReport),
		filename: filename,
		maxRuns:  maxRuns,
	}

	if err := rs.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return rs, nil
}

// Save adds r, dropping the oldest runs beyond the configured maximum.
func (rs *RunStore) Save(r *models.RunReport) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if r.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	rs.runs[r.ID] = r

	if rs.maxRuns > 0 {
		ordered := rs.ordered()
		for _, old := range ordered[min(rs.maxRuns, len(ordered)):] {
			delete(rs.runs, old.ID)
		}
	}

	return rs.save()
}

func (rs *RunStore) Get(id string) (*models.RunReport, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	r, exists := rs.runs[id]
	return r, exists
}

// Latest returns the most recently started run, or nil.
func (rs *RunStore) Latest() *models.RunReport {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	ordered := rs.ordered()
	if len(ordered) == 0 {
		return nil
	}
	return ordered[0]
}

// List returns the stored runs, newest first.
func (rs *RunStore) List() []*models.RunReport {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.ordered()
}

func (rs *RunStore) GetStats() map[string]int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	stats := map[string]int{"total": len(rs.runs), "passed": 0, "failed": 0}
	for _, r := range rs.runs {
		if r.Passed {
			stats["passed"]++
		} else {
			stats["failed"]++
		}
	}
	return stats
}

func (rs *RunStore) ordered() []*models.RunReport {
	out := make([]*models.RunReport, 0, len(rs.runs))
	for _, r := range rs.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

func (rs *RunStore) save() error {
	data, err := json.MarshalIndent(rs.runs, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(rs.filename), 0o755); err != nil {
		return err
	}

	// Write to temp file first for atomicity
	tmpFile := rs.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmpFile, rs.filename)
}

func (rs *RunStore) Load() error {
	data, err := os.ReadFile(rs.filename)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, &rs.runs)
}
