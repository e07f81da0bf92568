package rebalance

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MonitoringState tracks what the loop has done across restarts.
type MonitoringState struct {
	CyclesRun     uint64 `json:"cycles_run"`
	LastCycleAt   string `json:"last_cycle_at"`
	LastEvaluated int    `json:"last_evaluated"`
	LastTriggered int    `json:"last_triggered"`
}

// StateStore persists monitoring state to disk.
type StateStore struct {
	path    string
	enabled bool
}

func NewStateStore(path string, enabled bool) *StateStore {
	return &StateStore{path: path, enabled: enabled}
}

func (s *StateStore) Load() (MonitoringState, bool, error) {
	if !s.enabled {
		return MonitoringState{}, false, nil
	}

	stat, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return MonitoringState{}, false, nil
		}
		return MonitoringState{}, false, fmt.Errorf("stat state: %w", err)
	}
	if stat.IsDir() {
		return MonitoringState{}, false, fmt.Errorf("state path is a directory")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return MonitoringState{}, false, fmt.Errorf("read state: %w", err)
	}

	var state MonitoringState
	if err := json.Unmarshal(data, &state); err != nil {
		return MonitoringState{}, false, fmt.Errorf("parse state: %w", err)
	}

	return state, true, nil
}

func (s *StateStore) Save(state MonitoringState) error {
	if !s.enabled {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	state.LastCycleAt = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}

	return nil
}
