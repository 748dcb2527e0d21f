package bot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Relic999/aester-dex/internal/position"
)

const warmStateMaxAge = time.Hour

// WarmState is the minimal restart snapshot. Stale files are discarded.
type WarmState struct {
	Position         position.Position `json:"position"`
	LastBarCloseTime int64             `json:"lastBarCloseTime"`
	Timestamp        int64             `json:"timestamp"` // ms
}

// WarmStore persists warm state as JSON with atomic replace semantics.
type WarmStore struct {
	path string
	mu   sync.Mutex
}

// NewWarmStore creates a store at path; empty path disables persistence.
func NewWarmStore(path string) *WarmStore {
	return &WarmStore{path: path}
}

// Load reads the warm state. Returns nil (no error) when the file is
// missing, unreadable, or older than one hour: a cold start is always safe.
func (s *WarmStore) Load() *WarmState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var st WarmState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil
	}
	age := time.Since(time.UnixMilli(st.Timestamp))
	if age > warmStateMaxAge {
		return nil
	}
	return &st
}

// Save writes the state via a temp file and rename so readers never observe
// a torn write.
func (s *WarmStore) Save(st WarmState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace warm state: %w", err)
	}
	return nil
}

// Reset removes the persisted state.
func (s *WarmStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return nil
	}
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
