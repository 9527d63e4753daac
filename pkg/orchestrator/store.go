package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// StatsStore persists per-agent performance stats between runs
type StatsStore interface {
	Save(stats map[string]PerformanceStats) error
	Load() (map[string]PerformanceStats, error)
	Close() error
}

// FileStore implements StatsStore as a single JSON document
type FileStore struct {
	path string
	mu   sync.RWMutex
}

// NewFileStore creates a file-based stats store at path
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("stats file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Save replaces the stored document with stats
func (s *FileStore) Save(stats map[string]PerformanceStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write stats file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace stats file: %w", err)
	}
	return nil
}

// Load reads the stored stats; a missing file yields an empty map
func (s *FileStore) Load() (map[string]PerformanceStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]PerformanceStats{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read stats file: %w", err)
	}

	stats := make(map[string]PerformanceStats)
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
	}
	return stats, nil
}

// Close is a no-op for FileStore
func (s *FileStore) Close() error {
	return nil
}

// RestoreStats applies stored stats to the registered agents. Stored entries
// for unknown agents are ignored.
func (o *Orchestrator) RestoreStats() (int, error) {
	if o.store == nil {
		return 0, ErrNoStore
	}
	stored, err := o.store.Load()
	if err != nil {
		return 0, fmt.Errorf("failed to load stats: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	restored := 0
	for id, stats := range stored {
		rec, err := o.registry.get(id)
		if err != nil {
			continue
		}
		rec.stats = stats
		restored++
	}
	o.logger.Info().Int("restored", restored).Int("stored", len(stored)).Msg("Performance stats restored")
	return restored, nil
}

// PersistStats snapshots the stats of every agent to the store
func (o *Orchestrator) PersistStats() error {
	if o.store == nil {
		return ErrNoStore
	}

	o.mu.RLock()
	snapshot := make(map[string]PerformanceStats, o.registry.count())
	for _, rec := range o.registry.list() {
		snapshot[rec.id] = rec.stats
	}
	o.mu.RUnlock()

	if err := o.store.Save(snapshot); err != nil {
		return fmt.Errorf("failed to persist stats: %w", err)
	}
	o.logger.Debug().Int("agents", len(snapshot)).Msg("Performance stats persisted")
	return nil
}
