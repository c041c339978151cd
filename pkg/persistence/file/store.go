package file

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// store is one JSON-file-per-entity directory with coarse locking. All
// repositories in this package are built on it.
type store struct {
	dir string
	mu  sync.RWMutex
}

func newStore(root, name string) *store {
	return &store{dir: filepath.Join(root, name)}
}

func (s *store) write(id string, entity any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", id, err)
	}

	if err := os.WriteFile(s.path(id), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", id, err)
	}

	return nil
}

// read loads one entity; ok is false when the file does not exist.
func (s *store) read(id string, entity any) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", id, err)
	}

	if err := json.Unmarshal(data, entity); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", id, err)
	}

	return true, nil
}

// update rewrites one entity under the write lock: read, apply, write.
// found is false when the entity does not exist; apply then never runs.
func (s *store) update(id string, entity any, apply func() error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", id, err)
	}

	if err := json.Unmarshal(data, entity); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", id, err)
	}

	if err := apply(); err != nil {
		return true, err
	}

	out, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return true, fmt.Errorf("failed to encode %s: %w", id, err)
	}

	if err := os.WriteFile(s.path(id), out, 0o644); err != nil {
		return true, fmt.Errorf("failed to write %s: %w", id, err)
	}

	return true, nil
}

func (s *store) remove(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(id))
	if os.IsNotExist(err) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to remove %s: %w", id, err)
	}

	return true, nil
}

func (s *store) ids() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.dir, err)
	}

	ids := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}

	return ids, nil
}

func (s *store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}
