// Package devstate persists small per-device values (the active-thread
// pointer, per-scope maps) outside the collection cache, with an explicit
// load/default/save lifecycle.
package devstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"mcpdeck/internal/fileutil"
)

// Store is a file-backed string key-value store. Values are loaded once at
// open and written back atomically on every mutation. Each key has a single
// writer; readers may be anywhere.
type Store struct {
	path   string
	mu     sync.RWMutex
	values map[string]string
}

// Open loads (or initializes) the device state under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	s := &Store{
		path:   filepath.Join(dir, "state.json"),
		values: make(map[string]string),
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	if err := json.Unmarshal(data, &s.values); err != nil {
		// A corrupt state file is not fatal: start fresh.
		s.values = make(map[string]string)
	}

	return s, nil
}

// ScopedKey qualifies a value name with its scope so different scopes never
// share an entry.
func ScopedKey(name, scopeKey string) string {
	return name + "/" + scopeKey
}

// Get returns the value for key, if present.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores a value and persists the store.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.saveLocked()
}

// Delete removes a key and persists the store.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.AtomicWrite(s.path, data, 0644)
}
