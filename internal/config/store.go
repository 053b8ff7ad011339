// Package config holds the default parameter set, per-image overrides and the
// typed application settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"shelfscan/internal/logging"
	"shelfscan/internal/params"
)

// DefaultParamsFile is the file name used for the default parameter set.
const DefaultParamsFile = "Config_Image.json"

// Store keeps the default parameter set and any per-image overrides.
// Overrides are keyed by image ID.
type Store struct {
	mu        sync.RWMutex
	def       params.Set
	overrides map[string]params.Set
	path      string
}

// NewStore creates an in-memory store seeded with def.
func NewStore(def params.Set) *Store {
	return &Store{
		def:       def,
		overrides: make(map[string]params.Set),
	}
}

// Open loads the default set from path. A missing or empty file is created
// with fallback, which must be valid. Overrides saved next to it are loaded
// too.
func Open(path string, fallback params.Set) (*Store, error) {
	s := NewStore(fallback)
	s.path = path

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) || (err == nil && len(strings.TrimSpace(string(data))) <= 2):
		logging.Debug("creating default parameter file", "path", path)
		if err := s.saveDefault(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("read params %s: %w", path, err)
	default:
		var def params.Set
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("parse params %s: %w", path, err)
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("params %s: %w", path, err)
		}
		s.def = def
	}

	if err := s.loadOverrides(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the file backing the default set, or "" for an in-memory store.
func (s *Store) Path() string { return s.path }

// Default returns the default parameter set.
func (s *Store) Default() params.Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.def
}

// Params returns the override for id, or the default when there is none.
func (s *Store) Params(id string) params.Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.overrides[id]; ok {
		return p
	}
	return s.def
}

// HasOverride reports whether id carries its own parameter set.
func (s *Store) HasOverride(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.overrides[id]
	return ok
}

// All returns a copy of every override. hasCustom is false when there are no
// overrides or every override equals the default; callers then use Default.
func (s *Store) All() (overrides map[string]params.Set, hasCustom bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	overrides = maps.Clone(s.overrides)
	for _, p := range s.overrides {
		if p != s.def {
			return overrides, true
		}
	}
	return overrides, false
}

// Set stores an override for id after validating it.
func (s *Store) Set(id string, p params.Set) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("params for %s: %w", id, err)
	}
	s.mu.Lock()
	s.overrides[id] = p
	s.mu.Unlock()
	return nil
}

// Reset drops the override for id so it falls back to the default.
func (s *Store) Reset(id string) {
	s.mu.Lock()
	delete(s.overrides, id)
	s.mu.Unlock()
}

// ResetAll drops every override.
func (s *Store) ResetAll() {
	s.mu.Lock()
	clear(s.overrides)
	s.mu.Unlock()
}

// SetDefault replaces the default set and writes it to disk when the store
// is file backed.
func (s *Store) SetDefault(p params.Set) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("default params: %w", err)
	}
	s.mu.Lock()
	s.def = p
	s.mu.Unlock()
	return s.saveDefault()
}

// ResetDefault restores the built-in default set.
func (s *Store) ResetDefault() error {
	return s.SetDefault(params.Default())
}

// Save writes the overrides file. The default set is written by SetDefault.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}
	s.mu.RLock()
	data, err := json.MarshalIndent(s.overrides, "", "    ")
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	return writeFile(overridesPath(s.path), data)
}

func (s *Store) saveDefault() error {
	if s.path == "" {
		return nil
	}
	s.mu.RLock()
	data, err := json.MarshalIndent(s.def, "", "    ")
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	return writeFile(s.path, data)
}

func (s *Store) loadOverrides() error {
	path := overridesPath(s.path)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read overrides %s: %w", path, err)
	}

	overrides := make(map[string]params.Set)
	if err := json.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("parse overrides %s: %w", path, err)
	}
	for id, p := range overrides {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("overrides %s: %s: %w", path, id, err)
		}
	}
	s.overrides = overrides
	return nil
}

// overridesPath derives the per-image file from the default file, e.g.
// Config_Image.json -> Config_Image.images.json.
func overridesPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".images" + ext
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
