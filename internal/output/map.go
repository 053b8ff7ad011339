// Package output holds the per-image digit sequences produced by a run and
// reconciles them with manual edits before saving.
package output

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/maruel/natural"
)

// ErrNoEntry is returned when an edit targets an image with no entry.
var ErrNoEntry = errors.New("no output for image")

// ErrPosition is returned when an edit position is out of range.
var ErrPosition = errors.New("position out of range")

// Map maps image IDs to their ordered numeric sequence.
type Map struct {
	mu      sync.RWMutex
	entries map[string][]int
}

// New returns an empty map.
func New() *Map {
	return &Map{entries: make(map[string][]int)}
}

// FromEntries copies entries into a new map.
func FromEntries(entries map[string][]int) *Map {
	m := New()
	for id, vals := range entries {
		m.entries[id] = slices.Clone(vals)
	}
	return m
}

// Get returns a copy of the sequence for id.
func (m *Map) Get(id string) ([]int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vals, ok := m.entries[id]
	return slices.Clone(vals), ok
}

// Has reports whether id has an entry, even an empty one.
func (m *Map) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[id]
	return ok
}

// Set replaces the sequence for id.
func (m *Map) Set(id string, vals []int) {
	m.mu.Lock()
	m.entries[id] = slices.Clone(vals)
	m.mu.Unlock()
}

// Delete removes the entry for id.
func (m *Map) Delete(id string) {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
}

// AddValue inserts v at pos in the sequence for id. pos may equal the
// sequence length to append. An image without an entry gets one.
func (m *Map) AddValue(id string, pos, v int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	vals := m.entries[id]
	if pos < 0 || pos > len(vals) {
		return fmt.Errorf("%s: add at %d of %d: %w", id, pos, len(vals), ErrPosition)
	}
	m.entries[id] = slices.Insert(vals, pos, v)
	return nil
}

// RemoveValue deletes the value at pos from the sequence for id.
func (m *Map) RemoveValue(id string, pos int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	vals, ok := m.entries[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNoEntry)
	}
	if pos < 0 || pos >= len(vals) {
		return fmt.Errorf("%s: remove at %d of %d: %w", id, pos, len(vals), ErrPosition)
	}
	m.entries[id] = slices.Delete(vals, pos, pos+1)
	return nil
}

// Len returns the number of images with an entry.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Keys returns the image IDs in natural order ("Shelf 2" before "Shelf 10").
func (m *Map) Keys() []string {
	m.mu.RLock()
	keys := make([]string, 0, len(m.entries))
	for id := range m.entries {
		keys = append(keys, id)
	}
	m.mu.RUnlock()
	sort.Sort(natural.StringSlice(keys))
	return keys
}

// Snapshot returns a deep copy of every entry.
func (m *Map) Snapshot() map[string][]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]int, len(m.entries))
	for id, vals := range m.entries {
		out[id] = slices.Clone(vals)
	}
	return out
}

// Replace swaps the whole content for entries, as when a saved run is
// reloaded.
func (m *Map) Replace(entries map[string][]int) {
	fresh := FromEntries(entries)
	m.mu.Lock()
	m.entries = fresh.entries
	m.mu.Unlock()
}
