package cache

import (
	"context"
	"slices"
	"sync"
)

// MemoryBackend keeps entries in a map guarded by a mutex. Values are stored
// as-is without serialization, so the Cache reads back exactly what it put.
// Entries are lost when the process exits.
type MemoryBackend struct {
	entries map[string]*Entry
	mutex   sync.RWMutex
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemory returns an empty in-process backend.
func NewMemory() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]*Entry)}
}

func (m *MemoryBackend) Put(_ context.Context, key string, entry *Entry) error {
	m.mutex.Lock()
	m.entries[key] = entry.clone()
	m.mutex.Unlock()
	return nil
}

func (m *MemoryBackend) Get(_ context.Context, key string) (*Entry, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.entries[key].clone(), nil
}

func (m *MemoryBackend) Exists(_ context.Context, key string) (bool, error) {
	m.mutex.RLock()
	_, ok := m.entries[key]
	m.mutex.RUnlock()
	return ok, nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mutex.Lock()
	delete(m.entries, key)
	m.mutex.Unlock()
	return nil
}

// Keys returns the stored keys in sorted order.
func (m *MemoryBackend) Keys(_ context.Context) ([]string, error) {
	m.mutex.RLock()
	keys := make([]string, 0, len(m.entries))
	for key := range m.entries {
		keys = append(keys, key)
	}
	m.mutex.RUnlock()
	slices.Sort(keys)
	return keys, nil
}

// Len returns the number of stored entries.
func (m *MemoryBackend) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.entries)
}
