package store

import (
	"slices"
	"sync"
	"time"
)

// MemoryStore implements Store using in-memory data structures.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemory creates a new in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

// Get retrieves a copy of the entry stored under key.
func (m *MemoryStore) Get(key string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	cp.Data = slices.Clone(e.Data)
	return &cp, nil
}

// Put stores a copy of e.
func (m *MemoryStore) Put(e *Entry) error {
	cp := *e
	cp.Data = slices.Clone(e.Data)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.CreatedAt = cp.CreatedAt.UTC().Truncate(time.Second)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.Key] = &cp
	return nil
}

// Delete removes the entry stored under key.
func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// List returns entry metadata, oldest first.
func (m *MemoryStore) List() ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]*Entry, 0, len(m.entries))
	for _, e := range m.entries {
		cp := *e
		cp.Data = nil
		entries = append(entries, &cp)
	}
	slices.SortFunc(entries, func(a, b *Entry) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return compareStrings(a.Key, b.Key)
	})
	return entries, nil
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}
