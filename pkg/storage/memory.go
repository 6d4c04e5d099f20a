package storage

import (
	"context"
	"sync"

	"github.com/semcache/semcache/pkg/types"
)

// Memory is a map-backed Store, used as the default backend and in tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]types.CacheEntry
	closed  bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]types.CacheEntry)}
}

// Get retrieves an entry by key.
func (m *Memory) Get(ctx context.Context, key string) (types.CacheEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return types.CacheEntry{}, ErrClosed
	}
	entry, ok := m.entries[key]
	if !ok {
		return types.CacheEntry{}, ErrNotFound
	}
	return entry.Clone(), nil
}

// Put stores or replaces an entry.
func (m *Memory) Put(ctx context.Context, entry types.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.entries[entry.Key] = entry.Clone()
	return nil
}

// Delete removes an entry; absent keys are a no-op.
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	delete(m.entries, key)
	return nil
}

// List returns every stored entry.
func (m *Memory) List(ctx context.Context) ([]types.CacheEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	entries := make([]types.CacheEntry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e.Clone())
	}
	return entries, nil
}

// Close marks the store closed; further operations fail with ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
