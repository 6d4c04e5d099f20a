package journal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/semcache/semcache/pkg/types"
)

// MemoryStore is an in-process RecordStore, the default when no journal
// path is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records []types.OperationRecord
}

// NewMemoryStore creates an empty in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append persists one record.
func (m *MemoryStore) Append(ctx context.Context, record types.OperationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

// Query returns records with from <= Timestamp < to, ordered by timestamp
// then operation ID.
func (m *MemoryStore) Query(ctx context.Context, from, to time.Time) ([]types.OperationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []types.OperationRecord
	for _, r := range m.records {
		if !r.Timestamp.Before(from) && r.Timestamp.Before(to) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].OperationID < out[j].OperationID
	})
	return out, nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
