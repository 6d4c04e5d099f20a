// Package eviction selects victims to bring the entry set back under its
// capacity budget. Selection is a pure function over an entry snapshot so
// the engine can apply removals under its own locking.
package eviction

import (
	"fmt"
	"sort"

	"github.com/semcache/semcache/pkg/types"
)

// Manager picks eviction victims according to a policy.
type Manager struct {
	policy     types.EvictionPolicy
	batchLimit int
}

// NewManager creates a Manager. batchLimit caps victims selected in one
// pass; zero means no cap.
func NewManager(policy types.EvictionPolicy, batchLimit int) (*Manager, error) {
	if !policy.Valid() {
		return nil, fmt.Errorf("unsupported eviction policy %q", policy)
	}
	if batchLimit < 0 {
		return nil, fmt.Errorf("batch limit must be non-negative, got %d", batchLimit)
	}
	return &Manager{policy: policy, batchLimit: batchLimit}, nil
}

// Policy returns the configured eviction policy.
func (m *Manager) Policy() types.EvictionPolicy {
	return m.policy
}

// SelectVictims returns the keys to evict, in eviction order, so that
// totalBytes plus incomingBytes fits under maxBytes. It returns nil when
// already under budget and never selects more than necessary. Expired
// entries are not special-cased here; the engine reclaims them on its
// write path before asking for victims.
func (m *Manager) SelectVictims(entries []types.CacheEntry, totalBytes, incomingBytes, maxBytes int64) []string {
	need := totalBytes + incomingBytes - maxBytes
	if need <= 0 {
		return nil
	}

	ordered := make([]types.CacheEntry, len(entries))
	copy(ordered, entries)
	sort.Slice(ordered, func(i, j int) bool {
		return m.less(ordered[i], ordered[j])
	})

	var victims []string
	for _, e := range ordered {
		if need <= 0 {
			break
		}
		if m.batchLimit > 0 && len(victims) >= m.batchLimit {
			break
		}
		victims = append(victims, e.Key)
		need -= e.SizeBytes()
	}
	return victims
}

// less orders entries by eviction priority: earlier means evicted first.
// Every policy ends with a key comparison so selection is deterministic.
func (m *Manager) less(a, b types.CacheEntry) bool {
	switch m.policy {
	case types.EvictLFU:
		if a.AccessCount != b.AccessCount {
			return a.AccessCount < b.AccessCount
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
	case types.EvictFIFO:
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
	default: // LRU
		if !a.LastAccessed.Equal(b.LastAccessed) {
			return a.LastAccessed.Before(b.LastAccessed)
		}
	}
	return a.Key < b.Key
}
