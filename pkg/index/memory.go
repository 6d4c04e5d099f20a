package index

import (
	"context"
	"sort"
	"sync"

	"github.com/semcache/semcache/pkg/vectormath"
)

// Memory is a brute-force in-process index. Search is O(n) over stored
// vectors, which is fine for the entry counts a single cache holds.
type Memory struct {
	mu      sync.RWMutex
	vectors map[string][]float32
	closed  bool
}

// NewMemory creates an empty in-memory index.
func NewMemory() *Memory {
	return &Memory{vectors: make(map[string][]float32)}
}

// Upsert stores or replaces the vector for a key.
func (m *Memory) Upsert(ctx context.Context, key string, vector []float32) error {
	if len(vector) == 0 {
		return ErrInvalidVector
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	stored := make([]float32, len(vector))
	copy(stored, vector)
	m.vectors[key] = stored
	return nil
}

// Delete removes a key's vector.
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.vectors, key)
	return nil
}

// Search scans all stored vectors and returns the topK by cosine similarity.
func (m *Memory) Search(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if len(vector) == 0 {
		return nil, ErrInvalidVector
	}
	if topK <= 0 {
		topK = 10
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	matches := make([]Match, 0, len(m.vectors))
	for key, stored := range m.vectors {
		matches = append(matches, Match{
			Key:   key,
			Score: float32(vectormath.CosineSimilarity(vector, stored)),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Key < matches[j].Key
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Len returns the number of indexed vectors.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

// Close marks the index closed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
