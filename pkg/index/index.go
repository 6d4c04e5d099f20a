// Package index defines the vector-index contract used for semantic lookup
// and provides an in-process brute-force implementation. Qdrant and Pinecone
// backends live in subpackages.
package index

import (
	"context"
	"errors"
)

// Common errors returned by indexes.
var (
	ErrNotFound         = errors.New("vector not found")
	ErrInvalidVector    = errors.New("invalid query vector")
	ErrConnectionFailed = errors.New("connection to vector index failed")
	ErrClosed           = errors.New("index is closed")
)

// Match is a single similarity result.
type Match struct {
	// Key is the cache key the vector was indexed under.
	Key string

	// Score is the cosine similarity in [-1, 1].
	Score float32
}

// Index stores query embeddings keyed by cache key and answers
// nearest-neighbor searches. Implementations must be safe for
// concurrent use.
type Index interface {
	// Upsert stores or replaces the vector for a key.
	Upsert(ctx context.Context, key string, vector []float32) error

	// Delete removes a key's vector. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Search returns up to topK matches ordered by descending score,
	// ties broken by ascending key.
	Search(ctx context.Context, vector []float32, topK int) ([]Match, error)

	// Close releases any resources held by the index.
	Close() error
}
