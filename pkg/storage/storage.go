// Package storage defines the backing-store contract for cache entries and
// provides in-memory and SQLite implementations.
package storage

import (
	"context"
	"errors"

	"github.com/semcache/semcache/pkg/types"
)

// Common errors returned by stores.
var (
	ErrNotFound    = errors.New("entry not found")
	ErrUnavailable = errors.New("storage unavailable")
	ErrClosed      = errors.New("store is closed")
)

// Store is the durable backing for cache entries. Implementations must be
// safe for concurrent use. Get returns ErrNotFound for absent keys; other
// errors indicate a storage failure the engine surfaces to callers.
type Store interface {
	// Get retrieves an entry by key.
	Get(ctx context.Context, key string) (types.CacheEntry, error)

	// Put stores or replaces an entry.
	Put(ctx context.Context, entry types.CacheEntry) error

	// Delete removes an entry. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns every stored entry, used to warm the engine at startup.
	List(ctx context.Context) ([]types.CacheEntry, error)

	// Close releases resources.
	Close() error
}
