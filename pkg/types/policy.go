package types

import (
	"fmt"
	"strings"
	"time"
)

// EvictionPolicy selects the victim ordering under capacity pressure.
type EvictionPolicy string

const (
	// EvictLRU removes the entry with the oldest last access.
	EvictLRU EvictionPolicy = "lru"

	// EvictLFU removes the entry with the lowest access count,
	// ties broken by oldest creation time.
	EvictLFU EvictionPolicy = "lfu"

	// EvictFIFO removes the entry with the oldest creation time.
	EvictFIFO EvictionPolicy = "fifo"
)

// Valid reports whether the policy names a known eviction strategy.
func (p EvictionPolicy) Valid() bool {
	switch p {
	case EvictLRU, EvictLFU, EvictFIFO:
		return true
	}
	return false
}

// CachePolicy is the immutable engine configuration. It is validated once
// at construction; an invalid policy never reaches the query path.
type CachePolicy struct {
	// MaxSizeBytes caps the total accounted size of live entries.
	MaxSizeBytes int64

	// DefaultTTL applies to entries stored without an explicit TTL.
	// Zero means entries do not expire by default.
	DefaultTTL time.Duration

	// Eviction selects the victim ordering (lru, lfu, fifo).
	Eviction EvictionPolicy

	// SemanticEnabled turns embedding-similarity matching on.
	SemanticEnabled bool

	// SemanticThreshold is the minimum cosine similarity for a semantic
	// hit, in [0, 1].
	SemanticThreshold float64

	// EmbedTimeout bounds a single embedding call on the resolve path.
	EmbedTimeout time.Duration

	// StoreTimeout bounds a single backing-store operation.
	StoreTimeout time.Duration

	// EvictionBatchLimit caps victims removed in one pass so a sweep
	// cannot starve concurrent reads.
	EvictionBatchLimit int

	// EvictionDeleteRetries bounds backing-store delete attempts for a
	// single evicted key.
	EvictionDeleteRetries int
}

// DefaultPolicy returns a CachePolicy with documented defaults.
func DefaultPolicy() CachePolicy {
	return CachePolicy{
		MaxSizeBytes:          64 * 1024 * 1024, // 64MB
		DefaultTTL:            time.Hour,
		Eviction:              EvictLRU,
		SemanticEnabled:       true,
		SemanticThreshold:     0.85,
		EmbedTimeout:          5 * time.Second,
		StoreTimeout:          3 * time.Second,
		EvictionBatchLimit:    64,
		EvictionDeleteRetries: 3,
	}
}

// Validate checks the policy and returns a descriptive error listing every
// invalid field.
func (p CachePolicy) Validate() error {
	var errs []string

	if p.MaxSizeBytes <= 0 {
		errs = append(errs, fmt.Sprintf("max_size_bytes: must be positive, got %d", p.MaxSizeBytes))
	}
	if p.DefaultTTL < 0 {
		errs = append(errs, "default_ttl: must be non-negative")
	}
	if !p.Eviction.Valid() {
		errs = append(errs, fmt.Sprintf("eviction_policy: unsupported policy %q (supported: lru, lfu, fifo)", p.Eviction))
	}
	if p.SemanticThreshold < 0 || p.SemanticThreshold > 1 {
		errs = append(errs, fmt.Sprintf("semantic_threshold: must be between 0 and 1, got %f", p.SemanticThreshold))
	}
	if p.EmbedTimeout < 0 {
		errs = append(errs, "embed_timeout: must be non-negative")
	}
	if p.StoreTimeout < 0 {
		errs = append(errs, "store_timeout: must be non-negative")
	}
	if p.EvictionBatchLimit < 0 {
		errs = append(errs, "eviction_batch_limit: must be non-negative")
	}
	if p.EvictionDeleteRetries < 0 {
		errs = append(errs, "eviction_delete_retries: must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid cache policy:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
