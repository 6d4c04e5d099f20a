// Package types defines the core data model for the Semcache decision
// engine: cache entries, policies, operation records, and analytics
// snapshots shared by every other package.
package types

import "time"

// CacheEntry is a single cached item owned by the engine's entry table.
// Callers never mutate an entry in place; Touch returns a replacement copy.
type CacheEntry struct {
	// Key is the normalized-query hash used for exact lookup.
	Key string `json:"key"`

	// Value is the opaque cached payload.
	Value []byte `json:"value"`

	// Embedding is the query vector, if semantic matching indexed this entry.
	Embedding []float32 `json:"embedding,omitempty"`

	// CreatedAt is when the entry was first stored.
	CreatedAt time.Time `json:"created_at"`

	// LastAccessed is updated on every hit via Touch.
	LastAccessed time.Time `json:"last_accessed"`

	// AccessCount is monotonic until the entry is evicted.
	AccessCount int64 `json:"access_count"`

	// TTL is the time-to-live; zero means no expiration.
	TTL time.Duration `json:"ttl,omitempty"`

	// Tags holds intent and user tags for intent-match lookup.
	Tags []string `json:"tags,omitempty"`
}

// SizeBytes returns the accounting size of the entry: key, value, and the
// indexed embedding.
func (e CacheEntry) SizeBytes() int64 {
	return int64(len(e.Key) + len(e.Value) + 4*len(e.Embedding))
}

// IsExpired reports whether the entry's TTL has elapsed at the given time.
// Entries with zero TTL never expire.
func (e CacheEntry) IsExpired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.After(e.CreatedAt.Add(e.TTL))
}

// ExpiresAt returns the expiration instant, or the zero time for entries
// without a TTL.
func (e CacheEntry) ExpiresAt() time.Time {
	if e.TTL <= 0 {
		return time.Time{}
	}
	return e.CreatedAt.Add(e.TTL)
}

// TTLRemaining returns how long until expiration at the given time.
// Returns zero if already expired and a negative value never.
func (e CacheEntry) TTLRemaining(now time.Time) time.Duration {
	if e.TTL <= 0 {
		return 0
	}
	remaining := e.CreatedAt.Add(e.TTL).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Age returns the time since the entry was created.
func (e CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// Touch returns a copy of the entry with access metadata advanced. The
// receiver is unchanged, so previously returned entries stay consistent.
func (e CacheEntry) Touch(now time.Time) CacheEntry {
	touched := e
	touched.LastAccessed = now
	touched.AccessCount++
	return touched
}

// HasTag reports whether the entry carries the given tag.
func (e CacheEntry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the entry so callers can hold it without
// aliasing the engine's table.
func (e CacheEntry) Clone() CacheEntry {
	c := e
	if e.Value != nil {
		c.Value = make([]byte, len(e.Value))
		copy(c.Value, e.Value)
	}
	if e.Embedding != nil {
		c.Embedding = make([]float32, len(e.Embedding))
		copy(c.Embedding, e.Embedding)
	}
	if e.Tags != nil {
		c.Tags = make([]string, len(e.Tags))
		copy(c.Tags, e.Tags)
	}
	return c
}
