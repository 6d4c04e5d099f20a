// Package embedding defines the text-embedding contract used for semantic
// matching and an in-process cache that avoids re-embedding repeated queries.
package embedding

import (
	"context"
	"errors"
	"sync"
)

// Common errors returned by embedding providers.
var (
	ErrEmptyInput     = errors.New("empty input text")
	ErrRateLimited    = errors.New("rate limited by embedding provider")
	ErrInvalidAPIKey  = errors.New("invalid API key")
	ErrModelNotFound  = errors.New("embedding model not found")
	ErrContextTooLong = errors.New("input text exceeds model context length")
)

// Provider converts text into vector embeddings.
type Provider interface {
	// Embed converts a single text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts into vector embeddings.
	// More efficient than calling Embed repeatedly.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding dimension for this provider.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// Cached wraps a Provider with a bounded in-memory cache keyed by input
// text. Safe for concurrent use.
type Cached struct {
	provider Provider

	mu      sync.RWMutex
	vectors map[string][]float32
	maxSize int
}

// NewCached creates a cached embedding provider. maxSize bounds the number
// of cached texts; once full, new texts pass through uncached.
func NewCached(provider Provider, maxSize int) *Cached {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &Cached{
		provider: provider,
		vectors:  make(map[string][]float32),
		maxSize:  maxSize,
	}
}

// Embed returns the cached embedding or computes and caches it.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.RLock()
	cached, ok := c.vectors[text]
	c.mu.RUnlock()
	if ok {
		return cloneVector(cached), nil
	}

	vector, err := c.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(text, vector)
	return vector, nil
}

// EmbedBatch embeds multiple texts, serving cached vectors where available
// and batching the remainder through the underlying provider.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	c.mu.RLock()
	for i, text := range texts {
		if cached, ok := c.vectors[text]; ok {
			results[i] = cloneVector(cached)
		} else {
			missing = append(missing, text)
			missingIdx = append(missingIdx, i)
		}
	}
	c.mu.RUnlock()

	if len(missing) == 0 {
		return results, nil
	}

	vectors, err := c.provider.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for i, vector := range vectors {
		results[missingIdx[i]] = vector
		c.store(missing[i], vector)
	}
	return results, nil
}

// Dimension returns the embedding dimension.
func (c *Cached) Dimension() int { return c.provider.Dimension() }

// ModelName returns the model name.
func (c *Cached) ModelName() string { return c.provider.ModelName() }

// Size returns the current number of cached texts.
func (c *Cached) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vectors)
}

// Clear drops all cached vectors.
func (c *Cached) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vectors = make(map[string][]float32)
}

func (c *Cached) store(text string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.vectors) < c.maxSize {
		c.vectors[text] = cloneVector(vector)
	}
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
