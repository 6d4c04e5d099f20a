// Package pinecone implements index.Index against a Pinecone index.
package pinecone

import (
	"context"
	"fmt"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/semcache/semcache/pkg/index"
)

// Config holds Pinecone connection settings.
type Config struct {
	// APIKey authenticates against Pinecone (required)
	APIKey string

	// IndexName is the Pinecone index to use
	IndexName string

	// IndexHost is the direct host URL (optional, resolved from IndexName)
	IndexHost string

	// Namespace scopes all vectors for this cache
	Namespace string
}

// Client implements index.Index for Pinecone.
type Client struct {
	cfg     Config
	pc      *pinecone.Client
	idxConn *pinecone.IndexConnection
}

// NewClient creates a Pinecone-backed index.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.IndexName == "" && cfg.IndexHost == "" {
		return nil, fmt.Errorf("index name or host is required")
	}

	pc, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create Pinecone client: %w", err)
	}

	host := cfg.IndexHost
	if host == "" {
		idx, err := pc.DescribeIndex(ctx, cfg.IndexName)
		if err != nil {
			return nil, fmt.Errorf("failed to describe index %q: %w", cfg.IndexName, err)
		}
		host = idx.Host
	}

	idxConn, err := pc.Index(pinecone.NewIndexConnParams{
		Host:      host,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to index: %w", err)
	}

	return &Client{cfg: cfg, pc: pc, idxConn: idxConn}, nil
}

// Upsert stores or replaces the vector for a key. Pinecone vector IDs
// accept arbitrary strings, so the cache key is used directly.
func (c *Client) Upsert(ctx context.Context, key string, vector []float32) error {
	if len(vector) == 0 {
		return index.ErrInvalidVector
	}

	meta, err := structpb.NewStruct(map[string]any{"cache_key": key})
	if err != nil {
		return fmt.Errorf("failed to build metadata: %w", err)
	}

	values := make([]float32, len(vector))
	copy(values, vector)

	_, err = c.idxConn.UpsertVectors(ctx, []*pinecone.Vector{{
		Id:       key,
		Values:   &values,
		Metadata: meta,
	}})
	if err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}
	return nil
}

// Delete removes a key's vector.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.idxConn.DeleteVectorsById(ctx, []string{key}); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	return nil
}

// Search returns up to topK matches ordered by descending score.
func (c *Client) Search(ctx context.Context, vector []float32, topK int) ([]index.Match, error) {
	if len(vector) == 0 {
		return nil, index.ErrInvalidVector
	}
	if topK <= 0 {
		topK = 10
	}

	resp, err := c.idxConn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector: vector,
		TopK:   uint32(topK),
	})
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	matches := make([]index.Match, 0, len(resp.Matches))
	for _, match := range resp.Matches {
		matches = append(matches, index.Match{
			Key:   match.Vector.Id,
			Score: match.Score,
		})
	}
	return matches, nil
}

// Close releases the index connection.
func (c *Client) Close() error {
	if c.idxConn != nil {
		return c.idxConn.Close()
	}
	return nil
}
