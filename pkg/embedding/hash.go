package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// Hash is a deterministic offline provider: it derives a unit vector from
// the SHA-256 digest of the input text. Similar texts do NOT get similar
// vectors, so semantic matching degrades to exact-text matching. It exists
// so the server can run without an embedding API key.
type Hash struct {
	dim int
}

// NewHash creates a deterministic provider with the given dimension.
func NewHash(dim int) *Hash {
	if dim <= 0 {
		dim = 64
	}
	return &Hash{dim: dim}
}

// Embed derives a deterministic unit vector from the text.
func (h *Hash) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}

	vector := make([]float32, h.dim)
	seed := sha256.Sum256([]byte(text))
	digest := seed[:]
	var norm float64
	for i := range vector {
		if i*4+4 > len(digest) {
			next := sha256.Sum256(digest)
			digest = append(digest, next[:]...)
		}
		bits := binary.BigEndian.Uint32(digest[i*4 : i*4+4])
		v := float32(int32(bits)) / float32(math.MaxInt32)
		vector[i] = v
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vector {
			vector[i] *= scale
		}
	}
	return vector, nil
}

// EmbedBatch embeds each text independently.
func (h *Hash) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	results := make([][]float32, len(texts))
	for i, text := range texts {
		if text == "" {
			results[i] = make([]float32, h.dim)
			continue
		}
		vector, err := h.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = vector
	}
	return results, nil
}

// Dimension returns the configured dimension.
func (h *Hash) Dimension() int { return h.dim }

// ModelName identifies the provider.
func (h *Hash) ModelName() string { return "hash-deterministic" }
