// Package vectormath provides the float32 vector operations used by the
// in-memory embedding index.
package vectormath

import "math"

// CosineSimilarity computes cosine similarity between two float32 vectors.
// Returns a value in [-1, 1]; empty or zero-magnitude input yields -1.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return -1
	}
	if len(a) != len(b) {
		if len(a) > len(b) {
			a = a[:len(b)]
		} else {
			b = b[:len(a)]
		}
	}

	var dot, magA, magB float64
	n := len(a)

	// Process 4 elements at a time for better CPU pipelining.
	i := 0
	for ; i <= n-4; i += 4 {
		dot += float64(a[i])*float64(b[i]) +
			float64(a[i+1])*float64(b[i+1]) +
			float64(a[i+2])*float64(b[i+2]) +
			float64(a[i+3])*float64(b[i+3])
		magA += float64(a[i])*float64(a[i]) +
			float64(a[i+1])*float64(a[i+1]) +
			float64(a[i+2])*float64(a[i+2]) +
			float64(a[i+3])*float64(a[i+3])
		magB += float64(b[i])*float64(b[i]) +
			float64(b[i+1])*float64(b[i+1]) +
			float64(b[i+2])*float64(b[i+2]) +
			float64(b[i+3])*float64(b[i+3])
	}
	for ; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(magA * magB)
	if denom == 0 {
		return -1
	}

	sim := dot / denom
	// Clamp to [-1, 1] to handle floating point errors.
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim
}

// DotProduct computes the inner product of two float32 vectors.
func DotProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var sum float64
	n := len(a)

	i := 0
	for ; i <= n-4; i += 4 {
		sum += float64(a[i])*float64(b[i]) +
			float64(a[i+1])*float64(b[i+1]) +
			float64(a[i+2])*float64(b[i+2]) +
			float64(a[i+3])*float64(b[i+3])
	}
	for ; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Normalize scales the vector to unit length in place. Zero vectors are
// left unchanged.
func Normalize(v []float32) {
	if len(v) == 0 {
		return
	}
	mag := math.Sqrt(DotProduct(v, v))
	if mag == 0 {
		return
	}
	inv := float32(1.0 / mag)
	for i := range v {
		v[i] *= inv
	}
}
