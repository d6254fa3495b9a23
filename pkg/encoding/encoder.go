// Package encoding maps text to fixed-dimension unit vectors for resonance
// matching. The dimension is fixed by configuration; every encoder output is
// L2-normalised so downstream cosine similarity reduces to a dot product.
package encoding

import (
	"context"
	"errors"
	"math"
)

// ErrEmptyInput indicates an encode call with no text.
var ErrEmptyInput = errors.New("encoding: empty input")

// Encoder turns UTF-8 text into unit-length vectors of a fixed dimension.
// Encoding is deterministic for identical input within a process lifetime.
// EncodeBatch preserves input order.
type Encoder interface {
	Dimension() int
	Encode(ctx context.Context, text string) ([]float32, error)
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Normalize scales v to unit length in place and returns it. A zero vector
// is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// Truncate cuts or zero-pads v to dim, then re-normalises. Embedding
// backends often return more dimensions than the configured matcher
// dimension; truncation of a front-loaded embedding keeps most of the
// signal.
func Truncate(v []float32, dim int) []float32 {
	if len(v) == dim {
		return Normalize(v)
	}
	out := make([]float32, dim)
	copy(out, v)
	return Normalize(out)
}
