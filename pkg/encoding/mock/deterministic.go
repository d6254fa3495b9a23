// Package mock provides a deterministic in-process Encoder for tests.
// Texts sharing tokens get similar vectors, so resonance selection behaves
// the way a real embedding backend would without any network dependency.
package mock

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/parley-ai/parley/pkg/encoding"
)

// Encoder hashes lower-cased tokens into a fixed-dimension bag-of-words
// vector and normalises it. Deterministic across calls and processes.
type Encoder struct {
	dim  int
	fail error // when set, every call returns this error
}

var _ encoding.Encoder = (*Encoder)(nil)

// NewEncoder creates a deterministic encoder of the given dimension.
func NewEncoder(dim int) *Encoder {
	return &Encoder{dim: dim}
}

// NewFailingEncoder creates an encoder whose every call fails with err,
// for exercising fatal encoder paths.
func NewFailingEncoder(dim int, err error) *Encoder {
	return &Encoder{dim: dim, fail: err}
}

// Dimension implements encoding.Encoder.
func (e *Encoder) Dimension() int {
	return e.dim
}

// Encode implements encoding.Encoder.
func (e *Encoder) Encode(_ context.Context, text string) ([]float32, error) {
	if e.fail != nil {
		return nil, e.fail
	}
	if text == "" {
		return nil, encoding.ErrEmptyInput
	}
	vec := make([]float32, e.dim)
	for _, token := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[int(h.Sum32())%e.dim] += 1
	}
	return encoding.Normalize(vec), nil
}

// EncodeBatch implements encoding.Encoder.
func (e *Encoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.fail != nil {
		return nil, e.fail
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Encode(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
