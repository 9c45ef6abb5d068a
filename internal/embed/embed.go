// Package embed turns document text into fixed-length vectors.
package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Embedder produces one vector per text. Dimensions is constant for the
// lifetime of an embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Name() string
}

// DefaultHashDimensions is the vector length of NewHash(0).
const DefaultHashDimensions = 256

// Hash is a local feature-hashing embedder: each lower-cased word token
// is hashed into a signed bucket and the result is L2-normalized. Texts
// sharing vocabulary land close together, which is enough for
// near-duplicate lookups without a model.
type Hash struct {
	dims int
}

// NewHash returns a hashing embedder. dims <= 0 selects the default.
func NewHash(dims int) *Hash {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return &Hash{dims: dims}
}

// Dimensions implements Embedder.
func (h *Hash) Dimensions() int { return h.dims }

// Name implements Embedder.
func (h *Hash) Name() string { return "hash" }

// Embed implements Embedder. It never fails.
func (h *Hash) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dims)
	for _, tok := range tokenize(text) {
		f := fnv.New64a()
		_, _ = f.Write([]byte(tok))
		sum := f.Sum64()
		idx := int(sum % uint64(h.dims))
		if sum&(1<<63) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}
	normalize(vec)
	return vec, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	n := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= n
	}
}
