// Package vector maps text to fixed-dimension vectors and scores their
// similarity. The built-in embedder is a deterministic surrogate: texts
// sharing vocabulary land mass in shared slots, which is all retrieval
// needs from it. A real embedding model slots in behind the same
// interface.
package vector

import (
	"context"
	"math"
	"strings"
)

// DefaultDimensions is the vector width used when none is configured.
const DefaultDimensions = 768

// Embedder maps text to a fixed-dimension vector. Implementations must
// be deterministic so that re-ingesting a document reproduces its
// vectors exactly.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Surrogate is a hash-based Embedder with no model behind it. Embed
// never fails; the error return exists for implementations that call
// out to a real service.
type Surrogate struct {
	dim int
}

var _ Embedder = (*Surrogate)(nil)

// NewSurrogate returns a Surrogate producing vectors of dim slots.
// Non-positive dim falls back to DefaultDimensions.
func NewSurrogate(dim int) *Surrogate {
	if dim <= 0 {
		dim = DefaultDimensions
	}
	return &Surrogate{dim: dim}
}

// Dimensions returns the vector width.
func (s *Surrogate) Dimensions() int { return s.dim }

// Embed spreads each unique token's runes across vector slots, weighted
// by the inverse of the unique token count, then L2-normalizes. The slot
// index mixes the rune's code point with the token and rune positions,
// so anagrams and reorderings produce distinct vectors. Empty or
// whitespace-only text yields the zero vector.
func (s *Surrogate) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, s.dim)

	tokens := uniqueTokens(text)
	if len(tokens) == 0 {
		return vec, nil
	}

	weight := 1 / float32(len(tokens))
	for i, tok := range tokens {
		j := 0
		for _, r := range tok {
			vec[(int(r)*(i+1)*(j+1))%s.dim] += weight
			j++
		}
	}

	normalize(vec)
	return vec, nil
}

// uniqueTokens lowercases and whitespace-splits text, keeping the first
// occurrence of each token in order.
func uniqueTokens(text string) []string {
	fields := strings.Fields(strings.ToLower(text))

	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}

// normalize scales vec to unit length in place. The zero vector is left
// untouched.
func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}

// Cosine returns the cosine similarity of a and b. It is 0 when the
// lengths differ or either vector has zero magnitude, so degenerate
// inputs rank last instead of dividing by zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
