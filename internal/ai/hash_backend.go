package ai

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// HashBackend embeds text by signed feature hashing of unigrams and bigrams.
// Deterministic and dependency-free; intended for development and tests.
type HashBackend struct {
	name        string
	dim         int
	concurrency int
}

func NewHashBackend(name string, dim, concurrency int) *HashBackend {
	if name == "" {
		name = "feature-hashing-v1"
	}
	return &HashBackend{name: name, dim: dim, concurrency: concurrency}
}

func (h *HashBackend) Name() string        { return h.name }
func (h *HashBackend) Dimension() int      { return h.dim }
func (h *HashBackend) MaxConcurrency() int { return h.concurrency }
func (h *HashBackend) Close() error        { return nil }

func (h *HashBackend) Load(ctx context.Context) error {
	if h.dim <= 0 {
		return errInvalidDimension(h.dim)
	}
	return ctx.Err()
}

func (h *HashBackend) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.encode(t)
	}
	return out, nil
}

func (h *HashBackend) encode(text string) []float32 {
	vec := make([]float32, h.dim)
	tokens := strings.Fields(strings.ToLower(text))
	for i, tok := range tokens {
		h.add(vec, tok, 1)
		if i > 0 {
			h.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}
	normalize(vec)
	return vec
}

func (h *HashBackend) add(vec []float32, feature string, weight float32) {
	f := fnv.New64a()
	f.Write([]byte(feature))
	sum := f.Sum64()
	idx := sum % uint64(h.dim)
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

// normalize scales v to unit L2 norm in place; zero vectors stay zero.
func normalize(v []float32) {
	var sq float64
	for _, x := range v {
		sq += float64(x) * float64(x)
	}
	if sq == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sq))
	for i := range v {
		v[i] *= inv
	}
}
