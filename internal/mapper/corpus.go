package mapper

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrCorpusNotLoaded   = errors.New("corpus not loaded")
	ErrCorpusMismatch    = errors.New("corpus vectors do not match entries")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Match is one ranked corpus row.
type Match struct {
	Index int
	Score float64
}

// Corpus is an immutable matrix of row vectors with precomputed norms.
type Corpus struct {
	vectors [][]float32
	norms   []float64
	dim     int
}

// NewCorpus copies vectors; every row must share one dimension.
func NewCorpus(vectors [][]float32) (*Corpus, error) {
	c := &Corpus{
		vectors: make([][]float32, len(vectors)),
		norms:   make([]float64, len(vectors)),
	}
	for i, v := range vectors {
		if i == 0 {
			c.dim = len(v)
		} else if len(v) != c.dim {
			return nil, fmt.Errorf("%w: row %d has dimension %d, want %d", ErrCorpusMismatch, i, len(v), c.dim)
		}
		row := make([]float32, len(v))
		copy(row, v)
		c.vectors[i] = row
		c.norms[i] = norm(row)
	}
	return c, nil
}

func (c *Corpus) Size() int      { return len(c.vectors) }
func (c *Corpus) Dimension() int { return c.dim }

// Rank scores q against every row by cosine similarity and returns the top k,
// score descending, ties broken by ascending row index. k is clamped to the
// corpus size; k <= 0 yields no matches. Zero-norm rows score 0.
func (c *Corpus) Rank(q []float32, k int) ([]Match, error) {
	if len(c.vectors) > 0 && len(q) != c.dim {
		return nil, fmt.Errorf("%w: query has %d, corpus has %d", ErrDimensionMismatch, len(q), c.dim)
	}
	if k <= 0 || len(c.vectors) == 0 {
		return []Match{}, nil
	}
	k = min(k, len(c.vectors))

	qn := norm(q)
	matches := make([]Match, len(c.vectors))
	for i, row := range c.vectors {
		matches[i] = Match{Index: i, Score: cosine(q, qn, row, c.norms[i])}
	}

	sort.Slice(matches, func(a, b int) bool {
		if matches[a].Score != matches[b].Score {
			return matches[a].Score > matches[b].Score
		}
		return matches[a].Index < matches[b].Index
	})
	return matches[:k], nil
}

func norm(v []float32) float64 {
	var sq float64
	for _, x := range v {
		sq += float64(x) * float64(x)
	}
	return math.Sqrt(sq)
}

func cosine(q []float32, qn float64, row []float32, rn float64) float64 {
	if qn == 0 || rn == 0 {
		return 0
	}
	var dot float64
	for i := range q {
		dot += float64(q[i]) * float64(row[i])
	}
	return dot / (qn * rn)
}
