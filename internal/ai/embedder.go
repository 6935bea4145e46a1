package ai

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"namaste-icd-mapper/internal/logger"
	"namaste-icd-mapper/internal/telemetry"
)

const DefaultBatchSize = 32

// VectorCache persists vectors across restarts. Failures are non-fatal.
type VectorCache interface {
	Get(model, text string) ([]float32, bool, error)
	Put(model, text string, vec []float32) error
}

type Option func(*Embedder)

func WithBatchSize(n int) Option {
	return func(e *Embedder) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

func WithCache(c VectorCache) Option {
	return func(e *Embedder) { e.cache = c }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Embedder) { e.metrics = m }
}

// Embedder owns the lifecycle of a Backend: loading, batching, bounded
// concurrency, deadlines and caching.
type Embedder struct {
	backend   Backend
	batchSize int
	sem       chan struct{}
	cache     VectorCache
	metrics   *telemetry.Metrics
	loaded    atomic.Bool
}

func NewEmbedder(backend Backend, opts ...Option) *Embedder {
	e := &Embedder{backend: backend, batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(e)
	}
	e.sem = make(chan struct{}, max(backend.MaxConcurrency(), 1))
	return e
}

// Load obtains the backend. Calling Load on a loaded embedder is a no-op.
func (e *Embedder) Load(ctx context.Context) error {
	if e.loaded.Load() {
		return nil
	}
	start := time.Now()
	if err := e.backend.Load(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrModelLoad, e.backend.Name(), err)
	}
	e.loaded.Store(true)
	logger.Info("Embedding model loaded",
		"model", e.backend.Name(),
		"dimension", e.backend.Dimension(),
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (e *Embedder) IsLoaded() bool    { return e.loaded.Load() }
func (e *Embedder) ModelName() string { return e.backend.Name() }
func (e *Embedder) Dimension() int    { return e.backend.Dimension() }

func (e *Embedder) Encode(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EncodeBatch returns one vector per text in input order.
func (e *Embedder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if !e.loaded.Load() {
		return nil, ErrNotLoaded
	}
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	missing := e.fromCache(texts, out)

	for start := 0; start < len(missing); start += e.batchSize {
		end := min(start+e.batchSize, len(missing))
		idx := missing[start:end]

		batch := make([]string, len(idx))
		for i, j := range idx {
			batch[i] = texts[j]
		}

		vecs, err := e.runBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		for i, j := range idx {
			out[j] = vecs[i]
		}
		e.toCache(batch, vecs)
	}
	return out, nil
}

func (e *Embedder) Close() error {
	e.loaded.Store(false)
	return e.backend.Close()
}

// runBatch calls the backend under the concurrency bound. The caller's
// deadline is honoured even if the backend ignores its context; the slot is
// released only when the backend actually returns.
func (e *Embedder) runBatch(ctx context.Context, batch []string) ([][]float32, error) {
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, contextError(ctx)
	}

	type result struct {
		vecs [][]float32
		err  error
	}
	done := make(chan result, 1)
	start := time.Now()

	go func() {
		defer func() { <-e.sem }()
		vecs, err := e.backend.EncodeBatch(ctx, batch)
		done <- result{vecs, err}
	}()

	select {
	case r := <-done:
		e.metrics.RecordEmbedding(e.backend.Name(), len(batch), elapsedSeconds(start), r.err == nil)
		if r.err != nil {
			if ctx.Err() != nil {
				return nil, contextError(ctx)
			}
			return nil, fmt.Errorf("embedding backend %s: %w", e.backend.Name(), r.err)
		}
		if err := e.checkShape(batch, r.vecs); err != nil {
			return nil, err
		}
		return r.vecs, nil
	case <-ctx.Done():
		e.metrics.RecordEmbedding(e.backend.Name(), len(batch), elapsedSeconds(start), false)
		return nil, contextError(ctx)
	}
}

func (e *Embedder) checkShape(batch []string, vecs [][]float32) error {
	if len(vecs) != len(batch) {
		return fmt.Errorf("embedding backend %s returned %d vectors for %d texts", e.backend.Name(), len(vecs), len(batch))
	}
	dim := e.backend.Dimension()
	for i, v := range vecs {
		if len(v) != dim {
			return fmt.Errorf("embedding backend %s returned dimension %d at %d, want %d", e.backend.Name(), len(v), i, dim)
		}
	}
	return nil
}

// fromCache fills out from the cache and returns the indices still missing.
func (e *Embedder) fromCache(texts []string, out [][]float32) []int {
	missing := make([]int, 0, len(texts))
	if e.cache == nil {
		for i := range texts {
			missing = append(missing, i)
		}
		return missing
	}

	model := e.backend.Name()
	dim := e.backend.Dimension()
	for i, t := range texts {
		vec, ok, err := e.cache.Get(model, t)
		if err != nil {
			logger.Warn("Vector cache read failed", "error", err)
		}
		if ok && len(vec) == dim {
			out[i] = vec
			continue
		}
		missing = append(missing, i)
	}
	return missing
}

func (e *Embedder) toCache(texts []string, vecs [][]float32) {
	if e.cache == nil {
		return
	}
	model := e.backend.Name()
	for i, t := range texts {
		if err := e.cache.Put(model, t, vecs[i]); err != nil {
			logger.Warn("Vector cache write failed", "error", err)
			return
		}
	}
}

func contextError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrEmbeddingTimeout
	}
	return ctx.Err()
}
