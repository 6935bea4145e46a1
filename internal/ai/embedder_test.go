package ai

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend encodes text i as a one-hot-ish vector derived from its length
// and records every batch it receives.
type fakeBackend struct {
	dim         int
	concurrency int
	loadErr     error
	delay       time.Duration

	mu       sync.Mutex
	batches  [][]string
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeBackend) Name() string        { return "fake" }
func (f *fakeBackend) Dimension() int      { return f.dim }
func (f *fakeBackend) MaxConcurrency() int { return f.concurrency }
func (f *fakeBackend) Close() error        { return nil }

func (f *fakeBackend) Load(ctx context.Context) error { return f.loadErr }

func (f *fakeBackend) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.batches = append(f.batches, append([]string(nil), texts...))
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, f.dim)
		v[len(t)%f.dim] = 1
		out[i] = v
	}
	return out, nil
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]float32
}

func (m *mapCache) Get(model, text string) ([]float32, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[model+"|"+text]
	return v, ok, nil
}

func (m *mapCache) Put(model, text string, vec []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[model+"|"+text] = vec
	return nil
}

func TestEmbedder_NotLoaded(t *testing.T) {
	e := NewEmbedder(&fakeBackend{dim: 4, concurrency: 1})
	assert.False(t, e.IsLoaded())

	_, err := e.EncodeBatch(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = e.Encode(context.Background(), "a")
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestEmbedder_LoadFailure(t *testing.T) {
	cause := errors.New("no such file")
	e := NewEmbedder(&fakeBackend{dim: 4, concurrency: 1, loadErr: cause})

	err := e.Load(context.Background())
	assert.ErrorIs(t, err, ErrModelLoad)
	assert.ErrorIs(t, err, cause)
	assert.False(t, e.IsLoaded())
}

func TestEmbedder_PreservesOrderAcrossBatches(t *testing.T) {
	fb := &fakeBackend{dim: 8, concurrency: 2}
	e := NewEmbedder(fb, WithBatchSize(2))
	require.NoError(t, e.Load(context.Background()))

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := e.EncodeBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))

	for i, tx := range texts {
		assert.Equal(t, float32(1), vecs[i][len(tx)%8], "vector %d out of order", i)
	}
	assert.Equal(t, [][]string{{"a", "bb"}, {"ccc", "dddd"}, {"eeeee"}}, fb.batches)
}

func TestEmbedder_EmptyInput(t *testing.T) {
	e := NewEmbedder(&fakeBackend{dim: 4, concurrency: 1})
	require.NoError(t, e.Load(context.Background()))

	vecs, err := e.EncodeBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestEmbedder_Timeout(t *testing.T) {
	e := NewEmbedder(&fakeBackend{dim: 4, concurrency: 1, delay: 200 * time.Millisecond})
	require.NoError(t, e.Load(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := e.Encode(ctx, "slow")
	assert.ErrorIs(t, err, ErrEmbeddingTimeout)
}

func TestEmbedder_BoundsConcurrency(t *testing.T) {
	fb := &fakeBackend{dim: 4, concurrency: 1, delay: 10 * time.Millisecond}
	e := NewEmbedder(fb)
	require.NoError(t, e.Load(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Encode(context.Background(), "x")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), fb.peak.Load())
}

func TestEmbedder_DimensionCheck(t *testing.T) {
	e := NewEmbedder(&wrongDimBackend{fakeBackend{dim: 4, concurrency: 1}})
	require.NoError(t, e.Load(context.Background()))

	_, err := e.Encode(context.Background(), "x")
	assert.Error(t, err)
}

type wrongDimBackend struct{ fakeBackend }

func (w *wrongDimBackend) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return [][]float32{{1, 2}}, nil
}

func TestEmbedder_UsesCache(t *testing.T) {
	fb := &fakeBackend{dim: 4, concurrency: 1}
	cache := &mapCache{data: map[string][]float32{}}
	e := NewEmbedder(fb, WithCache(cache))
	require.NoError(t, e.Load(context.Background()))

	first, err := e.EncodeBatch(context.Background(), []string{"kasa", "jwara"})
	require.NoError(t, err)
	second, err := e.EncodeBatch(context.Background(), []string{"jwara", "kasa", "pandu"})
	require.NoError(t, err)

	assert.Equal(t, first[0], second[1])
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, [][]string{{"kasa", "jwara"}, {"pandu"}}, fb.batches)
}
