package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"namaste-icd-mapper/internal/ai"
	"namaste-icd-mapper/internal/mapper"
	"namaste-icd-mapper/internal/nlp"
	"namaste-icd-mapper/internal/vocab"
	"namaste-icd-mapper/models"
)

// countingBackend wraps the hash backend, counts embedded texts and can be
// made to block until the caller's context expires. batchDelay slows down
// multi-text batches only, so single queries stay fast.
type countingBackend struct {
	*ai.HashBackend
	texts      atomic.Int64
	stall      atomic.Bool
	batchDelay atomic.Int64
	failBatch  atomic.Bool
}

func (b *countingBackend) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if b.stall.Load() {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if b.failBatch.Load() && len(texts) > 1 {
		return nil, errors.New("backend unavailable")
	}
	if d := time.Duration(b.batchDelay.Load()); d > 0 && len(texts) > 1 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	b.texts.Add(int64(len(texts)))
	return b.HashBackend.EncodeBatch(ctx, texts)
}

type memResultCache struct {
	mu   sync.Mutex
	data map[string]models.MappingResponse
	hits int
}

func (m *memResultCache) GetMapping(ctx context.Context, key string) (*models.MappingResponse, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp, ok := m.data[key]
	if ok {
		m.hits++
	}
	return &resp, ok
}

func (m *memResultCache) SetMapping(ctx context.Context, key string, resp *models.MappingResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = *resp
	return nil
}

var testICD = []models.ICDCode{
	{Code: "DA22", Name: "Gastro-oesophageal reflux", Description: "acid reflux heartburn regurgitation", Chapter: "Digestive system"},
	{Code: "CA23", Name: "Asthma", Description: "wheezing breathlessness bronchial", Chapter: "Respiratory system"},
	{Code: "1D01", Name: "Fever", Description: "pyrexia", Chapter: "General"},
	{Code: "5A11", Name: "Type 2 diabetes mellitus", Description: "hyperglycaemia polyuria", Chapter: "Endocrine"},
}

var testAyush = []models.AyushCode{
	{Code: "A-1", Name: "Jwara", NameEnglish: "Fever", Description: "elevated temperature", Category: "General"},
	{Code: "A-2", Name: "Amlapitta", NameEnglish: "Hyperacidity", Description: "sour eructation burning chest", Category: "Digestive"},
	{Code: "A-3", Name: "Tamaka Shwasa", NameEnglish: "Bronchial asthma", Description: "episodic breathlessness", Category: "Respiratory"},
}

type fixture struct {
	svc     *MappingService
	backend *countingBackend
	opts    MappingOptions
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func fillerICD(n int) []models.ICDCode {
	out := append([]models.ICDCode(nil), testICD...)
	for i := 0; i < n; i++ {
		out = append(out, models.ICDCode{Code: fmt.Sprintf("XX%02d", i), Name: fmt.Sprintf("Filler entry %d", i)})
	}
	return out
}

func newFixture(t *testing.T, icd []models.ICDCode, cache ResultCache) *fixture {
	t.Helper()
	dir := t.TempDir()
	opts := MappingOptions{
		NamasteDataPath:     filepath.Join(dir, "namaste.json"),
		ICD11DataPath:       filepath.Join(dir, "icd11.json"),
		MappingThresholds:   mapper.DefaultMappingThresholds,
		RecommendThresholds: mapper.DefaultRecommendThresholds,
		DefaultTopK:         5,
		EmbedTimeout:        5 * time.Second,
	}
	writeJSON(t, opts.ICD11DataPath, icd)
	writeJSON(t, opts.NamasteDataPath, testAyush)

	backend := &countingBackend{HashBackend: ai.NewHashBackend("test-hash", 256, 2)}
	embedder := ai.NewEmbedder(backend, ai.WithBatchSize(2))
	svc := NewMappingService(opts, nlp.NewPreprocessor(), embedder, cache, nil)
	return &fixture{svc: svc, backend: backend, opts: opts}
}

func newReadyFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, testICD, nil)
	require.NoError(t, f.svc.Initialize(context.Background()))
	return f
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }

func TestMappingService_NotReady(t *testing.T) {
	f := newFixture(t, testICD, nil)

	_, err := f.svc.Map(context.Background(), models.MappingRequest{NamasteCode: "A-1", DiseaseName: "Jwara"})
	assert.ErrorIs(t, err, ErrServiceNotReady)
	_, err = f.svc.Recommend(context.Background(), models.RecommendationRequest{Symptoms: "fever"})
	assert.ErrorIs(t, err, ErrServiceNotReady)
	_, err = f.svc.Search("jwara", "", 20, 0)
	assert.ErrorIs(t, err, ErrServiceNotReady)
	_, err = f.svc.GetByCode("A-1")
	assert.ErrorIs(t, err, ErrServiceNotReady)
	_, err = f.svc.Categories()
	assert.ErrorIs(t, err, ErrServiceNotReady)
	_, err = f.svc.Reload(context.Background(), "admin")
	assert.ErrorIs(t, err, ErrServiceNotReady)

	assert.Equal(t, "initializing", f.svc.Health().Status)
	assert.Equal(t, 0, f.svc.Models().ICD11CodesCount)
}

func TestMappingService_InitializeOnce(t *testing.T) {
	f := newReadyFixture(t)

	assert.Equal(t, StateReady, f.svc.State())
	assert.Error(t, f.svc.Initialize(context.Background()))
	assert.Equal(t, StateReady, f.svc.State())

	health := f.svc.Health()
	assert.Equal(t, "healthy", health.Status)
	assert.True(t, health.ModelLoaded)
	assert.Equal(t, len(testICD), health.ICD11CodesLoaded)
	assert.False(t, health.CacheEnabled)

	m := f.svc.Models()
	assert.Equal(t, "test-hash", m.EmbeddingModel.ModelName)
	assert.Equal(t, 256, m.EmbeddingModel.EmbeddingDim)
	assert.Equal(t, len(testAyush), m.NamasteCodesCount)
}

func TestMappingService_InitializeMissingDataset(t *testing.T) {
	f := newFixture(t, testICD, nil)
	require.NoError(t, os.Remove(f.opts.NamasteDataPath))

	err := f.svc.Initialize(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, vocab.ErrDatasetNotFound)
	assert.Equal(t, StateFailed, f.svc.State())
	assert.Equal(t, "failed", f.svc.Health().Status)

	_, err = f.svc.Map(context.Background(), models.MappingRequest{NamasteCode: "A-1", DiseaseName: "Jwara"})
	assert.ErrorIs(t, err, ErrServiceNotReady)
}

func TestMappingService_Map(t *testing.T) {
	f := newReadyFixture(t)

	resp, err := f.svc.Map(context.Background(), models.MappingRequest{
		NamasteCode: "A-1",
		DiseaseName: "Fever",
		Symptoms:    strPtr("pyrexia"),
		TopK:        intPtr(3),
	})
	require.NoError(t, err)

	assert.Equal(t, "A-1", resp.NamasteCode)
	assert.Equal(t, "Fever", resp.DiseaseName)
	require.Len(t, resp.Suggestions, 3)
	assert.Equal(t, "1D01", resp.Suggestions[0].ICDCode)
	assert.Equal(t, "General", resp.Suggestions[0].Chapter)
	assert.InDelta(t, 1.0, resp.Suggestions[0].Confidence, 1e-3)
	assert.Equal(t, "high", resp.Suggestions[0].ConfidenceLevel)
	assert.Equal(t, time.UTC, resp.Timestamp.Location())
	assert.GreaterOrEqual(t, resp.ProcessingTimeMs, 0.0)

	for i := 1; i < len(resp.Suggestions); i++ {
		assert.GreaterOrEqual(t, resp.Suggestions[i-1].Confidence, resp.Suggestions[i].Confidence)
	}
	for _, s := range resp.Suggestions {
		assert.GreaterOrEqual(t, s.Confidence, 0.0)
		assert.LessOrEqual(t, s.Confidence, 1.0)
	}
}

func TestMappingService_MapTopKClamped(t *testing.T) {
	f := newFixture(t, fillerICD(10), nil)
	require.NoError(t, f.svc.Initialize(context.Background()))

	resp, err := f.svc.Map(context.Background(), models.MappingRequest{NamasteCode: "A-1", DiseaseName: "Jwara", TopK: intPtr(50)})
	require.NoError(t, err)
	assert.Len(t, resp.Suggestions, MaxMappingTopK)

	resp, err = f.svc.Map(context.Background(), models.MappingRequest{NamasteCode: "A-1", DiseaseName: "Jwara"})
	require.NoError(t, err)
	assert.Len(t, resp.Suggestions, 5)

	resp, err = f.svc.Map(context.Background(), models.MappingRequest{NamasteCode: "A-1", DiseaseName: "Jwara", TopK: intPtr(0)})
	require.NoError(t, err)
	assert.Len(t, resp.Suggestions, 1)
}

func TestMappingService_MapTimeout(t *testing.T) {
	f := newReadyFixture(t)
	f.svc.opts.EmbedTimeout = 20 * time.Millisecond
	f.backend.stall.Store(true)

	_, err := f.svc.Map(context.Background(), models.MappingRequest{NamasteCode: "A-1", DiseaseName: "Jwara"})
	assert.ErrorIs(t, err, ai.ErrEmbeddingTimeout)

	f.backend.stall.Store(false)
	_, err = f.svc.Map(context.Background(), models.MappingRequest{NamasteCode: "A-1", DiseaseName: "Jwara"})
	assert.NoError(t, err)
}

func TestMappingService_MapUsesResultCache(t *testing.T) {
	cache := &memResultCache{data: map[string]models.MappingResponse{}}
	f := newFixture(t, testICD, cache)
	require.NoError(t, f.svc.Initialize(context.Background()))
	assert.True(t, f.svc.Health().CacheEnabled)

	first, err := f.svc.Map(context.Background(), models.MappingRequest{NamasteCode: "A-1", DiseaseName: "Jwara"})
	require.NoError(t, err)
	embedded := f.backend.texts.Load()

	second, err := f.svc.Map(context.Background(), models.MappingRequest{NamasteCode: "A-9", DiseaseName: "JWARA"})
	require.NoError(t, err)

	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, embedded, f.backend.texts.Load())
	assert.Equal(t, "A-9", second.NamasteCode)
	assert.Equal(t, "JWARA", second.DiseaseName)
	assert.Equal(t, first.Suggestions, second.Suggestions)
}

func TestMappingService_Recommend(t *testing.T) {
	f := newReadyFixture(t)

	resp, err := f.svc.Recommend(context.Background(), models.RecommendationRequest{
		Symptoms: "Jwara Fever elevated temperature",
		TopK:     intPtr(2),
	})
	require.NoError(t, err)

	assert.Equal(t, "Jwara Fever elevated temperature", resp.Query)
	require.Len(t, resp.Recommendations, 2)
	top := resp.Recommendations[0]
	assert.Equal(t, "A-1", top.Code)
	assert.Equal(t, "Fever", top.NameEnglish)
	assert.Equal(t, "General", top.Category)
	assert.InDelta(t, 1.0, top.Confidence, 1e-3)
	assert.Equal(t, "high", top.ConfidenceLevel)
}

func TestMappingService_RecommendTopKClamped(t *testing.T) {
	f := newReadyFixture(t)

	resp, err := f.svc.Recommend(context.Background(), models.RecommendationRequest{Symptoms: "cough", TopK: intPtr(100)})
	require.NoError(t, err)
	assert.Len(t, resp.Recommendations, len(testAyush))
}

func TestMappingService_RecommendCorpusEmbeddedOnce(t *testing.T) {
	f := newReadyFixture(t)
	base := f.backend.texts.Load()

	const callers = 5
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Recommend(context.Background(), models.RecommendationRequest{Symptoms: "fever and chills"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// one query per call, the corpus once
	assert.Equal(t, base+callers+int64(len(testAyush)), f.backend.texts.Load())

	_, err := f.svc.Recommend(context.Background(), models.RecommendationRequest{Symptoms: "fever"})
	require.NoError(t, err)
	assert.Equal(t, base+callers+1+int64(len(testAyush)), f.backend.texts.Load())
}

func TestMappingService_RecommendSlowCorpusHonoursEmbedTimeout(t *testing.T) {
	f := newReadyFixture(t)
	base := f.backend.texts.Load()
	f.svc.opts.EmbedTimeout = 100 * time.Millisecond
	f.backend.batchDelay.Store(int64(time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := f.svc.Recommend(ctx, models.RecommendationRequest{Symptoms: "fever"})
	assert.ErrorIs(t, err, ai.ErrEmbeddingTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	// the build keeps running detached from the timed-out caller
	f.backend.batchDelay.Store(0)
	f.svc.opts.EmbedTimeout = 5 * time.Second
	require.Eventually(t, func() bool {
		return f.backend.texts.Load() == base+1+int64(len(testAyush))
	}, 3*time.Second, 20*time.Millisecond)

	resp, err := f.svc.Recommend(context.Background(), models.RecommendationRequest{Symptoms: "fever"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Recommendations)
	assert.Equal(t, base+2+int64(len(testAyush)), f.backend.texts.Load())
}

func TestMappingService_RecommendRetriesFailedCorpusBuild(t *testing.T) {
	f := newReadyFixture(t)
	f.backend.failBatch.Store(true)

	_, err := f.svc.Recommend(context.Background(), models.RecommendationRequest{Symptoms: "fever"})
	assert.ErrorIs(t, err, ErrOperationFailed)

	f.backend.failBatch.Store(false)
	resp, err := f.svc.Recommend(context.Background(), models.RecommendationRequest{Symptoms: "fever"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Recommendations)
}

func TestMappingService_Precompute(t *testing.T) {
	f := newFixture(t, testICD, nil)
	f.svc.opts.RecommendPrecompute = true
	require.NoError(t, f.svc.Initialize(context.Background()))

	assert.Equal(t, int64(len(testICD)+len(testAyush)), f.backend.texts.Load())
}

func TestMappingService_Browse(t *testing.T) {
	f := newReadyFixture(t)

	res, err := f.svc.Search("FEVER", "", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, "A-1", res.Results[0].Code)

	entry, err := f.svc.GetByCode("A-2")
	require.NoError(t, err)
	assert.Equal(t, "Amlapitta", entry.Name)
	assert.Equal(t, models.DefaultSystem, entry.System)

	_, err = f.svc.GetByCode("NOPE")
	assert.ErrorIs(t, err, ErrNotFound)

	cats, err := f.svc.Categories()
	require.NoError(t, err)
	assert.Equal(t, []string{"Digestive", "General", "Respiratory"}, cats)

	fuzzy, err := f.svc.FuzzySearch("amlapita", 5)
	require.NoError(t, err)
	require.NotEmpty(t, fuzzy.Results)
	assert.Equal(t, "A-2", fuzzy.Results[0].Code)

	_, err = f.svc.Search("x", "", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMappingService_Reload(t *testing.T) {
	f := newReadyFixture(t)
	version := f.svc.DatasetVersion()
	require.NotEmpty(t, version)

	_, err := f.svc.Recommend(context.Background(), models.RecommendationRequest{Symptoms: "fever"})
	require.NoError(t, err)

	extra := append([]models.ICDCode(nil), testICD...)
	extra = append(extra, models.ICDCode{Code: "CA20", Name: "Cough", Description: "tussis"})
	writeJSON(t, f.opts.ICD11DataPath, extra)

	resp, err := f.svc.Reload(context.Background(), "admin")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, len(extra), resp.ICD11CodesCount)
	assert.Equal(t, len(testAyush), resp.NamasteCodesCount)
	assert.NotEqual(t, version, f.svc.DatasetVersion())

	mapped, err := f.svc.Map(context.Background(), models.MappingRequest{NamasteCode: "A-4", DiseaseName: "Cough", Symptoms: strPtr("tussis")})
	require.NoError(t, err)
	assert.Equal(t, "CA20", mapped.Suggestions[0].ICDCode)

	// the source corpus was dropped and is rebuilt on next use
	before := f.backend.texts.Load()
	_, err = f.svc.Recommend(context.Background(), models.RecommendationRequest{Symptoms: "fever"})
	require.NoError(t, err)
	assert.Equal(t, before+1+int64(len(testAyush)), f.backend.texts.Load())
}

func TestMappingService_ReloadFailureKeepsSnapshot(t *testing.T) {
	f := newReadyFixture(t)
	version := f.svc.DatasetVersion()

	require.NoError(t, os.WriteFile(f.opts.ICD11DataPath, []byte("{not json"), 0o644))

	_, err := f.svc.Reload(context.Background(), "watch")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOperationFailed)
	assert.Equal(t, version, f.svc.DatasetVersion())
	assert.Equal(t, len(testICD), f.svc.Models().ICD11CodesCount)

	_, err = f.svc.Map(context.Background(), models.MappingRequest{NamasteCode: "A-1", DiseaseName: "Jwara"})
	assert.NoError(t, err)
}

func TestMappingCacheKey(t *testing.T) {
	a := MappingCacheKey("m", "v1", 5, "fever")
	assert.Equal(t, a, MappingCacheKey("m", "v1", 5, "fever"))
	assert.NotEqual(t, a, MappingCacheKey("m", "v2", 5, "fever"))
	assert.NotEqual(t, a, MappingCacheKey("m", "v1", 6, "fever"))
	assert.NotEqual(t, a, MappingCacheKey("other", "v1", 5, "fever"))
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "initializing", StateUninitialized.HealthStatus())
	assert.Equal(t, "initializing", StateLoading.HealthStatus())
	assert.Equal(t, "healthy", StateReady.HealthStatus())
	assert.Equal(t, "failed", StateFailed.HealthStatus())
	assert.Equal(t, "ready", StateReady.String())
}
