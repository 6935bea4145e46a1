package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"namaste-icd-mapper/internal/ai"
	"namaste-icd-mapper/internal/config"
	"namaste-icd-mapper/internal/logger"
	"namaste-icd-mapper/internal/mapper"
	"namaste-icd-mapper/internal/nlp"
	"namaste-icd-mapper/internal/telemetry"
	"namaste-icd-mapper/internal/vocab"
	"namaste-icd-mapper/models"
	"namaste-icd-mapper/utils"
)

const (
	MaxMappingTopK   = 10
	MaxRecommendTopK = 20

	// retired snapshots stay searchable for in-flight requests this long
	snapshotRetireDelay = 30 * time.Second
)

type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// HealthStatus is the status string reported by the health endpoint.
func (s State) HealthStatus() string {
	switch s {
	case StateReady:
		return "healthy"
	case StateFailed:
		return "failed"
	default:
		return "initializing"
	}
}

type MappingOptions struct {
	NamasteDataPath     string
	ICD11DataPath       string
	MappingThresholds   mapper.Thresholds
	RecommendThresholds mapper.Thresholds
	DefaultTopK         int
	EmbedTimeout        time.Duration
	LemmatizerEnabled   bool
	RecommendPrecompute bool
}

func MappingOptionsFromConfig(cfg *config.Config) MappingOptions {
	return MappingOptions{
		NamasteDataPath: cfg.NamasteDataPath,
		ICD11DataPath:   cfg.ICD11DataPath,
		MappingThresholds: mapper.Thresholds{
			High:   cfg.HighConfidenceThreshold,
			Medium: cfg.MediumConfidenceThreshold,
		},
		RecommendThresholds: mapper.Thresholds{
			High:   cfg.RecommendHighThreshold,
			Medium: cfg.RecommendMediumThreshold,
		},
		DefaultTopK:         cfg.TopKResults,
		EmbedTimeout:        cfg.EmbedTimeout,
		LemmatizerEnabled:   cfg.LemmatizerEnabled,
		RecommendPrecompute: cfg.RecommendPrecompute,
	}
}

// snapshot is everything derived from one load of the datasets. Requests
// take a snapshot once and use it throughout, so a reload never mixes
// catalog and corpus from different loads.
type snapshot struct {
	ayush    []models.AyushCode
	catalog  *vocab.Catalog
	fulltext *vocab.FullTextIndex
	mapper   *mapper.SimilarityMapper
	version  string
	loadedAt time.Time

	sourceMu    sync.Mutex
	sourceBuild *corpusBuild
}

// corpusBuild is one background embedding of the NAMASTE corpus. done is
// closed once corpus or err is set.
type corpusBuild struct {
	done   chan struct{}
	corpus *mapper.Corpus
	err    error
}

func (s *snapshot) close() {
	if s.fulltext != nil {
		if err := s.fulltext.Close(); err != nil {
			logger.Warn("Failed to close fuzzy index", "error", err)
		}
	}
}

// MappingService orchestrates preprocessing, embedding and ranking over the
// loaded vocabularies.
type MappingService struct {
	opts         MappingOptions
	preprocessor *nlp.Preprocessor
	embedder     *ai.Embedder
	cache        ResultCache
	metrics      *telemetry.Metrics

	state     atomic.Int32
	snap      atomic.Pointer[snapshot]
	reloadMu  sync.Mutex
	startedAt time.Time
}

func NewMappingService(opts MappingOptions, preprocessor *nlp.Preprocessor, embedder *ai.Embedder, cache ResultCache, metrics *telemetry.Metrics) *MappingService {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 5
	}
	return &MappingService{
		opts:         opts,
		preprocessor: preprocessor,
		embedder:     embedder,
		cache:        cache,
		metrics:      metrics,
		startedAt:    time.Now(),
	}
}

func (s *MappingService) State() State {
	return State(s.state.Load())
}

func (s *MappingService) IsReady() bool {
	return s.State() == StateReady
}

// Initialize loads the lemmatizer, the embedding model and both datasets,
// then embeds the ICD corpus. It runs at most once.
func (s *MappingService) Initialize(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateUninitialized), int32(StateLoading)) {
		return fmt.Errorf("mapping service cannot initialize from state %s", s.State())
	}

	start := time.Now()
	logger.Info("Initializing mapping service")

	if err := s.initialize(ctx); err != nil {
		s.state.Store(int32(StateFailed))
		logger.Error("Failed to initialize mapping service", "error", err)
		return err
	}

	s.state.Store(int32(StateReady))
	snap := s.snap.Load()
	logger.Info("Mapping service initialized",
		"duration_ms", time.Since(start).Milliseconds(),
		"icd11_codes", snap.mapper.Size(),
		"namaste_codes", snap.catalog.Len(),
		"model", s.embedder.ModelName())
	return nil
}

func (s *MappingService) initialize(ctx context.Context) error {
	if s.opts.LemmatizerEnabled && !s.preprocessor.IsLoaded() {
		if err := s.preprocessor.LoadLemmatizer(); err != nil {
			return fmt.Errorf("failed to load lemmatizer: %w", err)
		}
	}

	if err := s.embedder.Load(ctx); err != nil {
		return err
	}

	snap, err := s.buildSnapshot(ctx)
	if err != nil {
		return err
	}
	s.snap.Store(snap)

	if s.opts.RecommendPrecompute {
		s.precomputeSourceCorpus(ctx, snap)
	}
	return nil
}

func (s *MappingService) buildSnapshot(ctx context.Context) (*snapshot, error) {
	version := utils.CombinedChecksum(s.opts.ICD11DataPath, s.opts.NamasteDataPath)

	icd, err := vocab.LoadICDCodes(s.opts.ICD11DataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load ICD-11 codes: %w", err)
	}
	ayush, err := vocab.LoadAyushCodes(s.opts.NamasteDataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load NAMASTE codes: %w", err)
	}
	logger.Info("Datasets loaded", "icd11_codes", len(icd), "namaste_codes", len(ayush))

	texts := make([]string, len(icd))
	for i, e := range icd {
		texts[i] = e.Name + " " + e.Description
	}

	start := time.Now()
	vectors, err := s.embedder.EncodeBatch(ctx, s.preprocessor.PreprocessBatch(texts))
	if err != nil {
		return nil, fmt.Errorf("failed to embed ICD-11 corpus: %w", err)
	}
	logger.Info("ICD-11 corpus embedded",
		"entries", len(vectors),
		"duration_ms", time.Since(start).Milliseconds())

	m := mapper.NewSimilarityMapper(s.opts.MappingThresholds)
	if err := m.LoadCorpus(vectors, icd); err != nil {
		return nil, fmt.Errorf("failed to load ICD-11 corpus: %w", err)
	}

	fulltext, err := vocab.NewFullTextIndex(ayush)
	if err != nil {
		return nil, err
	}

	return &snapshot{
		ayush:    ayush,
		catalog:  vocab.NewCatalog(ayush),
		fulltext: fulltext,
		mapper:   m,
		version:  version,
		loadedAt: time.Now(),
	}, nil
}

func (s *MappingService) ready() (*snapshot, error) {
	if s.State() != StateReady {
		return nil, ErrServiceNotReady
	}
	return s.snap.Load(), nil
}

// embed encodes one preprocessed query under the per-request deadline.
func (s *MappingService) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := utils.WithCustomTimeout(ctx, s.opts.EmbedTimeout)
	defer cancel()

	vec, err := s.embedder.Encode(ctx, text)
	if err != nil {
		if errors.Is(err, ai.ErrEmbeddingTimeout) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: embed query: %w", ErrOperationFailed, err)
	}
	return vec, nil
}

// Map suggests ICD-11 codes for a NAMASTE disease name and optional symptoms.
func (s *MappingService) Map(ctx context.Context, req models.MappingRequest) (*models.MappingResponse, error) {
	snap, err := s.ready()
	if err != nil {
		return nil, err
	}
	start := time.Now()

	topK := s.opts.DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	topK = clamp(topK, 1, MaxMappingTopK)

	query := req.DiseaseName
	if req.Symptoms != nil && *req.Symptoms != "" {
		query += " " + *req.Symptoms
	}
	processed := s.preprocessor.Preprocess(query)

	var cacheKey string
	if s.cache != nil {
		cacheKey = MappingCacheKey(s.embedder.ModelName(), snap.version, topK, processed)
		cached, ok := s.cache.GetMapping(ctx, cacheKey)
		s.metrics.RecordCacheLookup(ok)
		if ok {
			cached.NamasteCode = req.NamasteCode
			cached.DiseaseName = req.DiseaseName
			cached.Timestamp = time.Now().UTC()
			cached.ProcessingTimeMs = elapsedMs(start)
			return cached, nil
		}
	}

	vec, err := s.embed(ctx, processed)
	if err != nil {
		return nil, err
	}

	suggestions, err := snap.mapper.BuildSuggestions(vec, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: rank: %w", ErrOperationFailed, err)
	}
	for _, sg := range suggestions {
		s.metrics.RecordSuggestion("map", sg.ConfidenceLevel)
	}

	resp := &models.MappingResponse{
		NamasteCode:      req.NamasteCode,
		DiseaseName:      req.DiseaseName,
		Suggestions:      suggestions,
		Timestamp:        time.Now().UTC(),
		ProcessingTimeMs: elapsedMs(start),
	}

	if s.cache != nil {
		if err := s.cache.SetMapping(ctx, cacheKey, resp); err != nil {
			logger.Warn("Failed to cache mapping result", "namaste_code", req.NamasteCode, "error", err)
		}
	}

	logger.Debug("Mapped disease",
		"namaste_code", req.NamasteCode,
		"suggestions", len(suggestions),
		"processing_time_ms", resp.ProcessingTimeMs)
	return resp, nil
}

// Recommend ranks NAMASTE codes against a symptom description.
func (s *MappingService) Recommend(ctx context.Context, req models.RecommendationRequest) (*models.RecommendationResponse, error) {
	snap, err := s.ready()
	if err != nil {
		return nil, err
	}
	start := time.Now()

	topK := s.opts.DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	topK = clamp(topK, 1, MaxRecommendTopK)

	query := req.Symptoms
	if req.PatientHistory != nil && *req.PatientHistory != "" {
		query += " " + *req.PatientHistory
	}

	vec, err := s.embed(ctx, s.preprocessor.Preprocess(query))
	if err != nil {
		return nil, err
	}

	corpus, err := s.sourceCorpus(ctx, snap)
	if err != nil {
		return nil, err
	}

	matches, err := corpus.Rank(vec, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: rank: %w", ErrOperationFailed, err)
	}

	recs := make([]models.Recommendation, len(matches))
	for i, m := range matches {
		e := snap.ayush[m.Index]
		level := s.opts.RecommendThresholds.Level(m.Score)
		recs[i] = models.Recommendation{
			Code:            e.Code,
			Name:            e.Name,
			NameEnglish:     e.NameEnglish,
			Description:     e.Description,
			Category:        e.Category,
			Confidence:      mapper.DisplayScore(m.Score, 3),
			ConfidenceLevel: string(level),
		}
		s.metrics.RecordSuggestion("recommend", string(level))
	}

	return &models.RecommendationResponse{
		Query:            req.Symptoms,
		Recommendations:  recs,
		ProcessingTimeMs: elapsedMs(start),
	}, nil
}

// sourceCorpus returns the NAMASTE corpus of snap, embedding it on first use.
// Concurrent first callers share a single background build. Callers wait at
// most EmbedTimeout (or their own deadline) and get ErrEmbeddingTimeout while
// the build carries on; a failed build is retried by the next caller.
func (s *MappingService) sourceCorpus(ctx context.Context, snap *snapshot) (*mapper.Corpus, error) {
	build := s.startSourceBuild(snap)

	ctx, cancel := utils.WithCustomTimeout(ctx, s.opts.EmbedTimeout)
	defer cancel()

	select {
	case <-build.done:
		return build.corpus, build.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: NAMASTE corpus is still being embedded", ai.ErrEmbeddingTimeout)
	}
}

func (s *MappingService) startSourceBuild(snap *snapshot) *corpusBuild {
	snap.sourceMu.Lock()
	defer snap.sourceMu.Unlock()

	if snap.sourceBuild != nil {
		return snap.sourceBuild
	}

	build := &corpusBuild{done: make(chan struct{})}
	snap.sourceBuild = build
	go func() {
		build.corpus, build.err = s.buildSourceCorpus(snap)
		if build.err != nil {
			snap.sourceMu.Lock()
			if snap.sourceBuild == build {
				snap.sourceBuild = nil
			}
			snap.sourceMu.Unlock()
		}
		close(build.done)
	}()
	return build
}

func (s *MappingService) buildSourceCorpus(snap *snapshot) (*mapper.Corpus, error) {
	texts := make([]string, len(snap.ayush))
	for i, e := range snap.ayush {
		texts[i] = e.Name + " " + e.NameEnglish + " " + e.Description
	}

	ctx, cancel := utils.WithLongTimeout(context.Background())
	defer cancel()

	start := time.Now()
	vectors, err := s.embedder.EncodeBatch(ctx, s.preprocessor.PreprocessBatch(texts))
	if err != nil {
		logger.Warn("Failed to embed NAMASTE corpus", "error", err)
		if errors.Is(err, ai.ErrEmbeddingTimeout) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: embed NAMASTE corpus: %w", ErrOperationFailed, err)
	}
	corpus, err := mapper.NewCorpus(vectors)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOperationFailed, err)
	}

	logger.Info("NAMASTE corpus embedded",
		"entries", corpus.Size(),
		"duration_ms", time.Since(start).Milliseconds())
	return corpus, nil
}

// precomputeSourceCorpus waits for the corpus build, bounded by ctx only.
func (s *MappingService) precomputeSourceCorpus(ctx context.Context, snap *snapshot) {
	build := s.startSourceBuild(snap)
	select {
	case <-build.done:
		if build.err != nil {
			logger.Warn("Failed to precompute NAMASTE corpus, it will be built on first use", "error", build.err)
		}
	case <-ctx.Done():
		logger.Warn("NAMASTE corpus precompute still running in background", "error", ctx.Err())
	}
}

// Search does a paginated substring search over the NAMASTE vocabulary.
func (s *MappingService) Search(query, category string, limit, offset int) (*models.AyushSearchResponse, error) {
	snap, err := s.ready()
	if err != nil {
		return nil, err
	}
	if limit < 1 || offset < 0 {
		return nil, fmt.Errorf("%w: limit must be positive and offset non-negative", ErrInvalidInput)
	}
	resp := snap.catalog.Search(query, category, limit, offset)
	return &resp, nil
}

func (s *MappingService) FuzzySearch(query string, limit int) (*models.FuzzySearchResponse, error) {
	snap, err := s.ready()
	if err != nil {
		return nil, err
	}
	if query == "" || limit < 1 {
		return nil, fmt.Errorf("%w: query and a positive limit are required", ErrInvalidInput)
	}
	resp, err := snap.fulltext.Search(query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOperationFailed, err)
	}
	return &resp, nil
}

func (s *MappingService) GetByCode(code string) (*models.AyushCode, error) {
	snap, err := s.ready()
	if err != nil {
		return nil, err
	}
	entry, ok := snap.catalog.Get(code)
	if !ok {
		return nil, fmt.Errorf("%w: AYUSH code %s", ErrNotFound, code)
	}
	return &entry, nil
}

func (s *MappingService) Categories() ([]string, error) {
	snap, err := s.ready()
	if err != nil {
		return nil, err
	}
	return snap.catalog.Categories(), nil
}

// Reload re-reads both datasets, rebuilds the ICD corpus and swaps the new
// snapshot in. On failure the previous snapshot keeps serving.
func (s *MappingService) Reload(ctx context.Context, trigger string) (*models.ReloadResponse, error) {
	if !s.IsReady() {
		return nil, ErrServiceNotReady
	}

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	snap, err := s.buildSnapshot(ctx)
	if err != nil {
		s.metrics.RecordReload(trigger, false)
		logger.Error("Dataset reload failed, keeping previous data", "trigger", trigger, "error", err)
		return nil, fmt.Errorf("%w: reload: %w", ErrOperationFailed, err)
	}

	old := s.snap.Swap(snap)
	if old != nil {
		time.AfterFunc(snapshotRetireDelay, old.close)
	}
	if s.opts.RecommendPrecompute {
		s.precomputeSourceCorpus(ctx, snap)
	}

	s.metrics.RecordReload(trigger, true)
	logger.Info("Datasets reloaded",
		"trigger", trigger,
		"icd11_codes", snap.mapper.Size(),
		"namaste_codes", snap.catalog.Len(),
		"duration_ms", time.Since(start).Milliseconds())

	return &models.ReloadResponse{
		Success:           true,
		Message:           "Datasets reloaded successfully",
		ICD11CodesCount:   snap.mapper.Size(),
		NamasteCodesCount: snap.catalog.Len(),
	}, nil
}

// DatasetVersion is the combined checksum of the datasets currently served.
func (s *MappingService) DatasetVersion() string {
	if snap := s.snap.Load(); snap != nil {
		return snap.version
	}
	return ""
}

func (s *MappingService) DatasetPaths() []string {
	return []string{s.opts.ICD11DataPath, s.opts.NamasteDataPath}
}

func (s *MappingService) counts() (icd, namaste int) {
	if snap := s.snap.Load(); snap != nil {
		return snap.mapper.Size(), snap.catalog.Len()
	}
	return 0, 0
}

func (s *MappingService) Health() models.HealthResponse {
	icd, _ := s.counts()
	return models.HealthResponse{
		Status:           s.State().HealthStatus(),
		ModelLoaded:      s.embedder.IsLoaded(),
		ICD11CodesLoaded: icd,
		CacheEnabled:     s.cache != nil,
		UptimeSeconds:    math.Round(time.Since(s.startedAt).Seconds()*100) / 100,
	}
}

func (s *MappingService) Models() models.ModelsResponse {
	icd, namaste := s.counts()
	return models.ModelsResponse{
		EmbeddingModel: models.ModelInfo{
			ModelName:    s.embedder.ModelName(),
			EmbeddingDim: s.embedder.Dimension(),
			ModelLoaded:  s.embedder.IsLoaded(),
		},
		ICD11CodesCount:   icd,
		NamasteCodesCount: namaste,
	}
}

// Close releases the current snapshot's index and the embedding backend.
func (s *MappingService) Close() error {
	if snap := s.snap.Load(); snap != nil {
		snap.close()
	}
	return s.embedder.Close()
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func elapsedMs(start time.Time) float64 {
	ms := float64(time.Since(start).Microseconds()) / 1000
	return math.Round(ms*100) / 100
}
