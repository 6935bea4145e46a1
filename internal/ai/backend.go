package ai

import (
	"context"
	"fmt"
	"time"

	"namaste-icd-mapper/internal/config"
	"namaste-icd-mapper/internal/telemetry"
)

// Backend produces fixed-dimension vectors for texts. Implementations need not
// be safe for more than MaxConcurrency concurrent EncodeBatch calls.
type Backend interface {
	Name() string
	Dimension() int
	Load(ctx context.Context) error
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
	MaxConcurrency() int
	Close() error
}

// NewBackend selects the backend named by EMBEDDINGS_PROVIDER.
func NewBackend(cfg *config.Config, metrics *telemetry.Metrics) (Backend, error) {
	switch cfg.EmbeddingsProvider {
	case "hash", "":
		return NewHashBackend(cfg.ModelName, cfg.EmbeddingDim, cfg.EmbedConcurrency), nil
	case "gemini":
		return NewGeminiBackend(GeminiOptions{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.ModelName,
			Dimension:   cfg.EmbeddingDim,
			RPM:         cfg.GeminiRPM,
			Concurrency: cfg.EmbedConcurrency,
			Metrics:     metrics,
		}), nil
	case "onnx":
		return NewOnnxBackend(OnnxOptions{
			ModelName:     cfg.ModelName,
			LibraryPath:   cfg.OrtLibraryPath,
			ModelPath:     cfg.OnnxModelPath,
			TokenizerPath: cfg.TokenizerPath,
			Dimension:     cfg.EmbeddingDim,
			MaxSeqLen:     cfg.MaxSeqLen,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", cfg.EmbeddingsProvider)
	}
}

// NewEmbedderFromConfig wires backend, batching, metrics and the optional cache.
func NewEmbedderFromConfig(cfg *config.Config, metrics *telemetry.Metrics, cache VectorCache) (*Embedder, error) {
	backend, err := NewBackend(cfg, metrics)
	if err != nil {
		return nil, err
	}
	opts := []Option{WithBatchSize(cfg.EmbedBatchSize), WithMetrics(metrics)}
	if cache != nil {
		opts = append(opts, WithCache(cache))
	}
	return NewEmbedder(backend, opts...), nil
}

func elapsedSeconds(start time.Time) float64 {
	return time.Since(start).Seconds()
}
