package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"namaste-icd-mapper/internal/logger"
	"namaste-icd-mapper/internal/telemetry"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

type GeminiOptions struct {
	APIKey      string
	Model       string
	Dimension   int
	RPM         int
	Concurrency int
	Metrics     *telemetry.Metrics
}

// GeminiBackend calls the Google Generative AI batch embedding endpoint behind
// a token-bucket rate limiter and a circuit breaker. It never retries.
type GeminiBackend struct {
	opts        GeminiOptions
	client      *genai.Client
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
}

func NewGeminiBackend(opts GeminiOptions) *GeminiBackend {
	if opts.RPM <= 0 {
		opts.RPM = 1500
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiEmbeddings",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			opts.Metrics.RecordCircuitBreakerState(name, to.String())
		},
	})

	// RPM limit with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(float64(opts.RPM)*0.9/60.0), max(opts.RPM/10, 1))

	return &GeminiBackend{
		opts:        opts,
		breaker:     breaker,
		rateLimiter: rateLimiter,
	}
}

func (g *GeminiBackend) Name() string        { return g.opts.Model }
func (g *GeminiBackend) Dimension() int      { return g.opts.Dimension }
func (g *GeminiBackend) MaxConcurrency() int { return g.opts.Concurrency }

// Load creates the client and embeds a test text to confirm the key, the
// model and the configured dimension.
func (g *GeminiBackend) Load(ctx context.Context) error {
	if g.opts.APIKey == "" {
		return errors.New("missing GEMINI_API_KEY")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(g.opts.APIKey))
	if err != nil {
		return err
	}
	g.client = client

	vecs, err := g.EncodeBatch(ctx, []string{"fever"})
	if err != nil {
		client.Close()
		g.client = nil
		return fmt.Errorf("test embedding failed: %w", err)
	}
	if len(vecs[0]) != g.opts.Dimension {
		client.Close()
		g.client = nil
		return fmt.Errorf("model %s returned dimension %d, EMBEDDING_DIM is %d", g.opts.Model, len(vecs[0]), g.opts.Dimension)
	}
	return nil
}

func (g *GeminiBackend) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if g.client == nil {
		return nil, ErrNotLoaded
	}

	ctx, span := otel.Tracer("gemini-embeddings").Start(ctx, "gemini.batch_embed_contents")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", g.opts.Model),
		attribute.Int("gemini.batch_size", len(texts)),
	)

	if err := g.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return nil, err
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		em := g.client.EmbeddingModel(g.opts.Model)
		batch := em.NewBatch()
		for _, t := range texts {
			batch.AddContent(genai.Text(t))
		}
		resp, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(resp.Embeddings) != len(texts) {
			return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
		}
		out := make([][]float32, len(texts))
		for i, emb := range resp.Embeddings {
			if emb == nil {
				return nil, fmt.Errorf("gemini returned no embedding at %d", i)
			}
			out[i] = emb.Values
		}
		return out, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
		}
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return nil, err
	}

	span.SetAttributes(attribute.Bool("gemini.success", true))
	return result.([][]float32), nil
}

func (g *GeminiBackend) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
