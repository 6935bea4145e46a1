package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	EmbeddingDuration   metric.Float64Histogram
	EmbeddedTexts       metric.Int64Counter
	MappingResults      metric.Int64Counter
	ResultCacheLookups  metric.Int64Counter
	DatasetReloads      metric.Int64Counter
	FeedbackRecorded    metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
}

// InitMetrics registers instruments on the global meter provider.
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("namaste-icd-mapper")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	embeddingDuration, err := meter.Float64Histogram(
		"embedding.batch.duration",
		metric.WithDescription("Duration of one embedding call in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	embeddedTexts, err := meter.Int64Counter(
		"embedding.texts.total",
		metric.WithDescription("Texts sent to the embedding backend"),
	)
	if err != nil {
		return nil, err
	}

	mappingResults, err := meter.Int64Counter(
		"mapping.suggestions.total",
		metric.WithDescription("Suggestions returned, by confidence level"),
	)
	if err != nil {
		return nil, err
	}

	cacheLookups, err := meter.Int64Counter(
		"mapping.cache.lookups",
		metric.WithDescription("Result cache lookups"),
	)
	if err != nil {
		return nil, err
	}

	datasetReloads, err := meter.Int64Counter(
		"dataset.reloads.total",
		metric.WithDescription("Dataset reload attempts"),
	)
	if err != nil {
		return nil, err
	}

	feedbackRecorded, err := meter.Int64Counter(
		"feedback.recorded.total",
		metric.WithDescription("Feedback records persisted"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		EmbeddingDuration:   embeddingDuration,
		EmbeddedTexts:       embeddedTexts,
		MappingResults:      mappingResults,
		ResultCacheLookups:  cacheLookups,
		DatasetReloads:      datasetReloads,
		FeedbackRecorded:    feedbackRecorded,
		CircuitBreakerState: circuitBreakerState,
	}, nil
}

// All recorders are nil-safe so components can run without telemetry.

func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	)
	m.RequestCounter.Add(context.Background(), 1, attrs)
	m.RequestDuration.Record(context.Background(), duration, attrs)
}

func (m *Metrics) RecordEmbedding(model string, texts int, duration float64, success bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("embedding.model", model),
		attribute.Bool("embedding.success", success),
	)
	m.EmbeddingDuration.Record(context.Background(), duration, attrs)
	m.EmbeddedTexts.Add(context.Background(), int64(texts), attrs)
}

func (m *Metrics) RecordSuggestion(operation, level string) {
	if m == nil {
		return
	}
	m.MappingResults.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("mapping.operation", operation),
		attribute.String("mapping.confidence", level),
	))
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	m.ResultCacheLookups.Add(context.Background(), 1, metric.WithAttributes(attribute.Bool("cache.hit", hit)))
}

func (m *Metrics) RecordReload(trigger string, success bool) {
	if m == nil {
		return
	}
	m.DatasetReloads.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("reload.trigger", trigger),
		attribute.Bool("reload.success", success),
	))
}

func (m *Metrics) RecordFeedback(backend string) {
	if m == nil {
		return
	}
	m.FeedbackRecorded.Add(context.Background(), 1, metric.WithAttributes(attribute.String("feedback.backend", backend)))
}

func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("state", state),
	))
}
