package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RetrievalMetrics records question answering outcomes.
type RetrievalMetrics interface {
	RecordAnswer(ctx context.Context, mode string, duration time.Duration)
	RecordVectorFallback(ctx context.Context, reason string)
	RecordQueryCache(ctx context.Context, hit bool)
}

type retrievalMetrics struct {
	answers   metric.Int64Counter
	duration  metric.Float64Histogram
	fallbacks metric.Int64Counter
	cache     metric.Int64Counter
}

// NewRetrievalMetrics creates RetrievalMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewRetrievalMetrics(meter metric.Meter) (RetrievalMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	answers, err := meter.Int64Counter(
		MetricNameAnswers,
		metric.WithDescription("Answers by search mode that produced them (vector, keyword, none)"),
	)
	if err != nil {
		return nil, fmt.Errorf("create answers counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameAnswerDuration,
		metric.WithDescription("Answer latency (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create answer duration histogram: %w", err)
	}

	fallbacks, err := meter.Int64Counter(
		MetricNameVectorFallbacks,
		metric.WithDescription("Vector searches that handed over to keyword search, by reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("create vector fallbacks counter: %w", err)
	}

	cache, err := meter.Int64Counter(
		MetricNameQueryCacheLookups,
		metric.WithDescription("Query embedding cache lookups by result (hit, miss)"),
	)
	if err != nil {
		return nil, fmt.Errorf("create query cache counter: %w", err)
	}

	return &retrievalMetrics{answers: answers, duration: duration, fallbacks: fallbacks, cache: cache}, nil
}

func (m *retrievalMetrics) RecordAnswer(ctx context.Context, mode string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("mode", normalize(allowedAnswerModes, mode)))
	m.answers.Add(ctx, 1, attrs)
	m.duration.Record(ctx, duration.Seconds(), attrs)
}

func (m *retrievalMetrics) RecordVectorFallback(ctx context.Context, reason string) {
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", normalize(allowedVectorFallbacks, reason))))
}

func (m *retrievalMetrics) RecordQueryCache(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}

	m.cache.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
