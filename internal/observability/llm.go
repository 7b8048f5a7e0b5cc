package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// LLMMetrics records language model gateway outcomes.
type LLMMetrics interface {
	RecordGenerate(ctx context.Context, provider, outcome string, duration time.Duration)
	RecordQuotaRetry(ctx context.Context, provider string)
}

type llmMetrics struct {
	generations  metric.Int64Counter
	duration     metric.Float64Histogram
	quotaRetries metric.Int64Counter
}

// NewLLMMetrics creates LLMMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewLLMMetrics(meter metric.Meter) (LLMMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	generations, err := meter.Int64Counter(
		MetricNameLLMGenerations,
		metric.WithDescription("Generate calls by provider and outcome (ok, fallback_quota, fallback_error, canceled)"),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm generations counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameLLMGenerateDuration,
		metric.WithDescription("Generate duration including quota retries (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm generate duration histogram: %w", err)
	}

	quotaRetries, err := meter.Int64Counter(
		MetricNameLLMQuotaRetries,
		metric.WithDescription("Generate retries triggered by quota exhaustion"),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm quota retries counter: %w", err)
	}

	return &llmMetrics{generations: generations, duration: duration, quotaRetries: quotaRetries}, nil
}

func (m *llmMetrics) RecordGenerate(ctx context.Context, provider, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("provider", normalize(allowedProviders, provider)),
		attribute.String("outcome", normalize(allowedGenerateOutcomes, outcome)),
	)
	m.generations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, duration.Seconds(), attrs)
}

func (m *llmMetrics) RecordQuotaRetry(ctx context.Context, provider string) {
	m.quotaRetries.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", normalize(allowedProviders, provider))))
}
