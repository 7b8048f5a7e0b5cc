package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMetrics records per-video processing outcomes.
type PipelineMetrics interface {
	RecordVideoProcessed(ctx context.Context, status string, duration time.Duration)
	RecordSegmentsAnalyzed(ctx context.Context, count int)
	RecordHighlightAccepted(ctx context.Context, source string)
	RecordStageDegraded(ctx context.Context, stage string)
}

type pipelineMetrics struct {
	videos     metric.Int64Counter
	duration   metric.Float64Histogram
	segments   metric.Int64Counter
	accepted   metric.Int64Counter
	degraded   metric.Int64Counter
}

// NewPipelineMetrics creates PipelineMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewPipelineMetrics(meter metric.Meter) (PipelineMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	videos, err := meter.Int64Counter(
		MetricNameVideosProcessed,
		metric.WithDescription("Videos processed by status (ok, not_found, failed)"),
	)
	if err != nil {
		return nil, fmt.Errorf("create videos processed counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameVideoProcessDuration,
		metric.WithDescription("Whole-video processing duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create video process duration histogram: %w", err)
	}

	segments, err := meter.Int64Counter(
		MetricNameSegmentsAnalyzed,
		metric.WithDescription("Segments sent through classification"),
	)
	if err != nil {
		return nil, fmt.Errorf("create segments analyzed counter: %w", err)
	}

	accepted, err := meter.Int64Counter(
		MetricNameHighlightsAccepted,
		metric.WithDescription("Accepted highlights by source (model, evidence_fallback)"),
	)
	if err != nil {
		return nil, fmt.Errorf("create highlights accepted counter: %w", err)
	}

	degraded, err := meter.Int64Counter(
		MetricNameStageDegradations,
		metric.WithDescription("Evidence stages that failed and degraded to an empty result"),
	)
	if err != nil {
		return nil, fmt.Errorf("create stage degradations counter: %w", err)
	}

	return &pipelineMetrics{
		videos:     videos,
		duration:   duration,
		segments:   segments,
		accepted:   accepted,
		degraded: degraded,
	}, nil
}

func (m *pipelineMetrics) RecordVideoProcessed(ctx context.Context, status string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", normalize(allowedVideoStatuses, status)))
	m.videos.Add(ctx, 1, attrs)
	m.duration.Record(ctx, duration.Seconds(), attrs)
}

func (m *pipelineMetrics) RecordSegmentsAnalyzed(ctx context.Context, count int) {
	m.segments.Add(ctx, int64(count))
}

func (m *pipelineMetrics) RecordHighlightAccepted(ctx context.Context, source string) {
	m.accepted.Add(ctx, 1, metric.WithAttributes(attribute.String("source", normalize(allowedHighlightSources, source))))
}

func (m *pipelineMetrics) RecordStageDegraded(ctx context.Context, stage string) {
	m.degraded.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", normalize(allowedStages, stage))))
}
