// Package observability provides OpenTelemetry metrics (Prometheus exporter) and request-scoped logging.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	prometheusexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const (
	meterScope         = "github.com/clipmark/highlights/internal/observability"
	defaultServiceName = "highlights"
	cardinalityLimit   = 2000
)

// latencyHistogramBoundaries are Prometheus-style buckets (seconds) for request and answer latency.
var latencyHistogramBoundaries = []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5}

// slowHistogramBoundaries cover model calls and whole-video runs.
var slowHistogramBoundaries = []float64{0.5, 1, 2.5, 5, 10, 30, 60, 180, 600}

// MeterProviderShutdown is the subset of the SDK MeterProvider needed for shutdown.
type MeterProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// MeterProviderConfig holds configuration for creating the MeterProvider.
type MeterProviderConfig struct {
	// ServiceName is used in the resource (default: highlights).
	ServiceName string
}

// NewMeterProvider creates a MeterProvider with a Prometheus exporter and returns the provider,
// an HTTP handler for /metrics, and the Meter used to build the per-component metrics.
// Caller must call provider.Shutdown on exit. When metrics are disabled, pass a nil meter to the New*Metrics constructors.
func NewMeterProvider(_ context.Context, cfg MeterProviderConfig) (MeterProviderShutdown, http.Handler, metric.Meter, error) {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	)

	reg := prometheus.NewRegistry()

	exporter, err := prometheusexporter.New(
		prometheusexporter.WithRegisterer(reg),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	histogram := func(name string, bounds []float64) sdkmetric.View {
		return sdkmetric.NewView(
			sdkmetric.Instrument{Name: name},
			sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: bounds}},
		)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
		sdkmetric.WithCardinalityLimit(cardinalityLimit),
		sdkmetric.WithView(
			histogram(MetricNameHTTPDuration, latencyHistogramBoundaries),
			histogram(MetricNameAnswerDuration, latencyHistogramBoundaries),
			histogram(MetricNameLLMGenerateDuration, slowHistogramBoundaries),
			histogram(MetricNameVideoProcessDuration, slowHistogramBoundaries),
		),
	)

	return mp, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), mp.Meter(meterScope), nil
}

// HTTPMetrics records request counts and latency per route.
type HTTPMetrics interface {
	RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration)
}

type httpMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
}

// NewHTTPMetrics creates HTTPMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewHTTPMetrics(meter metric.Meter) (HTTPMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	requestCount, err := meter.Int64Counter(
		MetricNameHTTPRequests,
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricNameHTTPRequests, err)
	}

	requestDuration, err := meter.Float64Histogram(
		MetricNameHTTPDuration,
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricNameHTTPDuration, err)
	}

	return &httpMetrics{requestCount: requestCount, requestDuration: requestDuration}, nil
}

func (m *httpMetrics) RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration) {
	m.requestCount.Add(ctx, 1, metric.WithAttributeSet(attribute.NewSet(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status_class", statusClass),
	)))
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributeSet(attribute.NewSet(
		attribute.String("method", method),
		attribute.String("route", route),
	)))
}

// Metrics bundles the per-component metrics. The zero value (all nil) disables recording.
type Metrics struct {
	HTTP      HTTPMetrics
	LLM       LLMMetrics
	Pipeline  PipelineMetrics
	Retrieval RetrievalMetrics
}

// NewMetrics creates all component metrics from meter. A nil meter yields an empty Metrics.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	if m.HTTP, err = NewHTTPMetrics(meter); err != nil {
		return nil, err
	}

	if m.LLM, err = NewLLMMetrics(meter); err != nil {
		return nil, err
	}

	if m.Pipeline, err = NewPipelineMetrics(meter); err != nil {
		return nil, err
	}

	if m.Retrieval, err = NewRetrievalMetrics(meter); err != nil {
		return nil, err
	}

	return m, nil
}
