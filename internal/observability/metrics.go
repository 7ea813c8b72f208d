package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"mdmdispatch/internal/command"
)

// Metrics holds all application metrics implementing the golden 4 signals:
// - Latency: How long requests/dispatches take
// - Traffic: Request/command throughput
// - Errors: Rate of failures
// - Saturation: Queue depth
type Metrics struct {
	meter metric.Meter

	// HTTP metrics (Latency, Traffic, Errors)
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	// Dispatch metrics (Latency, Traffic, Errors, Saturation)
	CommandsSubmitted metric.Int64Counter
	DispatchDuration  metric.Float64Histogram
	DispatchOutcomes  metric.Int64Counter
	DispatchRetries   metric.Int64Counter
	DispatchQueueSize metric.Int64Gauge
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("mdmdispatch")
	m := &Metrics{meter: meter}

	// HTTP metrics
	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPErrorsTotal, err = meter.Int64Counter(
		"http_errors_total",
		metric.WithDescription("Total number of HTTP errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Dispatch metrics
	m.CommandsSubmitted, err = meter.Int64Counter(
		"commands_submitted_total",
		metric.WithDescription("Total number of commands accepted for dispatch"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DispatchDuration, err = meter.Float64Histogram(
		"dispatch_duration_seconds",
		metric.WithDescription("Time from first send attempt to terminal outcome in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DispatchOutcomes, err = meter.Int64Counter(
		"dispatch_outcomes_total",
		metric.WithDescription("Terminal dispatch outcomes by status"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DispatchRetries, err = meter.Int64Counter(
		"dispatch_retries_total",
		metric.WithDescription("Total retry attempts after transport failures"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DispatchQueueSize, err = meter.Int64Gauge(
		"dispatch_queue_size",
		metric.WithDescription("Current number of commands in the dispatch queue (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(
		methodAttr(method),
		pathAttr(path),
		statusAttr(statusCode),
	)

	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)

	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordCommandSubmitted records a command entering the dispatch queue.
func (m *Metrics) RecordCommandSubmitted(ctx context.Context) {
	m.CommandsSubmitted.Add(ctx, 1)
}

// RecordDispatchOutcome records a terminal outcome with its total duration.
func (m *Metrics) RecordDispatchOutcome(ctx context.Context, status command.Status, durationSeconds float64) {
	attrs := metric.WithAttributes(outcomeAttr(status))
	m.DispatchOutcomes.Add(ctx, 1, attrs)
	m.DispatchDuration.Record(ctx, durationSeconds, attrs)
}

// RecordDispatchRetry records a retry attempt.
func (m *Metrics) RecordDispatchRetry(ctx context.Context) {
	m.DispatchRetries.Add(ctx, 1)
}

// RecordQueueSize records the current dispatch queue size.
func (m *Metrics) RecordQueueSize(ctx context.Context, size int64) {
	m.DispatchQueueSize.Record(ctx, size)
}
