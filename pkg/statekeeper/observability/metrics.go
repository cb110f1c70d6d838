package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records statekeeper metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordCheckpointTracked records a checkpoint marker being stored.
	RecordCheckpointTracked(ctx context.Context, topology string, sizeBytes uint64)

	// RecordFlush records one flush pass.
	RecordFlush(ctx context.Context, emitted int, freedBytes uint64, duration time.Duration)

	// RecordBackpressure records time an ingester spent waiting for memory budget.
	RecordBackpressure(ctx context.Context, wait time.Duration)

	// RecordReportError records a rejected completion report.
	RecordReportError(ctx context.Context, reason string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	checkpointsTracked metric.Int64Counter
	checkpointSize     metric.Int64Histogram
	checkpointsEmitted metric.Int64Counter
	bytesFreed         metric.Int64Counter
	flushLatency       metric.Float64Histogram
	backpressureWait   metric.Float64Histogram
	reportErrors       metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics lazily initializes the shared OTel instruments.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("statekeeper")

	checkpointsTracked, err := meter.Int64Counter("statekeeper.checkpoint.tracked",
		metric.WithDescription("Number of checkpoint markers stored"),
	)
	if err != nil {
		return nil, err
	}

	checkpointSize, err := meter.Int64Histogram("statekeeper.checkpoint.size_bytes",
		metric.WithDescription("Declared checkpoint marker size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	checkpointsEmitted, err := meter.Int64Counter("statekeeper.checkpoint.emitted",
		metric.WithDescription("Number of checkpoints emitted for acknowledgment"),
	)
	if err != nil {
		return nil, err
	}

	bytesFreed, err := meter.Int64Counter("statekeeper.memory.freed_bytes",
		metric.WithDescription("Bytes of checkpoint budget released by flushes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	flushLatency, err := meter.Float64Histogram("statekeeper.flush.latency_ms",
		metric.WithDescription("Flush scan latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	backpressureWait, err := meter.Float64Histogram("statekeeper.memory.wait_ms",
		metric.WithDescription("Time spent waiting for memory budget in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	reportErrors, err := meter.Int64Counter("statekeeper.report.errors",
		metric.WithDescription("Number of rejected completion reports"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		checkpointsTracked: checkpointsTracked,
		checkpointSize:     checkpointSize,
		checkpointsEmitted: checkpointsEmitted,
		bytesFreed:         bytesFreed,
		flushLatency:       flushLatency,
		backpressureWait:   backpressureWait,
		reportErrors:       reportErrors,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordCheckpointTracked records a stored checkpoint marker.
func (m *otelMetrics) RecordCheckpointTracked(ctx context.Context, topology string, sizeBytes uint64) {
	attrs := metric.WithAttributes(attribute.String("topology", topology))
	m.checkpointsTracked.Add(ctx, 1, attrs)
	m.checkpointSize.Record(ctx, clampInt64(sizeBytes), attrs)
}

// RecordFlush records a flush pass.
func (m *otelMetrics) RecordFlush(ctx context.Context, emitted int, freedBytes uint64, duration time.Duration) {
	m.flushLatency.Record(ctx, float64(duration.Microseconds())/1000)
	if emitted == 0 {
		return
	}
	m.checkpointsEmitted.Add(ctx, int64(emitted))
	m.bytesFreed.Add(ctx, clampInt64(freedBytes))
}

// RecordBackpressure records a memory wait.
func (m *otelMetrics) RecordBackpressure(ctx context.Context, wait time.Duration) {
	m.backpressureWait.Record(ctx, float64(wait.Microseconds())/1000)
}

// RecordReportError records a rejected completion report.
func (m *otelMetrics) RecordReportError(ctx context.Context, reason string) {
	m.reportErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func clampInt64(v uint64) int64 {
	const maxInt64 = 1<<63 - 1
	if v > maxInt64 {
		return maxInt64
	}
	return int64(v)
}
