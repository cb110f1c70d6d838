// Package observability provides logging, metrics, and tracing for statekeeper.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
)

// EnrichLogger adds the manager instance ID to a logger.
func EnrichLogger(logger *slog.Logger, managerID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("manager_id", managerID))
}

// LogTopologyResolved logs the one-time topology decision.
func LogTopologyResolved(logger *slog.Logger, topology string, aliased int) {
	if logger == nil {
		return
	}
	logger.Info("checkpoint topology resolved",
		slog.String("topology", topology),
		slog.Int("aliased_ids", aliased),
	)
}

// LogCheckpointTracked logs a checkpoint marker being stored.
func LogCheckpointTracked(logger *slog.Logger, substream string, id uint64, arrival uint64, sizeBytes uint64) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint tracked",
		slog.String("substream", substream),
		slog.Uint64("checkpoint_id", id),
		slog.Uint64("arrival", arrival),
		slog.String("size", humanize.IBytes(sizeBytes)),
	)
}

// LogFlush logs the outcome of a flush pass that emitted checkpoints.
func LogFlush(logger *slog.Logger, emitted int, freedBytes uint64, duration time.Duration) {
	if logger == nil || emitted == 0 {
		return
	}
	logger.Debug("checkpoints flushed",
		slog.Int("emitted", emitted),
		slog.String("freed", humanize.IBytes(freedBytes)),
		slog.Float64("duration_ms", float64(duration.Microseconds())/1000),
	)
}

// LogUnknownCheckpoint logs a completion report against an ID with no live counter.
func LogUnknownCheckpoint(logger *slog.Logger, id uint64, count int64) {
	if logger == nil {
		return
	}
	logger.Error("completion reported for unknown checkpoint",
		slog.Uint64("checkpoint_id", id),
		slog.Int64("count", count),
	)
}

// LogBackpressure logs an ingester waiting for memory budget.
func LogBackpressure(logger *slog.Logger, allocated, used, needed uint64) {
	if logger == nil {
		return
	}
	logger.Debug("insufficient memory budget for checkpoint",
		slog.String("allocated", humanize.IBytes(allocated)),
		slog.String("used", humanize.IBytes(used)),
		slog.String("needed", humanize.IBytes(needed)),
	)
}

// LogArbiterUnderflow logs a release that would take the arbiter below zero.
func LogArbiterUnderflow(logger *slog.Logger, current, released uint64) {
	if logger == nil {
		return
	}
	logger.Warn("memory released beyond what was granted",
		slog.String("granted", humanize.IBytes(current)),
		slog.String("released", humanize.IBytes(released)),
	)
}

// LogAckError logs a failure to persist an acknowledged checkpoint (non-fatal).
func LogAckError(logger *slog.Logger, substream string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("acknowledgment persist failed",
		slog.String("substream", substream),
		slog.String("error", err.Error()),
	)
}

// TimedOperation starts a clock. The returned function reports the time
// elapsed since the call.
func TimedOperation() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}
