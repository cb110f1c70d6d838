package statekeeper

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/randalmurphal/statekeeper/pkg/statekeeper/config"
	"github.com/randalmurphal/statekeeper/pkg/statekeeper/observability"
)

// managerConfig holds construction settings for a Manager.
type managerConfig struct {
	id                string
	fallbackNamespace string
	logger            *slog.Logger
	metricsEnabled    bool
	tracingEnabled    bool
	// recorder replaces the OpenTelemetry recorder when metrics are enabled.
	recorder observability.MetricsRecorder
}

func defaultManagerConfig() managerConfig {
	return managerConfig{
		logger: slog.Default(),
	}
}

// metrics resolves the recorder shared by the manager and its default
// coordinator.
func (c managerConfig) metrics() observability.MetricsRecorder {
	switch {
	case !c.metricsEnabled:
		return observability.NoopMetrics{}
	case c.recorder != nil:
		return c.recorder
	default:
		return observability.NewMetricsRecorder()
	}
}

func (c managerConfig) spans() observability.SpanManager {
	if !c.tracingEnabled {
		return observability.NoopSpanManager{}
	}
	return observability.NewSpanManager()
}

// Option configures a Manager.
type Option func(*managerConfig)

// WithID sets the manager instance ID used in logs, metrics and spans.
// Default: a random UUID.
func WithID(id string) Option {
	return func(c *managerConfig) {
		if id != "" {
			c.id = id
		}
	}
}

// WithFallbackNamespace sets the namespace applied to markers that carry none
// when IngestCheckpoint is not given one.
func WithFallbackNamespace(ns string) Option {
	return func(c *managerConfig) {
		c.fallbackNamespace = ns
	}
}

// WithLogger sets the logger. The manager ID is attached to every line.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *managerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics enables OpenTelemetry metrics through the global meter provider.
//
// Example:
//
//	mgr := statekeeper.New(coord, statekeeper.WithMetrics(true))
func WithMetrics(enabled bool) Option {
	return func(c *managerConfig) {
		c.metricsEnabled = enabled
	}
}

// WithMetricsRecorder enables metrics and sends them to recorder instead of
// the global meter provider. A nil recorder is ignored.
func WithMetricsRecorder(recorder observability.MetricsRecorder) Option {
	return func(c *managerConfig) {
		if recorder != nil {
			c.metricsEnabled = true
			c.recorder = recorder
		}
	}
}

// WithTracing enables OpenTelemetry spans for ingestion, topology
// conversion and flush.
func WithTracing(enabled bool) Option {
	return func(c *managerConfig) {
		c.tracingEnabled = enabled
	}
}

// OptionsFromConfig translates a "manager" config section into options.
// Recognised keys: id, fallback_namespace, metrics, tracing. Absent keys
// produce no option.
func OptionsFromConfig(cfg config.Config) []Option {
	opts := []Option{
		WithFallbackNamespace(cfg.String("fallback_namespace", "")),
	}
	if cfg.Has("metrics") {
		opts = append(opts, WithMetrics(cfg.Bool("metrics", false)))
	}
	if cfg.Has("tracing") {
		opts = append(opts, WithTracing(cfg.Bool("tracing", false)))
	}
	if id := cfg.String("id", ""); id != "" {
		opts = append(opts, WithID(id))
	}
	return opts
}

func newManagerID() string {
	return uuid.NewString()
}
