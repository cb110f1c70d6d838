package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/statekeeper/pkg/statekeeper/config"
	"github.com/randalmurphal/statekeeper/pkg/statekeeper/observability"
)

// DefaultRetryInterval is how long Reserve waits between arbiter requests.
const DefaultRetryInterval = time.Second

// Settings holds the tunables for a Coordinator and its LocalArbiter.
type Settings struct {
	// MaxBytes is the LocalArbiter ceiling.
	MaxBytes uint64
	// BlockBytes is the LocalArbiter grant size.
	BlockBytes uint64
	// RetryInterval is the Reserve backoff.
	RetryInterval time.Duration
}

// DefaultSettings returns a 256 MiB ceiling granted in 10 MiB blocks.
func DefaultSettings() Settings {
	return Settings{
		MaxBytes:      256 * MiB,
		BlockBytes:    DefaultBlockBytes,
		RetryInterval: DefaultRetryInterval,
	}
}

// SettingsFromConfig reads max_bytes, block_bytes and retry_interval,
// keeping defaults for anything missing.
func SettingsFromConfig(cfg config.Config) Settings {
	d := DefaultSettings()
	return Settings{
		MaxBytes:      cfg.Bytes("max_bytes", d.MaxBytes),
		BlockBytes:    cfg.Bytes("block_bytes", d.BlockBytes),
		RetryInterval: cfg.Duration("retry_interval", d.RetryInterval),
	}
}

// NewArbiter builds a LocalArbiter from the settings.
func (s Settings) NewArbiter() *LocalArbiter {
	return NewLocalArbiter(s.MaxBytes, s.BlockBytes)
}

// Options returns the coordinator options the settings imply.
func (s Settings) Options() []CoordinatorOption {
	return []CoordinatorOption{WithRetryInterval(s.RetryInterval)}
}

// Coordinator tracks the bytes one manager instance has been allocated by the
// arbiter and how many of them buffered checkpoints currently use.
//
// Reserve is the only blocking call. It waits without a deadline unless the
// caller's context carries one.
type Coordinator struct {
	arbiter       Arbiter
	retryInterval time.Duration
	logger        *slog.Logger
	metrics       observability.MetricsRecorder

	mu        sync.Mutex
	allocated uint64
	used      uint64
	// wake is closed and replaced on every Release so waiters re-check early.
	wake chan struct{}
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithRetryInterval sets the backoff between arbiter requests.
// Non-positive values are ignored.
func WithRetryInterval(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.retryInterval = d
		}
	}
}

// WithCoordinatorLogger sets the logger for backpressure messages.
func WithCoordinatorLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCoordinatorMetrics sets the recorder for backpressure waits.
func WithCoordinatorMetrics(m observability.MetricsRecorder) CoordinatorOption {
	return func(c *Coordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// NewCoordinator creates a Coordinator drawing budget from arbiter.
func NewCoordinator(arbiter Arbiter, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		arbiter:       arbiter,
		retryInterval: DefaultRetryInterval,
		logger:        slog.Default(),
		metrics:       observability.NoopMetrics{},
		wake:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reserve blocks until n bytes fit in the allocated budget, requesting more
// from the arbiter and backing off between attempts, then marks them used.
// It returns early only when ctx is done.
func (c *Coordinator) Reserve(ctx context.Context, n uint64) error {
	if n == 0 {
		return nil
	}

	var waitStart time.Time
	for {
		c.mu.Lock()
		ok := c.useLocked(n)
		wake := c.wake
		c.mu.Unlock()
		if ok {
			break
		}

		granted := c.arbiter.RequestMoreBytes()

		c.mu.Lock()
		c.allocated += granted
		ok = c.useLocked(n)
		allocated, used := c.allocated, c.used
		c.mu.Unlock()
		if ok {
			break
		}

		if waitStart.IsZero() {
			waitStart = time.Now()
		}
		observability.LogBackpressure(c.logger, allocated, used, n)

		timer := time.NewTimer(c.retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.metrics.RecordBackpressure(ctx, time.Since(waitStart))
			return fmt.Errorf("reserve %d bytes: %w", n, ctx.Err())
		case <-wake:
			timer.Stop()
		case <-timer.C:
		}
	}

	if !waitStart.IsZero() {
		c.metrics.RecordBackpressure(ctx, time.Since(waitStart))
	}
	return nil
}

// useLocked claims n bytes if they fit. Caller holds c.mu.
func (c *Coordinator) useLocked(n uint64) bool {
	if c.used+n > c.allocated {
		return false
	}
	c.used += n
	return true
}

// Release returns n bytes: they stop counting as used, leave the local
// allocation, and go back to the arbiter.
func (c *Coordinator) Release(n uint64) {
	if n == 0 {
		return
	}

	c.mu.Lock()
	c.used -= min(n, c.used)
	c.allocated -= min(n, c.allocated)
	close(c.wake)
	c.wake = make(chan struct{})
	c.mu.Unlock()

	c.arbiter.Release(n)
}

// Usage returns the allocated and used byte counts.
func (c *Coordinator) Usage() (allocated, used uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allocated, c.used
}
