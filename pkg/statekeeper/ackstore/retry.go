package ackstore

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/randalmurphal/statekeeper/pkg/statekeeper/config"
)

// RetryPolicy configures how RetryingStore retries a failed Save.
type RetryPolicy struct {
	// MaxAttempts counts the initial attempt.
	MaxAttempts int

	// InitialBackoff is the wait before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between attempts.
	MaxBackoff time.Duration

	// BackoffFactor multiplies the wait after each attempt.
	BackoffFactor float64

	// Jitter randomises each wait by up to this fraction (0.0-1.0).
	Jitter float64

	// Retryable overrides the default check, which retries everything except
	// ErrStoreClosed.
	Retryable func(error) bool
}

// DefaultRetry retries a handful of times with short backoff. Acks sit on
// the flush path, so waits stay well under a second.
var DefaultRetry = RetryPolicy{
	MaxAttempts:    4,
	InitialBackoff: 10 * time.Millisecond,
	MaxBackoff:     250 * time.Millisecond,
	BackoffFactor:  2.0,
	Jitter:         0.1,
}

// NoRetry disables retries.
var NoRetry = RetryPolicy{
	MaxAttempts: 1,
}

// RetryPolicyFromConfig reads max_attempts, initial_backoff, max_backoff,
// backoff_factor and jitter over DefaultRetry.
func RetryPolicyFromConfig(cfg config.Config) RetryPolicy {
	p := DefaultRetry
	p.MaxAttempts = cfg.Int("max_attempts", p.MaxAttempts)
	p.InitialBackoff = cfg.Duration("initial_backoff", p.InitialBackoff)
	p.MaxBackoff = cfg.Duration("max_backoff", p.MaxBackoff)
	p.BackoffFactor = cfg.Float("backoff_factor", p.BackoffFactor)
	p.Jitter = cfg.Float("jitter", p.Jitter)
	return p
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return !errors.Is(err, ErrStoreClosed)
}

func (p RetryPolicy) backoff(base time.Duration) time.Duration {
	if p.Jitter <= 0 {
		return base
	}
	delta := float64(base) * p.Jitter * (rand.Float64()*2 - 1)
	return time.Duration(float64(base) + delta)
}

// RetryingStore retries Save on another Store. Reads are passed through.
type RetryingStore struct {
	Store
	policy RetryPolicy
	logger *slog.Logger
}

// NewRetryingStore wraps store with policy.
func NewRetryingStore(store Store, policy RetryPolicy) *RetryingStore {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &RetryingStore{
		Store:  store,
		policy: policy,
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for retry warnings.
func (r *RetryingStore) WithLogger(logger *slog.Logger) *RetryingStore {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Save implements Store.
func (r *RetryingStore) Save(ack Ack) error {
	backoff := r.policy.InitialBackoff
	var err error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if err = r.Store.Save(ack); err == nil {
			return nil
		}
		if !r.policy.retryable(err) || attempt == r.policy.MaxAttempts {
			break
		}

		r.logger.Warn("ack save failed, retrying",
			slog.String("substream", ack.Substream),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		time.Sleep(r.policy.backoff(backoff))
		backoff = time.Duration(float64(backoff) * r.policy.BackoffFactor)
		if r.policy.MaxBackoff > 0 && backoff > r.policy.MaxBackoff {
			backoff = r.policy.MaxBackoff
		}
	}
	return fmt.Errorf("save ack for %s: %w", ack.Substream, err)
}
