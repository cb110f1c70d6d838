// Package memory coordinates the byte budget that buffered checkpoint markers
// may occupy.
//
// A Coordinator is owned by one manager instance and caches how much budget it
// has been granted. Budget is granted by an Arbiter shared across instances;
// LocalArbiter is an in-process arbiter with a fixed ceiling.
package memory

import (
	"log/slog"
	"sync"

	"github.com/randalmurphal/statekeeper/pkg/statekeeper/observability"
)

// Size unit multipliers.
const (
	KiB = 1 << 10
	MiB = 1 << 20
	GiB = 1 << 30
)

// DefaultBlockBytes is the grant size LocalArbiter hands out per request.
const DefaultBlockBytes = 10 * MiB

// Arbiter grants and reclaims byte quotas across coordinators.
// Implementations must be safe for concurrent use.
type Arbiter interface {
	// RequestMoreBytes grants additional quota. Zero means none is available now.
	RequestMoreBytes() uint64

	// Release returns previously granted quota.
	Release(bytes uint64)
}

// LocalArbiter grants fixed-size blocks out of a process-wide ceiling.
type LocalArbiter struct {
	mu         sync.Mutex
	maxBytes   uint64
	blockBytes uint64
	current    uint64
	logger     *slog.Logger
}

var _ Arbiter = (*LocalArbiter)(nil)

// NewLocalArbiter creates an arbiter that never grants more than maxBytes in
// total. A zero blockBytes selects DefaultBlockBytes.
func NewLocalArbiter(maxBytes, blockBytes uint64) *LocalArbiter {
	if blockBytes == 0 {
		blockBytes = DefaultBlockBytes
	}
	return &LocalArbiter{
		maxBytes:   maxBytes,
		blockBytes: blockBytes,
		logger:     slog.Default(),
	}
}

// WithLogger sets the logger used for underflow warnings.
func (a *LocalArbiter) WithLogger(logger *slog.Logger) *LocalArbiter {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// RequestMoreBytes grants min(block, remaining) bytes, or 0 when exhausted.
func (a *LocalArbiter) RequestMoreBytes() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current >= a.maxBytes {
		return 0
	}
	grant := min(a.maxBytes-a.current, a.blockBytes)
	a.current += grant
	return grant
}

// Release returns bytes to the pool. Releasing more than was granted clamps
// the pool at zero.
func (a *LocalArbiter) Release(bytes uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if bytes > a.current {
		observability.LogArbiterUnderflow(a.logger, a.current, bytes)
		a.current = 0
		return
	}
	a.current -= bytes
}

// Granted returns the bytes currently handed out.
func (a *LocalArbiter) Granted() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// MaxBytes returns the arbiter ceiling.
func (a *LocalArbiter) MaxBytes() uint64 {
	return a.maxBytes
}
