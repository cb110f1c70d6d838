package statekeeper

import (
	"context"
	"errors"
	"fmt"

	"github.com/randalmurphal/statekeeper/pkg/statekeeper/ackstore"
	"github.com/randalmurphal/statekeeper/pkg/statekeeper/observability"
)

// Acknowledger flushes a Manager and records what was emitted, so a
// restarted pipeline knows where each substream left off.
type Acknowledger struct {
	manager *Manager
	store   ackstore.Store
	syncID  string
}

// NewAcknowledger binds a manager to a store under syncID.
func NewAcknowledger(manager *Manager, store ackstore.Store, syncID string) *Acknowledger {
	return &Acknowledger{
		manager: manager,
		store:   store,
		syncID:  syncID,
	}
}

// Acknowledge flushes the manager and saves every emitted checkpoint.
// The emitted checkpoints are always returned, even when saving fails;
// err is the first save failure. Later failures are only logged.
func (a *Acknowledger) Acknowledge(ctx context.Context) ([]EmittedCheckpoint, error) {
	emitted := a.manager.Flush(ctx)

	var firstErr error
	for _, cp := range emitted {
		ack := ackstore.New(a.syncID, cp.Substream.String(), uint64(cp.ID), cp.Arrival, cp.Marker.Payload).
			WithEpoch(a.manager.Epoch()).
			WithRecordCount(cp.RecordCount)
		if err := a.store.Save(ack); err != nil {
			observability.LogAckError(a.manager.logger, cp.Substream.String(), err)
			a.manager.metrics.RecordReportError(ctx, "ack_persist")
			if firstErr == nil {
				firstErr = fmt.Errorf("acknowledge checkpoint %d of %s: %w", cp.ID, cp.Substream, err)
			}
		}
	}
	return emitted, firstErr
}

// Resume returns the last acknowledged marker payload for ref. ok is false
// when nothing was acknowledged for it yet.
func (a *Acknowledger) Resume(ref SubstreamRef) (payload []byte, ok bool, err error) {
	ack, err := a.store.Latest(a.syncID, ref.String())
	if errors.Is(err, ackstore.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("resume %s: %w", ref, err)
	}
	return ack.Payload, true, nil
}
