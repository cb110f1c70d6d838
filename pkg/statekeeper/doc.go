/*
Package statekeeper decides when a checkpoint marker is safe to acknowledge
upstream.

# Overview

A pipeline receives data records and checkpoint markers interleaved on one
channel, and writes records asynchronously in batches. A marker may only be
acknowledged once every record that preceded it has been durably written.
The Manager reference-counts records per checkpoint and hands back the
markers whose counts reached zero, in arrival order.

# Basic Usage

	settings := memory.DefaultSettings()
	coord := memory.NewCoordinator(settings.NewArbiter(), settings.Options()...)
	mgr := statekeeper.New(coord, statekeeper.WithLogger(logger))

	// Producer
	id := mgr.AssociateRecord(statekeeper.SubstreamKey{Namespace: "public", Name: "users"})
	batch.Add(record, id)

	err := mgr.IngestCheckpoint(ctx, statekeeper.Marker{
	    Kind:    statekeeper.KindStream,
	    Stream:  statekeeper.SubstreamKey{Namespace: "public", Name: "users"},
	    Payload: raw,
	}, uint64(len(raw)), "")

	// Writer, after the batch is durable
	err = mgr.ReportWritten(id, 1)

	// Anyone, periodically
	for _, cp := range mgr.Flush(ctx) {
	    emit(cp.Marker.Payload)
	}

# Topology

The first marker fixes the topology. A KindStream marker keeps one queue per
substream. A KindGlobal or KindLegacy marker collapses everything into one
unified queue: the IDs handed out so far are folded into a single retroactive
checkpoint and stay valid for ReportWritten. A later marker of the other
family fails with *TopologyMismatchError.

# Memory

Every marker holds its declared size against a Budget until it is flushed.
IngestCheckpoint blocks while the budget is exhausted; pass a context with a
deadline to bound the wait.

# Acknowledgment

An Acknowledger wraps Flush and saves each emitted checkpoint to an
ackstore.Store, keyed by sync ID and substream, so a restarted pipeline can
resume from the last acknowledged marker. Each ack carries the manager's
Epoch, so acks from a restarted manager replace those of the previous run
even though its arrival numbers start over.
*/
package statekeeper
