package statekeeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/randalmurphal/statekeeper/pkg/statekeeper/memory"
	"github.com/randalmurphal/statekeeper/pkg/statekeeper/observability"
	"go.opentelemetry.io/otel/attribute"
)

// Budget reserves and releases the bytes buffered checkpoint markers occupy.
type Budget interface {
	// Reserve blocks until n bytes are available or ctx is done.
	Reserve(ctx context.Context, n uint64) error
	// Release returns n previously reserved bytes.
	Release(n uint64)
	// Usage reports allocated and used bytes.
	Usage() (allocated, used uint64)
}

// Manager tracks which checkpoint markers are safe to acknowledge.
//
// Records are associated with the open checkpoint of their substream.
// A marker closes that checkpoint and opens the next one. Writers report
// completions against the IDs they were handed, and Flush emits closed
// checkpoints whose records are all written, in arrival order per substream.
//
// All methods are safe for concurrent use.
type Manager struct {
	id                string
	epoch             int64
	budget            Budget
	fallbackNamespace string
	logger            *slog.Logger
	metrics           observability.MetricsRecorder
	spans             observability.SpanManager

	ids idAllocator

	mu       sync.Mutex
	topology Topology
	queues   *substreamQueues
	counters *counters
	records  map[CheckpointID]checkpointRecord
	// aliases maps IDs issued before conversion to the retroactive ID.
	aliases  map[CheckpointID]CheckpointID
	arrivals uint64
}

// New creates a Manager drawing marker memory from budget. A nil budget gets
// a coordinator over a LocalArbiter with memory.DefaultSettings, sharing the
// manager's logger and metrics.
func New(budget Budget, opts ...Option) *Manager {
	cfg := defaultManagerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.id == "" {
		cfg.id = newManagerID()
	}
	logger := observability.EnrichLogger(cfg.logger, cfg.id)
	metrics := cfg.metrics()
	if budget == nil {
		settings := memory.DefaultSettings()
		budget = memory.NewCoordinator(settings.NewArbiter(), append(settings.Options(),
			memory.WithCoordinatorLogger(logger),
			memory.WithCoordinatorMetrics(metrics),
		)...)
	}

	return &Manager{
		id:                cfg.id,
		epoch:             time.Now().UnixNano(),
		budget:            budget,
		fallbackNamespace: cfg.fallbackNamespace,
		logger:            logger,
		metrics:           metrics,
		spans:             cfg.spans(),
		queues:            newSubstreamQueues(),
		counters:          newCounters(),
		records:           make(map[CheckpointID]checkpointRecord),
		aliases:           make(map[CheckpointID]CheckpointID),
	}
}

var _ Budget = (*memory.Coordinator)(nil)

// ID returns the manager instance ID.
func (m *Manager) ID() string {
	return m.id
}

// Epoch identifies this manager's run. It is taken from the clock at
// construction, so a manager started later has a larger epoch. Arrival
// numbers are only comparable within one epoch.
func (m *Manager) Epoch() int64 {
	return m.epoch
}

// Topology returns the current topology.
func (m *Manager) Topology() Topology {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.topology
}

// AssociateRecord ties one record of key's substream to the open checkpoint
// and returns its ID. Writers pass the ID to ReportWritten once the record is
// durable.
func (m *Manager) AssociateRecord(key SubstreamKey) CheckpointID {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.openIDLocked(m.refLocked(key))
	m.counters.add(id, 1)
	return id
}

// CurrentCheckpoint returns the open checkpoint for key without associating
// a record.
func (m *Manager) CurrentCheckpoint(key SubstreamKey) CheckpointID {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.openIDLocked(m.refLocked(key))
}

// IngestCheckpoint closes the open checkpoint of the marker's substream and
// opens a new one.
//
// sizeBytes is reserved from the budget first, which may block until a
// Flush frees memory or ctx is done. fallbackNamespace replaces an empty
// marker namespace; when it is empty too, the WithFallbackNamespace value is
// used.
//
// A marker whose kind contradicts the established topology returns a
// *TopologyMismatchError before any memory is reserved. If the topology is
// established by a concurrent call while this one waits for memory, the
// mismatch is detected after the wait and the reservation is given back.
func (m *Manager) IngestCheckpoint(ctx context.Context, marker Marker, sizeBytes uint64, fallbackNamespace string) (err error) {
	ctx, span := m.spans.StartIngestSpan(ctx, m.id, marker.Stream.String())
	defer func() {
		m.spans.EndSpanWithError(span, err)
	}()

	m.mu.Lock()
	err = m.checkTopologyLocked(marker.Kind)
	m.mu.Unlock()
	if err != nil {
		m.metrics.RecordReportError(ctx, "topology_mismatch")
		return err
	}

	if err := m.budget.Reserve(ctx, sizeBytes); err != nil {
		return fmt.Errorf("ingest checkpoint for %s: %w", marker.Stream, err)
	}

	m.mu.Lock()
	if err := m.resolveTopologyLocked(ctx, marker.Kind); err != nil {
		m.mu.Unlock()
		m.budget.Release(sizeBytes)
		m.metrics.RecordReportError(ctx, "topology_mismatch")
		return err
	}

	key := marker.Stream
	if key.Namespace == "" {
		key.Namespace = fallbackNamespace
		if key.Namespace == "" {
			key.Namespace = m.fallbackNamespace
		}
	}
	ref := m.refLocked(key)

	id := m.openIDLocked(ref)
	m.arrivals++
	arrival := m.arrivals
	m.records[id] = checkpointRecord{
		marker:    marker,
		arrival:   arrival,
		sizeBytes: sizeBytes,
	}
	m.openLocked(ref)
	topology := m.topology
	m.mu.Unlock()

	observability.LogCheckpointTracked(m.logger, ref.String(), uint64(id), arrival, sizeBytes)
	m.metrics.RecordCheckpointTracked(ctx, topology.String(), sizeBytes)
	m.spans.AddSpanEvent(ctx, "checkpoint.tracked",
		attribute.Int64("checkpoint_id", int64(id)),
		attribute.Int64("arrival", int64(arrival)),
	)
	return nil
}

// ReportWritten records that n records associated with id are durable.
// It never emits; call Flush to harvest checkpoints that became ready.
//
// IDs issued before a switch to unified topology stay valid and count
// against the retroactive checkpoint that replaced them.
func (m *Manager) ReportWritten(id CheckpointID, n int64) error {
	if n < 1 {
		return fmt.Errorf("report %d records for checkpoint %d: %w", n, id, ErrInvalidCount)
	}

	m.mu.Lock()
	target := id
	if retro, ok := m.aliases[id]; ok {
		target = retro
	}
	err := m.counters.decrement(target, n)
	m.mu.Unlock()

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnknownCheckpoint):
		observability.LogUnknownCheckpoint(m.logger, uint64(id), n)
		m.metrics.RecordReportError(context.Background(), "unknown_checkpoint")
		return &UnknownCheckpointError{ID: id, Count: n}
	default:
		m.metrics.RecordReportError(context.Background(), "over_reported")
		return fmt.Errorf("report %d records for checkpoint %d: %w", n, id, err)
	}
}

// Flush emits every checkpoint that is safe to acknowledge and releases their
// memory. Each queue is scanned from its head and stops at the first
// checkpoint that is still open or has pending records, so checkpoints of one
// substream come out in arrival order. The result is never nil.
func (m *Manager) Flush(ctx context.Context) []EmittedCheckpoint {
	ctx, span := m.spans.StartFlushSpan(ctx, m.id)
	defer m.spans.EndSpanWithError(span, nil)
	elapsed := observability.TimedOperation()

	emitted := make([]EmittedCheckpoint, 0)
	var freed uint64

	m.mu.Lock()
	m.queues.each(func(ref SubstreamRef, q *deque.Deque[CheckpointID]) {
		for q.Len() > 0 {
			head := q.Front()
			if live, ok := m.counters.liveCount(head); !ok || live != 0 {
				return
			}
			rec, ok := m.records[head]
			if !ok {
				return
			}
			q.PopFront()
			delete(m.records, head)
			emitted = append(emitted, EmittedCheckpoint{
				ID:          head,
				Marker:      rec.marker,
				Substream:   ref,
				RecordCount: m.counters.take(head),
				Arrival:     rec.arrival,
				SizeBytes:   rec.sizeBytes,
			})
			freed += rec.sizeBytes
		}
	})
	m.mu.Unlock()

	m.budget.Release(freed)

	duration := elapsed()
	observability.LogFlush(m.logger, len(emitted), freed, duration)
	m.metrics.RecordFlush(ctx, len(emitted), freed, duration)
	return emitted
}

// Snapshot returns a consistent view of the bookkeeping plus budget usage.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	s := Snapshot{
		Topology:           m.topology,
		Substreams:         m.queues.len(),
		PendingCheckpoints: len(m.records),
		LiveRecords:        m.counters.liveTotal(),
	}
	m.mu.Unlock()

	s.Allocated, s.Used = m.budget.Usage()
	return s
}

// refLocked resolves the queue a key maps to under the current topology.
func (m *Manager) refLocked(key SubstreamKey) SubstreamRef {
	if m.topology == TopologyUnified {
		return UnifiedRef
	}
	return PerStream(key)
}

// openIDLocked returns the tail of ref's queue, registering ref on first use.
func (m *Manager) openIDLocked(ref SubstreamRef) CheckpointID {
	q, ok := m.queues.get(ref)
	if !ok {
		q = m.queues.add(ref)
		m.pushNewLocked(q)
	}
	return q.Back()
}

// openLocked starts a fresh checkpoint at the tail of ref's queue.
func (m *Manager) openLocked(ref SubstreamRef) {
	q, ok := m.queues.get(ref)
	if !ok {
		q = m.queues.add(ref)
	}
	m.pushNewLocked(q)
}

func (m *Manager) pushNewLocked(q *deque.Deque[CheckpointID]) {
	id := m.ids.next()
	m.counters.register(id)
	q.PushBack(id)
}

// resolveTopologyLocked fixes the topology on the first marker and rejects
// markers that disagree with it afterwards.
func (m *Manager) resolveTopologyLocked(ctx context.Context, kind MarkerKind) error {
	if err := m.checkTopologyLocked(kind); err != nil {
		return err
	}
	if m.topology != TopologyUndetermined {
		return nil
	}
	if kind.topology() == TopologyPerSubstream {
		m.topology = TopologyPerSubstream
		observability.LogTopologyResolved(m.logger, m.topology.String(), 0)
		return nil
	}
	m.convertToUnifiedLocked(ctx)
	return nil
}

// checkTopologyLocked reports whether kind contradicts the established
// topology without changing anything.
func (m *Manager) checkTopologyLocked(kind MarkerKind) error {
	if m.topology == TopologyUndetermined || m.topology == kind.topology() {
		return nil
	}
	return &TopologyMismatchError{Established: m.topology, Kind: kind}
}

// convertToUnifiedLocked collapses every per-substream queue into a single
// retroactive checkpoint carrying their combined counts. IDs issued so far
// become aliases of it.
func (m *Manager) convertToUnifiedLocked(ctx context.Context) {
	_, span := m.spans.StartConversionSpan(ctx, m.id, TopologyUnified.String())

	aliased := m.queues.ids()
	retro := m.ids.next()
	m.counters.register(retro)
	m.counters.merge(aliased, retro)
	for _, id := range aliased {
		m.aliases[id] = retro
	}
	m.queues.reset(UnifiedRef, retro)
	m.topology = TopologyUnified

	observability.LogTopologyResolved(m.logger, m.topology.String(), len(aliased))
	m.spans.AddSpanEvent(ctx, "topology.converted",
		attribute.Int("aliased_ids", len(aliased)),
		attribute.Int64("retroactive_id", int64(retro)),
	)
	m.spans.EndSpanWithError(span, nil)
}
