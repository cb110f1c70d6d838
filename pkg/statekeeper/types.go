package statekeeper

import (
	"strconv"
)

// CheckpointID identifies one checkpoint slot. IDs strictly increase, start
// at 1 and are never reused within a Manager.
type CheckpointID uint64

// String renders the ID in decimal.
func (id CheckpointID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// SubstreamKey names a logical substream. Keys compare by value.
type SubstreamKey struct {
	Namespace string
	Name      string
}

// IsZero reports whether both fields are empty.
func (k SubstreamKey) IsZero() bool {
	return k.Namespace == "" && k.Name == ""
}

// String renders the key as "namespace.name", or just the name when the
// namespace is empty.
func (k SubstreamKey) String() string {
	if k.Namespace == "" {
		return k.Name
	}
	return k.Namespace + "." + k.Name
}

// SubstreamRef is the queue a checkpoint belongs to: either one substream or
// the single unified queue used once checkpoints are global.
//
// The zero value is PerStream of the zero key. SubstreamRef is comparable and
// usable as a map key.
type SubstreamRef struct {
	key     SubstreamKey
	unified bool
}

// UnifiedRef is the ref every key resolves to under TopologyUnified.
var UnifiedRef = SubstreamRef{unified: true}

// PerStream returns the ref for one substream.
func PerStream(key SubstreamKey) SubstreamRef {
	return SubstreamRef{key: key}
}

// IsUnified reports whether r is UnifiedRef.
func (r SubstreamRef) IsUnified() bool {
	return r.unified
}

// Key returns the substream key. ok is false for UnifiedRef.
func (r SubstreamRef) Key() (key SubstreamKey, ok bool) {
	if r.unified {
		return SubstreamKey{}, false
	}
	return r.key, true
}

// String renders the substream key, or "*" for UnifiedRef.
func (r SubstreamRef) String() string {
	if r.unified {
		return "*"
	}
	return r.key.String()
}

// MarkerKind is the scope a checkpoint marker declares.
type MarkerKind int

const (
	// KindLegacy is a marker without a declared scope. It is treated as global.
	KindLegacy MarkerKind = iota
	// KindStream is scoped to a single substream.
	KindStream
	// KindGlobal covers every substream at once.
	KindGlobal
)

// String returns the kind name.
func (k MarkerKind) String() string {
	switch k {
	case KindStream:
		return "stream"
	case KindGlobal:
		return "global"
	default:
		return "legacy"
	}
}

// topology maps the kind onto the topology it implies. Unrecognised kinds
// behave like KindLegacy.
func (k MarkerKind) topology() Topology {
	if k == KindStream {
		return TopologyPerSubstream
	}
	return TopologyUnified
}

// Marker is a checkpoint marker as received from upstream. Payload is opaque
// and must not be modified by the caller after ingestion.
type Marker struct {
	Kind    MarkerKind
	Stream  SubstreamKey
	Payload []byte
}

// Topology is how checkpoints are grouped. It is decided by the first marker
// and never changes afterwards.
type Topology int

const (
	TopologyUndetermined Topology = iota
	TopologyPerSubstream
	TopologyUnified
)

// String returns the topology name.
func (t Topology) String() string {
	switch t {
	case TopologyPerSubstream:
		return "per_substream"
	case TopologyUnified:
		return "unified"
	default:
		return "undetermined"
	}
}

// checkpointRecord is the stored marker for a checkpoint slot.
type checkpointRecord struct {
	marker    Marker
	arrival   uint64
	sizeBytes uint64
}

// EmittedCheckpoint is a checkpoint that is safe to acknowledge upstream.
type EmittedCheckpoint struct {
	// ID is the slot the marker closed.
	ID CheckpointID
	// Marker is the original marker.
	Marker Marker
	// Substream is the queue the checkpoint was emitted from.
	Substream SubstreamRef
	// RecordCount is every record ever associated with the checkpoint.
	RecordCount uint64
	// Arrival orders checkpoints by ingestion across the whole Manager.
	Arrival uint64
	// SizeBytes is the budget the checkpoint held until emission.
	SizeBytes uint64
}

// Snapshot is a point-in-time view of a Manager's bookkeeping.
type Snapshot struct {
	Topology           Topology
	Substreams         int
	PendingCheckpoints int
	LiveRecords        int64
	Allocated          uint64
	Used               uint64
}
