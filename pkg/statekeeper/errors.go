package statekeeper

import (
	"errors"
	"fmt"
)

// Sentinel errors for completion reporting.
var (
	// ErrUnknownCheckpoint indicates a report against an ID that was never
	// issued or has already been emitted. It means an upstream invariant was
	// violated and the caller should stop the pipeline.
	ErrUnknownCheckpoint = errors.New("unknown checkpoint")

	// ErrOverReported indicates more records were reported written than were
	// associated with the checkpoint.
	ErrOverReported = errors.New("more records reported than associated")

	// ErrInvalidCount indicates a report count below one.
	ErrInvalidCount = errors.New("record count must be at least 1")
)

// Sentinel errors for checkpoint ingestion.
var (
	// ErrTopologyMismatch indicates a marker whose kind contradicts the
	// topology fixed by the first marker.
	ErrTopologyMismatch = errors.New("checkpoint topology mismatch")
)

// UnknownCheckpointError reports a completion against an unknown ID.
type UnknownCheckpointError struct {
	// ID is the ID the caller reported against.
	ID CheckpointID
	// Count is the number of records reported.
	Count int64
}

// Error implements the error interface.
func (e *UnknownCheckpointError) Error() string {
	return fmt.Sprintf("report %d records for checkpoint %d: %v", e.Count, e.ID, ErrUnknownCheckpoint)
}

// Unwrap returns ErrUnknownCheckpoint.
func (e *UnknownCheckpointError) Unwrap() error {
	return ErrUnknownCheckpoint
}

// TopologyMismatchError reports a marker that disagrees with the established topology.
type TopologyMismatchError struct {
	Established Topology
	Kind        MarkerKind
}

// Error implements the error interface.
func (e *TopologyMismatchError) Error() string {
	return fmt.Sprintf("%s marker under %s topology: %v", e.Kind, e.Established, ErrTopologyMismatch)
}

// Unwrap returns ErrTopologyMismatch.
func (e *TopologyMismatchError) Unwrap() error {
	return ErrTopologyMismatch
}
