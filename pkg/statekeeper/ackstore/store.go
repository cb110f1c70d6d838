// Package ackstore records the last acknowledged checkpoint of every
// substream so the surrounding pipeline can resume from it after a crash.
//
// The manager itself keeps nothing on disk; what was acknowledged upstream is
// the only state worth recovering.
package ackstore

import (
	"errors"
	"time"
)

// Store persists acknowledgments keyed by (syncID, substream).
// Implementations must be safe for concurrent use.
type Store interface {
	// Save records ack unless the stored ack for the same key supersedes it
	// or is the same (see Ack.Supersedes), in which case Save is a no-op.
	Save(ack Ack) error

	// Latest returns the stored ack for a substream.
	// Returns ErrNotFound if nothing was acknowledged yet.
	Latest(syncID, substream string) (Ack, error)

	// List returns metadata for every substream of a sync, ordered by Epoch
	// then Arrival.
	// Returns an empty slice (not an error) for an unknown sync.
	List(syncID string) ([]Info, error)

	// DeleteSync removes every ack of a sync.
	DeleteSync(syncID string) error

	// Close releases any resources.
	Close() error
}

// Info describes a stored ack without its payload.
type Info struct {
	SyncID       string
	Substream    string
	CheckpointID uint64
	Epoch        int64
	Arrival      uint64
	RecordCount  uint64
	AckedAt      time.Time
	Size         int64 // payload length in bytes
}

// Sentinel errors for ack storage.
var (
	// ErrNotFound indicates no ack exists for the key.
	ErrNotFound = errors.New("ack not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("ack store closed")
)
