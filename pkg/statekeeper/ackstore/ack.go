package ackstore

import (
	"encoding/json"
	"fmt"
	"time"
)

// Version is the current encoding version of Ack.
const Version = 1

// Ack is one acknowledged checkpoint.
type Ack struct {
	Version      int       `json:"version"`
	SyncID       string    `json:"sync_id"`
	Substream    string    `json:"substream"`
	CheckpointID uint64    `json:"checkpoint_id"`
	Epoch        int64     `json:"epoch"`
	Arrival      uint64    `json:"arrival"`
	RecordCount  uint64    `json:"record_count"`
	AckedAt      time.Time `json:"acked_at"`

	// Payload is the original marker payload, returned verbatim on resume.
	Payload []byte `json:"payload"`
}

// New creates an Ack stamped with the current time.
func New(syncID, substream string, checkpointID, arrival uint64, payload []byte) Ack {
	return Ack{
		Version:      Version,
		SyncID:       syncID,
		Substream:    substream,
		CheckpointID: checkpointID,
		Arrival:      arrival,
		AckedAt:      time.Now().UTC(),
		Payload:      payload,
	}
}

// WithEpoch sets the run the ack belongs to. Arrival numbers restart with
// every run, so a later epoch supersedes any arrival of an earlier one.
func (a Ack) WithEpoch(epoch int64) Ack {
	a.Epoch = epoch
	return a
}

// Supersedes reports whether a should replace prev for the same substream:
// a later epoch, or the same epoch and a later arrival.
func (a Ack) Supersedes(prev Ack) bool {
	if a.Epoch != prev.Epoch {
		return a.Epoch > prev.Epoch
	}
	return a.Arrival > prev.Arrival
}

// WithRecordCount sets the number of records the checkpoint covered.
func (a Ack) WithRecordCount(n uint64) Ack {
	a.RecordCount = n
	return a
}

// Marshal encodes the ack as JSON.
func (a Ack) Marshal() ([]byte, error) {
	return json.Marshal(a)
}

// Unmarshal decodes an ack and rejects versions newer than Version.
func Unmarshal(data []byte) (Ack, error) {
	var a Ack
	if err := json.Unmarshal(data, &a); err != nil {
		return Ack{}, fmt.Errorf("decode ack: %w", err)
	}
	if a.Version > Version {
		return Ack{}, fmt.Errorf("decode ack: version %d newer than %d", a.Version, Version)
	}
	return a, nil
}

func (a Ack) info(size int64) Info {
	return Info{
		SyncID:       a.SyncID,
		Substream:    a.Substream,
		CheckpointID: a.CheckpointID,
		Epoch:        a.Epoch,
		Arrival:      a.Arrival,
		RecordCount:  a.RecordCount,
		AckedAt:      a.AckedAt,
		Size:         size,
	}
}
