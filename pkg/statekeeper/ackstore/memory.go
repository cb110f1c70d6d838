package ackstore

import (
	"cmp"
	"slices"
	"sync"
)

// MemoryStore keeps acks in memory. Useful in tests; nothing survives the
// process.
type MemoryStore struct {
	mu     sync.RWMutex
	acks   map[string]map[string]Ack // syncID -> substream -> ack
	closed bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		acks: make(map[string]map[string]Ack),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(ack Ack) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	bySub := m.acks[ack.SyncID]
	if bySub == nil {
		bySub = make(map[string]Ack)
		m.acks[ack.SyncID] = bySub
	}
	if prev, ok := bySub[ack.Substream]; ok && !ack.Supersedes(prev) {
		return nil
	}

	ack.Payload = slices.Clone(ack.Payload)
	bySub[ack.Substream] = ack
	return nil
}

// Latest implements Store.
func (m *MemoryStore) Latest(syncID, substream string) (Ack, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return Ack{}, ErrStoreClosed
	}

	ack, ok := m.acks[syncID][substream]
	if !ok {
		return Ack{}, ErrNotFound
	}
	ack.Payload = slices.Clone(ack.Payload)
	return ack, nil
}

// List implements Store.
func (m *MemoryStore) List(syncID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	infos := make([]Info, 0, len(m.acks[syncID]))
	for _, ack := range m.acks[syncID] {
		infos = append(infos, ack.info(int64(len(ack.Payload))))
	}
	slices.SortFunc(infos, func(a, b Info) int {
		if c := cmp.Compare(a.Epoch, b.Epoch); c != 0 {
			return c
		}
		return cmp.Compare(a.Arrival, b.Arrival)
	})
	return infos, nil
}

// DeleteSync implements Store.
func (m *MemoryStore) DeleteSync(syncID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.acks, syncID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.acks = nil
	return nil
}

// Len returns the number of stored acks across all syncs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, bySub := range m.acks {
		n += len(bySub)
	}
	return n
}
