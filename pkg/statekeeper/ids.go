package statekeeper

import "sync/atomic"

// idAllocator hands out CheckpointIDs starting at 1.
type idAllocator struct {
	last atomic.Uint64
}

func (a *idAllocator) next() CheckpointID {
	return CheckpointID(a.last.Add(1))
}
