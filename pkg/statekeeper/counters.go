package statekeeper

// counters holds the live and stats tables. Not safe for concurrent use; the
// Manager mutex guards it.
//
// live counts records still waiting to be written. stats counts every record
// ever associated and only goes away when the checkpoint is emitted.
type counters struct {
	live  map[CheckpointID]int64
	stats map[CheckpointID]uint64
}

func newCounters() *counters {
	return &counters{
		live:  make(map[CheckpointID]int64),
		stats: make(map[CheckpointID]uint64),
	}
}

func (c *counters) register(id CheckpointID) {
	c.live[id] = 0
	c.stats[id] = 0
}

// add associates n records with a registered id.
func (c *counters) add(id CheckpointID, n uint64) {
	c.live[id] += int64(n)
	c.stats[id] += n
}

// decrement subtracts n written records. Going below zero is refused and
// leaves the counter untouched.
func (c *counters) decrement(id CheckpointID, n int64) error {
	live, ok := c.live[id]
	if !ok {
		return ErrUnknownCheckpoint
	}
	if n > live {
		return ErrOverReported
	}
	c.live[id] = live - n
	return nil
}

func (c *counters) liveCount(id CheckpointID) (int64, bool) {
	n, ok := c.live[id]
	return n, ok
}

// take returns the stats count and forgets the id.
func (c *counters) take(id CheckpointID) uint64 {
	n := c.stats[id]
	delete(c.live, id)
	delete(c.stats, id)
	return n
}

// merge folds every id in from into into, which must already be registered.
func (c *counters) merge(from []CheckpointID, into CheckpointID) {
	for _, id := range from {
		c.live[into] += c.live[id]
		c.stats[into] += c.stats[id]
		delete(c.live, id)
		delete(c.stats, id)
	}
}

func (c *counters) liveTotal() int64 {
	var total int64
	for _, n := range c.live {
		total += n
	}
	return total
}
