package statekeeper

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters_AddAndDecrement(t *testing.T) {
	c := newCounters()
	c.register(1)
	c.add(1, 3)

	require.NoError(t, c.decrement(1, 2))
	live, ok := c.liveCount(1)
	require.True(t, ok)
	assert.Equal(t, int64(1), live)

	assert.ErrorIs(t, c.decrement(1, 2), ErrOverReported)
	live, _ = c.liveCount(1)
	assert.Equal(t, int64(1), live, "refused decrement leaves the counter")

	assert.ErrorIs(t, c.decrement(7, 1), ErrUnknownCheckpoint)
}

func TestCounters_TakeKeepsStats(t *testing.T) {
	c := newCounters()
	c.register(1)
	c.add(1, 5)
	require.NoError(t, c.decrement(1, 5))

	assert.Equal(t, uint64(5), c.take(1))
	_, ok := c.liveCount(1)
	assert.False(t, ok)
	assert.Empty(t, c.stats)
}

func TestCounters_Merge(t *testing.T) {
	c := newCounters()
	for id := CheckpointID(1); id <= 3; id++ {
		c.register(id)
		c.add(id, uint64(id))
	}
	require.NoError(t, c.decrement(2, 1))

	c.register(10)
	c.merge([]CheckpointID{1, 2, 3}, 10)

	live, ok := c.liveCount(10)
	require.True(t, ok)
	assert.Equal(t, int64(5), live)
	assert.Equal(t, uint64(6), c.stats[10])
	assert.Len(t, c.live, 1)
	assert.Equal(t, int64(5), c.liveTotal())
}

func TestIDAllocator_Concurrent(t *testing.T) {
	var a idAllocator
	assert.Equal(t, CheckpointID(1), a.next())

	const workers = 20
	const each = 500
	seen := make(chan CheckpointID, workers*each)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < each; j++ {
				seen <- a.next()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[CheckpointID]struct{}, workers*each)
	for id := range seen {
		unique[id] = struct{}{}
	}
	assert.Len(t, unique, workers*each)
	assert.Equal(t, CheckpointID(workers*each+1), a.next())
}
