package ackstore_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/randalmurphal/statekeeper/pkg/statekeeper/ackstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Len(t *testing.T) {
	store := ackstore.NewMemoryStore()
	assert.Equal(t, 0, store.Len())

	require.NoError(t, store.Save(ackstore.New("sync-1", "a", 1, 1, nil)))
	require.NoError(t, store.Save(ackstore.New("sync-1", "a", 2, 2, nil)))
	require.NoError(t, store.Save(ackstore.New("sync-2", "a", 3, 3, nil)))
	assert.Equal(t, 2, store.Len(), "one ack per substream per sync")

	require.NoError(t, store.DeleteSync("sync-1"))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_CopiesPayload(t *testing.T) {
	store := ackstore.NewMemoryStore()

	payload := []byte("original")
	require.NoError(t, store.Save(ackstore.New("sync-1", "a", 1, 1, payload)))
	payload[0] = 'X'

	got, err := store.Latest("sync-1", "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got.Payload)

	got.Payload[0] = 'Y'
	again, err := store.Latest("sync-1", "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again.Payload)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := ackstore.NewMemoryStore()

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			sub := fmt.Sprintf("s-%d", i%5)
			for j := 1; j <= 50; j++ {
				_ = store.Save(ackstore.New("sync-1", sub, uint64(j), uint64(i*100+j), nil))
				_, _ = store.List("sync-1")
			}
		}(i)
	}
	wg.Wait()

	infos, err := store.List("sync-1")
	require.NoError(t, err)
	require.Len(t, infos, 5)
	for _, info := range infos {
		// The highest arrival per substream comes from the last worker that maps to it.
		assert.GreaterOrEqual(t, info.Arrival, uint64(15*100+50))
	}
}
