package ackstore_test

import (
	"testing"

	"github.com/randalmurphal/statekeeper/pkg/statekeeper/ackstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFactory func(t *testing.T) ackstore.Store

// storeContractTest runs the behaviour every Store must share.
func storeContractTest(t *testing.T, name string, factory storeFactory) {
	t.Run(name+"/Save_and_Latest", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		ack := ackstore.New("sync-1", "public.users", 4, 7, []byte(`{"cursor":42}`)).WithRecordCount(3)
		require.NoError(t, store.Save(ack))

		got, err := store.Latest("sync-1", "public.users")
		require.NoError(t, err)
		assert.Equal(t, ack.CheckpointID, got.CheckpointID)
		assert.Equal(t, ack.Arrival, got.Arrival)
		assert.Equal(t, uint64(3), got.RecordCount)
		assert.Equal(t, ack.Payload, got.Payload)
		assert.Equal(t, ackstore.Version, got.Version)
		assert.WithinDuration(t, ack.AckedAt, got.AckedAt, 0)
	})

	t.Run(name+"/Latest_NotFound", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		_, err := store.Latest("sync-1", "missing")
		assert.ErrorIs(t, err, ackstore.ErrNotFound)
	})

	t.Run(name+"/Save_Advances", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save(ackstore.New("sync-1", "s", 1, 1, []byte("first"))))
		require.NoError(t, store.Save(ackstore.New("sync-1", "s", 5, 3, []byte("second"))))

		got, err := store.Latest("sync-1", "s")
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), got.Payload)
		assert.Equal(t, uint64(5), got.CheckpointID)
	})

	t.Run(name+"/Save_IgnoresOlderArrivalInSameEpoch", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save(ackstore.New("sync-1", "s", 5, 3, []byte("newer")).WithEpoch(10)))
		require.NoError(t, store.Save(ackstore.New("sync-1", "s", 1, 1, []byte("older")).WithEpoch(10)))
		require.NoError(t, store.Save(ackstore.New("sync-1", "s", 9, 3, []byte("same arrival")).WithEpoch(10)))

		got, err := store.Latest("sync-1", "s")
		require.NoError(t, err)
		assert.Equal(t, []byte("newer"), got.Payload)
	})

	t.Run(name+"/Save_LaterEpochWinsOverHigherArrival", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save(ackstore.New("sync-1", "s", 30, 3, []byte("run1-c")).WithEpoch(100)))
		require.NoError(t, store.Save(ackstore.New("sync-1", "s", 2, 1, []byte("run2-a")).WithEpoch(200)))

		got, err := store.Latest("sync-1", "s")
		require.NoError(t, err)
		assert.Equal(t, []byte("run2-a"), got.Payload)
		assert.Equal(t, int64(200), got.Epoch)
		assert.Equal(t, uint64(1), got.Arrival)

		require.NoError(t, store.Save(ackstore.New("sync-1", "s", 31, 4, []byte("run1-late")).WithEpoch(100)))
		got, err = store.Latest("sync-1", "s")
		require.NoError(t, err)
		assert.Equal(t, []byte("run2-a"), got.Payload, "an earlier run never overwrites a later one")

		infos, err := store.List("sync-1")
		require.NoError(t, err)
		require.Len(t, infos, 1)
		assert.Equal(t, int64(200), infos[0].Epoch)
	})

	t.Run(name+"/List_OrderedByEpochThenArrival", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save(ackstore.New("sync-1", "old", 1, 9, nil).WithEpoch(1)))
		require.NoError(t, store.Save(ackstore.New("sync-1", "new-b", 3, 2, nil).WithEpoch(2)))
		require.NoError(t, store.Save(ackstore.New("sync-1", "new-a", 2, 1, nil).WithEpoch(2)))

		infos, err := store.List("sync-1")
		require.NoError(t, err)
		require.Len(t, infos, 3)
		assert.Equal(t, "old", infos[0].Substream)
		assert.Equal(t, "new-a", infos[1].Substream)
		assert.Equal(t, "new-b", infos[2].Substream)
	})

	t.Run(name+"/List_Empty", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		infos, err := store.List("nothing")
		require.NoError(t, err)
		assert.Empty(t, infos)
	})

	t.Run(name+"/List_OrderedByArrival", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save(ackstore.New("sync-1", "c", 30, 9, []byte("ccc"))))
		require.NoError(t, store.Save(ackstore.New("sync-1", "a", 10, 2, []byte("a"))))
		require.NoError(t, store.Save(ackstore.New("sync-1", "b", 20, 5, []byte("bb"))))
		require.NoError(t, store.Save(ackstore.New("sync-2", "a", 11, 1, nil)))

		infos, err := store.List("sync-1")
		require.NoError(t, err)
		require.Len(t, infos, 3)

		assert.Equal(t, "a", infos[0].Substream)
		assert.Equal(t, "b", infos[1].Substream)
		assert.Equal(t, "c", infos[2].Substream)
		assert.Equal(t, int64(2), infos[1].Size)
		assert.Equal(t, uint64(20), infos[1].CheckpointID)
		assert.Equal(t, "sync-1", infos[2].SyncID)
		assert.False(t, infos[0].AckedAt.IsZero())
	})

	t.Run(name+"/DeleteSync", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save(ackstore.New("sync-1", "a", 1, 1, nil)))
		require.NoError(t, store.Save(ackstore.New("sync-1", "b", 2, 2, nil)))
		require.NoError(t, store.Save(ackstore.New("sync-2", "a", 3, 3, nil)))

		require.NoError(t, store.DeleteSync("sync-1"))
		require.NoError(t, store.DeleteSync("never-existed"))

		infos, err := store.List("sync-1")
		require.NoError(t, err)
		assert.Empty(t, infos)

		_, err = store.Latest("sync-2", "a")
		assert.NoError(t, err, "other syncs are untouched")
	})

	t.Run(name+"/Closed", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Close())

		assert.ErrorIs(t, store.Save(ackstore.New("sync-1", "a", 1, 1, nil)), ackstore.ErrStoreClosed)
		_, err := store.Latest("sync-1", "a")
		assert.ErrorIs(t, err, ackstore.ErrStoreClosed)
		_, err = store.List("sync-1")
		assert.ErrorIs(t, err, ackstore.ErrStoreClosed)
		assert.ErrorIs(t, store.DeleteSync("sync-1"), ackstore.ErrStoreClosed)
	})
}

func TestMemoryStore(t *testing.T) {
	storeContractTest(t, "MemoryStore", func(t *testing.T) ackstore.Store {
		return ackstore.NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	storeContractTest(t, "SQLiteStore", func(t *testing.T) ackstore.Store {
		store, err := ackstore.NewSQLiteStore(":memory:")
		require.NoError(t, err)
		return store
	})
}

func TestAck_Supersedes(t *testing.T) {
	base := ackstore.New("s", "a", 1, 5, nil).WithEpoch(10)

	assert.True(t, ackstore.New("s", "a", 2, 6, nil).WithEpoch(10).Supersedes(base))
	assert.False(t, ackstore.New("s", "a", 2, 5, nil).WithEpoch(10).Supersedes(base))
	assert.False(t, ackstore.New("s", "a", 2, 4, nil).WithEpoch(10).Supersedes(base))
	assert.True(t, ackstore.New("s", "a", 2, 1, nil).WithEpoch(11).Supersedes(base))
	assert.False(t, ackstore.New("s", "a", 2, 99, nil).WithEpoch(9).Supersedes(base))
}

func TestUnmarshal_RejectsNewerVersion(t *testing.T) {
	_, err := ackstore.Unmarshal([]byte(`{"version": 99}`))
	assert.Error(t, err)

	_, err = ackstore.Unmarshal([]byte(`not json`))
	assert.Error(t, err)
}
