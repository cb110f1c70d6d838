package statekeeper_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/randalmurphal/statekeeper/pkg/statekeeper"
	"github.com/randalmurphal/statekeeper/pkg/statekeeper/ackstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcknowledger_PersistsEmitted(t *testing.T) {
	m, _ := newManager(t)
	store := ackstore.NewMemoryStore()
	ack := statekeeper.NewAcknowledger(m, store, "sync-1")
	ctx := context.Background()

	a := m.AssociateRecord(s1)
	ingest(t, m, streamMarker(s1, "s1-first"), 1)
	ingest(t, m, streamMarker(s2, "s2-first"), 1)

	emitted, err := ack.Acknowledge(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s2-first"}, payloads(emitted))

	payload, ok, err := ack.Resume(statekeeper.PerStream(s1))
	require.NoError(t, err)
	assert.False(t, ok, "s1 has nothing acknowledged yet")
	assert.Nil(t, payload)

	require.NoError(t, m.ReportWritten(a, 1))
	ingest(t, m, streamMarker(s1, "s1-second"), 1)

	emitted, err = ack.Acknowledge(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1-first", "s1-second"}, payloads(emitted))

	payload, ok, err = ack.Resume(statekeeper.PerStream(s1))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("s1-second"), payload)

	latest, err := store.Latest("sync-1", "public.s1")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), latest.RecordCount)
	assert.Equal(t, uint64(emitted[1].ID), latest.CheckpointID)

	infos, err := store.List("sync-1")
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

func TestAcknowledger_UnifiedSubstream(t *testing.T) {
	m, _ := newManager(t)
	store := ackstore.NewMemoryStore()
	ack := statekeeper.NewAcknowledger(m, store, "sync-1")

	id := m.AssociateRecord(s1)
	ingest(t, m, globalMarker("g"), 1)
	require.NoError(t, m.ReportWritten(id, 1))

	_, err := ack.Acknowledge(context.Background())
	require.NoError(t, err)

	got, err := store.Latest("sync-1", statekeeper.UnifiedRef.String())
	require.NoError(t, err)
	assert.Equal(t, []byte("g"), got.Payload)
	assert.Equal(t, uint64(1), got.RecordCount)
}

func TestAcknowledger_StoreFailure(t *testing.T) {
	m, _ := newManager(t)
	store := ackstore.NewMemoryStore()
	require.NoError(t, store.Close())
	ack := statekeeper.NewAcknowledger(m, store, "sync-1")

	ingest(t, m, streamMarker(s1, "a"), 1)
	ingest(t, m, streamMarker(s1, "b"), 1)

	emitted, err := ack.Acknowledge(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ackstore.ErrStoreClosed)
	assert.Len(t, emitted, 2, "flushed checkpoints are returned even when saving fails")

	_, _, err = ack.Resume(statekeeper.PerStream(s1))
	assert.ErrorIs(t, err, ackstore.ErrStoreClosed)
}

func TestAcknowledger_SQLite(t *testing.T) {
	store, err := ackstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	m, _ := newManager(t)
	ack := statekeeper.NewAcknowledger(m, store, "sync-sql")

	for i := 0; i < 3; i++ {
		id := m.AssociateRecord(s1)
		ingest(t, m, streamMarker(s1, string(rune('x'+i))), 1)
		require.NoError(t, m.ReportWritten(id, 1))
	}

	emitted, err := ack.Acknowledge(context.Background())
	require.NoError(t, err)
	require.Len(t, emitted, 3)

	payload, ok, err := ack.Resume(statekeeper.PerStream(s1))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("z"), payload)
}

func TestAcknowledger_ResumeAfterRestart(t *testing.T) {
	store, err := ackstore.NewSQLiteStore(filepath.Join(t.TempDir(), "acks.db"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	first, _ := newManager(t)
	for _, payload := range []string{"run1-a", "run1-b", "run1-c"} {
		ingest(t, first, streamMarker(s1, payload), 1)
	}
	emitted, err := statekeeper.NewAcknowledger(first, store, "sync-restart").Acknowledge(ctx)
	require.NoError(t, err)
	require.Len(t, emitted, 3)

	second, _ := newManager(t)
	require.Greater(t, second.Epoch(), first.Epoch())
	ack := statekeeper.NewAcknowledger(second, store, "sync-restart")

	ingest(t, second, streamMarker(s1, "run2-a"), 1)
	emitted, err = ack.Acknowledge(ctx)
	require.NoError(t, err)
	require.Len(t, emitted, 1)

	payload, ok, err := ack.Resume(statekeeper.PerStream(s1))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("run2-a"), payload)

	latest, err := store.Latest("sync-restart", "public.s1")
	require.NoError(t, err)
	assert.Equal(t, second.Epoch(), latest.Epoch)
	assert.Equal(t, uint64(1), latest.Arrival)
}
