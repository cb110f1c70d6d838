package statekeeper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstreamRef(t *testing.T) {
	key := SubstreamKey{Namespace: "public", Name: "users"}
	ref := PerStream(key)

	got, ok := ref.Key()
	assert.True(t, ok)
	assert.Equal(t, key, got)
	assert.False(t, ref.IsUnified())
	assert.Equal(t, "public.users", ref.String())

	_, ok = UnifiedRef.Key()
	assert.False(t, ok)
	assert.True(t, UnifiedRef.IsUnified())
	assert.Equal(t, "*", UnifiedRef.String())

	// An empty key never collides with the unified ref.
	assert.NotEqual(t, UnifiedRef, PerStream(SubstreamKey{}))

	m := map[SubstreamRef]int{ref: 1, UnifiedRef: 2}
	assert.Equal(t, 1, m[PerStream(key)])
}

func TestSubstreamKey_String(t *testing.T) {
	assert.Equal(t, "users", SubstreamKey{Name: "users"}.String())
	assert.True(t, SubstreamKey{}.IsZero())
	assert.False(t, SubstreamKey{Name: "x"}.IsZero())
}

func TestMarkerKind_Topology(t *testing.T) {
	tests := []struct {
		kind MarkerKind
		want Topology
		name string
	}{
		{KindStream, TopologyPerSubstream, "stream"},
		{KindGlobal, TopologyUnified, "global"},
		{KindLegacy, TopologyUnified, "legacy"},
		{MarkerKind(42), TopologyUnified, "legacy"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.topology())
		assert.Equal(t, tt.name, tt.kind.String())
	}
}

func TestTopology_String(t *testing.T) {
	assert.Equal(t, "undetermined", TopologyUndetermined.String())
	assert.Equal(t, "per_substream", TopologyPerSubstream.String())
	assert.Equal(t, "unified", TopologyUnified.String())
	assert.Equal(t, "12", CheckpointID(12).String())
}
