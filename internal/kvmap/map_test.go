package kvmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replikv/replikv/internal/crdt"
	"github.com/replikv/replikv/internal/hlc"
)

func newTestMap(t *testing.T) *Map {
	t.Helper()
	m, err := New(Config{Name: "test", NodeID: "n1"})
	require.NoError(t, err)
	return m
}

func TestSetAndGet(t *testing.T) {
	m := newTestMap(t)

	_, err := m.Set("k1", "v1", 0)
	require.NoError(t, err)

	v, ok := m.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "v1", v)
}

func TestRemoveTombstones(t *testing.T) {
	m := newTestMap(t)

	_, err := m.Set("k1", "v1", 0)
	require.NoError(t, err)
	_, err = m.Remove("k1")
	require.NoError(t, err)

	_, ok := m.Get("k1")
	assert.False(t, ok)

	rec, ok := m.GetRecord("k1")
	require.True(t, ok)
	assert.True(t, rec.IsTombstone())
}

func TestRemoveUnknownKeyDoesNotNotify(t *testing.T) {
	m := newTestMap(t)

	var fired bool
	m.onMutation(func(string, any, bool, any, bool) { fired = true })

	_, err := m.Remove("missing")
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestEntriesAndKeys(t *testing.T) {
	m := newTestMap(t)
	_, _ = m.Set("a", 1, 0)
	_, _ = m.Set("b", 2, 0)
	_, _ = m.Remove("b")

	assert.Equal(t, []string{"a"}, m.Keys())

	seen := map[string]any{}
	m.Entries(func(k string, v any) bool {
		seen[k] = v
		return true
	})
	assert.Equal(t, map[string]any{"a": 1}, seen)
}

func TestClearWipesStoreButKeepsClock(t *testing.T) {
	m := newTestMap(t)
	_, _ = m.Set("a", 1, 0)
	before := m.Clock().Now()

	m.Clear()

	assert.Equal(t, 0, m.Len())
	after := m.Clock().Now()
	assert.False(t, after.Before(before))
}

func TestCloseRejectsFurtherMutation(t *testing.T) {
	m := newTestMap(t)
	require.NoError(t, m.Close())

	_, err := m.Set("a", 1, 0)
	assert.ErrorIs(t, err, ErrJournalClosed)

	_, err = m.Remove("a")
	assert.ErrorIs(t, err, ErrJournalClosed)
}

func TestCloseIsIdempotent(t *testing.T) {
	m := newTestMap(t)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}

func TestMutationHookFiresInOrder(t *testing.T) {
	m := newTestMap(t)

	var order []int
	m.onMutation(func(string, any, bool, any, bool) { order = append(order, 1) })
	m.onMutation(func(string, any, bool, any, bool) { order = append(order, 2) })

	_, err := m.Set("a", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, order)
}

func TestRootHashChangesOnMutation(t *testing.T) {
	m := newTestMap(t)
	initial := m.RootHash()

	_, err := m.Set("a", 1, 0)
	require.NoError(t, err)
	assert.NotEqual(t, initial, m.RootHash())
}

func TestNoOpMergeDoesNotNotifyRejectionListener(t *testing.T) {
	m := newTestMap(t)
	_, err := m.Set("k", "local", 0)
	require.NoError(t, err)

	var rejected *MergeRejection
	m.OnRejection(func(r MergeRejection) { rejected = &r })

	rec, ok := m.GetRecord("k")
	require.True(t, ok)

	// Re-merging the record already stored (same timestamp) does not win
	// last-write-wins and is not applied, but that's not a rejection —
	// only a resolver veto is. Here we exercise the plain no-op-merge path
	// to confirm it never calls the rejection listener.
	changed, err := m.Merge("k", rec)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Nil(t, rejected)
}

// A default Map (the registry built by NewRegistry, with no resolvers
// bound to any key) must resolve concurrent writes by plain last-write-wins:
// a later timestamp always wins over an earlier one.
func TestDefaultMapMergeLaterTimestampWins(t *testing.T) {
	m := newTestMap(t)
	local, err := m.Set("k", "A", 0)
	require.NoError(t, err)

	incoming := crdt.Record{
		Value:     "B",
		Timestamp: hlc.Timestamp{Millis: local.Timestamp.Millis + 1, Counter: 0, NodeID: "n2"},
	}
	changed, err := m.Merge("k", incoming)
	require.NoError(t, err)
	assert.True(t, changed)

	v, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, "B", v)
}

// When two timestamps tie on Millis and Counter, the NodeID breaks the tie
// lexicographically, and that tiebreak is commutative: merging the two
// records in either order converges to the same winner.
func TestDefaultMapMergeNodeIDTiebreakIsCommutative(t *testing.T) {
	recX := crdt.Record{Value: "X", Timestamp: hlc.Timestamp{Millis: 1000, Counter: 0, NodeID: "node-a"}}
	recZ := crdt.Record{Value: "Z", Timestamp: hlc.Timestamp{Millis: 1000, Counter: 0, NodeID: "node-z"}}

	mXThenZ := newTestMap(t)
	_, err := mXThenZ.Merge("k", recX)
	require.NoError(t, err)
	_, err = mXThenZ.Merge("k", recZ)
	require.NoError(t, err)

	mZThenX := newTestMap(t)
	_, err = mZThenX.Merge("k", recZ)
	require.NoError(t, err)
	_, err = mZThenX.Merge("k", recX)
	require.NoError(t, err)

	vXZ, ok := mXThenZ.Get("k")
	require.True(t, ok)
	vZX, ok := mZThenX.Get("k")
	require.True(t, ok)

	assert.Equal(t, "Z", vXZ)
	assert.Equal(t, vXZ, vZX)
}

// Merging the same record into itself twice is a no-op the second time:
// merge is idempotent.
func TestDefaultMapMergeIsIdempotent(t *testing.T) {
	m := newTestMap(t)
	rec := crdt.Record{Value: "A", Timestamp: hlc.Timestamp{Millis: 5, Counter: 0, NodeID: "n1"}}

	changed, err := m.Merge("k", rec)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = m.Merge("k", rec)
	require.NoError(t, err)
	assert.False(t, changed)

	v, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, "A", v)
}
