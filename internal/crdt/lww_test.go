package crdt

import (
	"testing"

	"github.com/replikv/replikv/internal/hlc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClock(ticks *uint64) *hlc.Clock {
	return hlc.New("n1", hlc.WithClockSource(func() uint64 { return *ticks }))
}

func TestSetAndGet(t *testing.T) {
	ticks := uint64(1000)
	s := NewStore(newTestClock(&ticks))

	s.Set("k1", "v1", 0)
	v, ok := s.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "v1", v)
}

func TestRemoveTombstones(t *testing.T) {
	ticks := uint64(1000)
	s := NewStore(newTestClock(&ticks))

	s.Set("k1", "v1", 0)
	s.Remove("k1")

	_, ok := s.Get("k1")
	assert.False(t, ok)

	rec, ok := s.GetRecord("k1")
	require.True(t, ok)
	assert.True(t, rec.IsTombstone())
}

func TestTTLExpiry(t *testing.T) {
	ticks := uint64(1000)
	s := NewStore(newTestClock(&ticks))

	s.Set("k1", "v1", 500)
	_, ok := s.Get("k1")
	assert.True(t, ok)

	ticks = 2000
	_, ok = s.Get("k1")
	assert.False(t, ok)
}

func TestMergeAcceptsNewerTimestamp(t *testing.T) {
	ticks := uint64(1000)
	s := NewStore(newTestClock(&ticks))
	s.Set("k1", "local", 0)

	incoming := Record{Value: "remote", Timestamp: hlc.Timestamp{Millis: 5000, Counter: 0, NodeID: "n2"}}
	changed, err := s.Merge("k1", incoming)
	require.NoError(t, err)
	assert.True(t, changed)

	v, _ := s.Get("k1")
	assert.Equal(t, "remote", v)
}

func TestMergeRejectsOlderTimestamp(t *testing.T) {
	ticks := uint64(5000)
	s := NewStore(newTestClock(&ticks))
	s.Set("k1", "local", 0)

	incoming := Record{Value: "remote", Timestamp: hlc.Timestamp{Millis: 1000, Counter: 0, NodeID: "n2"}}
	changed, err := s.Merge("k1", incoming)
	require.NoError(t, err)
	assert.False(t, changed)

	v, _ := s.Get("k1")
	assert.Equal(t, "local", v)
}

func TestMergeRejectsZeroTimestamp(t *testing.T) {
	ticks := uint64(1000)
	s := NewStore(newTestClock(&ticks))
	_, err := s.Merge("k1", Record{Value: "x"})
	require.Error(t, err)
}

func TestMergeHookDecisionReject(t *testing.T) {
	ticks := uint64(1000)
	s := NewStore(newTestClock(&ticks))
	s.Set("k1", "local", 0)

	var rejected Rejection
	s.SetRejectionListener(func(r Rejection) { rejected = r })
	s.SetResolverHook(func(key string, local *Record, incoming Record) (Resolution, error) {
		return Resolution{Decision: DecisionReject, Reason: "policy"}, nil
	})

	incoming := Record{Value: "remote", Timestamp: hlc.Timestamp{Millis: 5000, NodeID: "n2"}}
	changed, err := s.Merge("k1", incoming)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "policy", rejected.Reason)

	v, _ := s.Get("k1")
	assert.Equal(t, "local", v)
}

func TestMergeHookDecisionMerge(t *testing.T) {
	ticks := uint64(1000)
	s := NewStore(newTestClock(&ticks))
	s.Set("k1", 3, 0)

	s.SetResolverHook(func(key string, local *Record, incoming Record) (Resolution, error) {
		return Resolution{Decision: DecisionMerge, Value: 99}, nil
	})

	incoming := Record{Value: 5, Timestamp: hlc.Timestamp{Millis: 5000, NodeID: "n2"}}
	changed, err := s.Merge("k1", incoming)
	require.NoError(t, err)
	assert.True(t, changed)

	v, _ := s.Get("k1")
	assert.Equal(t, 99, v)
}

func TestEntriesSkipsTombstonesAndExpired(t *testing.T) {
	ticks := uint64(1000)
	s := NewStore(newTestClock(&ticks))
	s.Set("live", "v1", 0)
	s.Set("expiring", "v2", 100)
	s.Remove("live2")

	ticks = 2000
	seen := map[string]any{}
	s.Entries(func(k string, v any) bool {
		seen[k] = v
		return true
	})
	assert.Equal(t, map[string]any{"live": "v1"}, seen)
}

func TestClearDoesNotResetClock(t *testing.T) {
	ticks := uint64(1000)
	clk := newTestClock(&ticks)
	s := NewStore(clk)
	first := s.Set("k1", "v1", 0)
	s.Clear()

	_, ok := s.Get("k1")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())

	second := s.Set("k2", "v2", 0)
	assert.True(t, second.Timestamp.After(first.Timestamp))
}
