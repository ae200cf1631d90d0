package debugrec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOpNoOpWhenDisabled(t *testing.T) {
	r := NewCRDTRecorder(10)
	r.RecordOp(RecordedOp{MapID: "m", Key: "a", Operation: OpSet})
	assert.Empty(t, r.FilterOps(FilterOptions{}))
}

func TestRecordOpAssignsSequence(t *testing.T) {
	r := NewCRDTRecorder(10)
	r.Enable()
	r.RecordOp(RecordedOp{MapID: "m", Key: "a", Operation: OpSet})
	r.RecordOp(RecordedOp{MapID: "m", Key: "b", Operation: OpSet})

	ops := r.FilterOps(FilterOptions{})
	require.Len(t, ops, 2)
	assert.Equal(t, 1, ops[0].Sequence)
	assert.Equal(t, 2, ops[1].Sequence)
}

func TestRecordOpEvictsOldestAtCapacity(t *testing.T) {
	r := NewCRDTRecorder(2)
	r.Enable()
	r.RecordOp(RecordedOp{MapID: "m", Key: "a", Operation: OpSet})
	r.RecordOp(RecordedOp{MapID: "m", Key: "b", Operation: OpSet})
	r.RecordOp(RecordedOp{MapID: "m", Key: "c", Operation: OpSet})

	ops := r.FilterOps(FilterOptions{})
	require.Len(t, ops, 2)
	assert.Equal(t, "b", ops[0].Key)
	assert.Equal(t, "c", ops[1].Key)
}

func TestFilterOpsByMapIDAndOperation(t *testing.T) {
	r := NewCRDTRecorder(10)
	r.Enable()
	r.RecordOp(RecordedOp{MapID: "m1", Key: "a", Operation: OpSet})
	r.RecordOp(RecordedOp{MapID: "m2", Key: "b", Operation: OpDelete})
	r.RecordOp(RecordedOp{MapID: "m1", Key: "c", Operation: OpDelete})

	ops := r.FilterOps(FilterOptions{MapID: "m1", Operation: OpDelete})
	require.Len(t, ops, 1)
	assert.Equal(t, "c", ops[0].Key)
}

func TestFilterOpsByTimeWindow(t *testing.T) {
	r := NewCRDTRecorder(10)
	r.Enable()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.RecordOp(RecordedOp{MapID: "m", Key: "a", Operation: OpSet, Timestamp: base})
	r.RecordOp(RecordedOp{MapID: "m", Key: "b", Operation: OpSet, Timestamp: base.Add(time.Hour)})
	r.RecordOp(RecordedOp{MapID: "m", Key: "c", Operation: OpSet, Timestamp: base.Add(2 * time.Hour)})

	ops := r.FilterOps(FilterOptions{Since: base.Add(30 * time.Minute), Until: base.Add(90 * time.Minute)})
	require.Len(t, ops, 1)
	assert.Equal(t, "b", ops[0].Key)
}

func TestRecordConflictAndFilter(t *testing.T) {
	r := NewCRDTRecorder(10)
	r.Enable()
	r.RecordConflict(RecordedConflict{MapID: "m", Key: "a", Decision: "reject", Reason: "stale"})

	conflicts := r.FilterConflicts(FilterOptions{MapID: "m"})
	require.Len(t, conflicts, 1)
	assert.Equal(t, "reject", conflicts[0].Decision)
}

func TestStatsSummarizesCapturedOps(t *testing.T) {
	r := NewCRDTRecorder(10)
	r.Enable()
	r.RecordOp(RecordedOp{MapID: "m", Key: "a", Operation: OpSet})
	r.RecordOp(RecordedOp{MapID: "m", Key: "b", Operation: OpDelete})
	r.RecordConflict(RecordedConflict{MapID: "m", Key: "c"})

	stats := r.Stats()
	assert.Equal(t, 2, stats.TotalOps)
	assert.Equal(t, 1, stats.TotalConflicts)
	assert.Equal(t, 1, stats.ByOperation[OpSet])
	assert.Equal(t, 1, stats.ByOperation[OpDelete])
	assert.Equal(t, 2, stats.ByMapID["m"])
}

func TestTimelineBucketsByWindow(t *testing.T) {
	r := NewCRDTRecorder(10)
	r.Enable()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.RecordOp(RecordedOp{MapID: "m", Key: "a", Operation: OpSet, Timestamp: base})
	r.RecordOp(RecordedOp{MapID: "m", Key: "b", Operation: OpSet, Timestamp: base.Add(30 * time.Second)})
	r.RecordOp(RecordedOp{MapID: "m", Key: "c", Operation: OpSet, Timestamp: base.Add(2 * time.Minute)})

	buckets := r.Timeline(time.Minute)
	require.Len(t, buckets, 3)
	assert.Equal(t, 2, buckets[0].Count)
	assert.Equal(t, 1, buckets[2].Count)
}

func TestReplayToTimestampRebuildsState(t *testing.T) {
	r := NewCRDTRecorder(10)
	r.Enable()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.RecordOp(RecordedOp{MapID: "m", Key: "a", Operation: OpSet, Value: "v1", Timestamp: base})
	r.RecordOp(RecordedOp{MapID: "m", Key: "a", Operation: OpSet, Value: "v2", Timestamp: base.Add(time.Minute)})
	r.RecordOp(RecordedOp{MapID: "m", Key: "b", Operation: OpSet, Value: "v3", Timestamp: base.Add(2 * time.Minute)})
	r.RecordOp(RecordedOp{MapID: "m", Key: "a", Operation: OpDelete, Timestamp: base.Add(3 * time.Minute)})

	state := r.ReplayToTimestamp(base.Add(90 * time.Second))
	assert.Equal(t, "v2", state["a"])
	_, hasB := state["b"]
	assert.False(t, hasB)

	state = r.ReplayToTimestamp(base.Add(4 * time.Minute))
	_, hasA := state["a"]
	assert.False(t, hasA)
	assert.Equal(t, "v3", state["b"])
}

func TestDiffReportsChangedKeys(t *testing.T) {
	r := NewCRDTRecorder(10)
	r.Enable()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.RecordOp(RecordedOp{MapID: "m", Key: "a", Operation: OpSet, Value: "v1", Timestamp: base})
	r.RecordOp(RecordedOp{MapID: "m", Key: "a", Operation: OpSet, Value: "v2", Timestamp: base.Add(time.Minute)})

	diffs := r.Diff(base, base.Add(2*time.Minute))
	require.Len(t, diffs, 1)
	assert.Equal(t, "a", diffs[0].Key)
	assert.Equal(t, "v1", diffs[0].Before)
	assert.Equal(t, "v2", diffs[0].After)
}

func TestClearWipesOpsAndConflicts(t *testing.T) {
	r := NewCRDTRecorder(10)
	r.Enable()
	r.RecordOp(RecordedOp{MapID: "m", Key: "a", Operation: OpSet})
	r.RecordConflict(RecordedConflict{MapID: "m", Key: "a"})
	r.Clear()

	assert.Empty(t, r.FilterOps(FilterOptions{}))
	assert.Empty(t, r.FilterConflicts(FilterOptions{}))
}

func TestDefaultCRDTRecorderIsASingleton(t *testing.T) {
	a := DefaultCRDTRecorder()
	b := DefaultCRDTRecorder()
	assert.Same(t, a, b)
}
