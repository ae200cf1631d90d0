package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAssignsGapFreeSequences(t *testing.T) {
	j, err := New(Config{Capacity: 10})
	require.NoError(t, err)

	e0 := j.Append(PendingEvent{Type: EventPut, MapName: "m", Key: "a"})
	e1 := j.Append(PendingEvent{Type: EventPut, MapName: "m", Key: "b"})

	assert.Equal(t, int64(0), e0.Sequence)
	assert.Equal(t, int64(1), e1.Sequence)
}

func TestAppendFiltersByIncludeMaps(t *testing.T) {
	j, err := New(Config{Capacity: 10, IncludeMaps: []string{"allowed"}})
	require.NoError(t, err)

	excluded := j.Append(PendingEvent{Type: EventPut, MapName: "other", Key: "a"})
	assert.Equal(t, int64(-1), excluded.Sequence)

	included := j.Append(PendingEvent{Type: EventPut, MapName: "allowed", Key: "b"})
	assert.Equal(t, int64(0), included.Sequence)
}

func TestAppendFiltersByExcludeMaps(t *testing.T) {
	j, err := New(Config{Capacity: 10, ExcludeMaps: []string{"blocked"}})
	require.NoError(t, err)

	excluded := j.Append(PendingEvent{Type: EventPut, MapName: "blocked", Key: "a"})
	assert.Equal(t, int64(-1), excluded.Sequence)
}

func TestReadFromReturnsEventsAfterSequence(t *testing.T) {
	j, err := New(Config{Capacity: 10})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		j.Append(PendingEvent{Type: EventPut, MapName: "m", Key: string(rune('a' + i))})
	}

	events := j.ReadFrom(2, 100)
	require.Len(t, events, 2)
	assert.Equal(t, int64(3), events[0].Sequence)
	assert.Equal(t, int64(4), events[1].Sequence)
}

func TestReadFromNegativeSequenceReturnsEverything(t *testing.T) {
	j, err := New(Config{Capacity: 10})
	require.NoError(t, err)
	j.Append(PendingEvent{Type: EventPut, MapName: "m", Key: "a"})
	j.Append(PendingEvent{Type: EventPut, MapName: "m", Key: "b"})

	events := j.ReadFrom(-1, 100)
	assert.Len(t, events, 2)
}

func TestReadRangeIsInclusive(t *testing.T) {
	j, err := New(Config{Capacity: 10})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		j.Append(PendingEvent{Type: EventPut, MapName: "m", Key: string(rune('a' + i))})
	}

	events := j.ReadRange(1, 3)
	require.Len(t, events, 3)
	assert.Equal(t, int64(1), events[0].Sequence)
	assert.Equal(t, int64(3), events[2].Sequence)
}

func TestGetLatestAndOldestSequence(t *testing.T) {
	j, err := New(Config{Capacity: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(0), j.GetLatestSequence())

	j.Append(PendingEvent{Type: EventPut, MapName: "m", Key: "a"})
	j.Append(PendingEvent{Type: EventPut, MapName: "m", Key: "b"})
	assert.Equal(t, int64(1), j.GetLatestSequence())
	assert.Equal(t, int64(0), j.GetOldestSequence())
}

func TestCapacityEvictsOldestFirst(t *testing.T) {
	j, err := New(Config{Capacity: 2})
	require.NoError(t, err)
	j.Append(PendingEvent{Type: EventPut, MapName: "m", Key: "a"})
	j.Append(PendingEvent{Type: EventPut, MapName: "m", Key: "b"})
	j.Append(PendingEvent{Type: EventPut, MapName: "m", Key: "c"})

	assert.Equal(t, int64(1), j.GetOldestSequence())
	usage := j.GetCapacity()
	assert.Equal(t, 2, usage.Used)
	assert.Equal(t, 2, usage.Total)
}

func TestSubscribeReplaysThenDeliversFuture(t *testing.T) {
	j, err := New(Config{Capacity: 10})
	require.NoError(t, err)
	j.Append(PendingEvent{Type: EventPut, MapName: "m", Key: "a"})

	var received []Event
	from := int64(-1)
	unsubscribe := j.Subscribe(func(e Event) { received = append(received, e) }, &from)
	defer unsubscribe()

	require.Len(t, received, 1)
	j.Append(PendingEvent{Type: EventPut, MapName: "m", Key: "b"})
	require.Len(t, received, 2)
}

func TestUnsubscribeStopsFutureDelivery(t *testing.T) {
	j, err := New(Config{Capacity: 10})
	require.NoError(t, err)

	var count int
	unsubscribe := j.Subscribe(func(Event) { count++ }, nil)
	j.Append(PendingEvent{Type: EventPut, MapName: "m", Key: "a"})
	unsubscribe()
	j.Append(PendingEvent{Type: EventPut, MapName: "m", Key: "b"})

	assert.Equal(t, 1, count)
}

func TestCompactRemovesEventsOlderThanTTL(t *testing.T) {
	j, err := New(Config{Capacity: 10})
	require.NoError(t, err)
	j.cfg.TTL = time.Minute

	base := time.Now().Add(-2 * time.Minute)
	j.now = func() time.Time { return base }
	j.Append(PendingEvent{Type: EventPut, MapName: "m", Key: "old"})

	j.now = time.Now
	j.Append(PendingEvent{Type: EventPut, MapName: "m", Key: "new"})

	removed := j.Compact()
	assert.Equal(t, 1, removed)
	assert.Equal(t, int64(1), j.GetOldestSequence())
}

func TestDisposeClearsListeners(t *testing.T) {
	j, err := New(Config{Capacity: 10})
	require.NoError(t, err)

	var count int
	j.Subscribe(func(Event) { count++ }, nil)
	j.Dispose()
	j.Append(PendingEvent{Type: EventPut, MapName: "m", Key: "a"})

	assert.Equal(t, 0, count)
}
