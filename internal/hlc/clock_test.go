package hlc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareOrdering(t *testing.T) {
	a := Timestamp{Millis: 10, Counter: 0, NodeID: "a"}
	b := Timestamp{Millis: 10, Counter: 1, NodeID: "a"}
	c := Timestamp{Millis: 11, Counter: 0, NodeID: "a"}
	d := Timestamp{Millis: 10, Counter: 0, NodeID: "b"}

	assert.True(t, a.Before(b))
	assert.True(t, b.Before(c))
	assert.True(t, a.Before(d))
	assert.Equal(t, 0, Compare(a, a))
}

func TestStringParseRoundTrip(t *testing.T) {
	ts := Timestamp{Millis: 12345, Counter: 7, NodeID: "node-1"}
	parsed, err := Parse(ts.String())
	require.NoError(t, err)
	assert.Equal(t, ts, parsed)
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse("not-a-timestamp")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedTimestamp))

	_, err = Parse("10:20:")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedTimestamp))
}

func TestNowMonotonicSameMillis(t *testing.T) {
	ticks := uint64(1000)
	clk := New("n1", WithClockSource(func() uint64 { return ticks }))

	first := clk.Now()
	second := clk.Now()
	assert.True(t, first.Before(second))
	assert.Equal(t, uint32(0), first.Counter)
	assert.Equal(t, uint32(1), second.Counter)
}

func TestNowAdvancesOnWallClockJump(t *testing.T) {
	ticks := uint64(1000)
	clk := New("n1", WithClockSource(func() uint64 { return ticks }))
	clk.Now()
	ticks = 2000
	next := clk.Now()
	assert.Equal(t, uint64(2000), next.Millis)
	assert.Equal(t, uint32(0), next.Counter)
}

func TestUpdateAdvancesPastRemote(t *testing.T) {
	ticks := uint64(1000)
	clk := New("n1", WithClockSource(func() uint64 { return ticks }))

	remote := Timestamp{Millis: 5000, Counter: 3, NodeID: "n2"}
	require.NoError(t, clk.Update(remote))

	next := clk.Now()
	assert.True(t, next.After(remote))
}

func TestUpdateStrictDriftRejected(t *testing.T) {
	ticks := uint64(1000)
	clk := New("n1",
		WithClockSource(func() uint64 { return ticks }),
		WithMaxDrift(500),
		WithStrictDrift(true),
	)

	remote := Timestamp{Millis: 10000, Counter: 0, NodeID: "n2"}
	err := clk.Update(remote)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrClockDriftTooLarge))
}

func TestUpdateNonStrictDriftWarns(t *testing.T) {
	ticks := uint64(1000)
	var warnedDrift int64
	clk := New("n1",
		WithClockSource(func() uint64 { return ticks }),
		WithMaxDrift(500),
		WithDriftWarning(func(drift int64) { warnedDrift = drift }),
	)

	remote := Timestamp{Millis: 10000, Counter: 0, NodeID: "n2"}
	require.NoError(t, clk.Update(remote))
	assert.Greater(t, warnedDrift, int64(0))
}

func TestUpdateSameMillisBumpsCounter(t *testing.T) {
	ticks := uint64(1000)
	clk := New("n1", WithClockSource(func() uint64 { return ticks }))

	remote := Timestamp{Millis: 1000, Counter: 5, NodeID: "n2"}
	require.NoError(t, clk.Update(remote))

	m, c := clk.Observed()
	assert.Equal(t, uint64(1000), m)
	assert.Equal(t, uint32(6), c)
}
