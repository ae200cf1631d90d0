package adaptive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvisorSuggestsHashIndexForFrequentEquality(t *testing.T) {
	tracker := NewTracker(100, time.Hour, 1, fixedClock(time.Now()))
	for i := 0; i < 50; i++ {
		tracker.RecordQuery("status", "eq", 30, false)
	}
	advisor := NewAdvisor(tracker, 10)

	suggestions := advisor.Suggestions()
	require.Len(t, suggestions, 1)
	assert.Equal(t, "status", suggestions[0].Attribute)
	assert.Equal(t, IndexHash, suggestions[0].Kind)
	assert.Equal(t, 50, suggestions[0].Frequency)
}

func TestAdvisorSkipsAttributesAlreadyIndexed(t *testing.T) {
	tracker := NewTracker(100, time.Hour, 1, fixedClock(time.Now()))
	for i := 0; i < 50; i++ {
		tracker.RecordQuery("status", "eq", 30, true)
	}
	advisor := NewAdvisor(tracker, 10)
	assert.Empty(t, advisor.Suggestions())
}

func TestAdvisorSkipsPatternsBelowMinSamples(t *testing.T) {
	tracker := NewTracker(100, time.Hour, 1, fixedClock(time.Now()))
	tracker.RecordQuery("status", "eq", 30, false)
	advisor := NewAdvisor(tracker, 10)
	assert.Empty(t, advisor.Suggestions())
}

func TestAdvisorRecommendsNavigableForRangeQueries(t *testing.T) {
	tracker := NewTracker(100, time.Hour, 1, fixedClock(time.Now()))
	for i := 0; i < 20; i++ {
		tracker.RecordQuery("price", "gt", 40, false)
	}
	advisor := NewAdvisor(tracker, 5)
	suggestions := advisor.Suggestions()
	require.Len(t, suggestions, 1)
	assert.Equal(t, IndexNavigable, suggestions[0].Kind)
}

func TestAdvisorRecommendsInvertedForContainsQueries(t *testing.T) {
	tracker := NewTracker(100, time.Hour, 1, fixedClock(time.Now()))
	for i := 0; i < 20; i++ {
		tracker.RecordQuery("tags", "containsAny", 1<<30, false)
	}
	advisor := NewAdvisor(tracker, 5)
	suggestions := advisor.Suggestions()
	require.Len(t, suggestions, 1)
	assert.Equal(t, IndexInverted, suggestions[0].Kind)
}

func TestAdvisorRanksByDescendingBenefit(t *testing.T) {
	tracker := NewTracker(100, time.Hour, 1, fixedClock(time.Now()))
	for i := 0; i < 10; i++ {
		tracker.RecordQuery("rare", "eq", 30, false)
	}
	for i := 0; i < 1000; i++ {
		tracker.RecordQuery("hot", "eq", 30, false)
	}
	advisor := NewAdvisor(tracker, 5)
	suggestions := advisor.Suggestions()
	require.Len(t, suggestions, 2)
	assert.Equal(t, "hot", suggestions[0].Attribute)
	assert.Greater(t, suggestions[0].EstimatedBenefit, suggestions[1].EstimatedBenefit)
}

func TestAdvisorSuggestsCompoundIndex(t *testing.T) {
	tracker := NewTracker(100, time.Hour, 1, fixedClock(time.Now()))
	for i := 0; i < 20; i++ {
		tracker.RecordCompoundQuery([]string{"tenant", "status"}, 1<<30, false)
	}
	advisor := NewAdvisor(tracker, 5)
	suggestions := advisor.Suggestions()
	require.Len(t, suggestions, 1)
	assert.Equal(t, IndexCompound, suggestions[0].Kind)
	assert.ElementsMatch(t, []string{"tenant", "status"}, suggestions[0].Attributes)
}
