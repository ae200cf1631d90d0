package index

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/replikv/replikv/internal/attribute"
	"github.com/replikv/replikv/internal/query"
)

func standingAttrs() query.Attributes {
	return query.Attributes{"status": statusAttr()}
}

func TestStandingIndexAddTracksMatches(t *testing.T) {
	idx := NewStandingIndex(query.Eq("status", "open"), standingAttrs())

	change := idx.Add("a", map[string]any{"status": "open"})
	assert.Equal(t, ChangeAdded, change)

	change = idx.Add("b", map[string]any{"status": "closed"})
	assert.Equal(t, ChangeUnchanged, change)

	keys := idx.Retrieve(Query{}).Keys()
	assert.Equal(t, []string{"a"}, keys)
}

func TestStandingIndexUpdateTransitions(t *testing.T) {
	idx := NewStandingIndex(query.Eq("status", "open"), standingAttrs())
	idx.Add("a", map[string]any{"status": "open"})

	change := idx.Update("a", map[string]any{"status": "open"}, map[string]any{"status": "closed"})
	assert.Equal(t, ChangeRemoved, change)
	assert.Empty(t, idx.Retrieve(Query{}).Keys())

	change = idx.Update("a", map[string]any{"status": "closed"}, map[string]any{"status": "open"})
	assert.Equal(t, ChangeAdded, change)

	change = idx.Update("a", map[string]any{"status": "open"}, map[string]any{"status": "open"})
	assert.Equal(t, ChangeUpdated, change)
}

func TestStandingIndexRemove(t *testing.T) {
	idx := NewStandingIndex(query.Eq("status", "open"), standingAttrs())
	idx.Add("a", map[string]any{"status": "open"})

	change := idx.Remove("a", map[string]any{"status": "open"})
	assert.Equal(t, ChangeRemoved, change)
	assert.Empty(t, idx.Retrieve(Query{}).Keys())
}

func TestStandingIndexMatchesStructuralEquality(t *testing.T) {
	idx := NewStandingIndex(query.And(query.Eq("status", "open"), query.GT("priority", 1.0)), standingAttrs())

	same := query.And(query.GT("priority", 1.0), query.Eq("status", "open"))
	assert.True(t, idx.Matches(same))

	different := query.Eq("status", "closed")
	assert.False(t, idx.Matches(different))
}

func TestStandingIndexRetrievalCost(t *testing.T) {
	idx := NewStandingIndex(query.Has("status"), standingAttrs())
	assert.Equal(t, CostStanding, idx.RetrievalCost())
}
