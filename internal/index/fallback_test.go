package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackIndexRetrieveWithPredicate(t *testing.T) {
	idx := NewFallbackIndex()
	idx.Add("a", map[string]any{"n": 1.0})
	idx.Add("b", map[string]any{"n": 2.0})
	idx.Add("c", map[string]any{"n": 3.0})

	keys := idx.RetrieveWithPredicate(func(key string, record any) bool {
		m := record.(map[string]any)
		return m["n"].(float64) > 1.0
	}).Keys()
	assert.ElementsMatch(t, []string{"b", "c"}, keys)
}

func TestFallbackIndexRetrieveMatchesEverything(t *testing.T) {
	idx := NewFallbackIndex()
	idx.Add("a", map[string]any{})
	idx.Add("b", map[string]any{})

	keys := idx.Retrieve(Query{Kind: QueryEqual}).Keys()
	assert.ElementsMatch(t, []string{"a", "b"}, keys)
}

func TestFallbackIndexUpdateAndRemove(t *testing.T) {
	idx := NewFallbackIndex()
	idx.Add("a", map[string]any{"n": 1.0})
	idx.Update("a", map[string]any{"n": 1.0}, map[string]any{"n": 5.0})

	keys := idx.RetrieveWithPredicate(func(key string, record any) bool {
		return record.(map[string]any)["n"].(float64) == 5.0
	}).Keys()
	assert.Equal(t, []string{"a"}, keys)

	idx.Remove("a", map[string]any{"n": 5.0})
	assert.Equal(t, 0, idx.GetStats().EntryCount)
}

func TestFallbackIndexCostAndSupport(t *testing.T) {
	idx := NewFallbackIndex()
	assert.Equal(t, CostFallback, idx.RetrievalCost())
	assert.True(t, idx.SupportsQuery(QueryEqual))
	assert.True(t, idx.SupportsQuery(QueryContains))
	assert.Nil(t, idx.Attribute())
}
