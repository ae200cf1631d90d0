package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replikv/replikv/internal/attribute"
)

func priceAttr() attribute.Attribute {
	return attribute.Simple("price", func(record any) (any, bool) {
		m, ok := record.(map[string]any)
		if !ok {
			return nil, false
		}
		v, present := m["price"]
		return v, present
	})
}

func seedPrices(idx *NavigableIndex) {
	idx.Add("a", map[string]any{"price": 10.0})
	idx.Add("b", map[string]any{"price": 20.0})
	idx.Add("c", map[string]any{"price": 30.0})
	idx.Add("d", map[string]any{"price": 30.0})
}

func TestNavigableIndexEqualAndRange(t *testing.T) {
	idx := NewNavigableIndex(priceAttr(), nil)
	seedPrices(idx)

	require.ElementsMatch(t, []string{"c", "d"}, idx.Retrieve(Query{Kind: QueryEqual, Value: 30.0}).Keys())
	assert.ElementsMatch(t, []string{"b", "c", "d"}, idx.Retrieve(Query{Kind: QueryGT, Value: 10.0}).Keys())
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, idx.Retrieve(Query{Kind: QueryGTE, Value: 10.0}).Keys())
	assert.ElementsMatch(t, []string{"a"}, idx.Retrieve(Query{Kind: QueryLT, Value: 20.0}).Keys())
	assert.ElementsMatch(t, []string{"a", "b"}, idx.Retrieve(Query{Kind: QueryLTE, Value: 20.0}).Keys())
}

func TestNavigableIndexBetweenInclusive(t *testing.T) {
	idx := NewNavigableIndex(priceAttr(), nil)
	seedPrices(idx)

	keys := idx.Retrieve(Query{Kind: QueryBetween, Low: 20.0, High: 30.0}).Keys()
	assert.ElementsMatch(t, []string{"b", "c", "d"}, keys)
}

func TestNavigableIndexMinMax(t *testing.T) {
	idx := NewNavigableIndex(priceAttr(), nil)
	seedPrices(idx)

	min, ok := idx.GetMinValue()
	require.True(t, ok)
	assert.Equal(t, 10.0, min)

	max, ok := idx.GetMaxValue()
	require.True(t, ok)
	assert.Equal(t, 30.0, max)
}

func TestNavigableIndexMinMaxEmpty(t *testing.T) {
	idx := NewNavigableIndex(priceAttr(), nil)
	_, ok := idx.GetMinValue()
	assert.False(t, ok)
}

func TestNavigableIndexUpdateMovesValue(t *testing.T) {
	idx := NewNavigableIndex(priceAttr(), nil)
	idx.Add("a", map[string]any{"price": 10.0})
	idx.Update("a", map[string]any{"price": 10.0}, map[string]any{"price": 50.0})

	assert.Empty(t, idx.Retrieve(Query{Kind: QueryEqual, Value: 10.0}).Keys())
	assert.Equal(t, []string{"a"}, idx.Retrieve(Query{Kind: QueryEqual, Value: 50.0}).Keys())
}

func TestNavigableIndexRemoveDeletesEmptyNode(t *testing.T) {
	idx := NewNavigableIndex(priceAttr(), nil)
	idx.Add("a", map[string]any{"price": 10.0})
	idx.Remove("a", map[string]any{"price": 10.0})

	_, ok := idx.GetMinValue()
	assert.False(t, ok)
	assert.Equal(t, Stats{}, idx.GetStats())
}
