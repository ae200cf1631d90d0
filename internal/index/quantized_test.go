package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegerMultipleQuantizer(t *testing.T) {
	q := IntegerMultiple(10)
	assert.Equal(t, 40.0, q(42.0))
	assert.Equal(t, 0.0, q(5.0))
	assert.Equal(t, 40.0, q(49.9))
}

func TestPowerOfTenQuantizer(t *testing.T) {
	q := PowerOfTen()
	assert.Equal(t, 10.0, q(42.0))
	assert.Equal(t, 100.0, q(420.0))
	assert.Equal(t, 1.0, q(5.0))
}

func TestLogarithmicQuantizer(t *testing.T) {
	q := Logarithmic(2)
	assert.Equal(t, 8.0, q(10.0))
	assert.Equal(t, 1.0, q(1.5))
}

func TestQuantizedNavigableIndexBucketsEqualQuery(t *testing.T) {
	idx := NewQuantizedNavigableIndex(priceAttr(), IntegerMultiple(10), nil)
	idx.Add("a", map[string]any{"price": 41.0})
	idx.Add("b", map[string]any{"price": 44.0})
	idx.Add("c", map[string]any{"price": 50.0})

	keys := idx.Retrieve(Query{Kind: QueryEqual, Value: 42.0}).Keys()
	require.ElementsMatch(t, []string{"a", "b"}, keys)
}

func TestQuantizedNavigableIndexBetweenQuantizesBounds(t *testing.T) {
	idx := NewQuantizedNavigableIndex(priceAttr(), IntegerMultiple(10), nil)
	idx.Add("a", map[string]any{"price": 5.0})
	idx.Add("b", map[string]any{"price": 25.0})
	idx.Add("c", map[string]any{"price": 95.0})

	keys := idx.Retrieve(Query{Kind: QueryBetween, Low: 0.0, High: 30.0}).Keys()
	assert.ElementsMatch(t, []string{"a", "b"}, keys)
}

func TestQuantizedNavigableIndexRetrievalCost(t *testing.T) {
	idx := NewQuantizedNavigableIndex(priceAttr(), IntegerMultiple(10), nil)
	assert.Equal(t, CostNavigable, idx.RetrievalCost())
}
