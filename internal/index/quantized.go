package index

import (
	"math"

	"github.com/replikv/replikv/internal/attribute"
	"github.com/replikv/replikv/internal/resultset"
)

// Quantizer maps an attribute value to its bucket representative. Queries
// quantize their bounds before consulting the inner sorted map, so result
// sets may contain false positives relative to the original value and must
// be re-filtered by the caller if exactness is required.
type Quantizer func(value any) any

// IntegerMultiple returns a Quantizer that buckets float64 values to the
// nearest lower multiple of n.
func IntegerMultiple(n float64) Quantizer {
	return func(value any) any {
		f, ok := value.(float64)
		if !ok || n <= 0 {
			return value
		}
		bucket := math.Floor(f/n) * n
		return bucket
	}
}

// TimestampInterval returns a Quantizer that buckets millisecond epoch
// timestamps (float64) into fixed-width intervals.
func TimestampInterval(intervalMillis float64) Quantizer {
	return IntegerMultiple(intervalMillis)
}

// PowerOfTen returns a Quantizer that buckets a float64 to the power-of-ten
// magnitude of its value (e.g. 42 -> 10, 420 -> 100).
func PowerOfTen() Quantizer {
	return func(value any) any {
		f, ok := value.(float64)
		if !ok || f <= 0 {
			return value
		}
		mag := 1.0
		for mag*10 <= f {
			mag *= 10
		}
		return mag
	}
}

// Logarithmic returns a Quantizer that buckets a float64 into its
// logarithmic bucket using the given base.
func Logarithmic(base float64) Quantizer {
	return func(value any) any {
		f, ok := value.(float64)
		if !ok || f <= 0 || base <= 1 {
			return value
		}
		bucket := 1.0
		for bucket*base <= f {
			bucket *= base
		}
		return bucket
	}
}

// QuantizedNavigableIndex wraps a NavigableIndex, quantizing values before
// they reach the inner sorted map.
type QuantizedNavigableIndex struct {
	inner     *NavigableIndex
	quantizer Quantizer
	attr      attribute.Attribute
}

// NewQuantizedNavigableIndex creates a quantized navigable index over attr.
func NewQuantizedNavigableIndex(attr attribute.Attribute, quantizer Quantizer, cmp Comparator) *QuantizedNavigableIndex {
	return &QuantizedNavigableIndex{
		inner:     NewNavigableIndex(quantizedAttribute{attr, quantizer}, cmp),
		quantizer: quantizer,
		attr:      attr,
	}
}

// quantizedAttribute wraps attr so the underlying NavigableIndex sees
// already-quantized values.
type quantizedAttribute struct {
	attribute.Attribute
	quantizer Quantizer
}

func (q quantizedAttribute) Get(record any) ([]any, bool) {
	vals, ok := q.Attribute.Get(record)
	if !ok {
		return nil, false
	}
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = q.quantizer(v)
	}
	return out, true
}

func (q *QuantizedNavigableIndex) Attribute() attribute.Attribute { return q.attr }
func (q *QuantizedNavigableIndex) Type() string                   { return "quantized-navigable" }
func (q *QuantizedNavigableIndex) RetrievalCost() int             { return CostNavigable }

func (q *QuantizedNavigableIndex) SupportsQuery(kind QueryKind) bool {
	return q.inner.SupportsQuery(kind)
}

func (q *QuantizedNavigableIndex) Retrieve(query Query) resultset.ResultSet {
	quantized := query
	switch query.Kind {
	case QueryEqual:
		quantized.Value = q.quantizer(query.Value)
	case QueryIn:
		vals := make([]any, len(query.Values))
		for i, v := range query.Values {
			vals[i] = q.quantizer(v)
		}
		quantized.Values = vals
	case QueryGT, QueryGTE, QueryLT, QueryLTE:
		quantized.Value = q.quantizer(query.Value)
	case QueryBetween:
		quantized.Low = q.quantizer(query.Low)
		quantized.High = q.quantizer(query.High)
	}
	return q.inner.Retrieve(quantized)
}

func (q *QuantizedNavigableIndex) Add(key string, record any)    { q.inner.Add(key, record) }
func (q *QuantizedNavigableIndex) Remove(key string, record any) { q.inner.Remove(key, record) }
func (q *QuantizedNavigableIndex) Update(key string, oldRecord, newRecord any) {
	q.inner.Update(key, oldRecord, newRecord)
}
func (q *QuantizedNavigableIndex) Clear()          { q.inner.Clear() }
func (q *QuantizedNavigableIndex) GetStats() Stats { return q.inner.GetStats() }
