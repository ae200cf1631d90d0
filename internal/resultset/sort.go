package resultset

import "sort"

// FieldValue resolves a key's sort-field value. ok is false for undefined
// values, which sort to the end in ascending order and to the start in
// descending order.
type FieldValue func(key string) (value any, ok bool)

// Compare orders two non-undefined field values; it must return <0, 0, >0
// like sort comparators.
type Compare func(a, b any) int

// Sort orders source by a field, either via a pre-sorted fast path (when
// the source is already sorted on the field, e.g. a navigable index) or an
// in-memory sort.
type Sort struct {
	source     ResultSet
	fieldValue FieldValue
	compare    Compare
	descending bool
	preSorted  bool

	materialized bool
	cached       []string
}

// NewSort builds a Sort over source. If preSorted is true (the source is
// already ordered by the sort field, as a navigable index's iteration
// order would be), the cheaper pre-sorted cost path is used; Keys() still
// performs the partition of defined/undefined values but skips re-sorting
// the defined segment.
func NewSort(source ResultSet, fieldValue FieldValue, compare Compare, descending, preSorted bool) *Sort {
	return &Sort{source: source, fieldValue: fieldValue, compare: compare, descending: descending, preSorted: preSorted}
}

func (s *Sort) Keys() []string {
	if s.materialized {
		return s.cached
	}

	src := s.source.Keys()
	type kv struct {
		key   string
		value any
	}
	defined := make([]kv, 0, len(src))
	undefined := make([]kv, 0)
	for _, k := range src {
		v, ok := s.fieldValue(k)
		if ok {
			defined = append(defined, kv{key: k, value: v})
		} else {
			undefined = append(undefined, kv{key: k})
		}
	}

	if !s.preSorted {
		sort.SliceStable(defined, func(i, j int) bool {
			c := s.compare(defined[i].value, defined[j].value)
			if s.descending {
				return c > 0
			}
			return c < 0
		})
	}

	out := make([]string, 0, len(src))
	if s.descending {
		for _, it := range undefined {
			out = append(out, it.key)
		}
		for _, it := range defined {
			out = append(out, it.key)
		}
	} else {
		for _, it := range defined {
			out = append(out, it.key)
		}
		for _, it := range undefined {
			out = append(out, it.key)
		}
	}

	s.cached = out
	s.materialized = true
	return out
}

func (s *Sort) RetrievalCost() int {
	if s.preSorted {
		return s.source.RetrievalCost() + 1
	}
	return s.source.RetrievalCost() + 50
}

func (s *Sort) MergeCost() int { return s.source.MergeCost() }

func (s *Sort) Len() int { return len(s.Keys()) }
