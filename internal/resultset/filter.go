package resultset

// RecordLookup resolves a key to its current record value, for use by
// Filter and Sort which operate on materialized records rather than bare
// keys.
type RecordLookup func(key string) (any, bool)

// Filter applies a predicate over the materialized record for each key in
// source, keeping only matches.
type Filter struct {
	source    ResultSet
	predicate func(key string, record any) bool
	lookup    RecordLookup

	materialized bool
	cached       []string
}

// NewFilter builds a Filter over source. lookup resolves a key to its
// record for the predicate to inspect.
func NewFilter(source ResultSet, lookup RecordLookup, predicate func(key string, record any) bool) *Filter {
	return &Filter{source: source, predicate: predicate, lookup: lookup}
}

func (f *Filter) Keys() []string {
	if f.materialized {
		return f.cached
	}
	src := f.source.Keys()
	out := make([]string, 0, len(src))
	for _, k := range src {
		rec, ok := f.lookup(k)
		if !ok {
			continue
		}
		if f.predicate(k, rec) {
			out = append(out, k)
		}
	}
	f.cached = out
	f.materialized = true
	return out
}

func (f *Filter) RetrievalCost() int { return f.source.RetrievalCost() + 10 }

func (f *Filter) MergeCost() int {
	cost := f.source.MergeCost() / 2
	if cost < 1 {
		cost = 1
	}
	return cost
}

func (f *Filter) Len() int { return len(f.Keys()) }
