package resultset

// Limit restricts source to the half-open range [offset, offset+limit).
// It slices the source's full key list: the source is materialized in
// full, with no early termination.
type Limit struct {
	source ResultSet
	offset int
	limit  int

	materialized bool
	cached       []string
}

// NewLimit builds a Limit over source.
func NewLimit(source ResultSet, offset, limit int) *Limit {
	return &Limit{source: source, offset: offset, limit: limit}
}

func (l *Limit) Keys() []string {
	if l.materialized {
		return l.cached
	}
	src := l.source.Keys()
	end := l.offset + l.limit
	if end > len(src) {
		end = len(src)
	}
	start := l.offset
	if start > len(src) {
		start = len(src)
	}
	out := make([]string, end-start)
	copy(out, src[start:end])
	l.cached = out
	l.materialized = true
	return out
}

func (l *Limit) RetrievalCost() int { return l.source.RetrievalCost() }

func (l *Limit) MergeCost() int {
	bound := l.offset + l.limit
	if l.source.MergeCost() < bound {
		return l.source.MergeCost()
	}
	return bound
}

func (l *Limit) Len() int { return len(l.Keys()) }
