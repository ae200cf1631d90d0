// Package resultset implements the lazy result-set algebra: Set, Lazy,
// Intersection, Union, Filter, Sort, and Limit iterators over record keys,
// each carrying retrieval and merge cost estimates used by the planner.
package resultset

import "sort"

// ResultSet is a lazy iterator of keys. Implementations cache their
// materialized key slice on first full iteration (Keys()).
type ResultSet interface {
	// Keys returns all keys in this result set, materializing and caching
	// on first call.
	Keys() []string
	// RetrievalCost estimates the cost of producing this result set.
	RetrievalCost() int
	// MergeCost estimates the cost of this result set participating as an
	// input to a higher-level Intersection/Union.
	MergeCost() int
	// Len reports the result set's size, forcing materialization if needed
	// for accuracy (implementations may use an estimate where one exists
	// without materializing, per Lazy below).
	Len() int
}

// Set is a result set backed directly by a hash set of keys. Its retrieval
// cost is configured by the producing index (spec: "configured").
type Set struct {
	keys []string
	cost int
}

// NewSet creates a Set result set from an already-deduplicated key slice,
// stamped with the retrieval cost of the index that produced it.
func NewSet(keys []string, retrievalCost int) *Set {
	cp := make([]string, len(keys))
	copy(cp, keys)
	return &Set{keys: cp, cost: retrievalCost}
}

func (s *Set) Keys() []string     { return s.keys }
func (s *Set) RetrievalCost() int { return s.cost }
func (s *Set) MergeCost() int     { return len(s.keys) }
func (s *Set) Len() int           { return len(s.keys) }

// Lazy is a result set backed by a generator function, invoked once and
// cached. estimatedSize informs cost calculations before materialization.
type Lazy struct {
	generate      func() []string
	estimatedSize int
	cost          int

	materialized bool
	cached       []string
}

// NewLazy creates a Lazy result set. estimatedSize and cost are used for
// planning before Keys() is first called.
func NewLazy(generate func() []string, estimatedSize, cost int) *Lazy {
	return &Lazy{generate: generate, estimatedSize: estimatedSize, cost: cost}
}

func (l *Lazy) Keys() []string {
	if !l.materialized {
		l.cached = l.generate()
		l.materialized = true
	}
	return l.cached
}

func (l *Lazy) RetrievalCost() int { return l.cost }
func (l *Lazy) MergeCost() int     { return l.estimatedSize }

func (l *Lazy) Len() int {
	if l.materialized {
		return len(l.cached)
	}
	return l.estimatedSize
}

// byMergeCost sorts result sets ascending by merge cost, used to select an
// intersection's driving (smallest) child.
type byMergeCost []ResultSet

func (b byMergeCost) Len() int           { return len(b) }
func (b byMergeCost) Less(i, j int) bool { return b[i].MergeCost() < b[j].MergeCost() }
func (b byMergeCost) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }

// Intersection iterates the child with the smallest merge cost and keeps
// only keys present in every other child.
type Intersection struct {
	children []ResultSet

	materialized bool
	cached       []string
}

// NewIntersection builds an Intersection over children. Children must be
// non-empty.
func NewIntersection(children []ResultSet) *Intersection {
	cp := make([]ResultSet, len(children))
	copy(cp, children)
	return &Intersection{children: cp}
}

func (n *Intersection) Keys() []string {
	if n.materialized {
		return n.cached
	}
	if len(n.children) == 0 {
		n.cached = []string{}
		n.materialized = true
		return n.cached
	}

	ordered := make([]ResultSet, len(n.children))
	copy(ordered, n.children)
	sort.Sort(byMergeCost(ordered))

	driver := ordered[0]
	others := ordered[1:]
	otherSets := make([]map[string]struct{}, len(others))
	for i, o := range others {
		m := make(map[string]struct{}, o.Len())
		for _, k := range o.Keys() {
			m[k] = struct{}{}
		}
		otherSets[i] = m
	}

	out := make([]string, 0, driver.Len())
	for _, k := range driver.Keys() {
		present := true
		for _, m := range otherSets {
			if _, ok := m[k]; !ok {
				present = false
				break
			}
		}
		if present {
			out = append(out, k)
		}
	}
	n.cached = out
	n.materialized = true
	return out
}

func (n *Intersection) RetrievalCost() int {
	min := -1
	for _, c := range n.children {
		cost := c.RetrievalCost()
		if min == -1 || cost < min {
			min = cost
		}
	}
	if min == -1 {
		return 0
	}
	return min
}

func (n *Intersection) MergeCost() int {
	min := -1
	for _, c := range n.children {
		cost := c.MergeCost()
		if min == -1 || cost < min {
			min = cost
		}
	}
	if min == -1 {
		return 0
	}
	return min
}

func (n *Intersection) Len() int { return len(n.Keys()) }

// Union streams its children, skipping keys already yielded, deduplicating
// across the merged set.
type Union struct {
	children []ResultSet

	materialized bool
	cached       []string
}

// NewUnion builds a Union over children.
func NewUnion(children []ResultSet) *Union {
	cp := make([]ResultSet, len(children))
	copy(cp, children)
	return &Union{children: cp}
}

func (u *Union) Keys() []string {
	if u.materialized {
		return u.cached
	}
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, c := range u.children {
		for _, k := range c.Keys() {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	u.cached = out
	u.materialized = true
	return out
}

func (u *Union) RetrievalCost() int {
	sum := 0
	for _, c := range u.children {
		sum += c.RetrievalCost()
	}
	return saturatingAdd(sum)
}

func (u *Union) MergeCost() int {
	sum := 0
	for _, c := range u.children {
		sum += c.MergeCost()
	}
	return saturatingAdd(sum)
}

func (u *Union) Len() int { return len(u.Keys()) }

const saturationCeiling = 1 << 30

func saturatingAdd(v int) int {
	if v > saturationCeiling {
		return saturationCeiling
	}
	return v
}
