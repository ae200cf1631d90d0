package index

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/btree"

	"github.com/replikv/replikv/internal/attribute"
	"github.com/replikv/replikv/internal/resultset"
)

// Comparator orders two attribute values for a navigable index; it must
// return <0, 0, >0 like sort comparators.
type Comparator func(a, b any) int

// navItem is the btree.Item stored in a NavigableIndex's sorted map.
type navItem struct {
	value any
	keys  map[string]struct{}
	cmp   Comparator
}

func (n *navItem) Less(than btree.Item) bool {
	other := than.(*navItem)
	return n.cmp(n.value, other.value) < 0
}

// NavigableIndex is a sorted value→set(key) map backed by a B-tree,
// supporting equality, membership, and range queries.
type NavigableIndex struct {
	mu      sync.RWMutex
	attr    attribute.Attribute
	cmp     Comparator
	tree    *btree.BTree
	valueOf map[string]any
}

// defaultCompare orders float64 values numerically and strings lexically,
// falling back to a type-name comparison to keep the tree total-ordered
// for mixed input. Two values of any other same type compare equal.
func defaultCompare(a, b any) int {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return strings.Compare(fmt.Sprintf("%T", a), fmt.Sprintf("%T", b))
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case string:
		bv, ok := b.(string)
		if !ok {
			return strings.Compare(fmt.Sprintf("%T", a), fmt.Sprintf("%T", b))
		}
		if av < bv {
			return -1
		}
		if av > bv {
			return 1
		}
		return 0
	default:
		return strings.Compare(fmt.Sprintf("%T", a), fmt.Sprintf("%T", b))
	}
}

// NewNavigableIndex creates a navigable index over attr. A nil comparator
// uses defaultCompare (numeric/string ordering).
func NewNavigableIndex(attr attribute.Attribute, cmp Comparator) *NavigableIndex {
	if cmp == nil {
		cmp = defaultCompare
	}
	return &NavigableIndex{
		attr:    attr,
		cmp:     cmp,
		tree:    btree.New(32),
		valueOf: make(map[string]any),
	}
}

func (n *NavigableIndex) Attribute() attribute.Attribute { return n.attr }
func (n *NavigableIndex) Type() string                   { return "navigable" }
func (n *NavigableIndex) RetrievalCost() int             { return CostNavigable }

func (n *NavigableIndex) SupportsQuery(kind QueryKind) bool {
	switch kind {
	case QueryEqual, QueryIn, QueryHas, QueryGT, QueryGTE, QueryLT, QueryLTE, QueryBetween:
		return true
	default:
		return false
	}
}

func (n *NavigableIndex) find(value any) *navItem {
	probe := &navItem{value: value, cmp: n.cmp}
	item := n.tree.Get(probe)
	if item == nil {
		return nil
	}
	return item.(*navItem)
}

func (n *NavigableIndex) Retrieve(q Query) resultset.ResultSet {
	n.mu.RLock()
	defer n.mu.RUnlock()

	switch q.Kind {
	case QueryEqual:
		item := n.find(q.Value)
		return resultset.NewSet(keysOf(item), CostNavigable)
	case QueryIn:
		seen := make(map[string]struct{})
		var out []string
		for _, v := range q.Values {
			item := n.find(v)
			if item == nil {
				continue
			}
			for k := range item.keys {
				if _, dup := seen[k]; !dup {
					seen[k] = struct{}{}
					out = append(out, k)
				}
			}
		}
		return resultset.NewSet(out, CostNavigable)
	case QueryHas:
		var out []string
		n.tree.Ascend(func(item btree.Item) bool {
			for k := range item.(*navItem).keys {
				out = append(out, k)
			}
			return true
		})
		return resultset.NewSet(out, CostNavigable)
	case QueryGT, QueryGTE, QueryLT, QueryLTE:
		return n.rangeQuery(q)
	case QueryBetween:
		return n.betweenQuery(q)
	default:
		return resultset.NewSet(nil, CostNavigable)
	}
}

func (n *NavigableIndex) rangeQuery(q Query) resultset.ResultSet {
	var out []string
	switch q.Kind {
	case QueryGT:
		n.tree.AscendGreaterOrEqual(&navItem{value: q.Value, cmp: n.cmp}, func(item btree.Item) bool {
			it := item.(*navItem)
			if n.cmp(it.value, q.Value) > 0 {
				appendKeys(&out, it.keys)
			}
			return true
		})
	case QueryGTE:
		n.tree.AscendGreaterOrEqual(&navItem{value: q.Value, cmp: n.cmp}, func(item btree.Item) bool {
			appendKeys(&out, item.(*navItem).keys)
			return true
		})
	case QueryLT:
		n.tree.AscendLessThan(&navItem{value: q.Value, cmp: n.cmp}, func(item btree.Item) bool {
			appendKeys(&out, item.(*navItem).keys)
			return true
		})
	case QueryLTE:
		n.tree.AscendLessThan(&navItem{value: q.Value, cmp: n.cmp}, func(item btree.Item) bool {
			appendKeys(&out, item.(*navItem).keys)
			return true
		})
		if item := n.find(q.Value); item != nil {
			appendKeys(&out, item.keys)
		}
	}
	return resultset.NewSet(out, CostNavigable)
}

func (n *NavigableIndex) betweenQuery(q Query) resultset.ResultSet {
	var out []string
	n.tree.AscendRange(&navItem{value: q.Low, cmp: n.cmp}, &navItem{value: q.High, cmp: n.cmp}, func(item btree.Item) bool {
		appendKeys(&out, item.(*navItem).keys)
		return true
	})
	if item := n.find(q.High); item != nil {
		appendKeys(&out, item.keys)
	}
	return resultset.NewSet(out, CostNavigable)
}

func appendKeys(out *[]string, keys map[string]struct{}) {
	for k := range keys {
		*out = append(*out, k)
	}
}

func keysOf(item *navItem) []string {
	if item == nil {
		return nil
	}
	out := make([]string, 0, len(item.keys))
	for k := range item.keys {
		out = append(out, k)
	}
	return out
}

// GetMinValue returns the smallest indexed value, or (nil, false) if empty.
func (n *NavigableIndex) GetMinValue() (any, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	item := n.tree.Min()
	if item == nil {
		return nil, false
	}
	return item.(*navItem).value, true
}

// GetMaxValue returns the largest indexed value, or (nil, false) if empty.
func (n *NavigableIndex) GetMaxValue() (any, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	item := n.tree.Max()
	if item == nil {
		return nil, false
	}
	return item.(*navItem).value, true
}

func (n *NavigableIndex) Add(key string, record any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.addLocked(key, record)
}

func (n *NavigableIndex) addLocked(key string, record any) {
	vals, ok := n.attr.Get(record)
	if !ok || len(vals) == 0 {
		return
	}
	v := vals[0]
	n.valueOf[key] = v
	probe := &navItem{value: v, cmp: n.cmp}
	existing := n.tree.Get(probe)
	var item *navItem
	if existing != nil {
		item = existing.(*navItem)
	} else {
		item = &navItem{value: v, cmp: n.cmp, keys: make(map[string]struct{})}
		n.tree.ReplaceOrInsert(item)
	}
	item.keys[key] = struct{}{}
}

func (n *NavigableIndex) Remove(key string, record any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.removeLocked(key)
}

func (n *NavigableIndex) removeLocked(key string) {
	v, ok := n.valueOf[key]
	if !ok {
		return
	}
	delete(n.valueOf, key)
	probe := &navItem{value: v, cmp: n.cmp}
	existing := n.tree.Get(probe)
	if existing == nil {
		return
	}
	item := existing.(*navItem)
	delete(item.keys, key)
	if len(item.keys) == 0 {
		n.tree.Delete(probe)
	}
}

func (n *NavigableIndex) Update(key string, oldRecord, newRecord any) {
	n.mu.Lock()
	defer n.mu.Unlock()

	oldVals, oldOk := n.attr.Get(oldRecord)
	newVals, newOk := n.attr.Get(newRecord)
	var oldV, newV any
	if oldOk && len(oldVals) > 0 {
		oldV = oldVals[0]
	}
	if newOk && len(newVals) > 0 {
		newV = newVals[0]
	}
	if oldOk == newOk && oldV == newV {
		return
	}
	n.removeLocked(key)
	n.addLocked(key, newRecord)
}

func (n *NavigableIndex) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tree = btree.New(32)
	n.valueOf = make(map[string]any)
}

func (n *NavigableIndex) GetStats() Stats {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return Stats{EntryCount: len(n.valueOf), DistinctKeys: n.tree.Len()}
}
