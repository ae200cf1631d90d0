package index

import (
	"sync"

	"github.com/replikv/replikv/internal/attribute"
	"github.com/replikv/replikv/internal/resultset"
)

// HashIndex maps attribute values to the set of keys holding them, plus a
// separate "has" set of every key with a non-null attribute value.
type HashIndex struct {
	mu       sync.RWMutex
	attr     attribute.Attribute
	byValue  map[any]map[string]struct{}
	hasSet   map[string]struct{}
	valueOf  map[string]any // single-valued cache for Update's no-op check
}

// NewHashIndex creates a hash index over attr.
func NewHashIndex(attr attribute.Attribute) *HashIndex {
	return &HashIndex{
		attr:    attr,
		byValue: make(map[any]map[string]struct{}),
		hasSet:  make(map[string]struct{}),
		valueOf: make(map[string]any),
	}
}

func (h *HashIndex) Attribute() attribute.Attribute { return h.attr }
func (h *HashIndex) Type() string                   { return "hash" }
func (h *HashIndex) RetrievalCost() int             { return CostHash }

func (h *HashIndex) SupportsQuery(kind QueryKind) bool {
	switch kind {
	case QueryEqual, QueryIn, QueryHas:
		return true
	default:
		return false
	}
}

func (h *HashIndex) Retrieve(q Query) resultset.ResultSet {
	h.mu.RLock()
	defer h.mu.RUnlock()

	switch q.Kind {
	case QueryEqual:
		return resultset.NewSet(h.keysFor(q.Value), CostHash)
	case QueryIn:
		seen := make(map[string]struct{})
		var out []string
		for _, v := range q.Values {
			for k := range h.byValue[v] {
				if _, dup := seen[k]; !dup {
					seen[k] = struct{}{}
					out = append(out, k)
				}
			}
		}
		return resultset.NewSet(out, CostHash)
	case QueryHas:
		out := make([]string, 0, len(h.hasSet))
		for k := range h.hasSet {
			out = append(out, k)
		}
		return resultset.NewSet(out, CostHash)
	default:
		return resultset.NewSet(nil, CostHash)
	}
}

func (h *HashIndex) keysFor(value any) []string {
	set := h.byValue[value]
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func (h *HashIndex) Add(key string, record any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.addLocked(key, record)
}

func (h *HashIndex) addLocked(key string, record any) {
	vals, ok := h.attr.Get(record)
	if !ok || len(vals) == 0 {
		return
	}
	v := vals[0]
	h.valueOf[key] = v
	h.hasSet[key] = struct{}{}
	set, exists := h.byValue[v]
	if !exists {
		set = make(map[string]struct{})
		h.byValue[v] = set
	}
	set[key] = struct{}{}
}

func (h *HashIndex) Remove(key string, record any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(key)
}

func (h *HashIndex) removeLocked(key string) {
	v, ok := h.valueOf[key]
	if !ok {
		return
	}
	delete(h.valueOf, key)
	delete(h.hasSet, key)
	if set, exists := h.byValue[v]; exists {
		delete(set, key)
		if len(set) == 0 {
			delete(h.byValue, v)
		}
	}
}

func (h *HashIndex) Update(key string, oldRecord, newRecord any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	oldVals, oldOk := h.attr.Get(oldRecord)
	newVals, newOk := h.attr.Get(newRecord)

	var oldV, newV any
	if oldOk && len(oldVals) > 0 {
		oldV = oldVals[0]
	}
	if newOk && len(newVals) > 0 {
		newV = newVals[0]
	}
	if oldOk == newOk && oldV == newV {
		return // no-op: attribute value did not change
	}

	h.removeLocked(key)
	h.addLocked(key, newRecord)
}

func (h *HashIndex) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byValue = make(map[any]map[string]struct{})
	h.hasSet = make(map[string]struct{})
	h.valueOf = make(map[string]any)
}

func (h *HashIndex) GetStats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stats{EntryCount: len(h.hasSet), DistinctKeys: len(h.byValue)}
}
