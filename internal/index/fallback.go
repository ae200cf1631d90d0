package index

import (
	"sync"

	"github.com/replikv/replikv/internal/attribute"
	"github.com/replikv/replikv/internal/resultset"
)

// Predicate evaluates a record for the fallback full scan.
type Predicate func(key string, record any) bool

// FallbackIndex iterates all records and evaluates a caller-supplied
// predicate. Used only when no other index qualifies for a query.
type FallbackIndex struct {
	mu      sync.RWMutex
	records map[string]any
}

// NewFallbackIndex creates a fallback index that mirrors every record it
// is given via Add/Update/Remove.
func NewFallbackIndex() *FallbackIndex {
	return &FallbackIndex{records: make(map[string]any)}
}

func (f *FallbackIndex) Attribute() attribute.Attribute { return nil }
func (f *FallbackIndex) Type() string                   { return "fallback" }
func (f *FallbackIndex) RetrievalCost() int             { return CostFallback }
func (f *FallbackIndex) SupportsQuery(kind QueryKind) bool { return true }

// RetrieveWithPredicate performs the full scan with pred, since the
// fallback index answers arbitrary queries rather than a fixed Query shape.
func (f *FallbackIndex) RetrieveWithPredicate(pred Predicate) resultset.ResultSet {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []string
	for k, rec := range f.records {
		if pred(k, rec) {
			out = append(out, k)
		}
	}
	return resultset.NewSet(out, CostFallback)
}

// Retrieve implements Index with an always-match predicate; callers
// needing real filtering should use RetrieveWithPredicate directly.
func (f *FallbackIndex) Retrieve(q Query) resultset.ResultSet {
	return f.RetrieveWithPredicate(func(string, any) bool { return true })
}

func (f *FallbackIndex) Add(key string, record any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[key] = record
}

func (f *FallbackIndex) Remove(key string, record any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, key)
}

func (f *FallbackIndex) Update(key string, oldRecord, newRecord any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[key] = newRecord
}

func (f *FallbackIndex) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = make(map[string]any)
}

func (f *FallbackIndex) GetStats() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return Stats{EntryCount: len(f.records), DistinctKeys: len(f.records)}
}
