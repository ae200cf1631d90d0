package kvmap

import (
	"sync"

	"github.com/replikv/replikv/internal/crdt"
	"github.com/replikv/replikv/internal/hlc"
)

// MultiMapConfig configures MultiMap construction.
type MultiMapConfig struct {
	NodeID       string
	ClockOptions []hlc.Option
}

// MultiMap is the OR-Set façade: a key maps to a set of concurrently-added
// values, each tagged with the HLC timestamp that added it. add/remove are
// commutative and reconverge under replay in any order; a value survives
// as long as any one of its add-tags remains untombstoned.
type MultiMap struct {
	mu sync.RWMutex

	clock *hlc.Clock
	store *crdt.ORSetStore
}

// NewMultiMap constructs a MultiMap from cfg.
func NewMultiMap(cfg MultiMapConfig) *MultiMap {
	clock := hlc.New(cfg.NodeID, cfg.ClockOptions...)
	return &MultiMap{
		clock: clock,
		store: crdt.NewORSetStore(clock),
	}
}

// Add inserts value under key with a fresh local tag.
func (m *MultiMap) Add(key string, value any, ttlMillis uint32) crdt.ORRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Add(key, value, ttlMillis)
}

// Remove retires every live tag under key whose value equals value,
// returning the retired tags.
func (m *MultiMap) Remove(key string, value any) []hlc.Timestamp {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Remove(key, value)
}

// Apply folds an inbound record under key into the store, reporting
// whether a new tag was added.
func (m *MultiMap) Apply(key string, rec crdt.ORRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Apply(key, rec)
}

// ApplyTombstone idempotently retires tag across all keys.
func (m *MultiMap) ApplyTombstone(tag hlc.Timestamp) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store.ApplyTombstone(tag)
}

// GetRecords returns the live records under key.
func (m *MultiMap) GetRecords(key string) []crdt.ORRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store.GetRecords(key)
}

// GetValues returns the live values under key, dropping tag metadata.
func (m *MultiMap) GetValues(key string) []any {
	records := m.GetRecords(key)
	out := make([]any, len(records))
	for i, r := range records {
		out[i] = r.Value
	}
	return out
}

// GetSnapshot returns the full per-key tag map and tombstone set.
func (m *MultiMap) GetSnapshot() crdt.ORSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store.GetSnapshot()
}

// Clear wipes all stored records and tombstones. Does not reset the clock.
func (m *MultiMap) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store.Clear()
}

// Clock returns the map's HLC clock.
func (m *MultiMap) Clock() *hlc.Clock {
	return m.clock
}
