package livequery

import (
	"log"

	"github.com/replikv/replikv/internal/index"
	"github.com/replikv/replikv/internal/planner"
	"github.com/replikv/replikv/internal/query"
)

// EventType names the two event shapes a subscriber callback receives.
type EventType string

const (
	EventInitial EventType = "initial"
	EventDelta   EventType = "delta"
)

// Operation names the mutation that triggered a delta event.
type Operation string

const (
	OpAdd    Operation = "add"
	OpUpdate Operation = "update"
	OpRemove Operation = "remove"
)

// Event is delivered to every subscriber of a standing query.
type Event struct {
	Type  EventType
	Keys  []string // populated for EventInitial

	Key            string // populated for EventDelta
	Record         any
	Change         index.ChangeKind
	Operation      Operation
	NewResultCount int

	// Populated only when the subscription is backed by a live-FTS index.
	Score        float64
	OldScore     float64
	MatchedTerms []string
}

// Callback receives events for one subscription.
type Callback func(Event)

// Snapshot enumerates every currently-stored (key, record) pair, used to
// build a new standing index from scratch on first subscribe.
type Snapshot func() map[string]any

type subscription struct {
	node      query.Node
	standing  *index.StandingIndex
	callbacks map[uint64]Callback
}

// Manager holds a registry of standing queries keyed by canonical query
// hash, and dispatches record-level notifications to every matching
// subscriber.
type Manager struct {
	catalog  *planner.Catalog
	attrs    query.Attributes
	snapshot Snapshot

	entries map[string]*subscription
	nextID  uint64
}

// NewManager creates a live-query manager registering standing indexes
// into catalog so the planner's standing-lookup step can reuse them.
func NewManager(catalog *planner.Catalog, attrs query.Attributes, snapshot Snapshot) *Manager {
	return &Manager{
		catalog:  catalog,
		attrs:    attrs,
		snapshot: snapshot,
		entries:  make(map[string]*subscription),
	}
}

// Subscribe registers callback against node's query tree. If no standing
// index exists yet for node's canonical form, one is created and built
// from every current entry. The initial event is delivered synchronously,
// before Subscribe returns. The returned closure unregisters callback and,
// if no callbacks remain for that query, drops the standing index.
func (m *Manager) Subscribe(node query.Node, callback Callback) func() {
	canonical := query.Canonicalize(node)

	sub, exists := m.entries[canonical]
	if !exists {
		standing := index.NewStandingIndex(node, m.attrs)
		for key, record := range m.snapshot() {
			standing.Add(key, record)
		}
		m.catalog.AddStandingIndex(standing)
		sub = &subscription{node: node, standing: standing, callbacks: make(map[uint64]Callback)}
		m.entries[canonical] = sub
	}

	id := m.nextID
	m.nextID++
	sub.callbacks[id] = callback

	initialKeys := sub.standing.Retrieve(index.Query{}).Keys()
	callback(Event{Type: EventInitial, Keys: initialKeys})

	return func() {
		delete(sub.callbacks, id)
		if len(sub.callbacks) == 0 {
			delete(m.entries, canonical)
			m.catalog.RemoveStandingIndex(sub.standing)
		}
	}
}

func (m *Manager) dispatch(key string, record any, op Operation, change index.ChangeKind, sub *subscription) {
	if change == index.ChangeUnchanged {
		return
	}
	count := sub.standing.Retrieve(index.Query{}).Len()
	event := Event{
		Type:           EventDelta,
		Key:            key,
		Record:         record,
		Change:         change,
		Operation:      op,
		NewResultCount: count,
	}
	for _, cb := range sub.callbacks {
		invokeSafely(cb, event)
	}
}

func invokeSafely(cb Callback, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("livequery: subscriber callback panicked: %v", r)
		}
	}()
	cb(event)
}

// OnRecordAdded notifies every standing query of a new record.
func (m *Manager) OnRecordAdded(key string, record any) {
	for _, sub := range m.entries {
		change := sub.standing.Add(key, record)
		m.dispatch(key, record, OpAdd, change, sub)
	}
}

// OnRecordUpdated notifies every standing query of a record mutation.
func (m *Manager) OnRecordUpdated(key string, oldRecord, newRecord any) {
	for _, sub := range m.entries {
		change := sub.standing.Update(key, oldRecord, newRecord)
		m.dispatch(key, newRecord, OpUpdate, change, sub)
	}
}

// OnRecordRemoved notifies every standing query of a record removal.
func (m *Manager) OnRecordRemoved(key string, record any) {
	for _, sub := range m.entries {
		change := sub.standing.Remove(key, record)
		m.dispatch(key, record, OpRemove, change, sub)
	}
}

// SubscriptionCount reports the number of distinct standing queries with
// at least one active subscriber.
func (m *Manager) SubscriptionCount() int {
	return len(m.entries)
}
