// Package kvmap assembles the per-subsystem pieces — HLC clock, LWW and
// OR-Set CRDT stores, conflict resolvers, Merkle summary tree, event
// journal, and (for IndexedMap) the index catalog, query planner,
// live-query manager, adaptive indexing, and full-text search — into the
// two façades a caller actually constructs: Map and IndexedMap.
package kvmap

import (
	"sync"
	"time"

	"github.com/replikv/replikv/internal/crdt"
	"github.com/replikv/replikv/internal/debug"
	"github.com/replikv/replikv/internal/debugrec"
	"github.com/replikv/replikv/internal/hlc"
	"github.com/replikv/replikv/internal/journal"
	"github.com/replikv/replikv/internal/merkle"
	"github.com/replikv/replikv/internal/resolver"
)

const defaultMerkleDepth = merkle.DefaultDepth

// MergeRejection is delivered to rejection listeners when a conflict
// resolver rejects an incoming merge. The map is left unchanged.
type MergeRejection struct {
	MapName        string
	Key            string
	AttemptedValue any
	Reason         string
	Timestamp      hlc.Timestamp
	NodeID         string
}

// RejectionListener observes MergeRejected events.
type RejectionListener func(MergeRejection)

// mutationHook is how IndexedMap (and any other observer) learns about a
// committed Set/Remove/Merge before the call returns, so index
// maintenance, live-query dispatch, and full-text reindexing stay
// synchronous with the mutation per the single-mutator discipline.
type mutationHook func(key string, oldValue any, hadOld bool, newValue any, removed bool)

// Config configures Map construction.
type Config struct {
	// Name identifies this map instance in journal events, debug
	// recordings, and resolver merge contexts.
	Name string
	// NodeID is this replica's identity, stamped on every HLC timestamp
	// this map's clock produces.
	NodeID string
	// ClockOptions customizes the HLC clock (source, drift policy).
	ClockOptions []hlc.Option
	// MerkleDepth overrides the summary tree's routing depth. Zero uses
	// the package default.
	MerkleDepth int
	// Journal configures the event journal. A zero Config.Capacity
	// defaults to 10000 entries.
	Journal journal.Config
	// Resolvers supplies a pre-populated resolver registry. Nil creates a
	// fresh registry with only the built-in resolvers.
	Resolvers *resolver.Registry
	// Auth is attached to every merge context this map's resolver hook
	// builds, for resolvers like owner_only/server_only.
	Auth *resolver.AuthInfo
}

// Map is the LWW-CRDT façade: set/remove/get/getRecord/merge/entries/
// keys/clear, with every mutation fanned out to the Merkle tree, the
// event journal, the CRDT debug recorder, and any registered mutation
// hooks (IndexedMap's index maintenance).
type Map struct {
	mu sync.RWMutex

	name   string
	nodeID string

	clock     *hlc.Clock
	store     *crdt.Store
	tree      *merkle.Tree
	journal   *journal.Journal
	resolvers *resolver.Registry
	auth      *resolver.AuthInfo

	recorder *debugrec.CRDTRecorder
	closed   bool

	hooks     []mutationHook
	rejectors []RejectionListener
}

// New constructs a Map from cfg.
func New(cfg Config) (*Map, error) {
	depth := cfg.MerkleDepth
	if depth <= 0 {
		depth = defaultMerkleDepth
	}
	j, err := journal.New(cfg.Journal)
	if err != nil {
		return nil, err
	}

	resolvers := cfg.Resolvers
	if resolvers == nil {
		resolvers = resolver.NewRegistry()
	}

	recorder := debugrec.DefaultCRDTRecorder()
	if debug.CRDTEnabled() {
		recorder.Enable()
	}

	m := &Map{
		name:      cfg.Name,
		nodeID:    cfg.NodeID,
		clock:     hlc.New(cfg.NodeID, cfg.ClockOptions...),
		tree:      merkle.New(depth),
		journal:   j,
		resolvers: resolvers,
		auth:      cfg.Auth,
		recorder:  recorder,
	}
	m.store = crdt.NewStore(m.clock)
	m.store.SetResolverHook(resolvers.Hook(cfg.Name, cfg.Auth, m.readEntry))
	m.store.SetRejectionListener(m.handleRejection)
	return m, nil
}

func (m *Map) readEntry(key string) (any, bool) {
	return m.store.Get(key)
}

func (m *Map) handleRejection(r crdt.Rejection) {
	rejection := MergeRejection{
		MapName:        m.name,
		Key:            r.Key,
		AttemptedValue: r.AttemptedValue,
		Reason:         r.Reason,
		Timestamp:      r.Timestamp,
		NodeID:         r.NodeID,
	}
	if m.recorder.Enabled() {
		m.recorder.RecordConflict(debugrec.RecordedConflict{
			MapID:    m.name,
			NodeID:   r.NodeID,
			Key:      r.Key,
			Incoming: r.AttemptedValue,
			Decision: "reject",
			Reason:   r.Reason,
		})
	}
	for _, listener := range m.rejectors {
		listener(rejection)
	}
}

// OnRejection registers a listener invoked synchronously whenever a
// resolver rejects an incoming merge.
func (m *Map) OnRejection(fn RejectionListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectors = append(m.rejectors, fn)
}

// onMutation registers a hook invoked after every committed Set/Remove/
// Merge, in registration order, while the map's write lock is held.
func (m *Map) onMutation(fn mutationHook) {
	m.hooks = append(m.hooks, fn)
}

func (m *Map) notifyLocked(key string, old any, hadOld bool, newValue any, removed bool) {
	for _, h := range m.hooks {
		h(key, old, hadOld, newValue, removed)
	}
}

func (m *Map) appendJournalLocked(eventType journal.EventType, key string, value, previous any) {
	m.journal.Append(journal.PendingEvent{
		Type:          eventType,
		MapName:       m.name,
		Key:           key,
		Value:         value,
		PreviousValue: previous,
		Timestamp:     time.Now(),
		NodeID:        m.nodeID,
	})
}

func (m *Map) recordOpLocked(op debugrec.Operation, key string, value any) {
	if !m.recorder.Enabled() {
		return
	}
	m.recorder.RecordOp(debugrec.RecordedOp{
		MapID:     m.name,
		NodeID:    m.nodeID,
		Operation: op,
		Key:       key,
		Value:     value,
	})
}

// Set stamps value with the map's current HLC time and stores it,
// replacing any prior record. ttlMillis of 0 means no expiry.
func (m *Map) Set(key string, value any, ttlMillis uint32) (crdt.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return crdt.Record{}, ErrJournalClosed
	}

	old, hadOld := m.store.Get(key)
	rec := m.store.Set(key, value, ttlMillis)
	m.tree.Update(key, rec.Timestamp.String())
	m.appendJournalLocked(journal.EventPut, key, value, old)
	m.recordOpLocked(debugrec.OpSet, key, value)
	m.notifyLocked(key, old, hadOld, value, false)
	return rec, nil
}

// Remove stores a tombstone for key at the map's current HLC time.
func (m *Map) Remove(key string) (crdt.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return crdt.Record{}, ErrJournalClosed
	}

	old, hadOld := m.store.Get(key)
	rec := m.store.Remove(key)
	m.tree.Remove(key)
	m.appendJournalLocked(journal.EventDelete, key, nil, old)
	m.recordOpLocked(debugrec.OpDelete, key, nil)
	if hadOld {
		m.notifyLocked(key, old, true, nil, true)
	}
	return rec, nil
}

// Get returns the live value for key, or (nil, false) if missing,
// tombstoned, or expired.
func (m *Map) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store.Get(key)
}

// GetRecord returns the full stored record for key, including tombstones,
// or (Record{}, false) if never written.
func (m *Map) GetRecord(key string) (crdt.Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store.GetRecord(key)
}

// Merge applies an incoming record through the resolver pipeline,
// reporting whether the stored record changed.
func (m *Map) Merge(key string, incoming crdt.Record) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrJournalClosed
	}

	old, hadOld := m.store.Get(key)
	changed, err := m.store.Merge(key, incoming)
	if err != nil || !changed {
		return changed, err
	}

	rec, _ := m.store.GetRecord(key)
	m.tree.Update(key, rec.Timestamp.String())
	eventType := journal.EventUpdate
	if rec.IsTombstone() {
		eventType = journal.EventDelete
	}
	m.appendJournalLocked(eventType, key, rec.Value, old)
	m.recordOpLocked(debugrec.OpMerge, key, rec.Value)
	m.notifyLocked(key, old, hadOld, rec.Value, rec.IsTombstone())
	return true, nil
}

// Entries calls fn for every live (non-tombstoned, non-expired) entry,
// stopping early if fn returns false.
func (m *Map) Entries(fn func(key string, value any) bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.store.Entries(fn)
}

// Keys returns every live key.
func (m *Map) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store.Keys()
}

// Snapshot returns a copy of every live (key, value) pair, used by index
// and live-query construction to backfill from current state.
func (m *Map) Snapshot() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any)
	m.store.Entries(func(key string, value any) bool {
		out[key] = value
		return true
	})
	return out
}

// Clear wipes all stored records. The HLC clock is not reset.
func (m *Map) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store.Clear()
	m.tree = merkle.New(m.tree.Depth())
}

// Len reports the number of live entries.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store.Len()
}

// RootHash returns the Merkle summary tree's current root digest, usable
// to cheaply compare replica convergence without exchanging full state.
func (m *Map) RootHash() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.RootHash()
}

// Journal returns the map's event journal, for readFrom/subscribe/
// compact/dispose access.
func (m *Map) Journal() *journal.Journal {
	return m.journal
}

// Resolvers returns the map's conflict-resolver registry, for
// registering additional resolver definitions.
func (m *Map) Resolvers() *resolver.Registry {
	return m.resolvers
}

// Clock returns the map's HLC clock.
func (m *Map) Clock() *hlc.Clock {
	return m.clock
}

// Close disposes the journal and marks the map closed; subsequent
// mutating calls return ErrJournalClosed.
func (m *Map) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.journal.Dispose()
	return nil
}
