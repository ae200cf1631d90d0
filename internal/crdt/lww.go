// Package crdt implements the replicated record stores: a last-write-wins
// map with tombstones and TTL expiry (Component D), and an observed-remove
// set variant for multi-value keys (Component E).
package crdt

import (
	"errors"
	"fmt"
	"sync"

	"github.com/replikv/replikv/internal/hlc"
)

// ErrInvalidRecord is returned when a record presented to Merge is
// structurally invalid (e.g. a nil timestamp).
var ErrInvalidRecord = errors.New("crdt: invalid record")

// Record is a single LWW-tracked value. A nil Value denotes a tombstone.
type Record struct {
	Value     any
	Timestamp hlc.Timestamp
	TTLMillis uint32 // 0 means no expiry
}

// ExpiresAt returns the absolute millis at which r expires, or 0 if it
// never expires.
func (r Record) ExpiresAt() uint64 {
	if r.TTLMillis == 0 {
		return 0
	}
	return r.Timestamp.Millis + uint64(r.TTLMillis)
}

func (r Record) expiredAt(nowMillis uint64) bool {
	exp := r.ExpiresAt()
	return exp != 0 && exp <= nowMillis
}

// IsTombstone reports whether r represents a deletion.
func (r Record) IsTombstone() bool { return r.Value == nil }

// MergeDecision is the outcome a conflict resolver may impose on an
// incoming merge, overriding the default "timestamp wins" rule.
type MergeDecision int

const (
	// DecisionDefault lets the LWW timestamp comparison decide.
	DecisionDefault MergeDecision = iota
	// DecisionAccept stores the incoming value unconditionally.
	DecisionAccept
	// DecisionReject drops the incoming value, emitting a rejection.
	DecisionReject
	// DecisionLocal keeps the current local value.
	DecisionLocal
	// DecisionMerge stores a custom value supplied by the resolver, with
	// the timestamp still advanced to the incoming timestamp.
	DecisionMerge
)

// Resolution is what a resolver hook returns for a pending merge.
type Resolution struct {
	Decision MergeDecision
	Value    any    // used only when Decision == DecisionMerge
	Reason   string // used only when Decision == DecisionReject
}

// ResolverHook is consulted before accepting an incoming record. It may
// return a zero Resolution{} (DecisionDefault) to defer to plain LWW.
type ResolverHook func(key string, local *Record, incoming Record) (Resolution, error)

// Rejection describes a merge a resolver hook rejected.
type Rejection struct {
	Key           string
	AttemptedValue any
	Reason        string
	Timestamp     hlc.Timestamp
	NodeID        string
}

// Store is a last-write-wins record map guarded by the given HLC. It is
// safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	clock  *hlc.Clock
	data   map[string]Record
	hook   ResolverHook
	onRej  func(Rejection)
}

// NewStore creates an empty LWW store bound to clock.
func NewStore(clock *hlc.Clock) *Store {
	return &Store{clock: clock, data: make(map[string]Record)}
}

// SetResolverHook installs (or clears, with nil) the conflict resolver
// consulted before accepting incoming merges.
func (s *Store) SetResolverHook(hook ResolverHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

// SetRejectionListener installs a callback invoked whenever a resolver
// rejects an incoming merge.
func (s *Store) SetRejectionListener(fn func(Rejection)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRej = fn
}

// Set stamps value with a fresh local timestamp and stores it.
func (s *Store) Set(key string, value any, ttlMillis uint32) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := Record{Value: value, Timestamp: s.clock.Now(), TTLMillis: ttlMillis}
	s.data[key] = rec
	return rec
}

// Remove stores a tombstone for key at a fresh local timestamp.
func (s *Store) Remove(key string) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := Record{Value: nil, Timestamp: s.clock.Now()}
	s.data[key] = rec
	return rec
}

// Get returns the visible value for key, or (nil, false) if missing,
// tombstoned, or expired.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[key]
	if !ok || rec.IsTombstone() || rec.expiredAt(s.clock.Now().Millis) {
		return nil, false
	}
	return rec.Value, true
}

// GetRecord returns the stored record for key including tombstones, or
// (Record{}, false) if never written.
func (s *Store) GetRecord(key string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[key]
	return rec, ok
}

// Merge folds an incoming record into the store. It returns whether the
// stored state changed. incoming.Timestamp must be non-zero.
func (s *Store) Merge(key string, incoming Record) (changed bool, err error) {
	if incoming.Timestamp == (hlc.Timestamp{}) {
		return false, fmt.Errorf("%w: zero timestamp for key %q", ErrInvalidRecord, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.clock.Update(incoming.Timestamp); err != nil {
		return false, err
	}

	local, hasLocal := s.data[key]
	var localPtr *Record
	if hasLocal {
		localPtr = &local
	}

	decision := Resolution{Decision: DecisionDefault}
	if s.hook != nil {
		decision, err = s.hook(key, localPtr, incoming)
		if err != nil {
			return false, fmt.Errorf("crdt: resolver failure for key %q: %w", key, err)
		}
	}

	switch decision.Decision {
	case DecisionAccept:
		s.data[key] = incoming
		return true, nil
	case DecisionLocal:
		return false, nil
	case DecisionReject:
		if s.onRej != nil {
			s.onRej(Rejection{
				Key:            key,
				AttemptedValue: incoming.Value,
				Reason:         decision.Reason,
				Timestamp:      incoming.Timestamp,
				NodeID:         incoming.Timestamp.NodeID,
			})
		}
		return false, nil
	case DecisionMerge:
		merged := Record{Value: decision.Value, Timestamp: incoming.Timestamp, TTLMillis: incoming.TTLMillis}
		s.data[key] = merged
		return true, nil
	default: // DecisionDefault: plain LWW
		if !hasLocal || incoming.Timestamp.After(local.Timestamp) {
			s.data[key] = incoming
			return true, nil
		}
		return false, nil
	}
}

// Entries iterates over live (non-tombstone, non-expired) key/value pairs.
func (s *Store) Entries(fn func(key string, value any) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.clock.Now().Millis
	for k, rec := range s.data {
		if rec.IsTombstone() || rec.expiredAt(now) {
			continue
		}
		if !fn(k, rec.Value) {
			return
		}
	}
}

// Keys returns all live keys.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.clock.Now().Millis
	keys := make([]string, 0, len(s.data))
	for k, rec := range s.data {
		if rec.IsTombstone() || rec.expiredAt(now) {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

// Clear wipes all stored records. It does not reset the associated clock.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]Record)
}

// Len returns the number of stored records, including tombstones.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
