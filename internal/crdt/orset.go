package crdt

import (
	"sync"

	"github.com/replikv/replikv/internal/hlc"
)

// ORRecord is a single tagged value in an OR-Set key's live set.
type ORRecord struct {
	Tag       hlc.Timestamp
	Value     any
	TTLMillis uint32
}

func (r ORRecord) expiresAt() uint64 {
	if r.TTLMillis == 0 {
		return 0
	}
	return r.Tag.Millis + uint64(r.TTLMillis)
}

func (r ORRecord) expiredAt(nowMillis uint64) bool {
	exp := r.expiresAt()
	return exp != 0 && exp <= nowMillis
}

// ORSnapshot is the full per-key tag map plus tombstone set, for consumers
// like indexers and full-text search that need raw CRDT state.
type ORSnapshot struct {
	Live       map[string]map[hlc.Timestamp]ORRecord
	Tombstones map[hlc.Timestamp]struct{}
}

// ORSetStore holds, per key, a set of tagged records plus a process-wide
// tombstone set of retired tags. Safe for concurrent use.
type ORSetStore struct {
	mu         sync.RWMutex
	clock      *hlc.Clock
	byKey      map[string]map[hlc.Timestamp]ORRecord
	tombstones map[hlc.Timestamp]struct{}
}

// NewORSetStore creates an empty OR-Set store bound to clock.
func NewORSetStore(clock *hlc.Clock) *ORSetStore {
	return &ORSetStore{
		clock:      clock,
		byKey:      make(map[string]map[hlc.Timestamp]ORRecord),
		tombstones: make(map[hlc.Timestamp]struct{}),
	}
}

// Add inserts value under key with a fresh local tag, returning the new
// record.
func (s *ORSetStore) Add(key string, value any, ttlMillis uint32) ORRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := ORRecord{Tag: s.clock.Now(), Value: value, TTLMillis: ttlMillis}
	tags, ok := s.byKey[key]
	if !ok {
		tags = make(map[hlc.Timestamp]ORRecord)
		s.byKey[key] = tags
	}
	tags[rec.Tag] = rec
	return rec
}

// Remove retires every live tag under key whose value equals value
// (compared with ==), moving them to the tombstone set. It returns the
// retired tags.
func (s *ORSetStore) Remove(key string, value any) []hlc.Timestamp {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags, ok := s.byKey[key]
	if !ok {
		return nil
	}
	now := s.clock.Now().Millis
	var removed []hlc.Timestamp
	for tag, rec := range tags {
		if _, tomb := s.tombstones[tag]; tomb {
			continue
		}
		if rec.expiredAt(now) {
			continue
		}
		if rec.Value == value {
			s.tombstones[tag] = struct{}{}
			removed = append(removed, tag)
		}
	}
	return removed
}

// Apply folds an inbound record under key at its own tag into the store.
// If the tag is already tombstoned the record is ignored. Returns whether
// a new tag was added.
func (s *ORSetStore) Apply(key string, rec ORRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.clock.Update(rec.Tag); err != nil {
		return false, err
	}

	if _, tomb := s.tombstones[rec.Tag]; tomb {
		return false, nil
	}

	tags, ok := s.byKey[key]
	if !ok {
		tags = make(map[hlc.Timestamp]ORRecord)
		s.byKey[key] = tags
	}
	if _, exists := tags[rec.Tag]; exists {
		return false, nil
	}
	tags[rec.Tag] = rec
	return true, nil
}

// ApplyTombstone idempotently retires tag across all keys.
func (s *ORSetStore) ApplyTombstone(tag hlc.Timestamp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tombstones[tag] = struct{}{}
}

// GetRecords returns the live (non-tombstoned, non-expired) records under
// key.
func (s *ORSetStore) GetRecords(key string) []ORRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tags, ok := s.byKey[key]
	if !ok {
		return nil
	}
	now := s.clock.Now().Millis
	out := make([]ORRecord, 0, len(tags))
	for tag, rec := range tags {
		if _, tomb := s.tombstones[tag]; tomb {
			continue
		}
		if rec.expiredAt(now) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// GetSnapshot returns a deep-enough copy of the per-key tag map and
// tombstone set for consumers (indexers, full-text) that need raw state.
func (s *ORSetStore) GetSnapshot() ORSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	live := make(map[string]map[hlc.Timestamp]ORRecord, len(s.byKey))
	for k, tags := range s.byKey {
		copied := make(map[hlc.Timestamp]ORRecord, len(tags))
		for tag, rec := range tags {
			copied[tag] = rec
		}
		live[k] = copied
	}
	tomb := make(map[hlc.Timestamp]struct{}, len(s.tombstones))
	for t := range s.tombstones {
		tomb[t] = struct{}{}
	}
	return ORSnapshot{Live: live, Tombstones: tomb}
}

// Clear wipes all stored records and tombstones. Does not reset the clock.
func (s *ORSetStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey = make(map[string]map[hlc.Timestamp]ORRecord)
	s.tombstones = make(map[hlc.Timestamp]struct{})
}
