package index

import (
	"sync"

	"github.com/replikv/replikv/internal/attribute"
	"github.com/replikv/replikv/internal/query"
	"github.com/replikv/replikv/internal/resultset"
)

// ChangeKind describes how a standing query's membership for a key changed
// after a record add/update/remove.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeRemoved  ChangeKind = "removed"
	ChangeUpdated  ChangeKind = "updated"
	ChangeUnchanged ChangeKind = "unchanged"
)

// StandingIndex pre-computes and maintains the result set for one fixed
// query tree, re-evaluating the predicate incrementally on every
// add/update/remove rather than rescanning on retrieval.
type StandingIndex struct {
	mu           sync.RWMutex
	node         query.Node
	canonical    string
	attrs        query.Attributes
	members      map[string]struct{}
}

// NewStandingIndex creates a standing index maintaining node's result set
// against records projected through attrs.
func NewStandingIndex(node query.Node, attrs query.Attributes) *StandingIndex {
	return &StandingIndex{
		node:      node,
		canonical: query.Canonicalize(node),
		attrs:     attrs,
		members:   make(map[string]struct{}),
	}
}

// Canonical returns the canonicalized query tree string used for
// structural-equality matching against incoming queries.
func (s *StandingIndex) Canonical() string { return s.canonical }

// Matches reports whether node is structurally equal to the query this
// index maintains.
func (s *StandingIndex) Matches(node query.Node) bool {
	return query.Canonicalize(node) == s.canonical
}

func (s *StandingIndex) Attribute() attribute.Attribute { return nil }
func (s *StandingIndex) Type() string                   { return "standing" }
func (s *StandingIndex) RetrievalCost() int             { return CostStanding }

func (s *StandingIndex) SupportsQuery(kind QueryKind) bool { return kind == QueryCompound }

func (s *StandingIndex) Retrieve(q Query) resultset.ResultSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.members))
	for k := range s.members {
		out = append(out, k)
	}
	return resultset.NewSet(out, CostStanding)
}

// determineChange classifies the membership transition for key given
// whether it satisfied the query before (wasMember) and after (isMember)
// this mutation.
func determineChange(wasMember, isMember bool) ChangeKind {
	switch {
	case !wasMember && isMember:
		return ChangeAdded
	case wasMember && !isMember:
		return ChangeRemoved
	case wasMember && isMember:
		return ChangeUpdated
	default:
		return ChangeUnchanged
	}
}

// Add evaluates record against the query and adds key to the maintained
// set if it matches, returning the resulting change classification.
func (s *StandingIndex) Add(key string, record any) ChangeKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, was := s.members[key]
	is := query.Match(s.node, record, s.attrs)
	if is {
		s.members[key] = struct{}{}
	} else {
		delete(s.members, key)
	}
	return determineChange(was, is)
}

// Remove drops key from the maintained set unconditionally, returning the
// resulting change classification.
func (s *StandingIndex) Remove(key string, record any) ChangeKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, was := s.members[key]
	delete(s.members, key)
	return determineChange(was, false)
}

// Update re-evaluates the query against newRecord, returning the resulting
// change classification.
func (s *StandingIndex) Update(key string, oldRecord, newRecord any) ChangeKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, was := s.members[key]
	is := query.Match(s.node, newRecord, s.attrs)
	if is {
		s.members[key] = struct{}{}
	} else {
		delete(s.members, key)
	}
	return determineChange(was, is)
}

func (s *StandingIndex) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = make(map[string]struct{})
}

func (s *StandingIndex) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{EntryCount: len(s.members), DistinctKeys: len(s.members)}
}
