// Package adaptive implements the pattern tracker, advisor, and
// auto-index manager: optional cooperating pieces that observe planner
// query costs and suggest (or transparently create) new indexes.
package adaptive

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Stat accumulates observations for one (attribute, queryType) pattern.
type Stat struct {
	Attribute            string
	QueryType            string
	Count                int
	TotalCost            int
	LastQueried          time.Time
	EstimatedCardinality int
	IndexExists          bool
}

func (s Stat) averageCost() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.TotalCost) / float64(s.Count)
}

// CompoundStat accumulates observations for one compound attribute set.
type CompoundStat struct {
	Attributes  []string
	Count       int
	TotalCost   int
	LastQueried time.Time
	IndexExists bool
}

func (s CompoundStat) averageCost() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.TotalCost) / float64(s.Count)
}

func compoundKey(attrs []string) string {
	cp := append([]string(nil), attrs...)
	return strings.Join(cp, "\x00")
}

// Tracker holds a bounded (attribute, queryType) -> Stat map and a
// parallel (attribute set) -> CompoundStat map, each an LRU-evicting,
// TTL-pruning cache. Optional sampling observes only 1-in-N queries.
type Tracker struct {
	simple   *expirable.LRU[string, *Stat]
	compound *expirable.LRU[string, *CompoundStat]
	sample   int
	seen     int
	now      func() time.Time
}

// NewTracker creates a tracker with the given capacity and TTL. sampleEvery
// of 0 or 1 observes every query; N>1 observes 1 in N.
func NewTracker(capacity int, ttl time.Duration, sampleEvery int, now func() time.Time) *Tracker {
	if sampleEvery < 1 {
		sampleEvery = 1
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		simple:   expirable.NewLRU[string, *Stat](capacity, nil, ttl),
		compound: expirable.NewLRU[string, *CompoundStat](capacity, nil, ttl),
		sample:   sampleEvery,
		now:      now,
	}
}

func simpleKey(attribute, queryType string) string { return attribute + "\x00" + queryType }

// shouldSample reports whether this observation should be recorded,
// advancing the internal counter regardless.
func (t *Tracker) shouldSample() bool {
	t.seen++
	return t.seen%t.sample == 0
}

// RecordQuery observes one query against attribute of queryType, with the
// cost the planner assigned it.
func (t *Tracker) RecordQuery(attribute, queryType string, cost int, indexExists bool) {
	if !t.shouldSample() {
		return
	}
	key := simpleKey(attribute, queryType)
	stat, ok := t.simple.Get(key)
	if !ok {
		stat = &Stat{Attribute: attribute, QueryType: queryType}
	}
	stat.Count++
	stat.TotalCost += cost
	stat.LastQueried = t.now()
	stat.IndexExists = indexExists
	t.simple.Add(key, stat)
}

// RecordCompoundQuery observes an `and` plan that used two or more simple
// eq child conditions, as candidate compound-index input.
func (t *Tracker) RecordCompoundQuery(attributes []string, cost int, indexExists bool) {
	if len(attributes) < 2 {
		return
	}
	if !t.shouldSample() {
		return
	}
	key := compoundKey(attributes)
	stat, ok := t.compound.Get(key)
	if !ok {
		stat = &CompoundStat{Attributes: append([]string(nil), attributes...)}
	}
	stat.Count++
	stat.TotalCost += cost
	stat.LastQueried = t.now()
	stat.IndexExists = indexExists
	t.compound.Add(key, stat)
}

// SetCardinality records an attribute's estimated cardinality, used by
// the advisor's memory-cost estimate.
func (t *Tracker) SetCardinality(attribute, queryType string, cardinality int) {
	key := simpleKey(attribute, queryType)
	if stat, ok := t.simple.Get(key); ok {
		stat.EstimatedCardinality = cardinality
	}
}

// ResetAttribute clears every pattern recorded for attribute, across all
// query types.
func (t *Tracker) ResetAttribute(attribute string) {
	for _, key := range t.simple.Keys() {
		if stat, ok := t.simple.Peek(key); ok && stat.Attribute == attribute {
			t.simple.Remove(key)
		}
	}
}

// Reset purges every tracked simple and compound pattern, the way a
// caller asks for a clean slate after reconfiguring indexes.
func (t *Tracker) Reset() {
	t.simple.Purge()
	t.compound.Purge()
	t.seen = 0
}

// Stats returns a snapshot of every currently-tracked simple pattern.
func (t *Tracker) Stats() []Stat {
	out := make([]Stat, 0, t.simple.Len())
	for _, key := range t.simple.Keys() {
		if stat, ok := t.simple.Peek(key); ok {
			out = append(out, *stat)
		}
	}
	return out
}

// CompoundStats returns a snapshot of every currently-tracked compound
// pattern.
func (t *Tracker) CompoundStats() []CompoundStat {
	out := make([]CompoundStat, 0, t.compound.Len())
	for _, key := range t.compound.Keys() {
		if stat, ok := t.compound.Peek(key); ok {
			out = append(out, *stat)
		}
	}
	return out
}
