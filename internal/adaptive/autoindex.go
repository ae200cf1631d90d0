package adaptive

import (
	"log"

	"github.com/replikv/replikv/internal/attribute"
	"github.com/replikv/replikv/internal/index"
	"github.com/replikv/replikv/internal/planner"
)

// Snapshot enumerates every currently-stored (key, record) pair, used to
// backfill a newly created index from scratch.
type Snapshot func() map[string]any

// AttributeLookup resolves a registered attribute's name to its
// projection, used to build new indexes on the fly.
type AttributeLookup func(name string) (attribute.Attribute, bool)

// Manager observes query patterns via a Tracker, consults an Advisor, and,
// when enabled, transparently creates the suggested index once a pattern
// crosses Threshold observations.
type Manager struct {
	tracker   *Tracker
	advisor   *Advisor
	catalog   *planner.Catalog
	lookup    AttributeLookup
	snapshot  Snapshot
	threshold int
	enabled   bool
	onCreate  func(Suggestion)
}

// NewManager creates an auto-index manager. threshold is the minimum
// per-pattern query count before a suggestion is acted on; it is also
// passed to the advisor as MinSamples.
func NewManager(tracker *Tracker, catalog *planner.Catalog, lookup AttributeLookup, snapshot Snapshot, threshold int) *Manager {
	if threshold < 1 {
		threshold = 1
	}
	return &Manager{
		tracker:   tracker,
		advisor:   NewAdvisor(tracker, threshold),
		catalog:   catalog,
		lookup:    lookup,
		snapshot:  snapshot,
		threshold: threshold,
	}
}

// SetEnabled toggles transparent auto-indexing. When disabled, queries are
// still tracked (so suggestions remain available via Suggestions), but no
// index is created automatically.
func (m *Manager) SetEnabled(enabled bool) { m.enabled = enabled }

// Enabled reports whether auto-indexing is currently active.
func (m *Manager) Enabled() bool { return m.enabled }

// OnIndexCreated registers a callback invoked whenever auto-indexing
// creates a new index, e.g. for logging or telemetry.
func (m *Manager) OnIndexCreated(fn func(Suggestion)) { m.onCreate = fn }

// RecordQuery observes one simple query against attribute, then, if
// enabled, checks whether it just crossed the auto-index threshold and
// creates the recommended index if so.
func (m *Manager) RecordQuery(attr, queryType string, cost int) {
	exists := m.catalog.HasIndexFor(attr)
	m.tracker.RecordQuery(attr, queryType, cost, exists)
	if !m.enabled || exists {
		return
	}
	m.maybeCreateSimple(attr)
}

// RecordCompoundQuery observes an `and` plan whose children were all
// simple eq conditions over distinct attributes, then, if enabled, checks
// the compound threshold.
func (m *Manager) RecordCompoundQuery(attrs []string, cost int) {
	exists := m.catalog.HasCompoundFor(attrs)
	m.tracker.RecordCompoundQuery(attrs, cost, exists)
	if !m.enabled || exists {
		return
	}
	m.maybeCreateCompound(attrs)
}

// Suggestions returns the advisor's current ranked recommendations
// without creating anything, for callers that want visibility without
// enabling auto-indexing.
func (m *Manager) Suggestions() []Suggestion {
	return m.advisor.Suggestions()
}

func (m *Manager) maybeCreateSimple(attrName string) {
	for _, s := range m.advisor.Suggestions() {
		if s.Attribute != attrName || s.Kind == IndexCompound {
			continue
		}
		if s.Frequency < m.threshold {
			return
		}
		attr, ok := m.lookup(attrName)
		if !ok {
			return
		}
		idx := m.buildSimple(attr, s.Kind)
		if idx == nil {
			return
		}
		for key, record := range m.snapshot() {
			idx.Add(key, record)
		}
		m.catalog.AddIndex(idx)
		m.tracker.ResetAttribute(attrName)
		if m.onCreate != nil {
			m.onCreate(s)
		}
		log.Printf("adaptive: created %s index on %q after %d observed queries", s.Kind, attrName, s.Frequency)
		return
	}
}

func (m *Manager) maybeCreateCompound(attrs []string) {
	for _, s := range m.advisor.Suggestions() {
		if s.Kind != IndexCompound || !sameSet(s.Attributes, attrs) {
			continue
		}
		if s.Frequency < m.threshold {
			return
		}
		ordered := make([]attribute.Attribute, 0, len(attrs))
		for _, name := range attrs {
			attr, ok := m.lookup(name)
			if !ok {
				return
			}
			ordered = append(ordered, attr)
		}
		compound := index.NewCompoundIndex(ordered)
		for key, record := range m.snapshot() {
			compound.Add(key, record)
		}
		m.catalog.AddCompoundIndex(compound)
		if m.onCreate != nil {
			m.onCreate(s)
		}
		log.Printf("adaptive: created compound index on %v after %d observed queries", attrs, s.Frequency)
		return
	}
}

func (m *Manager) buildSimple(attr attribute.Attribute, kind IndexKind) index.Index {
	switch kind {
	case IndexHash:
		return index.NewHashIndex(attr)
	case IndexNavigable:
		return index.NewNavigableIndex(attr, nil)
	case IndexInverted:
		return index.NewInvertedIndex(attr, index.DefaultPipeline())
	default:
		return nil
	}
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, name := range a {
		seen[name] = struct{}{}
	}
	for _, name := range b {
		if _, ok := seen[name]; !ok {
			return false
		}
	}
	return true
}
