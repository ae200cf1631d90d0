package kvmap

import (
	"fmt"
	"sync"

	"github.com/replikv/replikv/internal/adaptive"
	"github.com/replikv/replikv/internal/attribute"
	"github.com/replikv/replikv/internal/bm25"
	"github.com/replikv/replikv/internal/config"
	"github.com/replikv/replikv/internal/crdt"
	"github.com/replikv/replikv/internal/debug"
	"github.com/replikv/replikv/internal/debugrec"
	"github.com/replikv/replikv/internal/index"
	"github.com/replikv/replikv/internal/livequery"
	"github.com/replikv/replikv/internal/planner"
	"github.com/replikv/replikv/internal/query"
	"github.com/replikv/replikv/internal/resultset"
)

// lazyProgressEvery is how often a lazily-built index invokes its
// progress callback while replaying its buffered ops.
const lazyProgressEvery = 500

// FullTextConfig configures EnableFullTextSearch.
type FullTextConfig struct {
	// FieldOf extracts the searchable text from a stored record.
	FieldOf func(record any) string
	// Pipeline tokenizes text for indexing and search. Zero value uses
	// bm25's default.
	Pipeline index.Pipeline
}

// IndexedMap owns a Map and layers index maintenance, the cost-based
// query planner, live queries, adaptive indexing, and full-text search on
// top of it. Per mutation, index/live-query/search side effects fire in
// the order their owning pieces were registered.
type IndexedMap struct {
	mu sync.RWMutex

	base *Map
	opts config.Options

	attrs    query.Attributes
	catalog  *planner.Catalog
	fallback *index.FallbackIndex

	indexes     []index.Index
	lazyIndexes []*index.LazyIndex

	liveManager *livequery.Manager

	tracker     *adaptive.Tracker
	advisor     *adaptive.Advisor
	autoManager *adaptive.Manager

	fts      *bm25.Index
	ftsField func(record any) string

	searchRecorder *debugrec.SearchRecorder
}

// NewIndexed constructs an IndexedMap over base, applying opts. A zero
// opts is equivalent to config.DefaultOptions().
func NewIndexed(base *Map, opts config.Options) *IndexedMap {
	attrs := make(query.Attributes)
	fallback := index.NewFallbackIndex()

	im := &IndexedMap{
		base:           base,
		opts:           opts,
		attrs:          attrs,
		fallback:       fallback,
		searchRecorder: debugrec.DefaultSearchRecorder(),
	}
	if debug.SearchEnabled() {
		im.searchRecorder.Enable()
	}

	im.catalog = planner.NewCatalog(attrs, im.lookupRecord, im.allKeys, fallback)

	tracker := adaptive.NewTracker(4096, 0, 1, nil)
	im.tracker = tracker
	minSamples := opts.AdaptiveIndexing.Advisor.MinQueryCount
	if minSamples < 1 {
		minSamples = 1
	}
	im.advisor = adaptive.NewAdvisor(tracker, minSamples)
	im.autoManager = adaptive.NewManager(tracker, im.catalog, im.lookupAttribute, im.snapshot, opts.AdaptiveIndexing.AutoIndex.Threshold)
	im.autoManager.SetEnabled(opts.AdaptiveIndexing.AutoIndex.Enabled)

	im.liveManager = livequery.NewManager(im.catalog, attrs, im.snapshot)

	for key, record := range base.Snapshot() {
		fallback.Add(key, record)
	}

	base.onMutation(im.handleMutation)
	return im
}

func (im *IndexedMap) lookupRecord(key string) (any, bool) {
	return im.base.Get(key)
}

func (im *IndexedMap) allKeys() []string {
	return im.base.Keys()
}

func (im *IndexedMap) snapshot() map[string]any {
	return im.base.Snapshot()
}

func (im *IndexedMap) lookupAttribute(name string) (attribute.Attribute, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	attr, ok := im.attrs[name]
	return attr, ok
}

// handleMutation is the Map mutation hook: it fans a committed Set/
// Remove/Merge out to every registered index (in registration order),
// the fallback index, the live-query manager, and the full-text index.
func (im *IndexedMap) handleMutation(key string, oldValue any, hadOld bool, newValue any, removed bool) {
	im.mu.Lock()
	defer im.mu.Unlock()

	switch {
	case removed:
		for _, idx := range im.indexes {
			idx.Remove(key, oldValue)
		}
		im.fallback.Remove(key, oldValue)
		im.liveManager.OnRecordRemoved(key, oldValue)
		if im.fts != nil {
			im.fts.OnRemove(key)
		}
	case hadOld:
		for _, idx := range im.indexes {
			idx.Update(key, oldValue, newValue)
		}
		im.fallback.Update(key, oldValue, newValue)
		im.liveManager.OnRecordUpdated(key, oldValue, newValue)
		if im.fts != nil {
			im.fts.OnSet(key, newValue)
		}
	default:
		for _, idx := range im.indexes {
			idx.Add(key, newValue)
		}
		im.fallback.Add(key, newValue)
		im.liveManager.OnRecordAdded(key, newValue)
		if im.fts != nil {
			im.fts.OnSet(key, newValue)
		}
	}
}

// --- Map passthrough (composition, not inheritance: every call forwards
// to the owned base map; index/live-query/search side effects happen via
// the mutation hook registered at construction). ---

func (im *IndexedMap) Set(key string, value any, ttlMillis uint32) (crdt.Record, error) {
	return im.base.Set(key, value, ttlMillis)
}

func (im *IndexedMap) Remove(key string) (crdt.Record, error) {
	return im.base.Remove(key)
}

func (im *IndexedMap) Get(key string) (any, bool) {
	return im.base.Get(key)
}

func (im *IndexedMap) GetRecord(key string) (crdt.Record, bool) {
	return im.base.GetRecord(key)
}

func (im *IndexedMap) Merge(key string, incoming crdt.Record) (bool, error) {
	return im.base.Merge(key, incoming)
}

func (im *IndexedMap) Entries(fn func(key string, value any) bool) {
	im.base.Entries(fn)
}

func (im *IndexedMap) Keys() []string {
	return im.base.Keys()
}

func (im *IndexedMap) Clear() {
	im.base.Clear()
	im.mu.Lock()
	defer im.mu.Unlock()
	for _, idx := range im.indexes {
		idx.Clear()
	}
	im.fallback.Clear()
}

// Base returns the underlying Map this IndexedMap wraps.
func (im *IndexedMap) Base() *Map { return im.base }

func (im *IndexedMap) progressCallback(label string) func(done, total int) {
	cb := im.opts.OnIndexBuilding
	if cb == nil {
		return nil
	}
	return func(done, total int) {
		cb(config.BuildProgress{Attribute: label, Done: done, Total: total})
	}
}

// registerIndex adds idx to the catalog and the ordered mutation-fanout
// list, wrapping it lazily if configured, and backfills it from the
// map's current entries (eagerly, or into the lazy buffer). Registering
// an index also registers its attribute by name, so residual filter
// steps and full scans can still resolve it once the planner falls back
// off this index (e.g. as one leg of a mixed `and`).
func (im *IndexedMap) registerIndex(idx index.Index, label string) index.Index {
	im.mu.Lock()
	defer im.mu.Unlock()

	if attr := idx.Attribute(); attr != nil {
		im.attrs[attr.Name()] = attr
	}

	var built index.Index = idx
	if im.opts.LazyIndexBuilding {
		lazy := index.NewLazyIndex(idx, lazyProgressEvery, im.progressCallback(label))
		im.lazyIndexes = append(im.lazyIndexes, lazy)
		built = lazy
	}
	for key, record := range im.base.Snapshot() {
		built.Add(key, record)
	}
	im.catalog.AddIndex(built)
	im.indexes = append(im.indexes, built)
	return built
}

// AddHashIndex registers an equality/membership index over attr.
func (im *IndexedMap) AddHashIndex(attr attribute.Attribute) index.Index {
	return im.registerIndex(index.NewHashIndex(attr), attr.Name())
}

// AddNavigableIndex registers a range/ordering index over attr. A nil
// comparator defaults to the navigable index's own numeric/string
// fallback ordering.
func (im *IndexedMap) AddNavigableIndex(attr attribute.Attribute, cmp index.Comparator) index.Index {
	return im.registerIndex(index.NewNavigableIndex(attr, cmp), attr.Name())
}

// AddInvertedIndex registers a tokenized contains/containsAll/containsAny
// index over attr. A zero Pipeline uses index.DefaultPipeline.
func (im *IndexedMap) AddInvertedIndex(attr attribute.Attribute, pipeline index.Pipeline) index.Index {
	return im.registerIndex(index.NewInvertedIndex(attr, pipeline), attr.Name())
}

// AddCompoundIndex registers a multi-attribute equality index over attrs,
// in the given order (the order that determines prefix-match eligibility).
func (im *IndexedMap) AddCompoundIndex(attrs []attribute.Attribute) *index.CompoundIndex {
	im.mu.Lock()
	compound := index.NewCompoundIndex(attrs)
	for _, attr := range attrs {
		im.attrs[attr.Name()] = attr
	}
	for key, record := range im.base.Snapshot() {
		compound.Add(key, record)
	}
	im.catalog.AddCompoundIndex(compound)
	im.indexes = append(im.indexes, compound)
	im.mu.Unlock()
	return compound
}

// AddIndex registers a caller-supplied custom index.
func (im *IndexedMap) AddIndex(custom index.Index) index.Index {
	label := "custom"
	if attr := custom.Attribute(); attr != nil {
		label = attr.Name()
	}
	return im.registerIndex(custom, label)
}

// RemoveIndex drops a previously-registered index (single-attribute or
// compound), reporting whether it was found.
func (im *IndexedMap) RemoveIndex(ref index.Index) bool {
	im.mu.Lock()
	defer im.mu.Unlock()

	removed := false
	if compound, ok := ref.(*index.CompoundIndex); ok {
		removed = im.catalog.RemoveCompoundIndex(compound)
	} else {
		removed = im.catalog.RemoveIndex(ref)
	}
	if !removed {
		return false
	}
	for i, idx := range im.indexes {
		if idx == ref {
			im.indexes = append(im.indexes[:i], im.indexes[i+1:]...)
			break
		}
	}
	for i, lazy := range im.lazyIndexes {
		if index.Index(lazy) == ref {
			im.lazyIndexes = append(im.lazyIndexes[:i], im.lazyIndexes[i+1:]...)
			break
		}
	}
	return true
}

// RegisterAttribute registers attr for use by queries, indexes, and
// live-query predicates. allowedTypes is not checked against attr: every
// attribute, schema-derived or built with attribute.Simple/Multi, is
// registered as-is.
func (im *IndexedMap) RegisterAttribute(attr attribute.Attribute, allowedTypes ...attribute.FieldType) {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.attrs[attr.Name()] = attr
}

// Query plans and executes node, returning the matching keys.
func (im *IndexedMap) Query(node query.Node) resultset.ResultSet {
	im.mu.RLock()
	catalog := im.catalog
	im.mu.RUnlock()

	plan := planner.Plan(catalog, node)
	im.trackPlan(node, plan)
	return planner.Execute(catalog, plan.Root)
}

// QueryEntries executes node and resolves each matching key to its
// current (key, value) pair, skipping keys that no longer resolve.
func (im *IndexedMap) QueryEntries(node query.Node) map[string]any {
	keys := im.Query(node).Keys()
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := im.base.Get(k); ok {
			out[k] = v
		}
	}
	return out
}

// QueryValues executes node and returns the matching values only.
func (im *IndexedMap) QueryValues(node query.Node) []any {
	keys := im.Query(node).Keys()
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		if v, ok := im.base.Get(k); ok {
			out = append(out, v)
		}
	}
	return out
}

// Count executes node and returns the number of matching keys.
func (im *IndexedMap) Count(node query.Node) int {
	return im.Query(node).Len()
}

// ExplainQuery returns the plan node would compile to, without executing
// it.
func (im *IndexedMap) ExplainQuery(node query.Node) *planner.QueryPlan {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return planner.ExplainQuery(im.catalog, node)
}

func (im *IndexedMap) trackPlan(node query.Node, plan *planner.QueryPlan) {
	if node.Kind == query.KindAnd && len(node.Children) >= 2 {
		allEq := true
		attrs := make([]string, 0, len(node.Children))
		for _, c := range node.Children {
			if c.Kind != query.KindEqual {
				allEq = false
				break
			}
			attrs = append(attrs, c.Attribute)
		}
		if allEq {
			im.autoManager.RecordCompoundQuery(attrs, plan.Root.Cost)
		}
	}
	if node.Attribute != "" {
		im.autoManager.RecordQuery(node.Attribute, string(node.Kind), plan.Root.Cost)
	}
}

// SubscribeLiveQuery registers callback against node, delivering an
// initial event synchronously before returning, then a delta event on
// every subsequent matching mutation. The returned closure unsubscribes.
func (im *IndexedMap) SubscribeLiveQuery(node query.Node, callback livequery.Callback) func() {
	im.mu.RLock()
	manager := im.liveManager
	im.mu.RUnlock()
	return manager.Subscribe(node, callback)
}

// EnableFullTextSearch builds a BM25 index over the map's current
// entries using cfg, and keeps it updated incrementally thereafter.
func (im *IndexedMap) EnableFullTextSearch(cfg FullTextConfig) {
	im.mu.Lock()
	defer im.mu.Unlock()

	fieldOf := cfg.FieldOf
	if fieldOf == nil {
		fieldOf = func(record any) string { return fmt.Sprintf("%v", record) }
	}
	im.ftsField = fieldOf
	im.fts = bm25.NewIndex(cfg.Pipeline, fieldOf)
	im.fts.BuildFromEntries(im.base.Snapshot())
}

// Search runs a BM25 query against the enabled full-text index. Returns
// nil if full-text search was never enabled.
func (im *IndexedMap) Search(text string, opts bm25.Options) []bm25.Hit {
	im.mu.RLock()
	fts := im.fts
	im.mu.RUnlock()
	if fts == nil {
		return nil
	}

	hits := fts.Search(text, opts)
	if im.searchRecorder.Enabled() {
		im.recordSearch(text, hits)
	}
	return hits
}

func (im *IndexedMap) recordSearch(text string, hits []bm25.Hit) {
	results := make([]debugrec.ScoredResult, len(hits))
	for i, h := range hits {
		results[i] = debugrec.ScoredResult{
			Key:        h.DocID,
			TotalScore: h.Score,
			Components: []debugrec.ScoreComponent{{Method: debugrec.ScoreBM25, Score: h.Score}},
		}
	}
	im.searchRecorder.Record(debugrec.SearchRecord{Query: text, Results: results})
}

// GetIndexSuggestions returns the adaptive advisor's current ranked index
// recommendations without creating anything.
func (im *IndexedMap) GetIndexSuggestions() []adaptive.Suggestion {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return im.advisor.Suggestions()
}

// MaterializeAllIndexes force-builds every lazily-constructed index,
// invoking progress via each index's configured callback.
func (im *IndexedMap) MaterializeAllIndexes() {
	im.mu.RLock()
	lazy := append([]*index.LazyIndex(nil), im.lazyIndexes...)
	im.mu.RUnlock()

	for _, l := range lazy {
		l.Build()
	}
}

// ResetQueryStatistics clears the adaptive pattern tracker's accumulated
// statistics.
func (im *IndexedMap) ResetQueryStatistics() {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.tracker.Reset()
}

// OnIndexCreated registers a callback invoked whenever auto-indexing
// transparently creates a new index.
func (im *IndexedMap) OnIndexCreated(fn func(adaptive.Suggestion)) {
	im.autoManager.OnIndexCreated(fn)
}
