// Package livequery implements the live-query manager and the live-FTS
// index: standing result sets (and BM25-ranked result sets) maintained
// incrementally as records mutate, emitting delta events to subscribers.
package livequery

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/btree"

	"github.com/replikv/replikv/internal/bm25"
)

// FTSChange classifies how a live-FTS Top-K membership changed.
type FTSChange string

const (
	FTSAdded   FTSChange = "added"
	FTSUpdated FTSChange = "updated"
	FTSRemoved FTSChange = "removed"
	FTSNone    FTSChange = ""
)

// FTSDelta reports a live-FTS index's reaction to one record mutation.
type FTSDelta struct {
	Key          string
	Change       FTSChange
	Score        float64
	OldScore     float64
	MatchedTerms []string
}

type ftsEntry struct {
	key          string
	composite    string
	score        float64
	matchedTerms []string
}

func (e *ftsEntry) Less(than btree.Item) bool {
	return e.composite < than.(*ftsEntry).composite
}

// compositeKeyFor encodes score descending (via a fixed-width inverted
// magnitude) then key, so ascending btree order yields descending score
// with a deterministic tiebreak.
func compositeKeyFor(score float64, key string) string {
	inverted := 1e12 - score
	return fmt.Sprintf("%020.6f|%s", inverted, key)
}

// LiveFTSIndex combines a BM25 scoring backend with Top-K maintenance for
// one fixed query, recomputing per-document scores incrementally rather
// than rescanning posting lists on every mutation.
type LiveFTSIndex struct {
	mu         sync.Mutex
	bm         *bm25.Index
	queryTerms []string
	maxResults int
	minScore   float64

	byKey *btree.BTree // composite -> *ftsEntry, ascending = descending score
	keyOf map[string]*ftsEntry
}

// NewLiveFTSIndex creates a live-FTS index over bm scoring queryTerms.
// maxResults of 0 means unbounded.
func NewLiveFTSIndex(bm *bm25.Index, queryTerms []string, maxResults int, minScore float64) *LiveFTSIndex {
	return &LiveFTSIndex{
		bm:         bm,
		queryTerms: queryTerms,
		maxResults: maxResults,
		minScore:   minScore,
		byKey:      btree.New(32),
		keyOf:      make(map[string]*ftsEntry),
	}
}

func (l *LiveFTSIndex) minTopKScore() (float64, bool) {
	var min *ftsEntry
	l.byKey.Descend(func(item btree.Item) bool {
		min = item.(*ftsEntry)
		return true
	})
	if min == nil {
		return 0, false
	}
	return min.score, true
}

func (l *LiveFTSIndex) insertLocked(key string, score float64, matched []string) {
	if existing, ok := l.keyOf[key]; ok {
		l.byKey.Delete(existing)
	}
	entry := &ftsEntry{key: key, composite: compositeKeyFor(score, key), score: score, matchedTerms: matched}
	l.byKey.ReplaceOrInsert(entry)
	l.keyOf[key] = entry
	l.evictOverflowLocked()
}

func (l *LiveFTSIndex) evictOverflowLocked() {
	if l.maxResults <= 0 {
		return
	}
	for l.byKey.Len() > l.maxResults {
		var lowest *ftsEntry
		l.byKey.Descend(func(item btree.Item) bool {
			lowest = item.(*ftsEntry)
			return true
		})
		if lowest == nil {
			return
		}
		l.byKey.Delete(lowest)
		delete(l.keyOf, lowest.key)
	}
}

func (l *LiveFTSIndex) removeLocked(key string) bool {
	entry, ok := l.keyOf[key]
	if !ok {
		return false
	}
	l.byKey.Delete(entry)
	delete(l.keyOf, key)
	return true
}

// OnRecordAdded scores record and, if it qualifies (score >= minScore and
// either under capacity or above the current Top-K minimum), inserts it.
func (l *LiveFTSIndex) OnRecordAdded(key string, record any) FTSDelta {
	l.mu.Lock()
	defer l.mu.Unlock()

	score, matched, found := l.bm.ScoreSingleDocument(key, l.queryTerms, record)
	if !found || score < l.minScore {
		return FTSDelta{Key: key, Change: FTSNone}
	}
	if l.maxResults > 0 && l.byKey.Len() >= l.maxResults {
		if min, ok := l.minTopKScore(); ok && score <= min {
			return FTSDelta{Key: key, Change: FTSNone}
		}
	}
	l.insertLocked(key, score, matched)
	return FTSDelta{Key: key, Change: FTSAdded, Score: score, MatchedTerms: matched}
}

// OnRecordUpdated rescopes a record already known (or not) to the
// index, emitting added/updated/removed/none as membership changes.
func (l *LiveFTSIndex) OnRecordUpdated(key string, oldRecord, newRecord any) FTSDelta {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing, wasPresent := l.keyOf[key]
	var oldScore float64
	if wasPresent {
		oldScore = existing.score
	}

	score, matched, found := l.bm.ScoreSingleDocument(key, l.queryTerms, newRecord)
	if !found || score < l.minScore {
		if wasPresent {
			l.removeLocked(key)
			return FTSDelta{Key: key, Change: FTSRemoved, OldScore: oldScore}
		}
		return FTSDelta{Key: key, Change: FTSNone}
	}

	if !wasPresent && l.maxResults > 0 && l.byKey.Len() >= l.maxResults {
		if min, ok := l.minTopKScore(); ok && score <= min {
			return FTSDelta{Key: key, Change: FTSNone}
		}
	}

	l.insertLocked(key, score, matched)
	if wasPresent {
		return FTSDelta{Key: key, Change: FTSUpdated, Score: score, OldScore: oldScore, MatchedTerms: matched}
	}
	return FTSDelta{Key: key, Change: FTSAdded, Score: score, MatchedTerms: matched}
}

// OnRecordRemoved drops key from the Top-K if present.
func (l *LiveFTSIndex) OnRecordRemoved(key string) FTSDelta {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.keyOf[key]
	if !ok {
		return FTSDelta{Key: key, Change: FTSNone}
	}
	oldScore := entry.score
	l.removeLocked(key)
	return FTSDelta{Key: key, Change: FTSRemoved, OldScore: oldScore}
}

// TopKHit is one entry of the maintained Top-K, in descending-score order.
type TopKHit struct {
	Key          string
	Score        float64
	MatchedTerms []string
}

// TopK returns the current Top-K in descending-score order.
func (l *LiveFTSIndex) TopK() []TopKHit {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]TopKHit, 0, l.byKey.Len())
	l.byKey.Ascend(func(item btree.Item) bool {
		e := item.(*ftsEntry)
		out = append(out, TopKHit{Key: e.key, Score: e.score, MatchedTerms: e.matchedTerms})
		return true
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Len reports the current Top-K size.
func (l *LiveFTSIndex) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.byKey.Len()
}
