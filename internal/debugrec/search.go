package debugrec

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ScoreMethod names one component contributing to a result's total score.
type ScoreMethod string

const (
	ScoreBM25   ScoreMethod = "bm25"
	ScoreExact  ScoreMethod = "exact"
	ScoreRRF    ScoreMethod = "rrf"
	ScoreVector ScoreMethod = "vector"
)

// ScoreComponent is one method's contribution to a scored result.
type ScoreComponent struct {
	Method ScoreMethod
	Score  float64
	Detail string
}

// ScoredResult is one query result with its full score breakdown.
type ScoredResult struct {
	Key         string
	TotalScore  float64
	Components  []ScoreComponent
	MatchedText string
}

// IndexUsage reports one index consulted while answering a query.
type IndexUsage struct {
	IndexType string
	Attribute string
	Cost      int
	KeysFound int
}

// SearchRecord captures everything about the last query answered.
type SearchRecord struct {
	Query          string
	Results        []ScoredResult
	DurationMillis float64
	IndexesUsed    []IndexUsage
	Timestamp      time.Time
}

// SearchRecorder captures the single most recent query's score
// breakdown, timing, and index usage, for debugging relevance and plan
// choices. Only the last query is retained.
type SearchRecorder struct {
	mu      sync.Mutex
	enabled bool
	last    *SearchRecord
}

// NewSearchRecorder creates a disabled search recorder.
func NewSearchRecorder() *SearchRecorder {
	return &SearchRecorder{}
}

// Enable turns on capture.
func (r *SearchRecorder) Enable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = true
}

// Disable turns off capture without clearing the last captured record.
func (r *SearchRecorder) Disable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = false
}

// Enabled reports whether capture is currently on.
func (r *SearchRecorder) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// Record replaces the last captured query record. A no-op when disabled.
func (r *SearchRecorder) Record(rec SearchRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	cp := rec
	r.last = &cp
}

// Last returns the most recently captured query record, or (nil, false)
// if nothing has been captured yet.
func (r *SearchRecorder) Last() (*SearchRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return nil, false
	}
	cp := *r.last
	return &cp, true
}

// Clear discards the last captured record without touching Enabled.
func (r *SearchRecorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = nil
}

// Explain renders the last captured record as a human-readable report,
// or a placeholder message if nothing has been captured.
func (r *SearchRecorder) Explain() string {
	rec, ok := r.Last()
	if !ok {
		return "debugrec: no query recorded yet"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "query %q took %.2fms, %d result(s)\n", rec.Query, rec.DurationMillis, len(rec.Results))
	for _, u := range rec.IndexesUsed {
		fmt.Fprintf(&b, "  index: %s(%s) cost=%d keys=%d\n", u.IndexType, u.Attribute, u.Cost, u.KeysFound)
	}
	for i, res := range rec.Results {
		fmt.Fprintf(&b, "  #%d %s total=%.4f\n", i+1, res.Key, res.TotalScore)
		for _, c := range res.Components {
			fmt.Fprintf(&b, "      %s=%.4f %s\n", c.Method, c.Score, c.Detail)
		}
	}
	return b.String()
}

var (
	defaultSearchRecorderMu sync.Mutex
	defaultSearchRecorder   *SearchRecorder
)

// DefaultSearchRecorder returns the process-wide singleton recorder,
// creating it (disabled) on first use.
func DefaultSearchRecorder() *SearchRecorder {
	defaultSearchRecorderMu.Lock()
	defer defaultSearchRecorderMu.Unlock()
	if defaultSearchRecorder == nil {
		defaultSearchRecorder = NewSearchRecorder()
	}
	return defaultSearchRecorder
}

// SetDefaultSearchRecorder replaces the process-wide singleton.
func SetDefaultSearchRecorder(r *SearchRecorder) {
	defaultSearchRecorderMu.Lock()
	defer defaultSearchRecorderMu.Unlock()
	defaultSearchRecorder = r
}
