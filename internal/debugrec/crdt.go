// Package debugrec implements the CRDT operation/conflict recorder and
// the search-explain recorder: capped, filterable diagnostic snapshots
// of what a map or query engine just did.
package debugrec

import (
	"sort"
	"sync"
	"time"
)

// Operation names the CRDT mutation kind a recorded entry captures.
type Operation string

const (
	OpSet    Operation = "set"
	OpDelete Operation = "delete"
	OpMerge  Operation = "merge"
)

// RecordedOp is one captured CRDT mutation.
type RecordedOp struct {
	Sequence  int
	MapID     string
	NodeID    string
	Operation Operation
	Key       string
	Value     any
	Timestamp time.Time
}

// RecordedConflict is one captured merge conflict: an incoming value the
// resolver pipeline did not simply accept as the new LWW value.
type RecordedConflict struct {
	Sequence  int
	MapID     string
	NodeID    string
	Key       string
	Local     any
	Incoming  any
	Decision  string
	Reason    string
	Timestamp time.Time
}

// FilterOptions narrows RecordedOps / RecordedConflicts lookups.
type FilterOptions struct {
	MapID     string
	NodeID    string
	Operation Operation
	Since     time.Time
	Until     time.Time
	Limit     int
}

func (f FilterOptions) matchesOp(op RecordedOp) bool {
	if f.MapID != "" && f.MapID != op.MapID {
		return false
	}
	if f.NodeID != "" && f.NodeID != op.NodeID {
		return false
	}
	if f.Operation != "" && f.Operation != op.Operation {
		return false
	}
	if !f.Since.IsZero() && op.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && op.Timestamp.After(f.Until) {
		return false
	}
	return true
}

func (f FilterOptions) matchesConflict(c RecordedConflict) bool {
	if f.MapID != "" && f.MapID != c.MapID {
		return false
	}
	if f.NodeID != "" && f.NodeID != c.NodeID {
		return false
	}
	if !f.Since.IsZero() && c.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && c.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// Stats summarizes a recorder's captured content.
type Stats struct {
	TotalOps       int
	TotalConflicts int
	ByOperation    map[Operation]int
	ByMapID        map[string]int
	OldestTime     time.Time
	NewestTime     time.Time
}

// TimelineBucket aggregates operation counts within one time window.
type TimelineBucket struct {
	Start     time.Time
	End       time.Time
	Count     int
	Conflicts int
}

// CRDTRecorder captures every set/delete/merge and every observed
// conflict into capacity-bounded snapshot lists.
type CRDTRecorder struct {
	mu        sync.Mutex
	enabled   bool
	capacity  int
	ops       []RecordedOp
	conflicts []RecordedConflict
	seq       int
}

// NewCRDTRecorder creates a recorder capped at capacity entries per list
// (oldest evicted first once full). A capacity <= 0 defaults to 10000.
func NewCRDTRecorder(capacity int) *CRDTRecorder {
	if capacity <= 0 {
		capacity = 10000
	}
	return &CRDTRecorder{capacity: capacity}
}

// Enable turns on capture. Disabled recorders silently drop every Record
// call.
func (r *CRDTRecorder) Enable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = true
}

// Disable turns off capture without clearing already-captured entries.
func (r *CRDTRecorder) Disable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = false
}

// Enabled reports whether capture is currently on.
func (r *CRDTRecorder) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// RecordOp appends a captured operation, assigning it the next sequence
// number, evicting the oldest entry if the list is at capacity. A no-op
// when the recorder is disabled.
func (r *CRDTRecorder) RecordOp(op RecordedOp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return
	}
	r.seq++
	op.Sequence = r.seq
	if op.Timestamp.IsZero() {
		op.Timestamp = time.Now()
	}
	r.ops = append(r.ops, op)
	if len(r.ops) > r.capacity {
		r.ops = r.ops[len(r.ops)-r.capacity:]
	}
}

// RecordConflict appends a captured conflict, same capacity discipline
// as RecordOp.
func (r *CRDTRecorder) RecordConflict(c RecordedConflict) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return
	}
	r.seq++
	c.Sequence = r.seq
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}
	r.conflicts = append(r.conflicts, c)
	if len(r.conflicts) > r.capacity {
		r.conflicts = r.conflicts[len(r.conflicts)-r.capacity:]
	}
}

// FilterOps returns every captured op matching opts, oldest first,
// truncated to opts.Limit if positive.
func (r *CRDTRecorder) FilterOps(opts FilterOptions) []RecordedOp {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RecordedOp
	for _, op := range r.ops {
		if opts.matchesOp(op) {
			out = append(out, op)
			if opts.Limit > 0 && len(out) >= opts.Limit {
				break
			}
		}
	}
	return out
}

// FilterConflicts returns every captured conflict matching opts.
func (r *CRDTRecorder) FilterConflicts(opts FilterOptions) []RecordedConflict {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RecordedConflict
	for _, c := range r.conflicts {
		if opts.matchesConflict(c) {
			out = append(out, c)
			if opts.Limit > 0 && len(out) >= opts.Limit {
				break
			}
		}
	}
	return out
}

// Stats summarizes every captured entry.
func (r *CRDTRecorder) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{
		TotalOps:       len(r.ops),
		TotalConflicts: len(r.conflicts),
		ByOperation:    make(map[Operation]int),
		ByMapID:        make(map[string]int),
	}
	for _, op := range r.ops {
		stats.ByOperation[op.Operation]++
		stats.ByMapID[op.MapID]++
		if stats.OldestTime.IsZero() || op.Timestamp.Before(stats.OldestTime) {
			stats.OldestTime = op.Timestamp
		}
		if op.Timestamp.After(stats.NewestTime) {
			stats.NewestTime = op.Timestamp
		}
	}
	return stats
}

// Timeline buckets every captured op (and any conflict within the same
// window) into fixed-size windows of bucketSize, oldest first. Every
// window from the first to the last non-empty one is returned; windows
// with nothing captured carry zero counts.
func (r *CRDTRecorder) Timeline(bucketSize time.Duration) []TimelineBucket {
	r.mu.Lock()
	defer r.mu.Unlock()
	if bucketSize <= 0 || len(r.ops) == 0 {
		return nil
	}

	start := r.ops[0].Timestamp
	for _, op := range r.ops {
		if op.Timestamp.Before(start) {
			start = op.Timestamp
		}
	}

	buckets := make(map[int64]*TimelineBucket)
	bucketFor := func(ts time.Time) *TimelineBucket {
		idx := int64(ts.Sub(start) / bucketSize)
		b, ok := buckets[idx]
		if !ok {
			bStart := start.Add(time.Duration(idx) * bucketSize)
			b = &TimelineBucket{Start: bStart, End: bStart.Add(bucketSize)}
			buckets[idx] = b
		}
		return b
	}
	for _, op := range r.ops {
		bucketFor(op.Timestamp).Count++
	}
	for _, c := range r.conflicts {
		bucketFor(c.Timestamp).Conflicts++
	}

	var minIdx, maxIdx int64
	for idx := range buckets {
		if idx < minIdx {
			minIdx = idx
		}
		if idx > maxIdx {
			maxIdx = idx
		}
	}
	out := make([]TimelineBucket, 0, maxIdx-minIdx+1)
	for idx := minIdx; idx <= maxIdx; idx++ {
		out = append(out, *bucketFor(start.Add(time.Duration(idx) * bucketSize)))
	}
	return out
}

// ReplayToTimestamp rebuilds a logical key→value map state by merging
// every captured set/delete operation up to and including ts, in
// sequence order. merge conflicts are not replayed — a recorded merge
// conflict's resolved value is itself captured as a later set/merge op
// by the caller, so replay only needs the op list.
func (r *CRDTRecorder) ReplayToTimestamp(ts time.Time) map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := make(map[string]any)
	for _, op := range r.ops {
		if op.Timestamp.After(ts) {
			continue
		}
		switch op.Operation {
		case OpDelete:
			delete(state, op.Key)
		default:
			state[op.Key] = op.Value
		}
	}
	return state
}

// Diff reports every key whose replayed value differs between two
// timestamps.
type Diff struct {
	Key      string
	Before   any
	After    any
	Existed  bool // whether the key existed at `before`
	Exists   bool // whether the key exists at `after`
}

// Diff compares ReplayToTimestamp(before) against ReplayToTimestamp(after).
func (r *CRDTRecorder) Diff(before, after time.Time) []Diff {
	beforeState := r.ReplayToTimestamp(before)
	afterState := r.ReplayToTimestamp(after)

	keys := make(map[string]struct{})
	for k := range beforeState {
		keys[k] = struct{}{}
	}
	for k := range afterState {
		keys[k] = struct{}{}
	}

	var out []Diff
	for k := range keys {
		bv, bOk := beforeState[k]
		av, aOk := afterState[k]
		if bOk == aOk && bv == av {
			continue
		}
		out = append(out, Diff{Key: k, Before: bv, After: av, Existed: bOk, Exists: aOk})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Clear wipes every captured op and conflict without touching Enabled.
func (r *CRDTRecorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = nil
	r.conflicts = nil
	r.seq = 0
}

var (
	defaultCRDTRecorderMu sync.Mutex
	defaultCRDTRecorder   *CRDTRecorder
)

// DefaultCRDTRecorder returns the process-wide singleton recorder,
// creating it (disabled, default capacity) on first use.
func DefaultCRDTRecorder() *CRDTRecorder {
	defaultCRDTRecorderMu.Lock()
	defer defaultCRDTRecorderMu.Unlock()
	if defaultCRDTRecorder == nil {
		defaultCRDTRecorder = NewCRDTRecorder(0)
	}
	return defaultCRDTRecorder
}

// SetDefaultCRDTRecorder replaces the process-wide singleton, e.g. to
// install one with non-default capacity before first use.
func SetDefaultCRDTRecorder(r *CRDTRecorder) {
	defaultCRDTRecorderMu.Lock()
	defer defaultCRDTRecorderMu.Unlock()
	defaultCRDTRecorder = r
}
