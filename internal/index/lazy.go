package index

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/replikv/replikv/internal/attribute"
	"github.com/replikv/replikv/internal/resultset"
)

// pendingOp is one buffered mutation awaiting replay into the wrapped index.
type pendingOp struct {
	kind      string // "add", "remove", "update"
	key       string
	record    any
	oldRecord any
}

// LazyIndex defers building a real index until first queried. Every
// Add/Remove/Update before that point is buffered; Build (triggered
// internally by the first Retrieve, or explicitly) replays the buffer in
// insertion order into the wrapped index, optionally reporting progress.
type LazyIndex struct {
	inner       Index
	pending     []pendingOp
	built       bool
	progressEvery int
	onProgress  func(done, total int)
}

// NewLazyIndex wraps inner, deferring its construction cost until first
// use. progressEvery of 0 disables progress callbacks.
func NewLazyIndex(inner Index, progressEvery int, onProgress func(done, total int)) *LazyIndex {
	return &LazyIndex{inner: inner, progressEvery: progressEvery, onProgress: onProgress}
}

// IsLazy always reports true; real indexes report false implicitly by not
// implementing this method. Kept as a named predicate for callers that
// branch on laziness without a type switch.
func (l *LazyIndex) IsLazy() bool { return true }

// IsBuilt reports whether the buffer has been replayed into inner yet.
func (l *LazyIndex) IsBuilt() bool { return l.built }

// PendingCount reports the number of buffered mutations awaiting replay.
func (l *LazyIndex) PendingCount() int { return len(l.pending) }

// Build replays buffered mutations into inner in insertion order if not
// already built, invoking onProgress every progressEvery replayed ops.
func (l *LazyIndex) Build() {
	if l.built {
		return
	}
	total := len(l.pending)
	for i, op := range l.pending {
		switch op.kind {
		case "add":
			l.inner.Add(op.key, op.record)
		case "remove":
			l.inner.Remove(op.key, op.record)
		case "update":
			l.inner.Update(op.key, op.oldRecord, op.record)
		}
		if l.progressEvery > 0 && l.onProgress != nil && (i+1)%l.progressEvery == 0 {
			l.onProgress(i+1, total)
		}
	}
	if l.progressEvery > 0 && l.onProgress != nil && total > 0 && total%l.progressEvery != 0 {
		l.onProgress(total, total)
	}
	l.pending = nil
	l.built = true
}

func (l *LazyIndex) Attribute() attribute.Attribute { return l.inner.Attribute() }
func (l *LazyIndex) Type() string                   { return l.inner.Type() }
func (l *LazyIndex) RetrievalCost() int             { return l.inner.RetrievalCost() }
func (l *LazyIndex) SupportsQuery(kind QueryKind) bool { return l.inner.SupportsQuery(kind) }

func (l *LazyIndex) Retrieve(q Query) resultset.ResultSet {
	l.Build()
	return l.inner.Retrieve(q)
}

func (l *LazyIndex) Add(key string, record any) {
	if l.built {
		l.inner.Add(key, record)
		return
	}
	l.pending = append(l.pending, pendingOp{kind: "add", key: key, record: record})
}

func (l *LazyIndex) Remove(key string, record any) {
	if l.built {
		l.inner.Remove(key, record)
		return
	}
	l.pending = append(l.pending, pendingOp{kind: "remove", key: key, record: record})
}

func (l *LazyIndex) Update(key string, oldRecord, newRecord any) {
	if l.built {
		l.inner.Update(key, oldRecord, newRecord)
		return
	}
	l.pending = append(l.pending, pendingOp{kind: "update", key: key, record: newRecord, oldRecord: oldRecord})
}

func (l *LazyIndex) Clear() {
	l.pending = nil
	l.built = false
	l.inner.Clear()
}

func (l *LazyIndex) GetStats() Stats {
	if !l.built {
		return Stats{EntryCount: len(l.pending)}
	}
	return l.inner.GetStats()
}

// MaterializeAll builds every not-yet-built lazy index in indexes
// concurrently, returning the first error encountered (if any). Real
// (non-lazy) indexes are skipped.
func MaterializeAll(ctx context.Context, indexes []*LazyIndex) error {
	g, _ := errgroup.WithContext(ctx)
	for _, idx := range indexes {
		idx := idx
		g.Go(func() error {
			idx.Build()
			return nil
		})
	}
	return g.Wait()
}
