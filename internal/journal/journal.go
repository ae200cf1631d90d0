// Package journal implements the event journal: an append-only,
// capacity-bounded, TTL-pruned log of map mutations with replay-from-
// sequence subscription, backed by a ring.Buffer.
package journal

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/replikv/replikv/internal/ring"
)

// EventType names the mutation kind a journal event records.
type EventType string

const (
	EventPut    EventType = "PUT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Event is one journal entry. Sequence is assigned by Append; a Sequence
// of -1 marks a sentinel returned when the event was filtered out rather
// than stored.
type Event struct {
	Sequence      int64
	Type          EventType
	MapName       string
	Key           string
	Value         any
	PreviousValue any
	Timestamp     time.Time
	NodeID        string
	Metadata      map[string]any
}

// PendingEvent is the Append input: everything but the sequence, which
// the journal assigns.
type PendingEvent struct {
	Type          EventType
	MapName       string
	Key           string
	Value         any
	PreviousValue any
	Timestamp     time.Time
	NodeID        string
	Metadata      map[string]any
}

// Listener receives every stored event, in sequence order.
type Listener func(Event)

// ExternalPublisher fans a stored event out to an out-of-process
// subscriber (e.g. NATS JetStream). Publishing is best-effort: failures
// are the publisher's responsibility to log and must never block or fail
// Append.
type ExternalPublisher interface {
	PublishEvent(event Event) error
}

// Config configures a journal's retention and filtering.
type Config struct {
	Capacity     int
	TTL          time.Duration
	Persistent   bool
	IncludeMaps  []string // empty means "all"
	ExcludeMaps  []string
}

// Journal is an append-only, sequence-numbered event log with bounded
// retention and replay-capable subscriptions.
type Journal struct {
	mu        sync.Mutex
	buf       *ring.Buffer
	cfg       Config
	listeners map[uint64]Listener
	nextID    uint64
	now       func() time.Time
	stopCh    chan struct{}
	stopped   bool
	external  ExternalPublisher
}

// SetExternalPublisher attaches an out-of-process fan-out target. A nil
// publisher disables fan-out (the default).
func (j *Journal) SetExternalPublisher(p ExternalPublisher) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.external = p
}

// New creates a journal with the given configuration. A zero Capacity
// defaults to 10000.
func New(cfg Config) (*Journal, error) {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 10000
	}
	buf, err := ring.New(cfg.Capacity)
	if err != nil {
		return nil, err
	}
	j := &Journal{
		buf:       buf,
		cfg:       cfg,
		listeners: make(map[uint64]Listener),
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
	if cfg.TTL > 0 {
		j.startCompactionTimer()
	}
	return j, nil
}

func (j *Journal) startCompactionTimer() {
	interval := j.cfg.TTL
	if interval > time.Minute {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				j.Compact()
			case <-j.stopCh:
				return
			}
		}
	}()
}

func (j *Journal) allowed(mapName string) bool {
	if len(j.cfg.IncludeMaps) > 0 {
		found := false
		for _, m := range j.cfg.IncludeMaps {
			if m == mapName {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, m := range j.cfg.ExcludeMaps {
		if m == mapName {
			return false
		}
	}
	return true
}

// Append assigns the next sequence number to pending, stores it, and
// delivers it to every listener, in registration order. If pending's
// MapName fails the include/exclude filter, a sentinel event with
// Sequence -1 is returned and nothing is stored or delivered.
func (j *Journal) Append(pending PendingEvent) Event {
	j.mu.Lock()
	if !j.allowed(pending.MapName) {
		j.mu.Unlock()
		return Event{Sequence: -1}
	}
	if pending.Timestamp.IsZero() {
		pending.Timestamp = j.now()
	}
	event := Event{
		Type:          pending.Type,
		MapName:       pending.MapName,
		Key:           pending.Key,
		Value:         pending.Value,
		PreviousValue: pending.PreviousValue,
		Timestamp:     pending.Timestamp,
		NodeID:        pending.NodeID,
		Metadata:      pending.Metadata,
	}
	seq := j.buf.Append(event)
	event.Sequence = int64(seq)

	ids := make([]uint64, 0, len(j.listeners))
	for id := range j.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, j.listeners[id])
	}
	external := j.external
	j.mu.Unlock()

	for _, l := range listeners {
		l(event)
	}
	if external != nil {
		go func() {
			if err := external.PublishEvent(event); err != nil {
				log.Printf("journal: external publish of seq=%d failed: %v", event.Sequence, err)
			}
		}()
	}
	return event
}

// ReadFrom returns up to limit events with sequence > seq, oldest first.
// limit <= 0 defaults to 100.
func (j *Journal) ReadFrom(seq int64, limit int) []Event {
	if limit <= 0 {
		limit = 100
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, _ := j.buf.Since(uint64(max64(seq, -1)))
	out := make([]Event, 0, limit)
	for _, e := range entries {
		if len(out) >= limit {
			break
		}
		out = append(out, e.Payload.(Event))
	}
	return out
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// ReadRange returns every stored event with start <= sequence <= end.
func (j *Journal) ReadRange(start, end int64) []Event {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []Event
	entries, _ := j.buf.Since(uint64(max64(start-1, -1)))
	for _, e := range entries {
		if int64(e.Seq) > end {
			break
		}
		out = append(out, e.Payload.(Event))
	}
	return out
}

// GetLatestSequence returns the most recently assigned sequence number,
// or 0 if the journal is empty.
func (j *Journal) GetLatestSequence() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, newest, ok := j.buf.Bounds()
	if !ok {
		return 0
	}
	return int64(newest)
}

// GetOldestSequence returns the oldest retained sequence number, or 0 if
// the journal is empty.
func (j *Journal) GetOldestSequence() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	oldest, _, ok := j.buf.Bounds()
	if !ok {
		return 0
	}
	return int64(oldest)
}

// CapacityUsage reports the journal's current occupancy.
type CapacityUsage struct {
	Used  int
	Total int
}

// GetCapacity reports how many entries are currently retained against the
// configured capacity.
func (j *Journal) GetCapacity() CapacityUsage {
	return CapacityUsage{Used: j.buf.Len(), Total: j.buf.Capacity()}
}

// Subscribe replays every retained event with sequence > fromSequence
// synchronously (if fromSequence is provided), then enrolls listener for
// every future Append. A nil fromSequence replays nothing. The returned
// closure unsubscribes listener.
func (j *Journal) Subscribe(listener Listener, fromSequence *int64) func() {
	j.mu.Lock()
	id := j.nextID
	j.nextID++

	var replay []Event
	if fromSequence != nil {
		entries, _ := j.buf.Since(uint64(max64(*fromSequence, -1)))
		replay = make([]Event, 0, len(entries))
		for _, e := range entries {
			replay = append(replay, e.Payload.(Event))
		}
	}
	j.listeners[id] = listener
	j.mu.Unlock()

	for _, e := range replay {
		listener(e)
	}

	return func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		delete(j.listeners, id)
	}
}

// Compact drops events older than the configured TTL.
func (j *Journal) Compact() int {
	if j.cfg.TTL <= 0 {
		return 0
	}
	cutoff := j.now().Add(-j.cfg.TTL)

	j.mu.Lock()
	defer j.mu.Unlock()

	removed := 0
	for {
		oldest, _, ok := j.buf.Bounds()
		if !ok {
			break
		}
		entry, err := j.buf.Get(oldest)
		if err != nil {
			break
		}
		event := entry.Payload.(Event)
		if event.Timestamp.After(cutoff) {
			break
		}
		j.buf.CompactBefore(oldest + 1)
		removed++
	}
	return removed
}

// Dispose clears every listener and stops the TTL compaction timer.
func (j *Journal) Dispose() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.stopped {
		return
	}
	j.stopped = true
	close(j.stopCh)
	j.listeners = make(map[uint64]Listener)
}
