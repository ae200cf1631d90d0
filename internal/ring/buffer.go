// Package ring implements a fixed-capacity ring buffer of sequence-numbered
// entries, the backing store for the event journal's in-memory window.
package ring

import (
	"errors"
	"fmt"
	"sync"
)

// ErrCapacityBelowOne is returned by New when capacity is less than 1.
var ErrCapacityBelowOne = errors.New("ring: capacity must be at least 1")

// ErrSequenceNotFound is returned when a requested sequence number has
// already been evicted or has not yet been appended.
var ErrSequenceNotFound = errors.New("ring: sequence not found")

// Entry is a single journal slot: a gap-free monotonically increasing
// sequence number paired with an opaque payload.
type Entry struct {
	Seq     uint64
	Payload any
}

// Buffer is a fixed-capacity, gap-free sequence ring. Appending past
// capacity silently evicts the oldest entry. Safe for concurrent use.
type Buffer struct {
	mu       sync.RWMutex
	slots    []Entry
	capacity int
	size     int
	head     int    // index of oldest entry
	nextSeq  uint64 // sequence number the next Append will assign
}

// New creates a Buffer holding at most capacity entries.
func New(capacity int) (*Buffer, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrCapacityBelowOne, capacity)
	}
	return &Buffer{
		slots:    make([]Entry, capacity),
		capacity: capacity,
	}, nil
}

// Append assigns the next gap-free sequence number to payload and inserts
// it, evicting the oldest entry if the buffer is full. Returns the assigned
// sequence number.
func (b *Buffer) Append(payload any) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	seq := b.nextSeq
	b.nextSeq++

	idx := (b.head + b.size) % b.capacity
	if b.size < b.capacity {
		b.slots[idx] = Entry{Seq: seq, Payload: payload}
		b.size++
	} else {
		b.slots[b.head] = Entry{Seq: seq, Payload: payload}
		b.head = (b.head + 1) % b.capacity
	}
	return seq
}

// Get retrieves the entry with the given sequence number, or
// ErrSequenceNotFound if it has been evicted or not yet appended.
func (b *Buffer) Get(seq uint64) (Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	oldest, newest, ok := b.boundsLocked()
	if !ok || seq < oldest || seq > newest {
		return Entry{}, fmt.Errorf("%w: seq=%d", ErrSequenceNotFound, seq)
	}
	offset := seq - oldest
	idx := (b.head + int(offset)) % b.capacity
	return b.slots[idx], nil
}

// Since returns all entries with Seq > after, oldest first. If after
// precedes the oldest retained sequence, the returned slice starts at the
// oldest retained entry and the second return value is false, signalling a
// gap (the caller missed entries due to eviction).
func (b *Buffer) Since(after uint64) ([]Entry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	oldest, _, ok := b.boundsLocked()
	if !ok {
		return nil, true
	}

	complete := true
	start := after + 1
	if start < oldest {
		start = oldest
		complete = false
	}

	out := make([]Entry, 0, b.size)
	for i := 0; i < b.size; i++ {
		idx := (b.head + i) % b.capacity
		e := b.slots[idx]
		if e.Seq >= start {
			out = append(out, e)
		}
	}
	return out, complete
}

// Len reports how many entries are currently retained.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Capacity reports the buffer's fixed capacity.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Bounds returns the oldest and newest retained sequence numbers. ok is
// false when the buffer is empty.
func (b *Buffer) Bounds() (oldest, newest uint64, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.boundsLocked()
}

func (b *Buffer) boundsLocked() (oldest, newest uint64, ok bool) {
	if b.size == 0 {
		return 0, 0, false
	}
	oldest = b.slots[b.head].Seq
	newestIdx := (b.head + b.size - 1) % b.capacity
	newest = b.slots[newestIdx].Seq
	return oldest, newest, true
}

// CompactBefore discards retained entries whose Seq is strictly less than
// before, shrinking size without changing capacity. Used for TTL-driven
// journal compaction where entries are evicted ahead of natural wraparound.
func (b *Buffer) CompactBefore(before uint64) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for b.size > 0 && b.slots[b.head].Seq < before {
		b.head = (b.head + 1) % b.capacity
		b.size--
		removed++
	}
	return removed
}
