// Package hlc implements a hybrid logical clock: a (physical millis, logical
// counter, nodeId) timestamp that provides a total order compatible with
// real time and is safely comparable across replicas.
package hlc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrClockDriftTooLarge is returned by Update in strict mode when the remote
// timestamp's physical time is further ahead of the local wall clock than
// the configured maximum drift.
var ErrClockDriftTooLarge = errors.New("hlc: clock drift too large")

// ErrMalformedTimestamp is returned by Parse when the input has fewer than
// three colon-separated fields (the nodeId field may itself contain
// colons), when millis or counter is not a valid number, or when nodeId
// is empty.
var ErrMalformedTimestamp = errors.New("hlc: malformed timestamp")

// Timestamp is a hybrid logical clock stamp. The zero value compares less
// than any timestamp with a non-zero Millis.
type Timestamp struct {
	Millis  uint64
	Counter uint32
	NodeID  string
}

// Compare returns -1, 0, or 1 according to the total order: physical millis,
// then counter, then nodeId lexicographically.
func Compare(a, b Timestamp) int {
	switch {
	case a.Millis < b.Millis:
		return -1
	case a.Millis > b.Millis:
		return 1
	}
	switch {
	case a.Counter < b.Counter:
		return -1
	case a.Counter > b.Counter:
		return 1
	}
	return strings.Compare(a.NodeID, b.NodeID)
}

// Before reports whether t happened strictly before other in the total order.
func (t Timestamp) Before(other Timestamp) bool { return Compare(t, other) < 0 }

// After reports whether t happened strictly after other in the total order.
func (t Timestamp) After(other Timestamp) bool { return Compare(t, other) > 0 }

// String renders the timestamp as "millis:counter:nodeId".
func (t Timestamp) String() string {
	return fmt.Sprintf("%d:%d:%s", t.Millis, t.Counter, t.NodeID)
}

// Parse decodes a "millis:counter:nodeId" string produced by String.
func Parse(s string) (Timestamp, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return Timestamp{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
	}
	millis, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return Timestamp{}, fmt.Errorf("%w: %q: %v", ErrMalformedTimestamp, s, err)
	}
	counter, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return Timestamp{}, fmt.Errorf("%w: %q: %v", ErrMalformedTimestamp, s, err)
	}
	if parts[2] == "" {
		return Timestamp{}, fmt.Errorf("%w: %q: empty nodeId", ErrMalformedTimestamp, s)
	}
	return Timestamp{Millis: millis, Counter: uint32(counter), NodeID: parts[2]}, nil
}

// ClockSource returns the current physical time in milliseconds since the
// Unix epoch. It is injectable so tests can drive the clock deterministically.
type ClockSource func() uint64

// SystemClockSource reads the real wall clock.
func SystemClockSource() uint64 {
	return uint64(time.Now().UnixMilli())
}

// Clock is a per-node hybrid logical clock. It is safe for concurrent use.
type Clock struct {
	mu sync.Mutex

	nodeID      string
	source      ClockSource
	maxDriftMs  uint64
	strict      bool
	lastMillis  uint64
	lastCounter uint32

	onDriftWarning func(drift int64)
}

// Option configures a Clock at construction time.
type Option func(*Clock)

// WithClockSource overrides the physical time source (default: the system
// wall clock). Primarily used by tests.
func WithClockSource(src ClockSource) Option {
	return func(c *Clock) { c.source = src }
}

// WithMaxDrift sets the maximum millis a remote timestamp's physical time
// may lead the local wall clock before Update rejects it (strict mode) or
// warns (non-strict mode). Zero disables the check.
func WithMaxDrift(maxDriftMs uint64) Option {
	return func(c *Clock) { c.maxDriftMs = maxDriftMs }
}

// WithStrictDrift makes Update return ErrClockDriftTooLarge instead of
// merely warning when drift exceeds the configured maximum.
func WithStrictDrift(strict bool) Option {
	return func(c *Clock) { c.strict = strict }
}

// WithDriftWarning installs a callback invoked (instead of a log line) when
// non-strict mode accepts a timestamp that exceeds the configured drift.
func WithDriftWarning(fn func(drift int64)) Option {
	return func(c *Clock) { c.onDriftWarning = fn }
}

// New creates a Clock for the given node.
func New(nodeID string, opts ...Option) *Clock {
	c := &Clock{
		nodeID: nodeID,
		source: SystemClockSource,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NodeID returns the clock's node identifier.
func (c *Clock) NodeID() string { return c.nodeID }

// Now produces a new local timestamp, guaranteed to strictly exceed every
// timestamp previously returned by Now or observed by Update on this clock.
func (c *Clock) Now() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	physical := c.source()
	if physical > c.lastMillis {
		c.lastMillis = physical
		c.lastCounter = 0
	} else {
		c.lastCounter++
	}
	return Timestamp{Millis: c.lastMillis, Counter: c.lastCounter, NodeID: c.nodeID}
}

// Update folds a remote timestamp into the clock's state, advancing it so
// that any subsequent local Now() exceeds both the prior local state and the
// remote observation.
func (c *Clock) Update(remote Timestamp) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	physical := c.source()

	if c.maxDriftMs > 0 && remote.Millis > physical {
		drift := int64(remote.Millis - physical)
		if uint64(drift) > c.maxDriftMs {
			if c.strict {
				return fmt.Errorf("%w: remote=%d local=%d driftMs=%d", ErrClockDriftTooLarge, remote.Millis, physical, drift)
			}
			if c.onDriftWarning != nil {
				c.onDriftWarning(drift)
			}
		}
	}

	m := c.lastMillis
	if physical > m {
		m = physical
	}
	if remote.Millis > m {
		m = remote.Millis
	}

	switch {
	case m == c.lastMillis && m == remote.Millis:
		if remote.Counter > c.lastCounter {
			c.lastCounter = remote.Counter + 1
		} else {
			c.lastCounter = c.lastCounter + 1
		}
	case m == c.lastMillis:
		c.lastCounter = c.lastCounter + 1
	case m == remote.Millis:
		c.lastCounter = remote.Counter + 1
	default:
		c.lastCounter = 0
	}
	c.lastMillis = m
	return nil
}

// Observed returns the clock's last-seen (millis, counter) pair without
// advancing it. Useful for diagnostics.
func (c *Clock) Observed() (millis uint64, counter uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastMillis, c.lastCounter
}
