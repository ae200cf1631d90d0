package kvmap

import "errors"

// ErrJournalClosed is returned by any Map operation that would otherwise
// touch the journal after Close has been called. The journal itself stays
// mechanically usable post-dispose (its ring buffer is just inert); this
// sentinel is enforced at the façade so callers get a clear signal that
// the map is done.
var ErrJournalClosed = errors.New("kvmap: journal closed")

// ErrInvalidQuery is returned when a query tree references an attribute
// that was never registered on the map.
var ErrInvalidQuery = errors.New("kvmap: invalid query")

// ErrCapacityBelowOne is returned by construction options that require a
// positive capacity.
var ErrCapacityBelowOne = errors.New("kvmap: capacity must be at least 1")
