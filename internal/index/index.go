// Package index implements the retrieval primitives: hash, navigable,
// quantized navigable, inverted, compound, standing-query, and fallback
// indexes, plus lazy materialization wrappers (Components H and I).
package index

import (
	"github.com/replikv/replikv/internal/attribute"
	"github.com/replikv/replikv/internal/resultset"
)

// QueryKind names a query operator an index may be asked to answer.
type QueryKind string

const (
	QueryEqual         QueryKind = "equal"
	QueryIn            QueryKind = "in"
	QueryHas           QueryKind = "has"
	QueryGT            QueryKind = "gt"
	QueryGTE           QueryKind = "gte"
	QueryLT            QueryKind = "lt"
	QueryLTE           QueryKind = "lte"
	QueryBetween       QueryKind = "between"
	QueryContains      QueryKind = "contains"
	QueryContainsAll   QueryKind = "containsAll"
	QueryContainsAny   QueryKind = "containsAny"
	QueryCompound      QueryKind = "compound"
)

// Retrieval cost constants from the index cost table. Lower is cheaper.
const (
	CostStanding  = 10
	CostCompound  = 20
	CostHash      = 30
	CostNavigable = 40
	CostInverted  = 50
	CostFallback  = 1 << 30 // effectively "max"
)

// Query is the argument to Retrieve: an operator plus the operand
// value(s) needed to evaluate it.
type Query struct {
	Kind    QueryKind
	Value   any   // eq, gt, gte, lt, lte, contains
	Values  []any // in, containsAll, containsAny
	Low     any   // between
	High    any   // between
}

// Stats reports an index's runtime statistics for diagnostics and the
// adaptive advisor.
type Stats struct {
	EntryCount   int
	DistinctKeys int
}

// Retriever is the subset of Index the planner needs to execute a lookup
// step: something queryable that reports its own cost. StandingIndex
// satisfies this without satisfying the full Index interface, since its
// Add/Remove/Update report a change classification the planner doesn't
// need.
type Retriever interface {
	Retrieve(q Query) resultset.ResultSet
	RetrievalCost() int
}

// Index is the common interface every index family implements over an
// attribute projection.
type Index interface {
	Attribute() attribute.Attribute
	Type() string
	RetrievalCost() int
	SupportsQuery(kind QueryKind) bool
	Retrieve(q Query) resultset.ResultSet
	Add(key string, record any)
	Remove(key string, record any)
	Update(key string, oldRecord, newRecord any)
	Clear()
	GetStats() Stats
}
