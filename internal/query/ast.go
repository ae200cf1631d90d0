// Package query defines the query tree: the simple and logical node types
// the planner compiles into execution plans, plus canonicalization for
// standing-query structural-equality matching.
package query

// Kind names a query tree node's operator.
type Kind string

const (
	KindEqual       Kind = "eq"
	KindNotEqual    Kind = "neq"
	KindGT          Kind = "gt"
	KindGTE         Kind = "gte"
	KindLT          Kind = "lt"
	KindLTE         Kind = "lte"
	KindBetween     Kind = "between"
	KindIn          Kind = "in"
	KindHas         Kind = "has"
	KindLike        Kind = "like"
	KindRegex       Kind = "regex"
	KindContains    Kind = "contains"
	KindContainsAll Kind = "containsAll"
	KindContainsAny Kind = "containsAny"

	KindAnd Kind = "and"
	KindOr  Kind = "or"
	KindNot Kind = "not"
)

func (k Kind) isLogical() bool {
	switch k {
	case KindAnd, KindOr, KindNot:
		return true
	default:
		return false
	}
}

// Node is one node of a query tree: either a simple leaf condition on a
// named attribute, or a logical combinator over child nodes.
type Node struct {
	Kind Kind

	// Simple-node fields.
	Attribute string
	Value     any
	Values    []any
	Low       any
	High      any

	// Logical-node fields.
	Children []Node
}

// Eq builds an equality leaf.
func Eq(attribute string, value any) Node {
	return Node{Kind: KindEqual, Attribute: attribute, Value: value}
}

// NotEq builds an inequality leaf.
func NotEq(attribute string, value any) Node {
	return Node{Kind: KindNotEqual, Attribute: attribute, Value: value}
}

// GT builds a greater-than leaf.
func GT(attribute string, value any) Node { return Node{Kind: KindGT, Attribute: attribute, Value: value} }

// GTE builds a greater-than-or-equal leaf.
func GTE(attribute string, value any) Node {
	return Node{Kind: KindGTE, Attribute: attribute, Value: value}
}

// LT builds a less-than leaf.
func LT(attribute string, value any) Node { return Node{Kind: KindLT, Attribute: attribute, Value: value} }

// LTE builds a less-than-or-equal leaf.
func LTE(attribute string, value any) Node {
	return Node{Kind: KindLTE, Attribute: attribute, Value: value}
}

// Between builds an inclusive range leaf.
func Between(attribute string, low, high any) Node {
	return Node{Kind: KindBetween, Attribute: attribute, Low: low, High: high}
}

// In builds a membership leaf.
func In(attribute string, values []any) Node {
	return Node{Kind: KindIn, Attribute: attribute, Values: values}
}

// Has builds a "has any value" leaf.
func Has(attribute string) Node { return Node{Kind: KindHas, Attribute: attribute} }

// Like builds a glob-style (%/_ wildcard) pattern-match leaf.
func Like(attribute string, pattern string) Node {
	return Node{Kind: KindLike, Attribute: attribute, Value: pattern}
}

// Regex builds a regular-expression pattern-match leaf.
func Regex(attribute string, pattern string) Node {
	return Node{Kind: KindRegex, Attribute: attribute, Value: pattern}
}

// Contains builds a text-contains leaf.
func Contains(attribute string, text any) Node {
	return Node{Kind: KindContains, Attribute: attribute, Value: text}
}

// ContainsAll builds a leaf requiring all of values to be present.
func ContainsAll(attribute string, values []any) Node {
	return Node{Kind: KindContainsAll, Attribute: attribute, Values: values}
}

// ContainsAny builds a leaf requiring any of values to be present.
func ContainsAny(attribute string, values []any) Node {
	return Node{Kind: KindContainsAny, Attribute: attribute, Values: values}
}

// And combines children conjunctively.
func And(children ...Node) Node { return Node{Kind: KindAnd, Children: children} }

// Or combines children disjunctively.
func Or(children ...Node) Node { return Node{Kind: KindOr, Children: children} }

// Not negates child.
func Not(child Node) Node { return Node{Kind: KindNot, Children: []Node{child}} }
