package planner

import (
	"github.com/replikv/replikv/internal/index"
	"github.com/replikv/replikv/internal/query"
)

// StepKind names a plan step's execution strategy.
type StepKind string

const (
	StepStandingLookup StepKind = "standing-lookup"
	StepIndexLookup    StepKind = "index"
	StepFullScan       StepKind = "full-scan"
	StepIntersection   StepKind = "intersection"
	StepUnion          StepKind = "union"
	StepFilter         StepKind = "filter"
	StepNot            StepKind = "not"
)

const notCostPenalty = 100

// Plan is one node of a plan tree: the strategy chosen to satisfy a query
// (sub)tree, its estimated cost, and enough state to execute it.
type Plan struct {
	Kind  StepKind
	Cost  int
	Node  query.Node
	Index index.Retriever // set for StepIndexLookup and StepStandingLookup

	// Filter: Children[0] is the source plan; Predicate is the remaining
	// condition evaluated per-record.
	Predicate query.Node

	Children []*Plan
}

// QueryPlan is the planner's top-level output: the plan tree plus whether
// any step in it consulted an index rather than scanning.
type QueryPlan struct {
	Root        *Plan
	UsesIndexes bool
}

// Plan compiles node into a QueryPlan over catalog, choosing the cheapest
// applicable strategy at each level.
func Plan(catalog *Catalog, node query.Node) *QueryPlan {
	root := planNode(catalog, node)
	return &QueryPlan{Root: root, UsesIndexes: usesIndex(root)}
}

// ExplainQuery returns the plan for node without executing it.
func ExplainQuery(catalog *Catalog, node query.Node) *QueryPlan {
	return Plan(catalog, node)
}

func usesIndex(p *Plan) bool {
	switch p.Kind {
	case StepStandingLookup, StepIndexLookup, StepIntersection, StepUnion:
		return true
	case StepFilter:
		return len(p.Children) > 0 && usesIndex(p.Children[0])
	default:
		return false
	}
}

func planNode(catalog *Catalog, node query.Node) *Plan {
	if standing := catalog.FindStanding(node); standing != nil {
		return &Plan{Kind: StepStandingLookup, Cost: index.CostStanding, Node: node, Index: standing}
	}

	switch node.Kind {
	case query.KindAnd:
		return planAnd(catalog, node)
	case query.KindOr:
		return planOr(catalog, node)
	case query.KindNot:
		return planNot(catalog, node)
	default:
		return planSimple(catalog, node)
	}
}

// indexableKind reports whether node's operator maps onto an index.Query
// an Index implementation can be asked to answer.
func indexableKind(kind query.Kind) (index.QueryKind, bool) {
	switch kind {
	case query.KindEqual:
		return index.QueryEqual, true
	case query.KindIn:
		return index.QueryIn, true
	case query.KindHas:
		return index.QueryHas, true
	case query.KindGT:
		return index.QueryGT, true
	case query.KindGTE:
		return index.QueryGTE, true
	case query.KindLT:
		return index.QueryLT, true
	case query.KindLTE:
		return index.QueryLTE, true
	case query.KindBetween:
		return index.QueryBetween, true
	case query.KindContains:
		return index.QueryContains, true
	case query.KindContainsAll:
		return index.QueryContainsAll, true
	case query.KindContainsAny:
		return index.QueryContainsAny, true
	default:
		return "", false
	}
}

func toIndexQuery(node query.Node) index.Query {
	kind, _ := indexableKind(node.Kind)
	return index.Query{Kind: kind, Value: node.Value, Values: node.Values, Low: node.Low, High: node.High}
}

// planSimple plans a single leaf condition: the cheapest supporting index,
// or a full scan if none qualifies.
func planSimple(catalog *Catalog, node query.Node) *Plan {
	kind, ok := indexableKind(node.Kind)
	if ok {
		var best index.Index
		for _, idx := range catalog.byAttribute[node.Attribute] {
			if !idx.SupportsQuery(kind) {
				continue
			}
			if best == nil || idx.RetrievalCost() < best.RetrievalCost() {
				best = idx
			}
		}
		if best != nil {
			return &Plan{Kind: StepIndexLookup, Cost: best.RetrievalCost(), Node: node, Index: best}
		}
	}
	return fullScan(node)
}

func fullScan(node query.Node) *Plan {
	return &Plan{Kind: StepFullScan, Cost: index.CostFallback, Node: node}
}

// planAnd prefers a compound index whose attributes are exactly those of
// the all-eq children (a compound index over more attributes than the
// children name is not used), else intersects indexed children and filters
// the rest.
func planAnd(catalog *Catalog, node query.Node) *Plan {
	if compoundPlan := planCompoundPrefix(catalog, node); compoundPlan != nil {
		return compoundPlan
	}

	children := make([]*Plan, len(node.Children))
	for i, c := range node.Children {
		children[i] = planNode(catalog, c)
	}

	allIndexed := true
	for _, c := range children {
		if !usesIndex(c) {
			allIndexed = false
			break
		}
	}
	if allIndexed {
		cost := 0
		for _, c := range children {
			cost += c.Cost
		}
		return &Plan{Kind: StepIntersection, Cost: cost, Node: node, Children: children}
	}

	leadIdx := -1
	for i, c := range children {
		if usesIndex(c) && (leadIdx == -1 || c.Cost < children[leadIdx].Cost) {
			leadIdx = i
		}
	}
	if leadIdx == -1 {
		return fullScan(node)
	}

	remaining := make([]query.Node, 0, len(node.Children)-1)
	for i, c := range node.Children {
		if i != leadIdx {
			remaining = append(remaining, c)
		}
	}
	predicate := query.And(remaining...)
	lead := children[leadIdx]
	return &Plan{Kind: StepFilter, Cost: lead.Cost + 10, Node: node, Predicate: predicate, Children: []*Plan{lead}}
}

// planCompoundPrefix looks for a compound index whose ordered attribute
// list is exactly the set of and-children's attributes, all eq conditions.
func planCompoundPrefix(catalog *Catalog, node query.Node) *Plan {
	for _, c := range node.Children {
		if c.Kind != query.KindEqual {
			return nil
		}
	}
	for _, compound := range catalog.compound {
		names := compound.AttributeNames()
		if len(names) != len(node.Children) {
			continue
		}
		byAttr := make(map[string]any, len(node.Children))
		for _, c := range node.Children {
			byAttr[c.Attribute] = c.Value
		}
		values := make([]any, len(names))
		ok := true
		for i, name := range names {
			v, present := byAttr[name]
			if !present {
				ok = false
				break
			}
			values[i] = v
		}
		if !ok {
			continue
		}
		composite := compound.EncodeQuery(values)
		return &Plan{
			Kind:  StepIndexLookup,
			Cost:  compound.RetrievalCost(),
			Node:  node,
			Index: compound,
			Predicate: query.Node{Kind: query.KindEqual, Value: composite},
		}
	}
	return nil
}

// planOr emits a union when every child is indexable, else a full scan
// over the disjunction.
func planOr(catalog *Catalog, node query.Node) *Plan {
	children := make([]*Plan, len(node.Children))
	for i, c := range node.Children {
		children[i] = planNode(catalog, c)
	}
	for _, c := range children {
		if !usesIndex(c) {
			return fullScan(node)
		}
	}
	cost := 0
	for _, c := range children {
		cost += c.Cost
	}
	return &Plan{Kind: StepUnion, Cost: cost, Node: node, Children: children}
}

// planNot plans the child and wraps it in a complement step approximated
// at 100 plus the child's cost.
func planNot(catalog *Catalog, node query.Node) *Plan {
	if len(node.Children) == 0 {
		return fullScan(node)
	}
	child := planNode(catalog, node.Children[0])
	return &Plan{Kind: StepNot, Cost: notCostPenalty + child.Cost, Node: node, Children: []*Plan{child}}
}
