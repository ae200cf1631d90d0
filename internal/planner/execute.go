package planner

import (
	"github.com/replikv/replikv/internal/index"
	"github.com/replikv/replikv/internal/query"
	"github.com/replikv/replikv/internal/resultset"
)

// Execute interprets plan into a result-set tree against catalog.
func Execute(catalog *Catalog, plan *Plan) resultset.ResultSet {
	switch plan.Kind {
	case StepStandingLookup:
		return plan.Index.Retrieve(index.Query{})
	case StepIndexLookup:
		if _, ok := plan.Index.(*index.CompoundIndex); ok {
			return plan.Index.Retrieve(toIndexQuery(plan.Predicate))
		}
		return plan.Index.Retrieve(toIndexQuery(plan.Node))
	case StepFullScan:
		node := plan.Node
		return catalog.fallback.RetrieveWithPredicate(func(key string, record any) bool {
			return query.Match(node, record, catalog.attrs)
		})
	case StepIntersection:
		children := make([]resultset.ResultSet, len(plan.Children))
		for i, c := range plan.Children {
			children[i] = Execute(catalog, c)
		}
		return resultset.NewIntersection(children)
	case StepUnion:
		children := make([]resultset.ResultSet, len(plan.Children))
		for i, c := range plan.Children {
			children[i] = Execute(catalog, c)
		}
		return resultset.NewUnion(children)
	case StepFilter:
		source := Execute(catalog, plan.Children[0])
		predicate := plan.Predicate
		return resultset.NewFilter(source, catalog.lookup, func(key string, record any) bool {
			return query.Match(predicate, record, catalog.attrs)
		})
	case StepNot:
		child := Execute(catalog, plan.Children[0])
		excluded := make(map[string]struct{}, child.Len())
		for _, k := range child.Keys() {
			excluded[k] = struct{}{}
		}
		var out []string
		for _, k := range catalog.allKeys() {
			if _, ok := excluded[k]; !ok {
				out = append(out, k)
			}
		}
		return resultset.NewSet(out, plan.Cost)
	default:
		return resultset.NewSet(nil, index.CostFallback)
	}
}

// Query plans and executes node against catalog in one call.
func Query(catalog *Catalog, node query.Node) resultset.ResultSet {
	plan := Plan(catalog, node)
	return Execute(catalog, plan.Root)
}
