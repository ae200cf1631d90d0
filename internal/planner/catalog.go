// Package planner implements the cost-based query planner: compiling a
// query tree into a plan tree over a catalog of indexes, and interpreting
// that plan tree into a result-set tree.
package planner

import (
	"github.com/replikv/replikv/internal/index"
	"github.com/replikv/replikv/internal/query"
	"github.com/replikv/replikv/internal/resultset"
)

// Catalog is the planner's view of the indexes, standing queries, and
// record access available to plan and execute against.
type Catalog struct {
	byAttribute map[string][]index.Index
	compound    []*index.CompoundIndex
	standing    []*index.StandingIndex
	fallback    *index.FallbackIndex
	attrs       query.Attributes
	lookup      resultset.RecordLookup
	allKeys     func() []string
}

// NewCatalog creates an empty catalog. attrs resolves leaf-query attribute
// names for full-scan predicate evaluation; lookup resolves a key to its
// current record for Filter/full-scan; allKeys enumerates every known key,
// used by `not` to compute a complement.
func NewCatalog(attrs query.Attributes, lookup resultset.RecordLookup, allKeys func() []string, fallback *index.FallbackIndex) *Catalog {
	return &Catalog{
		byAttribute: make(map[string][]index.Index),
		attrs:       attrs,
		lookup:      lookup,
		allKeys:     allKeys,
		fallback:    fallback,
	}
}

// AddIndex registers a single-attribute index (hash, navigable, quantized,
// inverted) under its attribute's name.
func (c *Catalog) AddIndex(idx index.Index) {
	attr := idx.Attribute()
	if attr == nil {
		return
	}
	c.byAttribute[attr.Name()] = append(c.byAttribute[attr.Name()], idx)
}

// AddCompoundIndex registers a compound index, consulted for all-equal and
// queries over exactly its attributes.
func (c *Catalog) AddCompoundIndex(idx *index.CompoundIndex) {
	c.compound = append(c.compound, idx)
}

// AddStandingIndex registers a standing query index, consulted first for
// structural-equality matches against incoming queries.
func (c *Catalog) AddStandingIndex(idx *index.StandingIndex) {
	c.standing = append(c.standing, idx)
}

// RemoveStandingIndex drops a standing query index, e.g. when its last
// live-query subscriber unsubscribes.
func (c *Catalog) RemoveStandingIndex(idx *index.StandingIndex) {
	for i, s := range c.standing {
		if s == idx {
			c.standing = append(c.standing[:i], c.standing[i+1:]...)
			return
		}
	}
}

// RemoveIndex drops a single-attribute index previously registered with
// AddIndex. Reports whether an index was found and removed.
func (c *Catalog) RemoveIndex(idx index.Index) bool {
	attr := idx.Attribute()
	if attr == nil {
		return false
	}
	name := attr.Name()
	list := c.byAttribute[name]
	for i, existing := range list {
		if existing == idx {
			list = append(list[:i], list[i+1:]...)
			if len(list) == 0 {
				delete(c.byAttribute, name)
			} else {
				c.byAttribute[name] = list
			}
			return true
		}
	}
	return false
}

// RemoveCompoundIndex drops a compound index previously registered with
// AddCompoundIndex.
func (c *Catalog) RemoveCompoundIndex(idx *index.CompoundIndex) bool {
	for i, comp := range c.compound {
		if comp == idx {
			c.compound = append(c.compound[:i], c.compound[i+1:]...)
			return true
		}
	}
	return false
}

// FindStanding returns the first registered standing index structurally
// matching node, if any.
func (c *Catalog) FindStanding(node query.Node) *index.StandingIndex {
	for _, s := range c.standing {
		if s.Matches(node) {
			return s
		}
	}
	return nil
}

// HasIndexFor reports whether any single-attribute index is registered
// for attribute, consulted by the adaptive advisor before suggesting a
// redundant one.
func (c *Catalog) HasIndexFor(attribute string) bool {
	return len(c.byAttribute[attribute]) > 0
}

// HasCompoundFor reports whether a compound index already covers exactly
// attrNames (as a set, any order).
func (c *Catalog) HasCompoundFor(attrNames []string) bool {
	for _, comp := range c.compound {
		if sameAttributeSet(comp.AttributeNames(), attrNames) {
			return true
		}
	}
	return false
}

func sameAttributeSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, name := range a {
		set[name] = struct{}{}
	}
	for _, name := range b {
		if _, ok := set[name]; !ok {
			return false
		}
	}
	return true
}
