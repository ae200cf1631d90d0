package index

import (
	"fmt"
	"strings"
	"sync"

	"github.com/replikv/replikv/internal/attribute"
	"github.com/replikv/replikv/internal/resultset"
)

const defaultCompositeSeparator = "|"

// CompoundIndex maps a composite key over an ordered list of attributes to
// the set of keys sharing that exact combination of values.
type CompoundIndex struct {
	mu         sync.RWMutex
	attrs      []attribute.Attribute
	separator  string
	byComposite map[string]map[string]struct{}
	compositeOf map[string]string
}

// NewCompoundIndex creates a compound index over an ordered list of ≥ 2
// attributes, using the default "|" separator.
func NewCompoundIndex(attrs []attribute.Attribute) *CompoundIndex {
	return &CompoundIndex{
		attrs:       attrs,
		separator:   defaultCompositeSeparator,
		byComposite: make(map[string]map[string]struct{}),
		compositeOf: make(map[string]string),
	}
}

// Attribute returns the leading attribute; compound indexes are addressed
// by their full ordered attribute list via AttributeNames.
func (c *CompoundIndex) Attribute() attribute.Attribute {
	if len(c.attrs) == 0 {
		return nil
	}
	return c.attrs[0]
}

// AttributeNames returns the ordered attribute names this index covers.
func (c *CompoundIndex) AttributeNames() []string {
	names := make([]string, len(c.attrs))
	for i, a := range c.attrs {
		names[i] = a.Name()
	}
	return names
}

func (c *CompoundIndex) Type() string       { return "compound" }
func (c *CompoundIndex) RetrievalCost() int { return CostCompound }

func (c *CompoundIndex) SupportsQuery(kind QueryKind) bool {
	return kind == QueryCompound
}

// CanAnswerQuery reports whether attrNames is an exact ordered prefix
// of this index's attribute list (the full list included).
func (c *CompoundIndex) CanAnswerQuery(attrNames []string) bool {
	if len(attrNames) > len(c.attrs) {
		return false
	}
	for i, name := range attrNames {
		if c.attrs[i].Name() != name {
			return false
		}
	}
	return true
}

// escape replaces occurrences of the separator inside a stringified
// component so joined composite keys remain unambiguous.
func escape(s, separator string) string {
	return strings.ReplaceAll(s, separator, "\\"+separator)
}

func stringify(v any, ok bool) string {
	if !ok || v == nil {
		return "\x00undefined\x00"
	}
	return fmt.Sprintf("%v", v)
}

// encodeComposite builds the composite key string for an ordered list of
// attribute values, or ("", false) if any component is undefined.
func (c *CompoundIndex) encodeComposite(record any) (string, bool) {
	parts := make([]string, len(c.attrs))
	for i, attr := range c.attrs {
		vals, ok := attr.Get(record)
		if !ok || len(vals) == 0 {
			return "", false
		}
		parts[i] = escape(stringify(vals[0], true), c.separator)
	}
	return strings.Join(parts, c.separator), true
}

// EncodeQuery builds the composite key for a query's ordered value list,
// used by the planner/caller to probe an exact combination.
func (c *CompoundIndex) EncodeQuery(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = escape(stringify(v, true), c.separator)
	}
	return strings.Join(parts, c.separator)
}

func (c *CompoundIndex) Retrieve(q Query) resultset.ResultSet {
	c.mu.RLock()
	defer c.mu.RUnlock()

	composite, _ := q.Value.(string)
	set := c.byComposite[composite]
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return resultset.NewSet(out, CostCompound)
}

func (c *CompoundIndex) Add(key string, record any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addLocked(key, record)
}

func (c *CompoundIndex) addLocked(key string, record any) {
	composite, ok := c.encodeComposite(record)
	if !ok {
		return
	}
	c.compositeOf[key] = composite
	set, exists := c.byComposite[composite]
	if !exists {
		set = make(map[string]struct{})
		c.byComposite[composite] = set
	}
	set[key] = struct{}{}
}

func (c *CompoundIndex) Remove(key string, record any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

func (c *CompoundIndex) removeLocked(key string) {
	composite, ok := c.compositeOf[key]
	if !ok {
		return
	}
	delete(c.compositeOf, key)
	if set, exists := c.byComposite[composite]; exists {
		delete(set, key)
		if len(set) == 0 {
			delete(c.byComposite, composite)
		}
	}
}

func (c *CompoundIndex) Update(key string, oldRecord, newRecord any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
	c.addLocked(key, newRecord)
}

func (c *CompoundIndex) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byComposite = make(map[string]map[string]struct{})
	c.compositeOf = make(map[string]string)
}

func (c *CompoundIndex) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{EntryCount: len(c.compositeOf), DistinctKeys: len(c.byComposite)}
}
