// Package attribute implements the record → value(s) projection
// abstraction used by every index to extract retrieval keys from stored
// values, plus a schema-driven factory for building attributes from a
// field-name/type map.
package attribute

import "strings"

// Attribute is a named, typed, pure projection from a record value to one
// or more index-retrievable values.
type Attribute interface {
	// Name returns the attribute's identifier.
	Name() string
	// Multi reports whether this attribute yields zero or more values
	// (true) or at most one (false).
	Multi() bool
	// Get extracts the attribute's value(s) from record. Single-valued
	// attributes return at most one element; ok is false when the value is
	// undefined (missing/null). Multi-valued attributes return ok=true with
	// a possibly empty slice.
	Get(record any) (values []any, ok bool)
}

type simpleAttribute struct {
	name      string
	extractor func(record any) (any, bool)
}

// Simple creates a single-valued attribute from an extractor that returns
// (value, true) when present or (nil, false) when undefined.
func Simple(name string, extractor func(record any) (any, bool)) Attribute {
	return &simpleAttribute{name: name, extractor: extractor}
}

func (a *simpleAttribute) Name() string { return a.name }
func (a *simpleAttribute) Multi() bool  { return false }

func (a *simpleAttribute) Get(record any) ([]any, bool) {
	v, ok := a.extractor(record)
	if !ok {
		return nil, false
	}
	return []any{v}, true
}

type multiAttribute struct {
	name      string
	extractor func(record any) []any
}

// Multi creates a multi-valued attribute (e.g. a tags array). Get always
// returns ok=true; the value slice may be empty.
func Multi(name string, extractor func(record any) []any) Attribute {
	return &multiAttribute{name: name, extractor: extractor}
}

func (a *multiAttribute) Name() string { return a.name }
func (a *multiAttribute) Multi() bool  { return true }

func (a *multiAttribute) Get(record any) ([]any, bool) {
	vals := a.extractor(record)
	if vals == nil {
		vals = []any{}
	}
	return vals, true
}

// dotPath walks record (expected to be a map[string]any, or support that
// shape at each segment) following the dot-separated path, returning
// (value, true) only if every segment resolves to a non-nil intermediate.
func dotPath(record any, path string) (any, bool) {
	segments := strings.Split(path, ".")
	cur := record
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, present := m[seg]
		if !present || v == nil {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// DotPath creates a simple attribute that walks a dot-separated path
// (e.g. "address.city", "metadata.preferences.theme") through nested
// map[string]any records, returning undefined at any missing/null step.
func DotPath(name, path string) Attribute {
	return Simple(name, func(record any) (any, bool) {
		return dotPath(record, path)
	})
}

// DotPathMulti creates a multi-valued attribute that walks path and, if
// the resolved value is a []any, returns its elements; for any other
// resolved type or a missing path, it returns an empty slice (per the
// attribute contract: GetValues on a non-array for a multi-attribute must
// return an empty list).
func DotPathMulti(name, path string) Attribute {
	return Multi(name, func(record any) []any {
		v, ok := dotPath(record, path)
		if !ok {
			return []any{}
		}
		arr, ok := v.([]any)
		if !ok {
			return []any{}
		}
		return arr
	})
}
