// Package replikv embeds a replicated, queryable key-value collection: an
// HLC-anchored last-write-wins map with pluggable conflict resolution, a
// cost-based query planner over hash/navigable/inverted/compound indexes,
// live queries, adaptive auto-indexing, and BM25 full-text search.
//
// Most callers only need Map or IndexedMap. The rest of this package's
// exports are the building blocks (attributes, query nodes, resolver
// definitions) those two types are configured with.
package replikv

import (
	"github.com/replikv/replikv/internal/attribute"
	"github.com/replikv/replikv/internal/bm25"
	"github.com/replikv/replikv/internal/config"
	"github.com/replikv/replikv/internal/crdt"
	"github.com/replikv/replikv/internal/index"
	"github.com/replikv/replikv/internal/kvmap"
	"github.com/replikv/replikv/internal/query"
	"github.com/replikv/replikv/internal/resolver"
)

// Core map types.
type (
	Map          = kvmap.Map
	IndexedMap   = kvmap.IndexedMap
	MultiMap     = kvmap.MultiMap
	Config       = kvmap.Config
	MultiMapConfig = kvmap.MultiMapConfig
	Record       = crdt.Record
	ORRecord     = crdt.ORRecord
	MergeRejection = kvmap.MergeRejection
)

// NewMap constructs a plain LWW-CRDT map from cfg.
func NewMap(cfg Config) (*Map, error) {
	return kvmap.New(cfg)
}

// NewIndexedMap layers indexing, the query planner, live queries,
// adaptive indexing, and full-text search on top of base.
func NewIndexedMap(base *Map, opts Options) *IndexedMap {
	return kvmap.NewIndexed(base, opts)
}

// NewMultiMap constructs an OR-Set map from cfg.
func NewMultiMap(cfg MultiMapConfig) *MultiMap {
	return kvmap.NewMultiMap(cfg)
}

// Options, construction settings for IndexedMap.
type (
	Options                 = config.Options
	IndexingLevel           = config.IndexingLevel
	BuildProgress           = config.BuildProgress
	AdvisorOptions          = config.AdvisorOptions
	AutoIndexOptions        = config.AutoIndexOptions
	AdaptiveIndexingOptions = config.AdaptiveIndexingOptions
)

const (
	IndexingNone       = config.IndexingNone
	IndexingMinimal    = config.IndexingMinimal
	IndexingBalanced   = config.IndexingBalanced
	IndexingAggressive = config.IndexingAggressive
)

// DefaultOptions returns the baseline IndexedMap construction options.
func DefaultOptions() Options {
	return config.DefaultOptions()
}

// LoadOptionsFile loads Options from a single YAML or TOML file.
func LoadOptionsFile(path string) (Options, error) {
	return config.LoadFile(path)
}

// Attributes project a stored record down to the field a query, index, or
// live subscription runs against.
type (
	Attribute = attribute.Attribute
	FieldType = attribute.FieldType
	Schema    = attribute.Schema
)

const (
	FieldString    = attribute.FieldString
	FieldNumber    = attribute.FieldNumber
	FieldBoolean   = attribute.FieldBoolean
	FieldStringArr = attribute.FieldStringArr
	FieldNumberArr = attribute.FieldNumberArr
)

// Attr builds a single-valued attribute from a custom extractor.
func Attr(name string, extractor func(record any) (any, bool)) Attribute {
	return attribute.Simple(name, extractor)
}

// MultiAttr builds a multi-valued attribute (backing containsAll/
// containsAny queries and inverted-index tokenization) from a custom
// extractor.
func MultiAttr(name string, extractor func(record any) []any) Attribute {
	return attribute.Multi(name, extractor)
}

// DotPath builds a single-valued attribute over a struct/map field path.
func DotPath(name, path string) Attribute {
	return attribute.DotPath(name, path)
}

// DotPathMulti builds a multi-valued attribute over a slice field path.
func DotPathMulti(name, path string) Attribute {
	return attribute.DotPathMulti(name, path)
}

// AttributesFromSchema derives one attribute per schema field, each named
// namePrefix + field (no separator is inserted).
func AttributesFromSchema(schema Schema, namePrefix string) map[string]Attribute {
	return attribute.FromSchema(schema, namePrefix)
}

// Query node constructors. Compose with And/Or/Not; pass the result to
// IndexedMap's Query/QueryEntries/QueryValues/Count/ExplainQuery/
// SubscribeLiveQuery.
type (
	Query = query.Node
	Kind  = query.Kind
)

var (
	Eq          = query.Eq
	NotEq       = query.NotEq
	GT          = query.GT
	GTE         = query.GTE
	LT          = query.LT
	LTE         = query.LTE
	Between     = query.Between
	In          = query.In
	Has         = query.Has
	Like        = query.Like
	Regex       = query.Regex
	Contains    = query.Contains
	ContainsAll = query.ContainsAll
	ContainsAny = query.ContainsAny
	And         = query.And
	Or          = query.Or
	Not         = query.Not
)

// Index construction helpers, passed to IndexedMap's AddHashIndex/
// AddNavigableIndex/AddInvertedIndex/AddCompoundIndex, or built directly
// for AddIndex with a custom implementation.
type (
	Index      = index.Index
	Comparator = index.Comparator
	Pipeline   = index.Pipeline
)

// DefaultPipeline returns the tokenizer/filter pipeline inverted indexes
// and full-text search use when no pipeline is given explicitly.
func DefaultPipeline() Pipeline {
	return index.DefaultPipeline()
}

// Full-text search types.
type (
	FullTextConfig = kvmap.FullTextConfig
	SearchOptions  = bm25.Options
	SearchHit      = bm25.Hit
)

// Conflict resolvers.
type (
	ResolverRegistry   = resolver.Registry
	ResolverDefinition = resolver.Definition
	MergeContext       = resolver.MergeContext
	AuthInfo           = resolver.AuthInfo
)

// NewResolverRegistry creates a registry with only the built-in "lww"
// resolver active. The other built-ins (listed by BuiltinNames) take effect
// once bound to a key pattern with RegisterBuiltin.
func NewResolverRegistry() *ResolverRegistry {
	return resolver.NewRegistry()
}
