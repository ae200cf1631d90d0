package index

import (
	"sort"
	"strings"
	"sync"

	"github.com/replikv/replikv/internal/attribute"
	"github.com/replikv/replikv/internal/resultset"
)

// TokenFilter transforms or drops tokens in a tokenization pipeline.
type TokenFilter func(tokens []string) []string

// Pipeline is an ordered tokenizer (splitting text into raw tokens)
// followed by filters.
type Pipeline struct {
	Tokenize func(text string) []string
	Filters  []TokenFilter
}

// Run applies the pipeline to text.
func (p Pipeline) Run(text string) []string {
	tokens := p.Tokenize(text)
	for _, f := range p.Filters {
		tokens = f(tokens)
	}
	return tokens
}

// WhitespaceTokenizer splits on runs of whitespace.
func WhitespaceTokenizer(text string) []string {
	return strings.Fields(text)
}

// Lowercase lowercases every token.
func Lowercase(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = strings.ToLower(t)
	}
	return out
}

// TrimFilter trims leading/trailing punctuation-like characters from each
// token.
func TrimFilter(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.Trim(t, ".,!?;:\"'()[]{}")
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// LengthFilter drops tokens shorter than min or longer than max (max<=0
// means unbounded).
func LengthFilter(min, max int) TokenFilter {
	return func(tokens []string) []string {
		out := make([]string, 0, len(tokens))
		for _, t := range tokens {
			if len(t) < min {
				continue
			}
			if max > 0 && len(t) > max {
				continue
			}
			out = append(out, t)
		}
		return out
	}
}

// StopwordFilter drops tokens present in stopwords.
func StopwordFilter(stopwords map[string]struct{}) TokenFilter {
	return func(tokens []string) []string {
		out := make([]string, 0, len(tokens))
		for _, t := range tokens {
			if _, stop := stopwords[t]; stop {
				continue
			}
			out = append(out, t)
		}
		return out
	}
}

// UniqueFilter deduplicates tokens, preserving first-occurrence order.
func UniqueFilter(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// DefaultPipeline is whitespace tokenization, lowercasing, trimming, and
// deduplication — a reasonable default for contains/containsAll/containsAny
// attribute text; the BM25 index also falls back to it when given none.
func DefaultPipeline() Pipeline {
	return Pipeline{
		Tokenize: WhitespaceTokenizer,
		Filters:  []TokenFilter{Lowercase, TrimFilter, UniqueFilter},
	}
}

// InvertedIndex maps tokens to sets of keys and keys to their token sets,
// for contains/containsAll/containsAny/has queries over tokenized text
// attribute values.
type InvertedIndex struct {
	mu          sync.RWMutex
	attr        attribute.Attribute
	pipeline    Pipeline
	postings    map[string]map[string]struct{} // token -> keys
	tokensOfKey map[string]map[string]struct{} // key -> tokens
}

// NewInvertedIndex creates an inverted index over attr using pipeline for
// tokenization. A zero-value Pipeline uses DefaultPipeline.
func NewInvertedIndex(attr attribute.Attribute, pipeline Pipeline) *InvertedIndex {
	if pipeline.Tokenize == nil {
		pipeline = DefaultPipeline()
	}
	return &InvertedIndex{
		attr:        attr,
		pipeline:    pipeline,
		postings:    make(map[string]map[string]struct{}),
		tokensOfKey: make(map[string]map[string]struct{}),
	}
}

func (idx *InvertedIndex) Attribute() attribute.Attribute { return idx.attr }
func (idx *InvertedIndex) Type() string                   { return "inverted" }
func (idx *InvertedIndex) RetrievalCost() int             { return CostInverted }

func (idx *InvertedIndex) SupportsQuery(kind QueryKind) bool {
	switch kind {
	case QueryContains, QueryContainsAll, QueryContainsAny, QueryHas:
		return true
	default:
		return false
	}
}

func (idx *InvertedIndex) valueText(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}

func (idx *InvertedIndex) Retrieve(q Query) resultset.ResultSet {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	switch q.Kind {
	case QueryContains:
		tokens := idx.pipeline.Run(idx.valueText(q.Value))
		return resultset.NewSet(idx.intersectSmallestFirst(tokens), CostInverted)
	case QueryContainsAll:
		tokens := idx.tokenizeValues(q.Values)
		return resultset.NewSet(idx.intersectSmallestFirst(tokens), CostInverted)
	case QueryContainsAny:
		tokens := idx.tokenizeValues(q.Values)
		return resultset.NewSet(idx.union(tokens), CostInverted)
	case QueryHas:
		out := make([]string, 0, len(idx.tokensOfKey))
		for k := range idx.tokensOfKey {
			out = append(out, k)
		}
		return resultset.NewSet(out, CostInverted)
	default:
		return resultset.NewSet(nil, CostInverted)
	}
}

func (idx *InvertedIndex) tokenizeValues(values []any) []string {
	var all []string
	for _, v := range values {
		all = append(all, idx.pipeline.Run(idx.valueText(v))...)
	}
	return UniqueFilter(all)
}

// intersectSmallestFirst sorts tokens by posting-list size ascending,
// starts with the smallest posting list, and intersects with the
// remaining lists, early-exiting on empty.
func (idx *InvertedIndex) intersectSmallestFirst(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	sorted := append([]string(nil), tokens...)
	sort.Slice(sorted, func(i, j int) bool {
		return len(idx.postings[sorted[i]]) < len(idx.postings[sorted[j]])
	})

	result := idx.postings[sorted[0]]
	if result == nil {
		return nil
	}
	acc := make(map[string]struct{}, len(result))
	for k := range result {
		acc[k] = struct{}{}
	}

	for _, tok := range sorted[1:] {
		if len(acc) == 0 {
			break
		}
		posting := idx.postings[tok]
		for k := range acc {
			if _, ok := posting[k]; !ok {
				delete(acc, k)
			}
		}
	}

	out := make([]string, 0, len(acc))
	for k := range acc {
		out = append(out, k)
	}
	return out
}

func (idx *InvertedIndex) union(tokens []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range tokens {
		for k := range idx.postings[tok] {
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				out = append(out, k)
			}
		}
	}
	return out
}

func (idx *InvertedIndex) Add(key string, record any) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.addLocked(key, record)
}

func (idx *InvertedIndex) addLocked(key string, record any) {
	vals, ok := idx.attr.Get(record)
	if !ok {
		return
	}
	var tokens []string
	for _, v := range vals {
		tokens = append(tokens, idx.pipeline.Run(idx.valueText(v))...)
	}
	if len(tokens) == 0 {
		return
	}
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
		posting, exists := idx.postings[tok]
		if !exists {
			posting = make(map[string]struct{})
			idx.postings[tok] = posting
		}
		posting[key] = struct{}{}
	}
	idx.tokensOfKey[key] = set
}

func (idx *InvertedIndex) Remove(key string, record any) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(key)
}

func (idx *InvertedIndex) removeLocked(key string) {
	tokens, ok := idx.tokensOfKey[key]
	if !ok {
		return
	}
	for tok := range tokens {
		if posting, exists := idx.postings[tok]; exists {
			delete(posting, key)
			if len(posting) == 0 {
				delete(idx.postings, tok)
			}
		}
	}
	delete(idx.tokensOfKey, key)
}

func (idx *InvertedIndex) Update(key string, oldRecord, newRecord any) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(key)
	idx.addLocked(key, newRecord)
}

func (idx *InvertedIndex) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.postings = make(map[string]map[string]struct{})
	idx.tokensOfKey = make(map[string]map[string]struct{})
}

func (idx *InvertedIndex) GetStats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return Stats{EntryCount: len(idx.tokensOfKey), DistinctKeys: len(idx.postings)}
}
