// Package bm25 implements a probabilistic relevance ranking full-text
// index: tokenizer pipeline, posting lists, IDF computation, and BM25
// scoring for both batch search and single-document incremental scoring.
package bm25

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/replikv/replikv/internal/index"
)

const (
	defaultK1 = 1.2
	defaultB  = 0.75
)

// Posting records one document's occurrence of a term.
type Posting struct {
	DocID         string
	TermFrequency int
}

// Hit is one scored search result.
type Hit struct {
	DocID         string
	Score         float64
	MatchedTerms  []string
}

// Options configures search and scoring.
type Options struct {
	Limit    int
	MinScore float64
	Fields   []string
	Boost    map[string]float64
	K1       float64
	B        float64
}

func (o Options) k1() float64 {
	if o.K1 > 0 {
		return o.K1
	}
	return defaultK1
}

func (o Options) b() float64 {
	if o.B > 0 {
		return o.B
	}
	return defaultB
}

// Index is a BM25 full-text index over one or more text fields of a
// record, using a tokenizer Pipeline shared with internal/index's
// inverted index.
type Index struct {
	mu           sync.RWMutex
	pipeline     index.Pipeline
	fieldOf      func(record any) string
	idf          map[string]float64
	postings     map[string][]Posting
	docLength    map[string]int
	docTokens    map[string]map[string]int // docID -> term -> frequency
	totalDocs    int
	totalLength  int
	createdAt    time.Time
	lastModified time.Time
}

// NewIndex creates a BM25 index. pipeline tokenizes text; fieldOf extracts
// the searchable text from a record.
func NewIndex(pipeline index.Pipeline, fieldOf func(record any) string) *Index {
	if pipeline.Tokenize == nil {
		pipeline = index.DefaultPipeline()
	}
	now := time.Now()
	return &Index{
		pipeline:     pipeline,
		fieldOf:      fieldOf,
		idf:          make(map[string]float64),
		postings:     make(map[string][]Posting),
		docLength:    make(map[string]int),
		docTokens:    make(map[string]map[string]int),
		createdAt:    now,
		lastModified: now,
	}
}

// BuildFromEntries rebuilds the entire index from scratch over entries
// (docID -> record), recomputing postings and IDFs.
func (idx *Index) BuildFromEntries(entries map[string]any) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.postings = make(map[string][]Posting)
	idx.docLength = make(map[string]int)
	idx.docTokens = make(map[string]map[string]int)
	idx.totalLength = 0

	for docID, record := range entries {
		idx.indexDocLocked(docID, record)
	}
	idx.totalDocs = len(entries)
	idx.recomputeIDFLocked()
	idx.lastModified = time.Now()
}

func (idx *Index) indexDocLocked(docID string, record any) {
	tokens := idx.pipeline.Run(idx.fieldOf(record))
	counts := make(map[string]int)
	for _, t := range tokens {
		counts[t]++
	}
	idx.docTokens[docID] = counts
	idx.docLength[docID] = len(tokens)
	idx.totalLength += len(tokens)
	for term, freq := range counts {
		idx.postings[term] = append(idx.postings[term], Posting{DocID: docID, TermFrequency: freq})
	}
}

func (idx *Index) recomputeIDFLocked() {
	n := float64(idx.totalDocs)
	idx.idf = make(map[string]float64, len(idx.postings))
	for term, postings := range idx.postings {
		df := float64(len(postings))
		idx.idf[term] = math.Log((n-df+0.5)/(df+0.5) + 1)
	}
}

func (idx *Index) avgDocLength() float64 {
	if idx.totalDocs == 0 {
		return 0
	}
	return float64(idx.totalLength) / float64(idx.totalDocs)
}

// AvgDocLength returns the current mean document length in tokens.
func (idx *Index) AvgDocLength() float64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.avgDocLength()
}

// TotalDocs returns the current document count.
func (idx *Index) TotalDocs() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.totalDocs
}

// Search tokenizes query with the index's pipeline and scores every
// matching document with BM25, sorting descending by score and applying
// opts.MinScore/opts.Limit.
func (idx *Index) Search(query string, opts Options) []Hit {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	terms := uniqueTerms(idx.pipeline.Run(query))
	scores := make(map[string]float64)
	matched := make(map[string]map[string]struct{})
	avgLen := idx.avgDocLength()
	k1, b := opts.k1(), opts.b()

	for _, term := range terms {
		termIDF, ok := idx.idf[term]
		if !ok || termIDF <= 0 {
			continue
		}
		for _, p := range idx.postings[term] {
			docLen := float64(idx.docLength[p.DocID])
			score := scoreTerm(termIDF, float64(p.TermFrequency), docLen, avgLen, k1, b)
			scores[p.DocID] += score
			if matched[p.DocID] == nil {
				matched[p.DocID] = make(map[string]struct{})
			}
			matched[p.DocID][term] = struct{}{}
		}
	}

	hits := make([]Hit, 0, len(scores))
	for docID, score := range scores {
		if score < opts.MinScore {
			continue
		}
		hits = append(hits, Hit{DocID: docID, Score: score, MatchedTerms: sortedKeys(matched[docID])})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})
	if opts.Limit > 0 && len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	return hits
}

// scoreTerm computes one term's BM25 contribution to a document's score.
func scoreTerm(idfValue, termFreq, docLen, avgLen, k1, b float64) float64 {
	if avgLen == 0 {
		avgLen = docLen
	}
	denom := termFreq + k1*(1-b+b*docLen/avgLen)
	if denom == 0 {
		return 0
	}
	return idfValue * (termFreq * (k1 + 1)) / denom
}

// ScoreSingleDocument recomputes a document's BM25 score against
// queryTerms without scanning posting lists — used by the live-FTS index
// for O(1)-per-change rescoring. Returns (score, matchedTerms, found).
func (idx *Index) ScoreSingleDocument(docID string, queryTerms []string, record any) (float64, []string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	tokens := idx.pipeline.Run(idx.fieldOf(record))
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	docLen := float64(len(tokens))
	avgLen := idx.avgDocLength()
	k1, b := defaultK1, defaultB

	var score float64
	var matched []string
	for _, term := range uniqueTerms(queryTerms) {
		freq, present := counts[term]
		if !present {
			continue
		}
		termIDF, ok := idx.idf[term]
		if !ok || termIDF <= 0 {
			continue
		}
		score += scoreTerm(termIDF, float64(freq), docLen, avgLen, k1, b)
		matched = append(matched, term)
	}
	if len(matched) == 0 {
		return 0, nil, false
	}
	sort.Strings(matched)
	return score, matched, true
}

// OnSet incrementally indexes (or reindexes) one document, recomputing
// every IDF immediately; avgDocLength is derived from running totals on
// each read.
func (idx *Index) OnSet(docID string, record any) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeDocLocked(docID)
	idx.indexDocLocked(docID, record)
	idx.totalDocs = len(idx.docLength)
	idx.recomputeIDFLocked()
	idx.lastModified = time.Now()
}

// OnRemove drops a document from the index, recomputing every IDF
// immediately; avgDocLength is derived from running totals on each read.
func (idx *Index) OnRemove(docID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeDocLocked(docID)
	idx.totalDocs = len(idx.docLength)
	idx.recomputeIDFLocked()
	idx.lastModified = time.Now()
}

func (idx *Index) removeDocLocked(docID string) {
	counts, ok := idx.docTokens[docID]
	if !ok {
		return
	}
	idx.totalLength -= idx.docLength[docID]
	delete(idx.docLength, docID)
	delete(idx.docTokens, docID)
	for term := range counts {
		postings := idx.postings[term]
		for i, p := range postings {
			if p.DocID == docID {
				postings = append(postings[:i], postings[i+1:]...)
				break
			}
		}
		if len(postings) == 0 {
			delete(idx.postings, term)
		} else {
			idx.postings[term] = postings
		}
	}
}

func uniqueTerms(tokens []string) []string {
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

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
