package bm25

import (
	"encoding/json"
	"fmt"
	"time"
)

// wireVersion is the only serialized-index version this build understands.
const wireVersion = 1

// wirePosting is one document's occurrence of a term in the serialized
// index.
type wirePosting struct {
	DocID         string `json:"docId"`
	TermFrequency int    `json:"termFrequency"`
}

// wireTerm is one term's full posting list plus its precomputed IDF.
type wireTerm struct {
	Term     string        `json:"term"`
	IDF      float64       `json:"idf"`
	Postings []wirePosting `json:"postings"`
}

// wireMetadata summarizes the corpus the index was built over.
type wireMetadata struct {
	TotalDocs    int       `json:"totalDocs"`
	AvgDocLength float64   `json:"avgDocLength"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
}

// wireIndex is the serialized BM25 index: enough to answer searches
// without rebuilding postings from the original records.
type wireIndex struct {
	Version    int             `json:"version"`
	Metadata   wireMetadata    `json:"metadata"`
	Terms      []wireTerm      `json:"terms"`
	DocLengths map[string]int  `json:"docLengths"`
}

// Serialize snapshots the index into its portable wire form.
func (idx *Index) Serialize() ([]byte, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	terms := make([]wireTerm, 0, len(idx.postings))
	for term, postings := range idx.postings {
		wp := make([]wirePosting, len(postings))
		for i, p := range postings {
			wp[i] = wirePosting{DocID: p.DocID, TermFrequency: p.TermFrequency}
		}
		terms = append(terms, wireTerm{Term: term, IDF: idx.idf[term], Postings: wp})
	}

	docLengths := make(map[string]int, len(idx.docLength))
	for docID, length := range idx.docLength {
		docLengths[docID] = length
	}

	wire := wireIndex{
		Version: wireVersion,
		Metadata: wireMetadata{
			TotalDocs:    idx.totalDocs,
			AvgDocLength: idx.avgDocLength(),
			CreatedAt:    idx.createdAt,
			LastModified: idx.lastModified,
		},
		Terms:      terms,
		DocLengths: docLengths,
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("bm25: marshal serialized index: %w", err)
	}
	return data, nil
}

// Deserialize replaces the index's postings, IDFs, and document lengths
// with a previously Serialize'd snapshot. docTokens (needed for
// OnSet/OnRemove term-diffing) is not part of the wire format and is left
// empty; documents reindexed after a Deserialize call rebuild it lazily.
func (idx *Index) Deserialize(data []byte) error {
	var wire wireIndex
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("bm25: unmarshal serialized index: %w", err)
	}
	if wire.Version != wireVersion {
		return fmt.Errorf("bm25: unsupported serialized index version %d (want %d)", wire.Version, wireVersion)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.postings = make(map[string][]Posting, len(wire.Terms))
	idx.idf = make(map[string]float64, len(wire.Terms))
	for _, wt := range wire.Terms {
		postings := make([]Posting, len(wt.Postings))
		for i, wp := range wt.Postings {
			postings[i] = Posting{DocID: wp.DocID, TermFrequency: wp.TermFrequency}
		}
		idx.postings[wt.Term] = postings
		idx.idf[wt.Term] = wt.IDF
	}

	idx.docLength = make(map[string]int, len(wire.DocLengths))
	idx.docTokens = make(map[string]map[string]int, len(wire.DocLengths))
	idx.totalLength = 0
	for docID, length := range wire.DocLengths {
		idx.docLength[docID] = length
		idx.totalLength += length
	}

	idx.totalDocs = wire.Metadata.TotalDocs
	idx.createdAt = wire.Metadata.CreatedAt
	idx.lastModified = wire.Metadata.LastModified
	return nil
}
