package bm25

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replikv/replikv/internal/index"
)

func textField(record any) string {
	return record.(map[string]any)["text"].(string)
}

func TestSearchRanksShorterDocumentHigher(t *testing.T) {
	idx := NewIndex(index.DefaultPipeline(), textField)
	idx.BuildFromEntries(map[string]any{
		"d1": map[string]any{"text": "hello big world"},
		"d2": map[string]any{"text": "hello there"},
	})

	hits := idx.Search("hello", Options{})
	require.Len(t, hits, 2)
	byID := map[string]float64{}
	for _, h := range hits {
		byID[h.DocID] = h.Score
	}
	assert.Greater(t, byID["d2"], byID["d1"])
}

func TestSearchMinScoreAndLimit(t *testing.T) {
	idx := NewIndex(index.DefaultPipeline(), textField)
	idx.BuildFromEntries(map[string]any{
		"d1": map[string]any{"text": "alpha beta gamma"},
		"d2": map[string]any{"text": "alpha"},
		"d3": map[string]any{"text": "delta epsilon"},
	})

	hits := idx.Search("alpha", Options{Limit: 1})
	require.Len(t, hits, 1)

	hits = idx.Search("alpha", Options{MinScore: 0.5})
	require.Len(t, hits, 1)
	assert.Equal(t, "d2", hits[0].DocID)

	hits = idx.Search("zzz-nonexistent", Options{})
	assert.Empty(t, hits)
}

func TestScoreSingleDocumentMatchesSearchOrdering(t *testing.T) {
	idx := NewIndex(index.DefaultPipeline(), textField)
	idx.BuildFromEntries(map[string]any{
		"d1": map[string]any{"text": "hello world"},
		"d2": map[string]any{"text": "hello there"},
	})

	score, matched, found := idx.ScoreSingleDocument("d2", []string{"hello"}, map[string]any{"text": "hello there"})
	require.True(t, found)
	assert.Equal(t, []string{"hello"}, matched)
	assert.Greater(t, score, 0.0)

	byID := map[string]float64{}
	for _, h := range idx.Search("hello", Options{}) {
		byID[h.DocID] = h.Score
	}
	require.Contains(t, byID, "d2")
	assert.InDelta(t, byID["d2"], score, 1e-9)

	_, _, found = idx.ScoreSingleDocument("d3", []string{"nonexistent"}, map[string]any{"text": "hello there"})
	assert.False(t, found)
}

func TestOnSetAndOnRemoveUpdateIncrementally(t *testing.T) {
	idx := NewIndex(index.DefaultPipeline(), textField)
	idx.BuildFromEntries(map[string]any{
		"d1": map[string]any{"text": "hello world"},
	})

	idx.OnSet("d2", map[string]any{"text": "hello galaxy"})
	assert.Equal(t, 2, idx.TotalDocs())

	hits := idx.Search("hello", Options{})
	assert.Len(t, hits, 2)

	idx.OnRemove("d1")
	assert.Equal(t, 1, idx.TotalDocs())
	hits = idx.Search("hello", Options{})
	require.Len(t, hits, 1)
	assert.Equal(t, "d2", hits[0].DocID)
}

func TestOnSetReindexesExistingDocument(t *testing.T) {
	idx := NewIndex(index.DefaultPipeline(), textField)
	idx.BuildFromEntries(map[string]any{
		"d1": map[string]any{"text": "hello world"},
	})
	idx.OnSet("d1", map[string]any{"text": "goodbye galaxy"})

	assert.Empty(t, idx.Search("hello", Options{}))
	assert.Len(t, idx.Search("goodbye", Options{}), 1)
}

// Indexing must run text through the same pipeline filters as the query
// side (lowercasing, punctuation trimming), or capitalized/punctuated
// terms never match a lowercase query.
func TestBuildFromEntriesAppliesPipelineFiltersNotJustTokenize(t *testing.T) {
	idx := NewIndex(index.DefaultPipeline(), textField)
	idx.BuildFromEntries(map[string]any{
		"d1": map[string]any{"text": "Hello, World"},
	})

	hits := idx.Search("hello", Options{})
	require.Len(t, hits, 1)
	assert.Equal(t, "d1", hits[0].DocID)
}

func TestOnSetAppliesPipelineFiltersNotJustTokenize(t *testing.T) {
	idx := NewIndex(index.DefaultPipeline(), textField)
	idx.BuildFromEntries(map[string]any{})
	idx.OnSet("d1", map[string]any{"text": "Hello, World!"})

	hits := idx.Search("world", Options{})
	require.Len(t, hits, 1)
	assert.Equal(t, "d1", hits[0].DocID)
}

func TestScoreSingleDocumentAppliesPipelineFiltersNotJustTokenize(t *testing.T) {
	idx := NewIndex(index.DefaultPipeline(), textField)
	idx.BuildFromEntries(map[string]any{
		"d1": map[string]any{"text": "Hello, World"},
	})

	_, _, found := idx.ScoreSingleDocument("d1", []string{"hello"}, map[string]any{"text": "Hello, World"})
	assert.True(t, found)
}
