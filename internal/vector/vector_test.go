package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopKOrdersByDescendingScore(t *testing.T) {
	idx := Build([]Entry{
		{ChunkID: "a", Vector: []float32{1, 0}},
		{ChunkID: "b", Vector: []float32{0.9, 0.1}},
		{ChunkID: "c", Vector: []float32{0, 1}},
	})

	results := idx.TopK([]float32{1, 0}, 3, nil)
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].ChunkID)
	assert.Equal(t, "b", results[1].ChunkID)
	assert.Equal(t, "c", results[2].ChunkID)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	assert.GreaterOrEqual(t, results[1].Score, results[2].Score)
}

func TestTopKRespectsK(t *testing.T) {
	idx := Build([]Entry{
		{ChunkID: "a", Vector: []float32{1, 0}},
		{ChunkID: "b", Vector: []float32{0.5, 0.5}},
		{ChunkID: "c", Vector: []float32{0, 1}},
	})
	results := idx.TopK([]float32{1, 0}, 1, nil)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ChunkID)
}

func TestTopKRestrictsToCandidateSet(t *testing.T) {
	idx := Build([]Entry{
		{ChunkID: "a", Vector: []float32{1, 0}},
		{ChunkID: "b", Vector: []float32{0.9, 0.1}},
	})
	results := idx.TopK([]float32{1, 0}, 5, map[string]bool{"b": true})
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ChunkID)
}

func TestTopKBreaksTiesByChunkID(t *testing.T) {
	idx := Build([]Entry{
		{ChunkID: "zeta", Vector: []float32{1, 0}},
		{ChunkID: "alpha", Vector: []float32{1, 0}},
	})
	results := idx.TopK([]float32{1, 0}, 2, nil)
	require.Len(t, results, 2)
	assert.Equal(t, "alpha", results[0].ChunkID)
	assert.Equal(t, "zeta", results[1].ChunkID)
}

func TestTopKIsDeterministicAcrossRuns(t *testing.T) {
	entries := []Entry{
		{ChunkID: "a", Vector: []float32{0.6, 0.8}},
		{ChunkID: "b", Vector: []float32{0.8, 0.6}},
		{ChunkID: "c", Vector: []float32{-1, 0}},
	}
	query := []float32{0.7, 0.7}

	idx1 := Build(entries)
	idx2 := Build(entries)
	r1 := idx1.TopK(query, 3, nil)
	r2 := idx2.TopK(query, 3, nil)
	assert.Equal(t, r1, r2)
}
