// Package vector implements the Vector Index (spec §4.5): an exact,
// brute-force top-K search over L2-normalized embeddings. Because vectors
// are unit-normalized, cosine similarity reduces to a dot product, so the
// scorer never needs a square root.
//
// This is intentionally not an approximate nearest-neighbor structure.
// Exactness is a correctness requirement here, not a performance
// shortcut: the Fingerprint determinism, Vector normalization, and
// Ordering stability properties all assume a deterministic, reproducible
// top-K (see DESIGN.md).
package vector

import "sort"

// Entry binds a chunk identifier to its embedding.
type Entry struct {
	ChunkID string
	Vector  []float32
}

// Match is a scored search result.
type Match struct {
	ChunkID string
	Score   float64
}

// Index is a flat, in-memory collection of entries, searched by brute-force
// dot product.
type Index struct {
	entries []Entry
	dims    int
}

// Build constructs an Index over entries. All entries must share the same
// dimension; Build panics on mismatch since it signals an upstream embedder
// contract violation, not a runtime condition callers are expected to
// recover from (the embedder port itself already surfaces DimensionMismatch
// before vectors reach here).
func Build(entries []Entry) *Index {
	idx := &Index{entries: entries}
	for _, e := range entries {
		if idx.dims == 0 {
			idx.dims = len(e.Vector)
		} else if len(e.Vector) != idx.dims {
			panic("vector: inconsistent embedding dimension in index entries")
		}
	}
	return idx
}

// Len reports the number of indexed entries.
func (idx *Index) Len() int { return len(idx.entries) }

// TopK returns the k highest-scoring entries against query by dot product,
// optionally restricted to candidateIDs (a non-nil, possibly empty set
// narrows the scan to those chunk ids only, per the pipeline's spatial/
// lexical prefilter — spec §4.5). Ties break by ChunkID ascending for a
// strict total order (spec §8).
func (idx *Index) TopK(query []float32, k int, candidateIDs map[string]bool) []Match {
	if k <= 0 {
		return nil
	}

	matches := make([]Match, 0, len(idx.entries))
	for _, e := range idx.entries {
		if candidateIDs != nil && !candidateIDs[e.ChunkID] {
			continue
		}
		matches = append(matches, Match{ChunkID: e.ChunkID, Score: dot(query, e.Vector)})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ChunkID < matches[j].ChunkID
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
