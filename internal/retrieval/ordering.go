package retrieval

import "sort"

// orEmpty renders a possibly-nil tag for lexicographic tie-breaking,
// matching the convention internal/build's fingerprint ordering uses.
func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// sortSpatialLexicographic orders candidates by (dataset name asc, feature
// id asc, chunk_index asc) — spec §4.8's tie-break order, and the exact
// order used when rerank is skipped entirely.
func sortSpatialLexicographic(candidates []chunkCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.DatasetName != b.DatasetName {
			return a.DatasetName < b.DatasetName
		}
		if orEmpty(a.FeatureID) != orEmpty(b.FeatureID) {
			return orEmpty(a.FeatureID) < orEmpty(b.FeatureID)
		}
		return a.ChunkIndex < b.ChunkIndex
	})
}

// sortByScoreThenSpatial orders results by strict descending score, ties
// broken by (dataset name asc, feature id asc, chunk_index asc) (spec
// §4.8 ordering policy).
func sortByScoreThenSpatial(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.DatasetName != b.DatasetName {
			return a.DatasetName < b.DatasetName
		}
		if orEmpty(a.FeatureID) != orEmpty(b.FeatureID) {
			return orEmpty(a.FeatureID) < orEmpty(b.FeatureID)
		}
		return a.ChunkIndex < b.ChunkIndex
	})
}

func clampScore(raw float64) float64 {
	if raw < 0 {
		return 0
	}
	if raw > 1 {
		return 1
	}
	return raw
}
