// Package retrieval implements the Retrieval Pipeline (spec §4.8): a
// three-stage narrowing of a workspace's chunks by spatial predicate, then
// keyword filter, then semantic rerank, producing a strictly ordered result
// set with a stage-by-stage explanation.
package retrieval

import (
	"github.com/georag/georag/internal/geo"
	"github.com/georag/georag/internal/spatial"
)

// SpatialFilter narrows candidates to chunks whose geometry satisfies
// predicate against geometry (dwithin additionally needs radiusMeters).
type SpatialFilter struct {
	Predicate     spatial.Predicate
	Geometry      geo.Geometry
	RadiusMeters  float64
}

// TextFilter drops candidates by case-insensitive substring match over
// normalized whitespace (spec §4.8 stage 2).
type TextFilter struct {
	MustContain []string
	Exclude     []string
}

// Plan is the Retrieval Pipeline's input (spec §4.8).
type Plan struct {
	Text     string
	Spatial  *SpatialFilter
	Keyword  *TextFilter
	TopK     int
	Rerank   bool
	// AllowDegradedRerank permits falling back to score=1.0 ordering when
	// the embedder is unavailable, instead of failing the query outright
	// (spec §4.8 failure modes: "default is to fail").
	AllowDegradedRerank bool
}

// DefaultTopK is used when Plan.TopK is zero or negative.
const DefaultTopK = 10

// Result is one ranked chunk returned by the pipeline (spec §4.8 stage 4).
type Result struct {
	ChunkID      string
	DatasetName  string
	FeatureID    *string
	DocumentName *string
	ChunkIndex   int
	Excerpt      string
	Score        float64
	Geometry     *geo.Geometry
}

// Explanation reports per-stage candidate counts (spec §4.8).
type Explanation struct {
	SpatialCandidates int
	AfterTextFilter   int
	Reranked          int
}

const excerptLimit = 500

func truncateExcerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= excerptLimit {
		return content
	}
	return string(runes[:excerptLimit]) + "…"
}
