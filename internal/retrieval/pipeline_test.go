package retrieval_test

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georag/georag/internal/build"
	"github.com/georag/georag/internal/embed"
	"github.com/georag/georag/internal/errs"
	"github.com/georag/georag/internal/geo"
	"github.com/georag/georag/internal/retrieval"
	"github.com/georag/georag/internal/spatial"
	"github.com/georag/georag/internal/store"
	"github.com/georag/georag/internal/store/ephemeral"
	"github.com/georag/georag/internal/text"
)

func testWorkspace() store.Workspace {
	return store.Workspace{
		ID:               "ws-1",
		Name:             "harbor-survey",
		CRS:              geo.WGS84,
		DistanceUnit:     geo.UnitMeters,
		GeometryValidity: geo.ValidityLenient,
	}
}

// seedIndex builds a ready index over two harbor features (one near San
// Francisco, one far away in open ocean) plus a document, then returns the
// store ready to query.
func seedIndex(t *testing.T) *ephemeral.Store {
	t.Helper()
	s := ephemeral.New("ws-1")
	ctx := context.Background()

	ds, err := s.PutDataset(ctx, nil, store.Dataset{Name: "harbors", Format: "geojson", CRS: geo.WGS84})
	require.NoError(t, err)

	near, err := geo.New(orb.Point{-122.4194, 37.7749}, geo.WGS84)
	require.NoError(t, err)
	far, err := geo.New(orb.Point{10.0, 10.0}, geo.WGS84)
	require.NoError(t, err)

	require.NoError(t, s.PutFeatures(ctx, nil, ds.ID, []store.Feature{
		{FeatureID: "pier-7", Geometry: near, Properties: map[string]string{"name": "Pier 7", "kind": "fishing harbor"}},
		{FeatureID: "atoll-9", Geometry: far, Properties: map[string]string{"name": "Remote Atoll", "kind": "naval base"}},
	}))

	_, err = s.PutDocument(ctx, nil, store.Document{
		DatasetID: ds.ID,
		Name:      "survey.txt",
		Format:    "text",
		RawText:   "The harbor at Pier 7 handles small fishing vessels year round.",
	})
	require.NoError(t, err)

	stores := build.Stores{Spatial: s, Document: s, Vector: s, Build: s}
	b := build.New(stores, embed.NewHashEmbedder(32), text.DefaultChunkerOptions())
	_, err = b.Run(ctx, testWorkspace())
	require.NoError(t, err)

	return s
}

func newPipeline(s *ephemeral.Store) *retrieval.Pipeline {
	return retrieval.New(s, s, s, s, embed.NewHashEmbedder(32))
}

func TestRunFailsWhenIndexNotBuilt(t *testing.T) {
	s := ephemeral.New("ws-empty")
	p := newPipeline(s)

	_, _, err := p.Run(context.Background(), store.Workspace{ID: "ws-empty", CRS: geo.WGS84}, retrieval.Plan{Text: "harbor"})
	require.Error(t, err)
	assert.Equal(t, errs.IndexNotBuilt, errs.KindOf(err))
}

func TestRunReturnsAllChunksWithoutFilters(t *testing.T) {
	s := seedIndex(t)
	p := newPipeline(s)

	results, explain, err := p.Run(context.Background(), testWorkspace(), retrieval.Plan{Text: "harbor", Rerank: false, TopK: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, explain.SpatialCandidates) // 2 property chunks + 1 document chunk
	assert.Equal(t, 3, explain.AfterTextFilter)
	assert.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, 1.0, r.Score)
	}
}

func TestRunAppliesSpatialFilter(t *testing.T) {
	s := seedIndex(t)
	p := newPipeline(s)

	sfGeom, err := geo.New(orb.Point{-122.42, 37.77}, geo.WGS84)
	require.NoError(t, err)

	plan := retrieval.Plan{
		Text:   "harbor",
		Rerank: false,
		TopK:   10,
		Spatial: &retrieval.SpatialFilter{
			Predicate:    spatial.PredicateDWithin,
			Geometry:     sfGeom,
			RadiusMeters: 5000,
		},
	}

	results, explain, err := p.Run(context.Background(), testWorkspace(), plan)
	require.NoError(t, err)
	assert.Less(t, explain.SpatialCandidates, 3)
	for _, r := range results {
		require.NotNil(t, r.FeatureID)
		assert.Equal(t, "pier-7", *r.FeatureID)
	}
}

func TestRunAppliesKeywordFilter(t *testing.T) {
	s := seedIndex(t)
	p := newPipeline(s)

	plan := retrieval.Plan{
		Text:    "naval",
		Rerank:  false,
		TopK:    10,
		Keyword: &retrieval.TextFilter{MustContain: []string{"naval"}},
	}

	results, _, err := p.Run(context.Background(), testWorkspace(), plan)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "atoll-9", *results[0].FeatureID)
}

func TestRunKeywordExcludeDropsMatches(t *testing.T) {
	s := seedIndex(t)
	p := newPipeline(s)

	plan := retrieval.Plan{
		Text:    "harbor",
		Rerank:  false,
		TopK:    10,
		Keyword: &retrieval.TextFilter{Exclude: []string{"naval"}},
	}

	results, _, err := p.Run(context.Background(), testWorkspace(), plan)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "atoll-9", orEmptyTag(r.FeatureID))
	}
}

func TestRunSemanticRerankProducesScoresInUnitRange(t *testing.T) {
	s := seedIndex(t)
	p := newPipeline(s)

	results, explain, err := p.Run(context.Background(), testWorkspace(), retrieval.Plan{Text: "fishing harbor", Rerank: true, TopK: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, explain.Reranked)
	require.Len(t, results, 2)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestRunOrderingIsDeterministicAcrossRuns(t *testing.T) {
	s := seedIndex(t)
	p := newPipeline(s)

	plan := retrieval.Plan{Text: "fishing harbor", Rerank: true, TopK: 5}
	first, _, err := p.Run(context.Background(), testWorkspace(), plan)
	require.NoError(t, err)
	second, _, err := p.Run(context.Background(), testWorkspace(), plan)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ChunkID, second[i].ChunkID)
		assert.Equal(t, first[i].Score, second[i].Score)
	}
}

func orEmptyTag(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
