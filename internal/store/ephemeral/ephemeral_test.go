package ephemeral

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georag/georag/internal/geo"
	"github.com/georag/georag/internal/store"
)

func mustGeo(t *testing.T, g orb.Geometry) geo.Geometry {
	t.Helper()
	geom, err := geo.New(g, geo.WGS84)
	require.NoError(t, err)
	return geom
}

func TestPutAndGetDataset(t *testing.T) {
	s := New("ws-1")
	ctx := context.Background()

	ds, err := s.PutDataset(ctx, nil, store.Dataset{Name: "harbors", Format: "geojson"})
	require.NoError(t, err)
	assert.NotEmpty(t, ds.ID)

	got, err := s.GetDataset(ctx, "ws-1", "harbors")
	require.NoError(t, err)
	assert.Equal(t, ds.ID, got.ID)
}

func TestPutDatasetRejectsDuplicateName(t *testing.T) {
	s := New("ws-1")
	ctx := context.Background()
	_, err := s.PutDataset(ctx, nil, store.Dataset{Name: "harbors"})
	require.NoError(t, err)
	_, err = s.PutDataset(ctx, nil, store.Dataset{Name: "harbors"})
	assert.Error(t, err)
}

func TestTransactionRollbackDiscardsWrites(t *testing.T) {
	s := New("ws-1")
	ctx := context.Background()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	_, err = s.PutDataset(ctx, tx, store.Dataset{Name: "parks"})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))

	_, err = s.GetDataset(ctx, "ws-1", "parks")
	assert.Error(t, err)
}

func TestTransactionCommitPersistsWrites(t *testing.T) {
	s := New("ws-1")
	ctx := context.Background()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	_, err = s.PutDataset(ctx, tx, store.Dataset{Name: "parks"})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	got, err := s.GetDataset(ctx, "ws-1", "parks")
	require.NoError(t, err)
	assert.Equal(t, "parks", got.Name)
}

func TestQueryPredicateDWithin(t *testing.T) {
	s := New("ws-1")
	ctx := context.Background()

	ds, err := s.PutDataset(ctx, nil, store.Dataset{Name: "cafes"})
	require.NoError(t, err)
	require.NoError(t, s.PutFeatures(ctx, nil, ds.ID, []store.Feature{
		{FeatureID: "A", Geometry: mustGeo(t, orb.Point{-122.4194, 37.7749})},
		{FeatureID: "B", Geometry: mustGeo(t, orb.Point{-70, 40})},
	}))

	results, err := s.QueryPredicate(ctx, "ws-1", "dwithin", mustGeo(t, orb.Point{-122.4194, 37.7749}), 1000)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].FeatureID)
}

func TestVectorTopKAfterUpsert(t *testing.T) {
	s := New("ws-1")
	ctx := context.Background()

	require.NoError(t, s.UpsertEmbeddings(ctx, nil, []store.Embedding{
		{ChunkID: "c1", Model: "m1", Dimensions: 2, Vector: []float32{1, 0}},
		{ChunkID: "c2", Model: "m1", Dimensions: 2, Vector: []float32{0, 1}},
	}))

	results, err := s.TopK(ctx, "m1", []float32{1, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c1", results[0].ChunkID)
}

func TestPurgeModelRemovesEmbeddings(t *testing.T) {
	s := New("ws-1")
	ctx := context.Background()
	require.NoError(t, s.UpsertEmbeddings(ctx, nil, []store.Embedding{
		{ChunkID: "c1", Model: "m1", Vector: []float32{1, 0}},
	}))
	require.NoError(t, s.PurgeModel(ctx, nil, "ws-1", "m1"))

	results, err := s.TopK(ctx, "m1", []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDocumentAndChunkRoundTrip(t *testing.T) {
	s := New("ws-1")
	ctx := context.Background()

	ds, err := s.PutDataset(ctx, nil, store.Dataset{Name: "brochures"})
	require.NoError(t, err)
	doc, err := s.PutDocument(ctx, nil, store.Document{DatasetID: ds.ID, Name: "guide.pdf"})
	require.NoError(t, err)

	require.NoError(t, s.PutChunks(ctx, nil, []store.Chunk{
		{DocumentID: doc.ID, ChunkIndex: 0, Content: "intro"},
		{DocumentID: doc.ID, ChunkIndex: 1, Content: "body"},
	}))

	chunks, err := s.ListChunksByDataset(ctx, ds.ID)
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}

func TestBuildHistoryTracksLatest(t *testing.T) {
	s := New("ws-1")
	ctx := context.Background()

	require.NoError(t, s.PutBuild(ctx, nil, store.IndexBuild{WorkspaceID: "ws-1", Hash: "h1"}))
	require.NoError(t, s.PutBuild(ctx, nil, store.IndexBuild{WorkspaceID: "ws-1", Hash: "h2"}))

	current, err := s.CurrentBuild(ctx, "ws-1")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "h2", current.Hash)
}
