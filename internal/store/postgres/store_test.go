package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"github.com/georag/georag/internal/geo"
	"github.com/georag/georag/internal/store"
	"github.com/georag/georag/internal/store/postgres"
)

const testEmbeddingDim = 4

// testDSN returns the test database DSN from the environment, or skips the
// test if GEORAG_TEST_POSTGRES_DSN is not set: these tests need a real
// PostGIS+pgvector instance and are not run by default.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("GEORAG_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GEORAG_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	ctx := context.Background()
	dsn := testDSN(t)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, pool, testEmbeddingDim))
	return postgres.New(pool)
}

func TestDatasetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ds, err := s.PutDataset(ctx, nil, store.Dataset{
		WorkspaceID: "ws-1",
		Name:        "harbors",
		Format:      "geojson",
		CRS:         geo.WGS84,
	})
	require.NoError(t, err)

	got, err := s.GetDataset(ctx, "ws-1", ds.Name)
	require.NoError(t, err)
	require.Equal(t, ds.Name, got.Name)
}

func TestFeatureSpatialPredicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ds, err := s.PutDataset(ctx, nil, store.Dataset{WorkspaceID: "ws-1", Name: "cafes", Format: "geojson", CRS: geo.WGS84})
	require.NoError(t, err)

	g, err := geo.New(orb.Point{-122.4194, 37.7749}, geo.WGS84)
	require.NoError(t, err)
	require.NoError(t, s.PutFeatures(ctx, nil, ds.ID, []store.Feature{{FeatureID: "A", Geometry: g}}))

	results, err := s.QueryPredicate(ctx, "ws-1", "dwithin", g, 1000)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "A", results[0].FeatureID)
}

func TestEmbeddingTopK(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ds, err := s.PutDataset(ctx, nil, store.Dataset{WorkspaceID: "ws-1", Name: "brochures", Format: "pdf", CRS: geo.WGS84})
	require.NoError(t, err)
	doc, err := s.PutDocument(ctx, nil, store.Document{DatasetID: ds.ID, Name: "guide.pdf"})
	require.NoError(t, err)
	require.NoError(t, s.PutChunks(ctx, nil, []store.Chunk{{DocumentID: doc.ID, ChunkIndex: 0, Content: "intro"}}))

	chunks, err := s.ListChunksByDataset(ctx, ds.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	require.NoError(t, s.UpsertEmbeddings(ctx, nil, []store.Embedding{
		{ChunkID: chunks[0].ID, Model: "m1", Dimensions: testEmbeddingDim, Vector: []float32{1, 0, 0, 0}},
	}))

	results, err := s.TopK(ctx, "m1", []float32{1, 0, 0, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, chunks[0].ID, results[0].ChunkID)
}
