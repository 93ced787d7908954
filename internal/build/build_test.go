package build_test

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georag/georag/internal/build"
	"github.com/georag/georag/internal/embed"
	"github.com/georag/georag/internal/geo"
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

// seedWorkspace builds a fresh ephemeral store with one dataset holding a
// Feature and a Document, returning the store for a Builder to run against.
func seedWorkspace(t *testing.T, propertyValue, documentText string) *ephemeral.Store {
	t.Helper()
	s := ephemeral.New("ws-1")
	ctx := context.Background()

	ds, err := s.PutDataset(ctx, nil, store.Dataset{Name: "harbors", Format: "geojson", CRS: geo.WGS84})
	require.NoError(t, err)

	g, err := geo.New(orb.Point{-122.4194, 37.7749}, geo.WGS84)
	require.NoError(t, err)
	require.NoError(t, s.PutFeatures(ctx, nil, ds.ID, []store.Feature{
		{FeatureID: "pier-7", Geometry: g, Properties: map[string]string{"name": propertyValue}},
	}))

	_, err = s.PutDocument(ctx, nil, store.Document{
		DatasetID: ds.ID,
		Name:      "survey.txt",
		Format:    "text",
		RawText:   documentText,
	})
	require.NoError(t, err)

	return s
}

func newBuilder(s *ephemeral.Store) *build.Builder {
	stores := build.Stores{Spatial: s, Document: s, Vector: s, Build: s}
	return build.New(stores, embed.NewHashEmbedder(32), text.DefaultChunkerOptions())
}

func TestBuildProducesReadyIndexWithChunks(t *testing.T) {
	s := seedWorkspace(t, "Pier 7", "A small fishing harbor on the bay.")
	b := newBuilder(s)

	result, err := b.Run(context.Background(), testWorkspace())
	require.NoError(t, err)
	assert.NotEmpty(t, result.Hash)
	assert.Equal(t, 2, result.ChunkCount) // one property chunk + one document chunk
	assert.Equal(t, "hash-mock", result.EmbedderModel)

	current, err := s.CurrentBuild(context.Background(), "ws-1")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, result.Hash, current.Hash)
}

func TestBuildFingerprintIsDeterministicAcrossRebuilds(t *testing.T) {
	s := seedWorkspace(t, "Pier 7", "A small fishing harbor on the bay.")
	b := newBuilder(s)
	ctx := context.Background()

	first, err := b.Run(ctx, testWorkspace())
	require.NoError(t, err)

	second, err := b.Run(ctx, testWorkspace())
	require.NoError(t, err)

	assert.Equal(t, first.Hash, second.Hash)
}

func TestBuildFingerprintChangesWithPropertyContent(t *testing.T) {
	ctx := context.Background()

	a := seedWorkspace(t, "Pier 7", "A small fishing harbor on the bay.")
	resultA, err := newBuilder(a).Run(ctx, testWorkspace())
	require.NoError(t, err)

	bStore := seedWorkspace(t, "Pier 9", "A small fishing harbor on the bay.")
	resultB, err := newBuilder(bStore).Run(ctx, testWorkspace())
	require.NoError(t, err)

	assert.NotEqual(t, resultA.Hash, resultB.Hash)
}

func TestBuildFingerprintChangesWithDocumentContent(t *testing.T) {
	ctx := context.Background()

	a := seedWorkspace(t, "Pier 7", "A small fishing harbor on the bay.")
	resultA, err := newBuilder(a).Run(ctx, testWorkspace())
	require.NoError(t, err)

	b := seedWorkspace(t, "Pier 7", "A much larger commercial shipping terminal.")
	resultB, err := newBuilder(b).Run(ctx, testWorkspace())
	require.NoError(t, err)

	assert.NotEqual(t, resultA.Hash, resultB.Hash)
}

func TestBuildFingerprintChangesWithEmbedderDimension(t *testing.T) {
	ctx := context.Background()

	a := seedWorkspace(t, "Pier 7", "A small fishing harbor on the bay.")
	stores := build.Stores{Spatial: a, Document: a, Vector: a, Build: a}
	resultA, err := build.New(stores, embed.NewHashEmbedder(32), text.DefaultChunkerOptions()).Run(ctx, testWorkspace())
	require.NoError(t, err)

	b := seedWorkspace(t, "Pier 7", "A small fishing harbor on the bay.")
	stores2 := build.Stores{Spatial: b, Document: b, Vector: b, Build: b}
	resultB, err := build.New(stores2, embed.NewHashEmbedder(64), text.DefaultChunkerOptions()).Run(ctx, testWorkspace())
	require.NoError(t, err)

	assert.NotEqual(t, resultA.Hash, resultB.Hash)
}

func TestBuildFailsWhenWorkspaceHasNoDatasets(t *testing.T) {
	s := ephemeral.New("ws-empty")
	b := newBuilder(s)

	_, err := b.Run(context.Background(), store.Workspace{ID: "ws-empty", CRS: geo.WGS84, DistanceUnit: geo.UnitMeters, GeometryValidity: geo.ValidityLenient})
	require.Error(t, err)
}
