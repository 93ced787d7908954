package spatial

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georag/georag/internal/geo"
)

func mustGeo(t *testing.T, g orb.Geometry) geo.Geometry {
	t.Helper()
	geom, err := geo.New(g, geo.WGS84)
	require.NoError(t, err)
	return geom
}

func TestDWithinScenario(t *testing.T) {
	a := Entry{DatasetName: "ds", FeatureID: "A", Geometry: mustGeo(t, orb.Point{-122.4194, 37.7749})}
	b := Entry{DatasetName: "ds", FeatureID: "B", Geometry: mustGeo(t, orb.Point{-122.4094, 37.7849})}
	idx := Build([]Entry{a, b})

	query := mustGeo(t, orb.Point{-122.4194, 37.7749})

	results, err := idx.Query(PredicateDWithin, query, 2000)
	require.NoError(t, err)
	ids := idsOf(results)
	assert.ElementsMatch(t, []string{"A", "B"}, ids)

	results, err = idx.Query(PredicateDWithin, query, 1000)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A"}, idsOf(results))
}

func TestWithinAndIntersectsScenario(t *testing.T) {
	square := orb.Polygon{orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}}
	p1 := Entry{DatasetName: "ds", FeatureID: "P1", Geometry: mustGeo(t, orb.Point{5, 5})}
	p2 := Entry{DatasetName: "ds", FeatureID: "P2", Geometry: mustGeo(t, orb.Point{12, 5})}
	idx := Build([]Entry{p1, p2})

	poly := mustGeo(t, square)

	within, err := idx.Query(PredicateWithin, poly, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"P1"}, idsOf(within))

	intersecting, err := idx.Query(PredicateIntersects, poly, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"P1"}, idsOf(intersecting))
}

func TestQueryOrderingIsDeterministic(t *testing.T) {
	entries := []Entry{
		{DatasetName: "zzz", FeatureID: "1", Geometry: mustGeo(t, orb.Point{0, 0})},
		{DatasetName: "aaa", FeatureID: "2", Geometry: mustGeo(t, orb.Point{0, 0})},
		{DatasetName: "aaa", FeatureID: "1", Geometry: mustGeo(t, orb.Point{0, 0})},
	}
	idx := Build(entries)
	query := mustGeo(t, orb.Point{0, 0})
	results, err := idx.Query(PredicateDWithin, query, 1)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "aaa", results[0].DatasetName)
	assert.Equal(t, "1", results[0].FeatureID)
	assert.Equal(t, "aaa", results[1].DatasetName)
	assert.Equal(t, "2", results[1].FeatureID)
	assert.Equal(t, "zzz", results[2].DatasetName)
}

func idsOf(entries []Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.FeatureID
	}
	return ids
}
