package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeodesicDistanceSanFranciscoShort(t *testing.T) {
	a := orb.Point{-122.4194, 37.7749} // downtown SF
	b := orb.Point{-122.4094, 37.7849} // ~1.4km NE
	d, err := GeodesicDistance(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 1400, d, 250)
}

func TestGeodesicDistanceZeroForCoincidentPoints(t *testing.T) {
	a := orb.Point{10, 20}
	d, err := GeodesicDistance(a, a)
	require.NoError(t, err)
	assert.Equal(t, 0.0, d)
}

func TestReprojectRoundTrip(t *testing.T) {
	orig, err := New(orb.Point{-122.4194, 37.7749}, WGS84)
	require.NoError(t, err)

	mercator, err := Reproject(orig, WebMercator)
	require.NoError(t, err)
	assert.Equal(t, WebMercator, mercator.CRS)

	back, err := Reproject(mercator, WGS84)
	require.NoError(t, err)

	p := back.Geom.(orb.Point)
	assert.InDelta(t, -122.4194, p[0], 1e-7)
	assert.InDelta(t, 37.7749, p[1], 1e-7)
}

func TestReprojectUnsupportedPairFails(t *testing.T) {
	g, err := New(orb.Point{0, 0}, CRS(2154))
	require.NoError(t, err)
	_, err = Reproject(g, CRS(32633))
	assert.Error(t, err)
}

func TestPredicateClosureWithinContains(t *testing.T) {
	square := orb.Polygon{orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}}
	poly, err := New(square, WGS84)
	require.NoError(t, err)

	inside, err := New(orb.Point{5, 5}, WGS84)
	require.NoError(t, err)
	outside, err := New(orb.Point{12, 5}, WGS84)
	require.NoError(t, err)

	assert.True(t, Within(inside, poly))
	assert.True(t, Contains(poly, inside))
	assert.False(t, Within(outside, poly))

	assert.True(t, Intersects(poly, inside))
	assert.True(t, Within(inside, poly) == Contains(poly, inside))
}

func TestValidateLenientClosesRingAndFixesWinding(t *testing.T) {
	// Open ring, clockwise outer winding (wrong orientation).
	unclosed := orb.Polygon{orb.Ring{{0, 0}, {0, 10}, {10, 10}, {10, 0}}}
	g, err := New(unclosed, WGS84)
	require.NoError(t, err)

	repaired, repairs, err := Validate(g, ValidityLenient)
	require.NoError(t, err)
	assert.Equal(t, 1, repairs.ClosedRings)
	assert.Equal(t, 1, repairs.FixedWinding)

	poly := repaired.Geom.(orb.Polygon)
	ring := poly[0]
	assert.Equal(t, ring[0], ring[len(ring)-1])
	assert.Greater(t, signedArea(ring), 0.0)
}

func TestValidateStrictRejectsUnclosedRing(t *testing.T) {
	unclosed := orb.Polygon{orb.Ring{{0, 0}, {0, 10}, {10, 10}, {10, 0}}}
	g, err := New(unclosed, WGS84)
	require.NoError(t, err)

	_, _, err = Validate(g, ValidityStrict)
	assert.Error(t, err)
}

func TestValidateIdempotent(t *testing.T) {
	unclosed := orb.Polygon{orb.Ring{{0, 0}, {0, 10}, {10, 10}, {10, 0}}}
	g, err := New(unclosed, WGS84)
	require.NoError(t, err)

	once, _, err := Validate(g, ValidityLenient)
	require.NoError(t, err)
	twice, repairs2, err := Validate(once, ValidityLenient)
	require.NoError(t, err)

	assert.Equal(t, 0, repairs2.Total())
	assert.Equal(t, once.Geom, twice.Geom)
}

func TestValidateLenientSplitsSelfIntersectingRing(t *testing.T) {
	// Bowtie ring: (0,0)-(10,10) crosses (10,0)-(0,10) at (5,5).
	bowtie := orb.Polygon{orb.Ring{{0, 0}, {10, 10}, {10, 0}, {0, 10}, {0, 0}}}
	g, err := New(bowtie, WGS84)
	require.NoError(t, err)

	repaired, repairs, err := Validate(g, ValidityLenient)
	require.NoError(t, err)
	assert.Equal(t, 1, repairs.SplitSelfIsect)

	mp, ok := repaired.Geom.(orb.MultiPolygon)
	require.True(t, ok, "a split self-intersecting polygon becomes a MultiPolygon of its valid components")
	require.Len(t, mp, 2)

	for _, poly := range mp {
		for _, ring := range poly {
			assert.False(t, hasSelfIntersection(ring), "split components must themselves be simple rings")
			assert.True(t, closed(ring))
		}
	}
}

func TestValidateStrictRejectsSelfIntersectingRing(t *testing.T) {
	bowtie := orb.Polygon{orb.Ring{{0, 0}, {10, 10}, {10, 0}, {0, 10}, {0, 0}}}
	g, err := New(bowtie, WGS84)
	require.NoError(t, err)

	_, _, err = Validate(g, ValidityStrict)
	assert.Error(t, err)
}

func TestValidateRejectsNonFiniteCoordinates(t *testing.T) {
	g, err := New(orb.Point{math.NaN(), 0}, WGS84)
	require.NoError(t, err)
	_, _, err = Validate(g, ValidityLenient)
	assert.Error(t, err)
}

func TestUnitConversion(t *testing.T) {
	assert.InDelta(t, 1000, ToMeters(1, UnitKilometers), 1e-9)
	assert.InDelta(t, 1609.344, ToMeters(1, UnitMiles), 1e-9)
	assert.InDelta(t, 1, FromMeters(1000, UnitKilometers), 1e-9)
}
