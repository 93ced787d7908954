package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georag/georag/internal/geo"
)

const samplePoints = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"id": "well-1",
			"geometry": {"type": "Point", "coordinates": [-122.42, 37.77]},
			"properties": {"name": "Golden Gate", "depth": 12.5, "active": true}
		},
		{
			"type": "Feature",
			"geometry": {"type": "Point", "coordinates": [-73.98, 40.75]},
			"properties": {"name": "Times Square"}
		}
	]
}`

func TestParseGeoJSONFeatures(t *testing.T) {
	ds, features, err := ParseGeoJSON([]byte(samplePoints), "ws-1", "wells")
	require.NoError(t, err)

	assert.Equal(t, "wells", ds.Name)
	assert.Equal(t, "ws-1", ds.WorkspaceID)
	assert.Equal(t, geo.WGS84, ds.CRS)
	assert.Equal(t, geo.KindPoint, ds.GeometryKind)
	assert.Equal(t, 2, ds.FeatureCount)
	require.Len(t, features, 2)

	first := features[0]
	assert.Equal(t, "well-1", first.FeatureID)
	assert.Equal(t, geo.WGS84, first.Geometry.CRS)
	assert.Equal(t, "Golden Gate", first.Properties["name"])
	assert.Equal(t, "12.5", first.Properties["depth"])
	assert.Equal(t, "true", first.Properties["active"])

	second := features[1]
	assert.Equal(t, "1", second.FeatureID, "positional fallback when Feature.ID is absent")
}

func TestParseGeoJSONRejectsMissingGeometry(t *testing.T) {
	const missingGeom = `{"type": "FeatureCollection", "features": [{"type": "Feature", "properties": {}}]}`

	_, _, err := ParseGeoJSON([]byte(missingGeom), "ws-1", "broken")
	require.Error(t, err)
}

func TestParseGeoJSONRejectsInvalidJSON(t *testing.T) {
	_, _, err := ParseGeoJSON([]byte("not json"), "ws-1", "broken")
	require.Error(t, err)
}
