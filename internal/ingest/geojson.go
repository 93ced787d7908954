// Package ingest parses source files into the store entities the Index
// Builder consumes (spec §4.6's Dataset/Feature shapes). It is the one
// layer that speaks a wire format; everything downstream works in
// store.Dataset/store.Feature and geo.Geometry.
package ingest

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"github.com/georag/georag/internal/errs"
	"github.com/georag/georag/internal/geo"
	"github.com/georag/georag/internal/store"
)

// ParseGeoJSON decodes a GeoJSON FeatureCollection into a Dataset (named
// name, belonging to workspaceID) and its Features. GeoJSON coordinates are
// always longitude/latitude in WGS84 per RFC 7946 §4, so every parsed
// geometry is tagged geo.WGS84 regardless of the workspace's configured CRS;
// the Index Builder's normalize stage reprojects to the workspace CRS on
// every build (spec §4.7), so ingestion does not reproject here.
func ParseGeoJSON(data []byte, workspaceID, name string) (store.Dataset, []store.Feature, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return store.Dataset{}, nil, errs.New(errs.Parse, "invalid GeoJSON FeatureCollection", err)
	}

	features := make([]store.Feature, 0, len(fc.Features))
	var kind geo.Kind

	for i, f := range fc.Features {
		if f.Geometry == nil {
			return store.Dataset{}, nil, errs.New(errs.Parse,
				fmt.Sprintf("feature %d has no geometry", i), nil)
		}

		g, err := geo.New(f.Geometry, geo.WGS84)
		if err != nil {
			return store.Dataset{}, nil, errs.Wrap(errs.Parse, err)
		}
		if kind == "" {
			kind = g.Kind
		}

		featureID := featureIDOf(f, i)
		features = append(features, store.Feature{
			DatasetID:  "",
			FeatureID:  featureID,
			Geometry:   g,
			Properties: flattenProperties(f.Properties),
		})
	}

	ds := store.Dataset{
		WorkspaceID:  workspaceID,
		Name:         name,
		Format:       "geojson",
		CRS:          geo.WGS84,
		GeometryKind: kind,
		FeatureCount: len(features),
	}

	return ds, features, nil
}

// featureIDOf derives a stable feature ID: the GeoJSON Feature.ID if
// present, otherwise a positional fallback.
func featureIDOf(f *geojson.Feature, index int) string {
	switch id := f.ID.(type) {
	case string:
		if id != "" {
			return id
		}
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	}
	return strconv.Itoa(index)
}

// flattenProperties stringifies GeoJSON's untyped property map down to the
// string-only map store.Feature persists (spec §4.6 treats properties as
// opaque metadata, not a typed schema).
func flattenProperties(props geojson.Properties) map[string]string {
	if len(props) == 0 {
		return nil
	}
	out := make(map[string]string, len(props))
	for k, v := range props {
		out[k] = stringify(v)
	}
	return out
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}
