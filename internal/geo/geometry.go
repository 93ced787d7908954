// Package geo models the geometry tagged variant, CRS reprojection, validity
// repair, and the geodesic distance primitive that spec §4.1 requires. It
// is the leaf package of the engine: nothing here depends on storage,
// embedding, or the pipeline.
package geo

import (
	"github.com/paulmach/orb"

	"github.com/georag/georag/internal/errs"
)

// Kind identifies the tagged variant a Geometry holds. New kinds require
// explicit handling in every algorithm in this package and in internal/spatial
// — there is no open inheritance here, by design (spec §9).
type Kind string

const (
	KindPoint              Kind = "Point"
	KindMultiPoint         Kind = "MultiPoint"
	KindLineString         Kind = "LineString"
	KindMultiLineString    Kind = "MultiLineString"
	KindPolygon            Kind = "Polygon"
	KindMultiPolygon       Kind = "MultiPolygon"
	KindGeometryCollection Kind = "GeometryCollection"
)

// Geometry wraps an orb.Geometry with the Kind tag the engine's algorithms
// switch on, and the CRS the coordinates are expressed in.
type Geometry struct {
	Kind  Kind
	CRS   CRS
	Geom  orb.Geometry
}

// KindOf maps an orb.Geometry to its Kind tag, failing for any type outside
// the seven variants spec §3 enumerates.
func KindOf(g orb.Geometry) (Kind, error) {
	switch g.(type) {
	case orb.Point:
		return KindPoint, nil
	case orb.MultiPoint:
		return KindMultiPoint, nil
	case orb.LineString:
		return KindLineString, nil
	case orb.MultiLineString:
		return KindMultiLineString, nil
	case orb.Polygon:
		return KindPolygon, nil
	case orb.MultiPolygon:
		return KindMultiPolygon, nil
	case orb.Collection:
		return KindGeometryCollection, nil
	default:
		return "", errs.New(errs.GeometryError, "unsupported geometry type", nil)
	}
}

// New wraps an orb.Geometry with its CRS, deriving the Kind tag.
func New(g orb.Geometry, crs CRS) (Geometry, error) {
	kind, err := KindOf(g)
	if err != nil {
		return Geometry{}, err
	}
	return Geometry{Kind: kind, CRS: crs, Geom: g}, nil
}

// Bound returns the geometry's axis-aligned envelope in its own CRS.
func (g Geometry) Bound() orb.Bound {
	return g.Geom.Bound()
}

// IsEmpty reports whether the geometry has no coordinates.
func (g Geometry) IsEmpty() bool {
	switch v := g.Geom.(type) {
	case orb.Point:
		return false
	case orb.MultiPoint:
		return len(v) == 0
	case orb.LineString:
		return len(v) == 0
	case orb.MultiLineString:
		return len(v) == 0
	case orb.Polygon:
		return len(v) == 0
	case orb.MultiPolygon:
		return len(v) == 0
	case orb.Collection:
		return len(v) == 0
	default:
		return true
	}
}
