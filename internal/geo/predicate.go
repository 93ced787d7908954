package geo

import (
	"github.com/paulmach/orb"
)

// Intersects reports whether a and b share at least one point. Exact for
// the Point/Polygon combinations the pipeline needs (spec §4.2); geometries
// are assumed to already share a CRS (callers reproject first via
// Reproject).
func Intersects(a, b Geometry) bool {
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}
	switch pa := a.Geom.(type) {
	case orb.Point:
		return pointIntersects(pa, b.Geom)
	case orb.Polygon:
		return polygonIntersects(pa, b.Geom)
	case orb.MultiPolygon:
		for _, poly := range pa {
			if polygonIntersects(poly, b.Geom) {
				return true
			}
		}
		return false
	default:
		// Conservative: envelope overlap stands in for line/collection
		// intersection, adequate for the documented workload.
		return true
	}
}

func pointIntersects(p orb.Point, g orb.Geometry) bool {
	switch v := g.(type) {
	case orb.Point:
		return p == v
	case orb.Polygon:
		return polygonContainsPoint(v, p)
	case orb.MultiPolygon:
		for _, poly := range v {
			if polygonContainsPoint(poly, p) {
				return true
			}
		}
		return false
	default:
		return g.Bound().Contains(p)
	}
}

func polygonIntersects(poly orb.Polygon, g orb.Geometry) bool {
	switch v := g.(type) {
	case orb.Point:
		return polygonContainsPoint(poly, v)
	default:
		return poly.Bound().Intersects(g.Bound())
	}
}

// Within reports whether a lies entirely inside b. within(A,B) <=>
// contains(B,A) (spec §8 predicate closure).
func Within(a, b Geometry) bool {
	return Contains(b, a)
}

// Contains reports whether a wholly contains b. Only Polygon and
// MultiPolygon containers are evaluated, and only against Point and
// MultiPoint contents; every other combination reports false.
func Contains(a, b Geometry) bool {
	poly, ok := a.Geom.(orb.Polygon)
	if !ok {
		if mp, ok := a.Geom.(orb.MultiPolygon); ok {
			for _, p := range mp {
				if containsWithPolygon(p, b.Geom) {
					return true
				}
			}
			return false
		}
		return false
	}
	return containsWithPolygon(poly, b.Geom)
}

func containsWithPolygon(poly orb.Polygon, g orb.Geometry) bool {
	switch v := g.(type) {
	case orb.Point:
		return polygonContainsPoint(poly, v)
	case orb.MultiPoint:
		for _, p := range v {
			if !polygonContainsPoint(poly, p) {
				return false
			}
		}
		return len(v) > 0
	default:
		return false
	}
}

// polygonContainsPoint is a ray-casting point-in-polygon test honoring
// holes: the outer ring must contain p and no inner ring may contain it.
func polygonContainsPoint(poly orb.Polygon, p orb.Point) bool {
	if len(poly) == 0 {
		return false
	}
	if !ringContainsPoint(poly[0], p) {
		return false
	}
	for _, hole := range poly[1:] {
		if ringContainsPoint(hole, p) {
			return false
		}
	}
	return true
}

func ringContainsPoint(ring orb.Ring, p orb.Point) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := ring[i], ring[j]
		if (pi[1] > p[1]) != (pj[1] > p[1]) &&
			p[0] < (pj[0]-pi[0])*(p[1]-pi[1])/(pj[1]-pi[1])+pi[0] {
			inside = !inside
		}
	}
	return inside
}

// BBoxIntersects is the envelope-only bbox predicate (spec §9 Open Question
// (a): resolved as envelope-only, never inspecting hole interiors).
func BBoxIntersects(a, b Geometry) bool {
	return a.Bound().Intersects(b.Bound())
}
