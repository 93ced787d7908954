package geo

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/georag/georag/internal/errs"
)

// Repairs counts the repairs Validate performed, keyed by repair kind, for
// the Builder's per-dataset repair report (spec §4.7 Validate stage).
type Repairs struct {
	ClosedRings     int
	FixedWinding    int
	DroppedEmpty    int
	SplitSelfIsect  int
}

// Total is the sum of all repair counts.
func (r Repairs) Total() int {
	return r.ClosedRings + r.FixedWinding + r.DroppedEmpty + r.SplitSelfIsect
}

// Validate checks g against policy, repairing defects under ValidityLenient
// and failing under ValidityStrict. Non-finite coordinates are always fatal
// regardless of policy.
func Validate(g Geometry, policy Validity) (Geometry, Repairs, error) {
	var repairs Repairs

	if !finite(g.Geom) {
		return Geometry{}, repairs, errs.New(errs.GeometryError, "geometry contains non-finite coordinates", nil)
	}

	switch v := g.Geom.(type) {
	case orb.Point, orb.MultiPoint, orb.LineString, orb.MultiLineString:
		return g, repairs, nil

	case orb.Polygon:
		polys, r, err := validatePolygon(v, policy)
		if err != nil {
			return Geometry{}, repairs, err
		}
		repairs = r
		if len(polys) == 1 {
			out, err := New(polys[0], g.CRS)
			return out, repairs, err
		}
		// A split self-intersection turns one input polygon into several
		// valid components (spec §4.7), so the geometry's Kind may widen
		// from Polygon to MultiPolygon.
		out, err := New(orb.MultiPolygon(polys), g.CRS)
		return out, repairs, err

	case orb.MultiPolygon:
		var out orb.MultiPolygon
		for _, poly := range v {
			polys, r, err := validatePolygon(poly, policy)
			if err != nil {
				return Geometry{}, repairs, err
			}
			repairs.ClosedRings += r.ClosedRings
			repairs.FixedWinding += r.FixedWinding
			repairs.DroppedEmpty += r.DroppedEmpty
			repairs.SplitSelfIsect += r.SplitSelfIsect
			if len(polys) > 0 {
				out = append(out, polys...)
			} else {
				repairs.DroppedEmpty++
			}
		}
		geometry, err := New(out, g.CRS)
		return geometry, repairs, err

	case orb.Collection:
		var out orb.Collection
		for _, child := range v {
			childGeo, err := New(child, g.CRS)
			if err != nil {
				return Geometry{}, repairs, err
			}
			repairedChild, r, err := Validate(childGeo, policy)
			if err != nil {
				return Geometry{}, repairs, err
			}
			repairs.ClosedRings += r.ClosedRings
			repairs.FixedWinding += r.FixedWinding
			repairs.DroppedEmpty += r.DroppedEmpty
			repairs.SplitSelfIsect += r.SplitSelfIsect
			out = append(out, repairedChild.Geom)
		}
		geometry, err := New(out, g.CRS)
		return geometry, repairs, err

	default:
		return Geometry{}, repairs, errs.New(errs.GeometryError, "unsupported geometry type", nil)
	}
}

// validatePolygon repairs p's rings under policy and returns one polygon per
// valid component. Splitting a self-intersecting ring (spec §4.7) can turn a
// single input polygon into two: the outer ring's split halves each become
// their own shell, while a split hole is kept as two holes of the first
// shell. maxSplitDepth bounds recursive re-splitting of a half that is still
// self-intersecting after one cut.
func validatePolygon(p orb.Polygon, policy Validity) ([]orb.Polygon, Repairs, error) {
	var repairs Repairs
	var shells []orb.Ring
	var holes []orb.Ring

	for i, ring := range p {
		if len(ring) == 0 {
			if policy == ValidityStrict {
				return nil, repairs, errs.New(errs.GeometryError, "polygon has an empty ring", nil)
			}
			repairs.DroppedEmpty++
			continue
		}

		if !closed(ring) {
			if policy == ValidityStrict {
				return nil, repairs, errs.New(errs.GeometryError, "polygon ring is not closed", nil)
			}
			ring = append(ring, ring[0])
			repairs.ClosedRings++
		}

		wantCCW := i == 0 // outer ring counter-clockwise, holes clockwise
		if signedArea(ring) > 0 != wantCCW {
			if policy == ValidityStrict {
				return nil, repairs, errs.New(errs.GeometryError, "polygon ring has incorrect winding", nil)
			}
			reverse(ring)
			repairs.FixedWinding++
		}

		if hasSelfIntersection(ring) {
			if policy == ValidityStrict {
				return nil, repairs, errs.New(errs.GeometryError, "polygon ring self-intersects", nil)
			}
			repairs.SplitSelfIsect++

			parts := splitSelfIntersecting(ring, maxSplitDepth)
			if i == 0 {
				shells = append(shells, parts...)
			} else {
				holes = append(holes, parts...)
			}
			continue
		}

		if i == 0 {
			shells = append(shells, ring)
		} else {
			holes = append(holes, ring)
		}
	}

	if len(shells) == 0 {
		return []orb.Polygon{{}}, repairs, nil
	}

	polys := make([]orb.Polygon, len(shells))
	for idx, shell := range shells {
		poly := orb.Polygon{shell}
		if idx == 0 {
			poly = append(poly, holes...)
		}
		polys[idx] = poly
	}
	return polys, repairs, nil
}

// maxSplitDepth bounds how many times splitSelfIntersecting re-cuts a half
// that is still self-intersecting, so a pathological ring can't recurse
// unboundedly.
const maxSplitDepth = 4

// splitSelfIntersecting cuts ring at its first detected self-intersection
// into two simple closed rings sharing the crossing point, recursing into
// any half that is itself still self-intersecting (up to depth). A ring that
// cannot be cut (degenerate crossing, e.g. collinear segments) is returned
// unchanged — the repair is still counted by the caller, but no component
// split was possible for that case.
func splitSelfIntersecting(ring orb.Ring, depth int) []orb.Ring {
	a, b, ok := splitRingAtIntersection(ring)
	if !ok {
		return []orb.Ring{ring}
	}

	parts := []orb.Ring{a, b}
	if depth <= 0 {
		return parts
	}

	var out []orb.Ring
	for _, part := range parts {
		if hasSelfIntersection(part) {
			out = append(out, splitSelfIntersecting(part, depth-1)...)
		} else {
			out = append(out, part)
		}
	}
	return out
}

// splitRingAtIntersection finds the first pair of non-adjacent segments that
// cross and cuts ring into the two simple loops that share the crossing
// point — the standard figure-eight untangling for a self-intersecting
// polygon ring.
func splitRingAtIntersection(ring orb.Ring) (orb.Ring, orb.Ring, bool) {
	n := len(ring) - 1 // last point duplicates the first
	if n < 4 {
		return nil, nil, false
	}

	for i := 0; i < n; i++ {
		a1, a2 := ring[i], ring[i+1]
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			b1, b2 := ring[j], ring[(j+1)%n]
			if !segmentsIntersect(a1, a2, b1, b2) {
				continue
			}
			pt, ok := intersectionPoint(a1, a2, b1, b2)
			if !ok {
				continue
			}

			loopA := make(orb.Ring, 0, j-i+2)
			loopA = append(loopA, pt)
			for k := i + 1; k <= j; k++ {
				loopA = append(loopA, ring[k])
			}
			loopA = append(loopA, pt)

			loopB := make(orb.Ring, 0, n-(j-i)+2)
			loopB = append(loopB, pt)
			for k := j + 1; k < i+1+n; k++ {
				loopB = append(loopB, ring[k%n])
			}
			loopB = append(loopB, pt)

			if len(loopA) < 4 || len(loopB) < 4 {
				continue
			}
			return loopA, loopB, true
		}
	}
	return nil, nil, false
}

// intersectionPoint computes where segments p1-p2 and p3-p4 cross, failing
// for parallel (including collinear) segments.
func intersectionPoint(p1, p2, p3, p4 orb.Point) (orb.Point, bool) {
	d1x, d1y := p2[0]-p1[0], p2[1]-p1[1]
	d2x, d2y := p4[0]-p3[0], p4[1]-p3[1]

	denom := d1x*d2y - d1y*d2x
	if denom == 0 {
		return orb.Point{}, false
	}

	t := ((p3[0]-p1[0])*d2y - (p3[1]-p1[1])*d2x) / denom
	return orb.Point{p1[0] + t*d1x, p1[1] + t*d1y}, true
}

func finitePoint(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsInf(p[0], 0) && !math.IsNaN(p[1]) && !math.IsInf(p[1], 0)
}

func finite(g orb.Geometry) bool {
	switch v := g.(type) {
	case orb.Point:
		return finitePoint(v)
	case orb.MultiPoint:
		for _, p := range v {
			if !finitePoint(p) {
				return false
			}
		}
	case orb.LineString:
		for _, p := range v {
			if !finitePoint(p) {
				return false
			}
		}
	case orb.MultiLineString:
		for _, ls := range v {
			for _, p := range ls {
				if !finitePoint(p) {
					return false
				}
			}
		}
	case orb.Polygon:
		for _, ring := range v {
			for _, p := range ring {
				if !finitePoint(p) {
					return false
				}
			}
		}
	case orb.MultiPolygon:
		for _, poly := range v {
			for _, ring := range poly {
				for _, p := range ring {
					if !finitePoint(p) {
						return false
					}
				}
			}
		}
	case orb.Collection:
		for _, child := range v {
			if !finite(child) {
				return false
			}
		}
	}
	return true
}

func closed(ring orb.Ring) bool {
	return ring[0] == ring[len(ring)-1]
}

// signedArea computes twice the signed area of ring via the shoelace
// formula; positive indicates counter-clockwise orientation.
func signedArea(ring orb.Ring) float64 {
	var sum float64
	for i := 0; i < len(ring)-1; i++ {
		a, b := ring[i], ring[i+1]
		sum += a[0]*b[1] - b[0]*a[1]
	}
	return sum
}

func reverse(ring orb.Ring) {
	for i, j := 0, len(ring)-1; i < j; i, j = i+1, j-1 {
		ring[i], ring[j] = ring[j], ring[i]
	}
}

// hasSelfIntersection does a pairwise non-adjacent segment check, adequate
// for the documented low-vertex-count ring workload; the quadratic scan is a
// performance simplification in place of a sweep-line algorithm.
func hasSelfIntersection(ring orb.Ring) bool {
	n := len(ring) - 1 // last point duplicates the first
	if n < 4 {
		return false
	}
	for i := 0; i < n; i++ {
		a1, a2 := ring[i], ring[i+1]
		for j := i + 1; j < n; j++ {
			if j == i || (i == 0 && j == n-1) {
				continue
			}
			b1, b2 := ring[j], ring[(j+1)%n]
			if segmentsIntersect(a1, a2, b1, b2) {
				return true
			}
		}
	}
	return false
}

func segmentsIntersect(p1, p2, p3, p4 orb.Point) bool {
	d1 := cross(p4, p3, p1)
	d2 := cross(p4, p3, p2)
	d3 := cross(p2, p1, p3)
	d4 := cross(p2, p1, p4)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}
