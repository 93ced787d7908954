// Package spatial wraps a bulk-loaded R-tree over feature envelopes and
// evaluates the predicates the Retrieval Pipeline needs (spec §4.2),
// pruning by envelope before falling through to exact geometry tests in
// internal/geo.
package spatial

import (
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"

	"github.com/georag/georag/internal/errs"
	"github.com/georag/georag/internal/geo"
)

// Predicate selects which spatial relation a Query evaluates.
type Predicate string

const (
	PredicateBBox       Predicate = "bbox"
	PredicateWithin     Predicate = "within"
	PredicateIntersects Predicate = "intersects"
	PredicateContains   Predicate = "contains"
	PredicateDWithin    Predicate = "dwithin"
)

// Entry is one feature's envelope and identity, indexed in EPSG:4326
// (spec §3: feature envelopes are always stored in 4326).
type Entry struct {
	DatasetName string
	FeatureID   string
	Geometry    geo.Geometry
}

// entryNode adapts Entry to rtreego.Spatial (beetlebugorg-s57/pkg/s57's
// ChartEntry.Bounds() pattern).
type entryNode struct {
	Entry
}

func (n entryNode) Bounds() rtreego.Rect {
	b := n.Geometry.Bound()
	lengths := []float64{b.Max[0] - b.Min[0], b.Max[1] - b.Min[1]}
	// rtreego requires strictly positive side lengths; degenerate point
	// envelopes get an epsilon pad.
	const eps = 1e-12
	if lengths[0] <= 0 {
		lengths[0] = eps
	}
	if lengths[1] <= 0 {
		lengths[1] = eps
	}
	rect, _ := rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, lengths)
	return rect
}

// Index is the bulk-loaded R-tree over a workspace's features.
type Index struct {
	tree    *rtreego.Rtree
	entries []entryNode
}

// Build constructs an Index from entries (spec §4.2: bulk-loaded R*-tree).
func Build(entries []Entry) *Index {
	tree := rtreego.NewTree(2, 25, 50)
	nodes := make([]entryNode, 0, len(entries))
	for _, e := range entries {
		n := entryNode{e}
		nodes = append(nodes, n)
		tree.Insert(n)
	}
	return &Index{tree: tree, entries: nodes}
}

// Query evaluates predicate against geometry (and radius for dwithin) and
// returns matching entries, sorted by the tie-break order spec §4.2
// mandates: dataset name asc, then feature id asc.
func (idx *Index) Query(predicate Predicate, queryGeom geo.Geometry, radiusMeters float64) ([]Entry, error) {
	candidates := idx.envelopeCandidates(predicate, queryGeom, radiusMeters)

	var out []Entry
	for _, c := range candidates {
		switch predicate {
		case PredicateBBox:
			if geo.BBoxIntersects(c.Geometry, queryGeom) {
				out = append(out, c.Entry)
			}
		case PredicateWithin:
			if geo.Within(c.Geometry, queryGeom) {
				out = append(out, c.Entry)
			}
		case PredicateIntersects:
			if geo.Intersects(c.Geometry, queryGeom) {
				out = append(out, c.Entry)
			}
		case PredicateContains:
			if geo.Contains(c.Geometry, queryGeom) {
				out = append(out, c.Entry)
			}
		case PredicateDWithin:
			ok, err := withinDistance(c.Geometry, queryGeom, radiusMeters)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, c.Entry)
			}
		default:
			return nil, errs.New(errs.InvalidInput, "unknown spatial predicate", nil)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DatasetName != out[j].DatasetName {
			return out[i].DatasetName < out[j].DatasetName
		}
		return out[i].FeatureID < out[j].FeatureID
	})
	return out, nil
}

// envelopeCandidates prunes by envelope before exact-geometry evaluation.
// For dwithin, the query envelope is expanded by radiusMeters converted to
// degrees at the query latitude (a conservative over-approximation; exact
// acceptance is still decided by geodesic distance below).
func (idx *Index) envelopeCandidates(predicate Predicate, queryGeom geo.Geometry, radiusMeters float64) []entryNode {
	bound := queryGeom.Bound()
	if predicate == PredicateDWithin {
		bound = expandBoundForRadius(bound, radiusMeters)
	}
	lengths := []float64{bound.Max[0] - bound.Min[0], bound.Max[1] - bound.Min[1]}
	if lengths[0] <= 0 {
		lengths[0] = 1e-9
	}
	if lengths[1] <= 0 {
		lengths[1] = 1e-9
	}
	rect, _ := rtreego.NewRect(rtreego.Point{bound.Min[0], bound.Min[1]}, lengths)

	results := idx.tree.SearchIntersect(rect)
	out := make([]entryNode, 0, len(results))
	for _, r := range results {
		out = append(out, r.(entryNode))
	}
	return out
}

// expandBoundForRadius pads a lon/lat bound by radiusMeters, converting
// meters to degrees latitude directly and to degrees longitude scaled by
// cos(latitude) — a standard envelope over-approximation; the geodesic
// distance check afterward is exact.
func expandBoundForRadius(b orb.Bound, radiusMeters float64) orb.Bound {
	const metersPerDegreeLat = 111320.0
	midLat := (b.Min[1] + b.Max[1]) / 2
	latPad := radiusMeters / metersPerDegreeLat
	lonPad := latPad
	if cosLat := cosDegrees(midLat); cosLat > 1e-6 {
		lonPad = radiusMeters / (metersPerDegreeLat * cosLat)
	}
	return orb.Bound{
		Min: orb.Point{b.Min[0] - lonPad, b.Min[1] - latPad},
		Max: orb.Point{b.Max[0] + lonPad, b.Max[1] + latPad},
	}
}
