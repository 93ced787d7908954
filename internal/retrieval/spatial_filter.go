package retrieval

import (
	"github.com/georag/georag/internal/errs"
	"github.com/georag/georag/internal/geo"
	"github.com/georag/georag/internal/spatial"
)

// applySpatialFilter narrows candidates to those satisfying filter, by
// bulk-loading an R-tree over every candidate's own geometry and evaluating
// the predicate exactly (spec §4.8 stage 1). Candidates with no geometry of
// their own can never satisfy a spatial filter and are dropped. Reprojects
// filter.Geometry into workspaceCRS first; a pair with no registered
// transform surfaces as CrsError (spec §4.8 failure modes).
func applySpatialFilter(candidates []chunkCandidate, filter *SpatialFilter, workspaceCRS geo.CRS) ([]chunkCandidate, error) {
	if filter == nil {
		return candidates, nil
	}

	queryGeom, err := geo.Reproject(filter.Geometry, workspaceCRS)
	if err != nil {
		return nil, err
	}

	entries := make([]spatial.Entry, 0, len(candidates))
	byID := make(map[string]chunkCandidate, len(candidates))
	for _, c := range candidates {
		if c.Geometry == nil || c.Geometry.IsEmpty() {
			continue
		}
		entries = append(entries, spatial.Entry{DatasetName: c.DatasetName, FeatureID: c.ChunkID, Geometry: *c.Geometry})
		byID[c.ChunkID] = c
	}
	if len(entries) == 0 {
		return nil, nil
	}

	idx := spatial.Build(entries)
	matched, err := idx.Query(filter.Predicate, queryGeom, filter.RadiusMeters)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err)
	}

	out := make([]chunkCandidate, 0, len(matched))
	for _, m := range matched {
		if c, ok := byID[m.FeatureID]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}
