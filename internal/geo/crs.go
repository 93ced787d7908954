package geo

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/georag/georag/internal/errs"
)

// CRS is a Coordinate Reference System identified by its EPSG code.
type CRS int

const (
	WGS84        CRS = 4326
	WebMercator  CRS = 3857
)

// Reproject converts g from its current CRS into `to`. Identity when the
// geometry is already in `to`. The engine supports the 4326<->3857 pair
// exactly (the only transform the example corpus's geometry libraries ground
// a concrete implementation for — see DESIGN.md); any other distinct pair
// fails with CrsError.
func Reproject(g Geometry, to CRS) (Geometry, error) {
	if g.CRS == to {
		return g, nil
	}

	var transform func(orb.Point) orb.Point
	switch {
	case g.CRS == WGS84 && to == WebMercator:
		transform = project.WGS84ToMercator
	case g.CRS == WebMercator && to == WGS84:
		transform = project.MercatorToWGS84
	default:
		return Geometry{}, errs.New(errs.CrsError,
			fmt.Sprintf("no transform registered for EPSG:%d -> EPSG:%d", g.CRS, to), nil).
			WithRemediation(fmt.Sprintf("reproject via an intermediate CRS or register EPSG:%d<->EPSG:%d", g.CRS, to))
	}

	projected := project.Geometry(g.Geom, transform)
	out, err := New(projected, to)
	if err != nil {
		return Geometry{}, err
	}
	return out, nil
}
