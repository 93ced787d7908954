package geo

import (
	"github.com/paulmach/orb/encoding/wkb"
)

// WKB encodes g's normalized form for the index fingerprint (spec §4.7): a
// deterministic byte representation independent of map/struct iteration
// order.
func WKB(g Geometry) ([]byte, error) {
	return wkb.Marshal(g.Geom)
}
