package filter

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/peachstate/voterlens/internal/domain"
)

// geometryColumn is the voter point geometry column tested by bbox scopes.
const geometryColumn = "geom"

// BoundingBoxGeoJSON encodes the box as a closed-ring GeoJSON Polygon,
// corners in (xmin,ymin),(xmax,ymin),(xmax,ymax),(xmin,ymax) order with the
// first point repeated to close the ring.
func BoundingBoxGeoJSON(box domain.BoundingBox) string {
	ring := orb.Ring{
		{box.XMin, box.YMin},
		{box.XMax, box.YMin},
		{box.XMax, box.YMax},
		{box.XMin, box.YMax},
		{box.XMin, box.YMin},
	}
	encoded, err := json.Marshal(geojson.NewGeometry(orb.Polygon{ring}))
	if err != nil {
		// A polygon of four float corners cannot fail to encode.
		panic(fmt.Sprintf("encode bbox polygon: %v", err))
	}
	return string(encoded)
}

// geometryClause emits the intersection test with a single placeholder bound
// to the GeoJSON polygon literal. Boundary points intersect, so a voter at
// (xmin, ymin) is included.
func geometryClause(box domain.BoundingBox, builder *sqlBuilder) string {
	idx := builder.addArg(BoundingBoxGeoJSON(box))
	return fmt.Sprintf("ST_Intersects(%s, ST_GeomFromGeoJSON(%s))", geometryColumn, builder.placeholder(idx))
}

// Contains reports whether the point lies inside or on the boundary of the
// box. It mirrors the ST_Intersects semantics of the compiled predicate for
// in-process use and tests.
func Contains(box domain.BoundingBox, lon, lat float64) bool {
	return lon >= box.XMin && lon <= box.XMax && lat >= box.YMin && lat <= box.YMax
}
