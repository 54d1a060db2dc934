package geom

import "github.com/paulmach/orb"

// Collect merges geometries into one multi-geometry. Polygons and
// multipolygons become a MultiPolygon, points a MultiPoint, lines a
// MultiLineString; mixed inputs fall back to a Collection. Nil geometries are
// skipped, a single geometry is returned as is, and no input yields nil.
//
// Parts are concatenated, not topologically unioned: shared edges between
// adjacent polygons remain. That is sufficient for grouping boundaries into
// one feature; area-preserving union needs a GEOS-backed tool downstream.
func Collect(geoms []orb.Geometry) orb.Geometry {
	parts := make([]orb.Geometry, 0, len(geoms))
	for _, g := range geoms {
		if g != nil {
			parts = append(parts, g)
		}
	}
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0]
	}

	var (
		polys  orb.MultiPolygon
		points orb.MultiPoint
		lines  orb.MultiLineString
		kinds  = map[string]struct{}{}
	)
	for _, g := range parts {
		switch t := g.(type) {
		case orb.Polygon:
			polys = append(polys, t)
			kinds["polygon"] = struct{}{}
		case orb.MultiPolygon:
			polys = append(polys, t...)
			kinds["polygon"] = struct{}{}
		case orb.Point:
			points = append(points, t)
			kinds["point"] = struct{}{}
		case orb.MultiPoint:
			points = append(points, t...)
			kinds["point"] = struct{}{}
		case orb.LineString:
			lines = append(lines, t)
			kinds["line"] = struct{}{}
		case orb.MultiLineString:
			lines = append(lines, t...)
			kinds["line"] = struct{}{}
		default:
			kinds["other"] = struct{}{}
		}
	}
	if len(kinds) == 1 {
		switch {
		case polys != nil:
			return polys
		case points != nil:
			return points
		case lines != nil:
			return lines
		}
	}
	return orb.Collection(parts)
}
