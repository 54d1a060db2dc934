// Package geom holds the coordinate reference systems the pipeline can
// reproject between and the geometry helpers used by dissolving actions.
//
// Only the systems needed for Taiwanese administrative boundary data are
// built in: WGS84 and TWD97 geographic coordinates, Web Mercator, and the
// two TWD97 TM2 zones. TWD97 uses the GRS80 ellipsoid, which differs from
// WGS84 by well under a millimetre at these latitudes, so both geographic
// systems share one pivot.
package geom

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// System is a supported coordinate reference system. ToLonLat and
// FromLonLat convert between the system's coordinates and geographic
// longitude/latitude in degrees.
type System struct {
	Code       string
	Name       string
	ToLonLat   orb.Projection
	FromLonLat orb.Projection
}

func identity(p orb.Point) orb.Point { return p }

var systems = map[string]System{
	"EPSG:4326": {Code: "EPSG:4326", Name: "WGS 84", ToLonLat: identity, FromLonLat: identity},
	"EPSG:3824": {Code: "EPSG:3824", Name: "TWD97", ToLonLat: identity, FromLonLat: identity},
	"EPSG:3857": {
		Code:       "EPSG:3857",
		Name:       "WGS 84 / Pseudo-Mercator",
		ToLonLat:   project.Mercator.ToWGS84,
		FromLonLat: project.WGS84.ToMercator,
	},
	"EPSG:3826": tm2("EPSG:3826", "TWD97 / TM2 zone 121", 121),
	"EPSG:3825": tm2("EPSG:3825", "TWD97 / TM2 zone 119", 119),
}

// Normalize returns the canonical "EPSG:<code>" spelling of name. Accepted
// forms are "EPSG:3826", "epsg:3826", "3826", "urn:ogc:def:crs:EPSG::3826"
// and "OGC:CRS84"/"CRS84" (mapped to EPSG:4326). Unrecognised names are
// returned upper-cased and trimmed.
func Normalize(name string) string {
	s := strings.ToUpper(strings.TrimSpace(name))
	switch s {
	case "CRS84", "OGC:CRS84", "URN:OGC:DEF:CRS:OGC:1.3:CRS84", "WGS84":
		return "EPSG:4326"
	}
	if i := strings.LastIndex(s, "EPSG::"); i >= 0 {
		s = "EPSG:" + s[i+len("EPSG::"):]
	}
	if _, err := strconv.Atoi(s); err == nil {
		return "EPSG:" + s
	}
	return s
}

// Same reports whether a and b name the same reference system.
func Same(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Lookup returns the built-in system called name.
func Lookup(name string) (System, error) {
	s, ok := systems[Normalize(name)]
	if !ok {
		return System{}, fmt.Errorf("geom: unsupported CRS %q (supported: %s)", name, strings.Join(Supported(), ", "))
	}
	return s, nil
}

// Supported lists the built-in system codes in sorted order.
func Supported() []string {
	out := make([]string, 0, len(systems))
	for code := range systems {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Transformer returns a projection converting coordinates from one system to
// another.
func Transformer(from, to string) (orb.Projection, error) {
	src, err := Lookup(from)
	if err != nil {
		return nil, err
	}
	dst, err := Lookup(to)
	if err != nil {
		return nil, err
	}
	return func(p orb.Point) orb.Point {
		return dst.FromLonLat(src.ToLonLat(p))
	}, nil
}

// Reproject returns a reprojected copy of g; g itself is left untouched.
func Reproject(g orb.Geometry, proj orb.Projection) orb.Geometry {
	if g == nil {
		return nil
	}
	return project.Geometry(orb.Clone(g), proj)
}

func tm2(code, name string, centralMeridian float64) System {
	t := transverseMercator{
		a:    6378137.0,
		f:    1 / 298.257222101,
		lon0: centralMeridian * math.Pi / 180,
		k0:   0.9999,
		fe:   250000,
	}
	t.init()
	return System{Code: code, Name: name, ToLonLat: t.inverse, FromLonLat: t.forward}
}
