package geom

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"EPSG:3826":                     "EPSG:3826",
		" epsg:3826 ":                   "EPSG:3826",
		"3826":                          "EPSG:3826",
		"urn:ogc:def:crs:EPSG::3826":    "EPSG:3826",
		"OGC:CRS84":                     "EPSG:4326",
		"urn:ogc:def:crs:OGC:1.3:CRS84": "EPSG:4326",
		"made-up":                       "MADE-UP",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
	if !Same("epsg:3826", "EPSG:3826") {
		t.Error("Same should ignore case")
	}
	if Same("EPSG:3826", "EPSG:3825") {
		t.Error("different zones reported as same")
	}
}

func TestLookup_Unsupported(t *testing.T) {
	if _, err := Lookup("EPSG:2154"); err == nil {
		t.Fatal("expected error for unsupported CRS")
	}
	if len(Supported()) != 5 {
		t.Fatalf("Supported() = %v", Supported())
	}
}

/*
On the central meridian at the equator TM2 puts a point at the false
easting with zero northing.
*/
func TestTM2_CentralMeridianOrigin(t *testing.T) {
	proj, err := Transformer("EPSG:4326", "EPSG:3826")
	if err != nil {
		t.Fatal(err)
	}
	p := proj(orb.Point{121, 0})
	if math.Abs(p[0]-250000) > 1e-6 || math.Abs(p[1]) > 1e-6 {
		t.Fatalf("origin projected to %v", p)
	}
}

func TestTM2_RoundTrip(t *testing.T) {
	for _, code := range []string{"EPSG:3826", "EPSG:3825"} {
		fwd, err := Transformer("EPSG:4326", code)
		if err != nil {
			t.Fatal(err)
		}
		inv, err := Transformer(code, "EPSG:4326")
		if err != nil {
			t.Fatal(err)
		}
		for _, in := range []orb.Point{{121.5645, 25.034}, {120.2, 22.99}, {119.6, 23.57}, {121.0, 24.0}} {
			out := inv(fwd(in))
			if math.Abs(out[0]-in[0]) > 1e-6 || math.Abs(out[1]-in[1]) > 1e-6 {
				t.Errorf("%s round trip %v -> %v", code, in, out)
			}
		}
	}
}

func TestWebMercator(t *testing.T) {
	proj, err := Transformer("EPSG:4326", "EPSG:3857")
	if err != nil {
		t.Fatal(err)
	}
	p := proj(orb.Point{180, 0})
	if math.Abs(p[0]-20037508.342789244) > 1e-3 {
		t.Fatalf("x = %v", p[0])
	}
}

/*
Reproject must not touch the input geometry; datasets share geometry values
between aliases.
*/
func TestReproject_DoesNotMutate(t *testing.T) {
	proj, err := Transformer("EPSG:4326", "EPSG:3826")
	if err != nil {
		t.Fatal(err)
	}
	ring := orb.Ring{{121, 24}, {121.1, 24}, {121.1, 24.1}, {121, 24}}
	poly := orb.Polygon{ring}
	out := Reproject(poly, proj).(orb.Polygon)
	if poly[0][0] != (orb.Point{121, 24}) {
		t.Fatalf("input mutated: %v", poly[0][0])
	}
	if out[0][0][0] < 200000 {
		t.Fatalf("output not projected: %v", out[0][0])
	}
	if Reproject(nil, proj) != nil {
		t.Fatal("nil geometry should stay nil")
	}
}

func TestCollect(t *testing.T) {
	sq := func(x float64) orb.Polygon {
		return orb.Polygon{{{x, 0}, {x + 1, 0}, {x + 1, 1}, {x, 1}, {x, 0}}}
	}
	if Collect(nil) != nil {
		t.Fatal("empty input should yield nil")
	}
	single := Collect([]orb.Geometry{nil, sq(0)})
	if _, ok := single.(orb.Polygon); !ok {
		t.Fatalf("single polygon returned as %T", single)
	}
	mp, ok := Collect([]orb.Geometry{sq(0), orb.MultiPolygon{sq(2), sq(4)}}).(orb.MultiPolygon)
	if !ok || len(mp) != 3 {
		t.Fatalf("expected 3-part multipolygon, got %#v", mp)
	}
	mixed := Collect([]orb.Geometry{sq(0), orb.Point{1, 1}})
	if _, ok := mixed.(orb.Collection); !ok {
		t.Fatalf("mixed input returned as %T", mixed)
	}
}
