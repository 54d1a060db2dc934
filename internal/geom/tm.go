package geom

import (
	"math"

	"github.com/paulmach/orb"
)

// transverseMercator implements the ellipsoidal Transverse Mercator series
// (Snyder, USGS Professional Paper 1395, §8) with the latitude of origin at
// the equator and no false northing.
type transverseMercator struct {
	a, f   float64 // semi-major axis, flattening
	lon0   float64 // central meridian, radians
	k0     float64 // scale factor on the central meridian
	fe     float64 // false easting, metres
	e2     float64
	ep2    float64
	e1     float64
	mCoeff [4]float64
}

func (t *transverseMercator) init() {
	t.e2 = t.f * (2 - t.f)
	t.ep2 = t.e2 / (1 - t.e2)
	e4 := t.e2 * t.e2
	e6 := e4 * t.e2
	t.mCoeff = [4]float64{
		1 - t.e2/4 - 3*e4/64 - 5*e6/256,
		3*t.e2/8 + 3*e4/32 + 45*e6/1024,
		15*e4/256 + 45*e6/1024,
		35 * e6 / 3072,
	}
	s := math.Sqrt(1 - t.e2)
	t.e1 = (1 - s) / (1 + s)
}

// meridianArc is the distance along the central meridian from the equator to
// latitude phi.
func (t *transverseMercator) meridianArc(phi float64) float64 {
	c := t.mCoeff
	return t.a * (c[0]*phi - c[1]*math.Sin(2*phi) + c[2]*math.Sin(4*phi) - c[3]*math.Sin(6*phi))
}

// forward maps longitude/latitude degrees to easting/northing metres.
func (t *transverseMercator) forward(p orb.Point) orb.Point {
	phi := p[1] * math.Pi / 180
	lam := p[0] * math.Pi / 180

	sin, cos := math.Sin(phi), math.Cos(phi)
	tan := math.Tan(phi)
	n := t.a / math.Sqrt(1-t.e2*sin*sin)
	tt := tan * tan
	c := t.ep2 * cos * cos
	a := (lam - t.lon0) * cos
	m := t.meridianArc(phi)

	a2 := a * a
	x := t.k0 * n * (a +
		(1-tt+c)*a2*a/6 +
		(5-18*tt+tt*tt+72*c-58*t.ep2)*a2*a2*a/120)
	y := t.k0 * (m + n*tan*(a2/2+
		(5-tt+9*c+4*c*c)*a2*a2/24+
		(61-58*tt+tt*tt+600*c-330*t.ep2)*a2*a2*a2/720))

	return orb.Point{x + t.fe, y}
}

// inverse maps easting/northing metres back to longitude/latitude degrees.
func (t *transverseMercator) inverse(p orb.Point) orb.Point {
	x := p[0] - t.fe
	m := p[1] / t.k0
	mu := m / (t.a * t.mCoeff[0])

	e1 := t.e1
	phi1 := mu +
		(3*e1/2-27*e1*e1*e1/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*e1*e1*e1*e1/32)*math.Sin(4*mu) +
		(151*e1*e1*e1/96)*math.Sin(6*mu) +
		(1097*e1*e1*e1*e1/512)*math.Sin(8*mu)

	sin, cos := math.Sin(phi1), math.Cos(phi1)
	tan := math.Tan(phi1)
	c1 := t.ep2 * cos * cos
	t1 := tan * tan
	w := 1 - t.e2*sin*sin
	n1 := t.a / math.Sqrt(w)
	r1 := t.a * (1 - t.e2) / (w * math.Sqrt(w))
	d := x / (n1 * t.k0)
	d2 := d * d

	phi := phi1 - (n1*tan/r1)*(d2/2-
		(5+3*t1+10*c1-4*c1*c1-9*t.ep2)*d2*d2/24+
		(61+90*t1+298*c1+45*t1*t1-252*t.ep2-3*c1*c1)*d2*d2*d2/720)
	lam := t.lon0 + (d-
		(1+2*t1+c1)*d2*d/6+
		(5-2*c1+28*t1-3*c1*c1+8*t.ep2+24*t1*t1)*d2*d2*d/120)/cos

	return orb.Point{lam * 180 / math.Pi, phi * 180 / math.Pi}
}
