package dataset

import "github.com/paulmach/orb"

// Geometry returns the geometry of row i, or nil for plain datasets and
// rows without a geometry.
func (d *Dataset) Geometry(i int) orb.Geometry {
	if !d.IsGeo() || i < 0 || i >= len(d.Rows) {
		return nil
	}
	g, _ := d.Rows[i][d.GeometryColumn].(orb.Geometry)
	return g
}
