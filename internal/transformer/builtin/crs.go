package builtin

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"

	"geoetl/internal/ctxlog"
	"geoetl/internal/dataset"
	"geoetl/internal/geom"
	"geoetl/internal/rule"
)

func convertCRS(ctx context.Context, in []*dataset.Dataset, params rule.Params) ([]*dataset.Dataset, error) {
	p, err := paramsAs[*rule.ConvertCRS](ConvertCRS, params)
	if err != nil {
		return nil, err
	}
	d, err := single(ConvertCRS, in)
	if err != nil {
		return nil, err
	}
	if !d.IsGeo() {
		return nil, fmt.Errorf("convert_crs: dataset has no geometry column")
	}
	if d.CRS == "" {
		return nil, fmt.Errorf("convert_crs: dataset has no CRS to convert from")
	}
	if geom.Same(d.CRS, p.ToCRS) {
		ctxlog.FromContext(ctx).Info("convert_crs: already in target CRS", "crs", d.CRS)
		return one(d), nil
	}
	proj, err := geom.Transformer(d.CRS, p.ToCRS)
	if err != nil {
		return nil, fmt.Errorf("convert_crs: %w", err)
	}

	out := d.Derive()
	out.CRS = geom.Normalize(p.ToCRS)
	gcol := d.GeometryColumn
	for i, r := range d.Rows {
		g, ok := r[gcol].(orb.Geometry)
		if !ok || g == nil {
			out.Append(d.Label(i), r)
			continue
		}
		c := r.Clone()
		c[gcol] = geom.Reproject(g, proj)
		out.Append(d.Label(i), c)
	}
	return one(out), nil
}
