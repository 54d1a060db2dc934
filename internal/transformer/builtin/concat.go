package builtin

import (
	"context"
	"fmt"

	"geoetl/internal/ctxlog"
	"geoetl/internal/dataset"
	"geoetl/internal/geom"
	"geoetl/internal/rule"
)

// concatFinalize stacks its inputs in alias order. Columns are the union
// of the inputs' columns in first-seen order; a row lacking a column holds
// nil there. Geometry metadata comes from the first geospatial input, and
// every other geospatial input must use the same CRS.
func concatFinalize(ctx context.Context, in []*dataset.Dataset, params rule.Params) ([]*dataset.Dataset, error) {
	p, err := paramsAs[*rule.ConcatFinalize](ConcatFinalize, params)
	if err != nil {
		return nil, err
	}
	if len(in) == 0 {
		return nil, fmt.Errorf("concat_finalize: no input datasets")
	}

	out := &dataset.Dataset{}
	for i, d := range in {
		if d == nil {
			return nil, fmt.Errorf("concat_finalize: input %d is nil", i)
		}
		if d.IsGeo() {
			switch {
			case !out.IsGeo():
				out.GeometryColumn, out.CRS = d.GeometryColumn, d.CRS
			case d.CRS != "" && out.CRS != "" && !geom.Same(out.CRS, d.CRS):
				return nil, fmt.Errorf("concat_finalize: input %d is in %s, expected %s", i, d.CRS, out.CRS)
			}
		}
		if out.IndexName == "" {
			out.IndexName = d.IndexName
		}
		for _, c := range d.Columns {
			out.AddColumn(c)
		}
	}

	for _, d := range in {
		for i, r := range d.Rows {
			c := r
			if len(r) != len(out.Columns) {
				c = r.Clone()
				for _, col := range out.Columns {
					if _, ok := c[col]; !ok {
						c[col] = nil
					}
				}
			}
			label := d.Label(i)
			if p.IgnoreIndex {
				label = out.Len()
			}
			out.Append(label, c)
		}
	}

	if p.SortBy != "" {
		if err := out.SortStableBy(p.SortBy); err != nil {
			return nil, fmt.Errorf("concat_finalize: sort_by: %w", err)
		}
	}
	if p.ResetIndex {
		out.ResetIndex(p.IndexName)
	} else if p.IndexName != "" {
		out.IndexName = p.IndexName
	}
	ctxlog.FromContext(ctx).Info("concat_finalize: concatenated", "inputs", len(in), "rows", out.Len())
	return one(out), nil
}
