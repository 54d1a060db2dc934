package builtin

import (
	"context"
	"fmt"
	"strings"

	"geoetl/internal/dataset"
	"geoetl/internal/rule"
)

// explodeVillage turns "A、B、C" in the source column into three rows, one
// per non-empty part. Exploded rows keep their original label.
func explodeVillage(_ context.Context, in []*dataset.Dataset, params rule.Params) ([]*dataset.Dataset, error) {
	p, err := paramsAs[*rule.ExplodeVillage](ExplodeVillage, params)
	if err != nil {
		return nil, err
	}
	d, err := single(ExplodeVillage, in)
	if err != nil {
		return nil, err
	}
	if err := d.Require(p.SourceColumn); err != nil {
		return nil, fmt.Errorf("explode_village: %w", err)
	}

	out := d.Derive()
	if p.KeepOriginalAs != "" {
		out.AddColumn(p.KeepOriginalAs)
	}
	for i, r := range d.Rows {
		label := d.Label(i)
		orig := r[p.SourceColumn]
		s, isStr := orig.(string)
		if !isStr {
			c := r.Clone()
			if p.KeepOriginalAs != "" {
				c[p.KeepOriginalAs] = orig
			}
			out.Append(label, c)
			continue
		}

		var parts []string
		for _, part := range strings.Split(s, p.Delimiter) {
			if part = strings.TrimFunc(part, blank); part != "" {
				parts = append(parts, part)
			}
		}
		if len(parts) == 0 {
			parts = []string{""}
		}
		for _, part := range parts {
			c := r.Clone()
			if part == "" {
				c[p.SourceColumn] = nil
			} else {
				c[p.SourceColumn] = part
			}
			if p.KeepOriginalAs != "" {
				c[p.KeepOriginalAs] = orig
			}
			out.Append(label, c)
		}
	}

	if p.SortBy != "" {
		if err := out.SortStableBy(p.SortBy); err != nil {
			return nil, fmt.Errorf("explode_village: sort_by: %w", err)
		}
	}
	if p.ResetIndex {
		out.ResetIndex(p.NewIndex)
	}
	return one(out), nil
}
