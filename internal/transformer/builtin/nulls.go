package builtin

import (
	"context"

	"geoetl/internal/bitmap"
	"geoetl/internal/ctxlog"
	"geoetl/internal/dataset"
	"geoetl/internal/rule"
)

// dropNulls drops rows holding a null in any column. With an index list,
// only the listed rows are candidates.
func dropNulls(ctx context.Context, in []*dataset.Dataset, params rule.Params) ([]*dataset.Dataset, error) {
	p, err := paramsAs[*rule.DropNulls](DropNulls, params)
	if err != nil {
		return nil, err
	}
	d, err := single(DropNulls, in)
	if err != nil {
		return nil, err
	}
	log := ctxlog.FromContext(ctx)

	var listed map[int]bool
	if len(p.Index) > 0 {
		listed = make(map[int]bool, len(p.Index))
		for _, l := range p.Index {
			listed[l] = false
		}
	}

	drop := bitmap.New(d.Len())
	for i, r := range d.Rows {
		label := d.Label(i)
		if listed != nil {
			if _, ok := listed[label]; !ok {
				continue
			}
			listed[label] = true
		}
		if dataset.HasNull(r, d.Columns) {
			drop.Add(i)
			continue
		}
		if listed != nil {
			log.Info("dropnulls: listed row has no nulls, kept", "label", label)
		}
	}
	for label, found := range listed {
		if !found {
			log.Warn("dropnulls: listed row not present", "label", label)
		}
	}

	if drop.Count() == 0 {
		return one(d), nil
	}
	keep := drop.Unset()
	log.Info("dropnulls: rows dropped", "dropped", drop.Count(), "kept", len(keep))
	return one(d.Take(keep)), nil
}
