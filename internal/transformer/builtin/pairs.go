package builtin

import (
	"context"
	"fmt"

	"geoetl/internal/bitmap"
	"geoetl/internal/ctxlog"
	"geoetl/internal/dataset"
	"geoetl/internal/rule"
	"geoetl/pkg/records"
)

// dropByPairs drops rows whose values in the configured columns equal one of
// the excluded tuples. Values compare by their text form, so a configured 5
// matches a cell holding "5" or int64(5).
func dropByPairs(ctx context.Context, in []*dataset.Dataset, params rule.Params) ([]*dataset.Dataset, error) {
	p, err := paramsAs[*rule.DropByPairs](DropByPairs, params)
	if err != nil {
		return nil, err
	}
	d, err := single(DropByPairs, in)
	if err != nil {
		return nil, err
	}
	if err := d.Require(p.Columns...); err != nil {
		return nil, fmt.Errorf("drop_by_pairs: %w", err)
	}

	excluded := make(map[string]bool, len(p.ExcludePairs))
	for i, pair := range p.ExcludePairs {
		if len(pair) != len(p.Columns) {
			return nil, fmt.Errorf("drop_by_pairs: exclude_pairs[%d] has %d values for %d columns", i, len(pair), len(p.Columns))
		}
		r := make(records.Record, len(pair))
		for j, v := range pair {
			r[p.Columns[j]] = v.Value
		}
		excluded[dataset.Key(r, p.Columns)] = true
	}

	drop := bitmap.New(d.Len())
	for i, r := range d.Rows {
		if excluded[dataset.Key(r, p.Columns)] {
			drop.Add(i)
		}
	}
	if drop.Count() == 0 && (p.IndexName == "" || p.IndexName == d.IndexName) {
		return one(d), nil
	}
	out := d.Take(drop.Unset())
	if p.IndexName != "" {
		out.IndexName = p.IndexName
	}
	ctxlog.FromContext(ctx).Info("drop_by_pairs: rows dropped", "dropped", drop.Count())
	return one(out), nil
}
