package builtin

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/paulmach/orb"

	"geoetl/internal/ctxlog"
	"geoetl/internal/dataset"
	"geoetl/internal/geom"
	"geoetl/internal/rule"
	"geoetl/pkg/records"
)

var firstAggregation = rule.Aggregation{Func: "first", Sep: ","}

// dissolveVillages merges rows that match the where predicate and share the
// by value into a single row. Geometries of a group become one
// multi-geometry; other columns are reduced by their aggregation rule.
// Each group takes the position of its first member. Rows that do not match,
// or whose by value is null, pass through unchanged.
func dissolveVillages(ctx context.Context, in []*dataset.Dataset, params rule.Params) ([]*dataset.Dataset, error) {
	p, err := paramsAs[*rule.DissolveVillages](DissolveVillages, params)
	if err != nil {
		return nil, err
	}
	d, err := single(DissolveVillages, in)
	if err != nil {
		return nil, err
	}
	if err := d.Require(p.By); err != nil {
		return nil, fmt.Errorf("dissolve_villages: by: %w", err)
	}
	for _, col := range sortedKeys(p.AggregationRules) {
		if err := d.Require(col); err != nil {
			return nil, fmt.Errorf("dissolve_villages: aggregation_rules: %w", err)
		}
	}
	program, err := p.Predicate()
	if err != nil {
		return nil, fmt.Errorf("dissolve_villages: where: %w", err)
	}

	type group struct {
		at      int
		members []int
	}
	groups := make(map[string]*group)
	// slot i holds either a passthrough row position or the group it anchors.
	type slot struct {
		row   int
		group *group
	}
	var slots []slot

	for i, r := range d.Rows {
		if program != nil {
			env := make(map[string]any, len(r))
			for k, v := range r {
				env[k] = v
			}
			res, err := expr.Run(program, env)
			if err != nil {
				return nil, fmt.Errorf("dissolve_villages: where on row %d: %w", d.Label(i), err)
			}
			if ok, _ := res.(bool); !ok {
				slots = append(slots, slot{row: i})
				continue
			}
		}
		if dataset.IsNull(r[p.By]) {
			slots = append(slots, slot{row: i})
			continue
		}
		key := dataset.Text(r[p.By])
		g, ok := groups[key]
		if !ok {
			g = &group{at: i}
			groups[key] = g
			slots = append(slots, slot{row: i, group: g})
		}
		g.members = append(g.members, i)
	}

	out := d.Derive()
	merged := 0
	for _, s := range slots {
		if s.group == nil {
			out.Append(d.Label(s.row), d.Rows[s.row])
			continue
		}
		r, err := dissolveGroup(d, p, s.group.members)
		if err != nil {
			return nil, err
		}
		out.Append(d.Label(s.group.at), r)
		merged += len(s.group.members) - 1
	}

	ctxlog.FromContext(ctx).Info("dissolve_villages: grouped",
		"groups", len(groups), "rows_in", d.Len(), "rows_out", out.Len())
	if merged == 0 {
		return one(d), nil
	}
	return one(out), nil
}

func dissolveGroup(d *dataset.Dataset, p *rule.DissolveVillages, members []int) (records.Record, error) {
	r := d.Rows[members[0]].Clone()
	for _, col := range d.Columns {
		switch col {
		case p.By:
			continue
		case d.GeometryColumn:
			geoms := make([]orb.Geometry, 0, len(members))
			for _, m := range members {
				if g := d.Geometry(m); g != nil {
					geoms = append(geoms, g)
				}
			}
			r[col] = geom.Collect(geoms)
			continue
		}
		agg, ok := p.AggregationRules[col]
		if !ok {
			agg = firstAggregation
		}
		values := make([]any, 0, len(members))
		for _, m := range members {
			if v := d.Rows[m][col]; !dataset.IsNull(v) {
				values = append(values, v)
			}
		}
		v, err := aggregate(agg, values)
		if err != nil {
			return nil, fmt.Errorf("dissolve_villages: column %q: %w", col, err)
		}
		r[col] = v
	}
	return r, nil
}

// aggregate reduces the non-null values of one column.
func aggregate(agg rule.Aggregation, values []any) (any, error) {
	switch agg.Func {
	case "first":
		if len(values) == 0 {
			return nil, nil
		}
		return values[0], nil
	case "last":
		if len(values) == 0 {
			return nil, nil
		}
		return values[len(values)-1], nil
	case "count":
		return int64(len(values)), nil
	case "min", "max":
		if len(values) == 0 {
			return nil, nil
		}
		best := values[0]
		for _, v := range values[1:] {
			c := dataset.Compare(v, best)
			if (agg.Func == "min" && c < 0) || (agg.Func == "max" && c > 0) {
				best = v
			}
		}
		return best, nil
	case "join":
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = dataset.Text(v)
		}
		return strings.Join(parts, agg.Sep), nil
	case "sum", "mean":
		var sum float64
		var total int64
		ints := true
		for _, v := range values {
			f, ok := dataset.Float(v)
			if !ok {
				return nil, fmt.Errorf("%s: non-numeric value %v (%T)", agg.Func, v, v)
			}
			if n, isInt := v.(int64); isInt {
				total += n
			} else {
				ints = false
			}
			sum += f
		}
		if agg.Func == "mean" {
			if len(values) == 0 {
				return nil, nil
			}
			return sum / float64(len(values)), nil
		}
		// all-int sums stay exact past 2^53.
		if ints {
			return total, nil
		}
		return sum, nil
	}
	return nil, fmt.Errorf("unknown aggregation %q", agg.Func)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
