package builtin

import (
	"context"
	"fmt"
	"sort"

	"geoetl/internal/dataset"
	"geoetl/internal/rule"
	"geoetl/pkg/records"
)

func renameColumns(_ context.Context, in []*dataset.Dataset, params rule.Params) ([]*dataset.Dataset, error) {
	p, err := paramsAs[*rule.RenameColumns](RenameColumns, params)
	if err != nil {
		return nil, err
	}
	d, err := single(RenameColumns, in)
	if err != nil {
		return nil, err
	}
	if len(p.Mappings) == 0 {
		return one(d), nil
	}

	sources := make([]string, 0, len(p.Mappings))
	for from := range p.Mappings {
		sources = append(sources, from)
	}
	sort.Strings(sources)
	for _, from := range sources {
		if err := d.Require(from); err != nil {
			return nil, fmt.Errorf("rename_columns: %w", err)
		}
	}

	columns := make([]string, len(d.Columns))
	seen := make(map[string]string, len(d.Columns))
	for i, c := range d.Columns {
		name := c
		if to, ok := p.Mappings[c]; ok {
			name = to
		}
		if prev, dup := seen[name]; dup {
			return nil, fmt.Errorf("rename_columns: renaming gives two columns named %q (from %q and %q)", name, prev, c)
		}
		seen[name] = c
		columns[i] = name
	}

	out := d.Derive()
	out.Columns = columns
	if to, ok := p.Mappings[d.GeometryColumn]; ok {
		out.GeometryColumn = to
	}
	for i, r := range d.Rows {
		c := make(records.Record, len(r))
		for k, v := range r {
			if to, ok := p.Mappings[k]; ok {
				k = to
			}
			c[k] = v
		}
		out.Append(d.Label(i), c)
	}
	return one(out), nil
}
