package builtin

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"geoetl/internal/dataset"
	"geoetl/internal/rule"
	"geoetl/pkg/records"
)

type replacer func(v any) (any, bool)

func typoMapping(_ context.Context, in []*dataset.Dataset, params rule.Params) ([]*dataset.Dataset, error) {
	p, err := paramsAs[*rule.TypoMapping](TypoMapping, params)
	if err != nil {
		return nil, err
	}
	d, err := single(TypoMapping, in)
	if err != nil {
		return nil, err
	}

	cols := make([]string, 0, len(p.Columns))
	for c := range p.Columns {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	if err := d.Require(cols...); err != nil {
		return nil, fmt.Errorf("typo_mapping: %w", err)
	}

	passes := make(map[string][]replacer, len(cols))
	for _, col := range cols {
		for _, m := range p.Mode {
			switch m {
			case rule.ModeExact:
				passes[col] = append(passes[col], exactReplacer(p.Columns[col]))
			case rule.ModeRegex:
				rp, err := regexReplacer(p.Columns[col])
				if err != nil {
					return nil, fmt.Errorf("typo_mapping: column %q: %w", col, err)
				}
				passes[col] = append(passes[col], rp)
			}
		}
	}

	out := d.Derive()
	changed := false
	for i, r := range d.Rows {
		var c records.Record
		for _, col := range cols {
			v := r[col]
			touched := false
			for _, rp := range passes[col] {
				if nv, ok := rp(v); ok {
					v, touched = nv, true
				}
			}
			if touched {
				if c == nil {
					c = r.Clone()
				}
				c[col] = v
			}
		}
		if c != nil {
			changed = true
			out.Append(d.Label(i), c)
			continue
		}
		out.Append(d.Label(i), r)
	}
	if !changed {
		return one(d), nil
	}
	return one(out), nil
}

// exactReplacer replaces a whole cell equal to a key.
func exactReplacer(reps rule.Replacements) replacer {
	lookup := make(map[string]any, len(reps))
	for _, r := range reps {
		lookup[r.From] = r.To
	}
	return func(v any) (any, bool) {
		if dataset.IsNull(v) {
			return v, false
		}
		to, ok := lookup[dataset.Text(v)]
		if !ok || dataset.Equal(to, v) {
			return v, false
		}
		return to, true
	}
}

// regexReplacer applies every pattern in order to string cells.
func regexReplacer(reps rule.Replacements) (replacer, error) {
	type pattern struct {
		re   *regexp.Regexp
		repl string
	}
	pats := make([]pattern, 0, len(reps))
	for _, r := range reps {
		re, err := regexp.Compile(r.From)
		if err != nil {
			return nil, err
		}
		repl := ""
		if r.To != nil {
			repl = fmt.Sprint(r.To)
		}
		pats = append(pats, pattern{re, repl})
	}
	return func(v any) (any, bool) {
		s, ok := v.(string)
		if !ok {
			return v, false
		}
		orig := s
		for _, p := range pats {
			s = p.re.ReplaceAllString(s, p.repl)
		}
		return s, s != orig
	}, nil
}
