package builtin

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"geoetl/internal/dataset"
	"geoetl/internal/rule"
	"geoetl/pkg/records"
)

// blank reports runes trimmed from cell edges: Unicode white space
// (including the ideographic space U+3000), zero-width space and BOM.
func blank(r rune) bool {
	return unicode.IsSpace(r) || r == '\u200b' || r == '\ufeff'
}

var newlines = strings.NewReplacer("\r\n", "", "\r", "", "\n", "")

func stripWhitespace(_ context.Context, in []*dataset.Dataset, params rule.Params) ([]*dataset.Dataset, error) {
	p, err := paramsAs[*rule.StripWhitespace](StripWhitespace, params)
	if err != nil {
		return nil, err
	}
	d, err := single(StripWhitespace, in)
	if err != nil {
		return nil, err
	}

	cols := p.Columns
	if len(cols) == 0 {
		for _, c := range d.Columns {
			if c != d.GeometryColumn {
				cols = append(cols, c)
			}
		}
	} else if err := d.Require(cols...); err != nil {
		return nil, fmt.Errorf("strip_whitespace: %w", err)
	}
	if p.DType != rule.DTypeObject {
		cols = stringColumns(d, cols)
	}
	if len(cols) == 0 {
		return one(d), nil
	}

	var form *norm.Form
	switch p.Normalize {
	case "NFC":
		f := norm.NFC
		form = &f
	case "NFKC":
		f := norm.NFKC
		form = &f
	case "NFD":
		f := norm.NFD
		form = &f
	case "NFKD":
		f := norm.NFKD
		form = &f
	}

	clean := func(s string) string {
		if p.RemoveNewlines {
			s = newlines.Replace(s)
		}
		s = strings.TrimFunc(s, blank)
		if form != nil {
			s = form.String(s)
		}
		return s
	}

	out := d.Derive()
	changed := false
	for i, r := range d.Rows {
		var c records.Record
		for _, col := range cols {
			s, ok := r[col].(string)
			if !ok {
				continue
			}
			if cs := clean(s); cs != s {
				if c == nil {
					c = r.Clone()
				}
				c[col] = cs
			}
		}
		if c == nil {
			out.Append(d.Label(i), r)
			continue
		}
		changed = true
		out.Append(d.Label(i), c)
	}
	if !changed {
		return one(d), nil
	}
	return one(out), nil
}

// stringColumns keeps the columns whose non-null values are all strings.
func stringColumns(d *dataset.Dataset, cols []string) []string {
	var out []string
	for _, c := range cols {
		ok := true
		for _, r := range d.Rows {
			v := r[c]
			if v == nil {
				continue
			}
			if _, isStr := v.(string); !isStr {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, c)
		}
	}
	return out
}
