package builtin

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"geoetl/internal/ctxlog"
	"geoetl/internal/dataset"
	"geoetl/internal/rule"
)

// dateParser turns one cell into a time.
type dateParser func(s string) (time.Time, error)

func convertDatetime(ctx context.Context, in []*dataset.Dataset, params rule.Params) ([]*dataset.Dataset, error) {
	p, err := paramsAs[*rule.ConvertDatetime](ConvertDatetime, params)
	if err != nil {
		return nil, err
	}
	d, err := single(ConvertDatetime, in)
	if err != nil {
		return nil, err
	}
	if err := d.Require(p.Columns...); err != nil {
		return nil, fmt.Errorf("convert_datetime: %w", err)
	}
	parse, err := newDateParser(p)
	if err != nil {
		return nil, fmt.Errorf("convert_datetime: %w", err)
	}

	out := d.Derive()
	failed := 0
	for i, r := range d.Rows {
		c := r.Clone()
		for _, col := range p.Columns {
			v := r[col]
			if dataset.IsNull(v) {
				c[col] = nil
				continue
			}
			t, ok := v.(time.Time)
			if !ok {
				t, err = parse(strings.TrimSpace(dataset.Text(v)))
				if err != nil {
					switch p.Errors {
					case rule.ErrorsCoerce:
						c[col] = nil
						failed++
						continue
					case rule.ErrorsIgnore:
						failed++
						continue
					default:
						return nil, fmt.Errorf("convert_datetime: row %d column %q: %w", d.Label(i), col, err)
					}
				}
			}
			c[col] = cast(t, p)
		}
		out.Append(d.Label(i), c)
	}
	if failed > 0 {
		ctxlog.FromContext(ctx).Warn("convert_datetime: unparsable values", "count", failed, "errors", string(p.Errors))
	}
	return one(out), nil
}

func newDateParser(p *rule.ConvertDatetime) (dateParser, error) {
	if p.Regex != "" {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return nil, err
		}
		g := rule.DateGroups(re)
		return func(s string) (time.Time, error) {
			m := re.FindStringSubmatch(s)
			if m == nil {
				return time.Time{}, fmt.Errorf("%q does not match %s", s, re)
			}
			y, err1 := strconv.Atoi(m[g.Year])
			mo, err2 := strconv.Atoi(m[g.Month])
			day, err3 := strconv.Atoi(m[g.Day])
			if err1 != nil || err2 != nil || err3 != nil {
				return time.Time{}, fmt.Errorf("%q: year, month and day must be numbers", s)
			}
			return civil(y+p.Shift, mo, day, s)
		}, nil
	}
	layout, err := strftime.Layout(p.Format)
	if err != nil {
		return nil, err
	}
	return func(s string) (time.Time, error) {
		t, err := time.Parse(layout, s)
		if err != nil {
			return time.Time{}, err
		}
		if p.Shift != 0 {
			t = t.AddDate(p.Shift, 0, 0)
		}
		return t, nil
	}, nil
}

// civil builds a UTC midnight date and rejects out-of-range parts instead
// of letting time.Date normalise them.
func civil(y, m, d int, src string) (time.Time, error) {
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, fmt.Errorf("%q is not a valid date", src)
	}
	return t, nil
}

func cast(t time.Time, p *rule.ConvertDatetime) any {
	switch p.CastTo {
	case rule.CastDate:
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	case rule.CastString:
		return strftime.Format(p.Format, t)
	}
	return t
}
