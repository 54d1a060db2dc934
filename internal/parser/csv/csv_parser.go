// Package csv loads delimited text into a dataset. A header row names the
// columns; an optional column holding WKT turns the result into a
// geospatial dataset.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb/encoding/wkt"

	"geoetl/internal/ctxlog"
	"geoetl/internal/dataset"
	"geoetl/pkg/records"
)

// Options configures the CSV parser behavior. All fields are optional.
type Options struct {
	// HasHeader indicates whether the first row contains column headers.
	// Without one, columns are named col_0, col_1, ...
	HasHeader bool

	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing white space from each field value.
	TrimSpace bool

	// ExpectedFields, when > 0 and there is no header, fixes the field count
	// per record. Rows with a different width are skipped and counted.
	ExpectedFields int

	// HeaderMap renames source headers, e.g. {"VILLNAME": "village"}.
	HeaderMap map[string]string

	// NormalizeHeaders lower-cases unmapped headers and replaces spaces
	// with underscores.
	NormalizeHeaders bool

	// InferTypes converts columns whose values all parse as integers to
	// int64, and all-numeric columns to float64.
	InferTypes bool

	// GeometryColumn names the column holding WKT. Empty cells become null
	// geometries.
	GeometryColumn string

	// CRS is recorded on the dataset when GeometryColumn is set.
	CRS string
}

// Parser parses CSV input according to Options. It is safe to reuse across
// inputs, but Parser itself is not concurrency-safe.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// maxLoggedSkips bounds the per-row skip messages for one input.
const maxLoggedSkips = 400

// Parse consumes CSV records from r and returns the dataset along with the
// number of rows that were skipped due to parse errors or field-count
// mismatches.
func (p *Parser) Parse(ctx context.Context, r io.Reader) (*dataset.Dataset, int, error) {
	logger := ctxlog.FromContext(ctx)

	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}

	var headers []string
	if p.opt.HasHeader {
		h, err := cr.Read()
		if err != nil {
			return nil, 0, fmt.Errorf("read csv header: %w", err)
		}
		headers = normalizeHeaders(h, p.opt)
		if err := checkUnique(headers); err != nil {
			return nil, 0, err
		}
	} else if p.opt.ExpectedFields > 0 {
		headers = make([]string, p.opt.ExpectedFields)
		for i := range headers {
			headers[i] = fmt.Sprintf("col_%d", i)
		}
	}

	var rows []records.Record
	var skipped int
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, skipped, err
		}
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if skipped < maxLoggedSkips {
				logger.Warn("csv: skipping row", "line", line, "err", err)
			}
			skipped++
			continue
		}

		// Headerless input without ExpectedFields takes its width from
		// the first row.
		if headers == nil {
			headers = make([]string, len(row))
			for i := range headers {
				headers[i] = fmt.Sprintf("col_%d", i)
			}
		}
		if len(row) != len(headers) {
			if skipped < maxLoggedSkips {
				logger.Warn("csv: skipping row", "line", line, "expected", len(headers), "got", len(row))
			}
			skipped++
			continue
		}

		rec := make(records.Record, len(row))
		for i, val := range row {
			if p.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			rec[headers[i]] = emptyToNil(val)
		}
		rows = append(rows, rec)
	}
	if skipped > 0 {
		logger.Warn("csv: rows skipped", "skipped", skipped, "kept", len(rows))
	}

	d := dataset.New(headers, rows)
	if p.opt.InferTypes {
		for _, col := range headers {
			if col != p.opt.GeometryColumn {
				inferColumn(rows, col)
			}
		}
	}
	if p.opt.GeometryColumn != "" {
		if err := parseGeometries(d, p.opt.GeometryColumn); err != nil {
			return nil, skipped, err
		}
		d.CRS = p.opt.CRS
	}
	return d, skipped, nil
}

// parseGeometries replaces the WKT text of col with orb geometries.
func parseGeometries(d *dataset.Dataset, col string) error {
	if err := d.Require(col); err != nil {
		return fmt.Errorf("csv geometry column: %w", err)
	}
	for i, r := range d.Rows {
		s, ok := r[col].(string)
		if !ok {
			continue
		}
		g, err := wkt.Unmarshal(s)
		if err != nil {
			return fmt.Errorf("csv row %d: column %q: %w", i, col, err)
		}
		r[col] = g
	}
	d.GeometryColumn = col
	return nil
}

// inferColumn converts col in place when every non-null value parses as an
// integer, or else as a float. Mixed columns stay text.
func inferColumn(rows []records.Record, col string) {
	allInt, allFloat, seen := true, true, false
	for _, r := range rows {
		s, ok := r[col].(string)
		if !ok {
			continue
		}
		seen = true
		if allInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				allInt = false
			}
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			allFloat = false
			break
		}
	}
	if !seen || !allFloat {
		return
	}
	for _, r := range rows {
		s, ok := r[col].(string)
		if !ok {
			continue
		}
		if allInt {
			n, _ := strconv.ParseInt(s, 10, 64)
			r[col] = n
		} else {
			f, _ := strconv.ParseFloat(s, 64)
			r[col] = f
		}
	}
}

// emptyToNil converts an empty string to nil; all other values are returned as-is.
func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// normalizeHeaders produces column names using HeaderMap and, when enabled,
// simple normalization (lowercase, spaces to underscores). It also strips a
// UTF-8 BOM from the first cell if present.
func normalizeHeaders(h []string, opt Options) []string {
	res := make([]string, len(h))
	copy(res, h)
	for i, col := range res {
		if i == 0 {
			col = strings.TrimPrefix(col, utf8BOM)
		}
		c := strings.TrimSpace(col)
		if m, ok := opt.HeaderMap[c]; ok {
			res[i] = m
			continue
		}
		if c == "" {
			c = fmt.Sprintf("col_%d", i)
		}
		if opt.NormalizeHeaders {
			c = strings.ReplaceAll(strings.ToLower(c), " ", "_")
		}
		res[i] = c
	}
	return res
}

func checkUnique(headers []string) error {
	seen := make(map[string]int, len(headers))
	for i, h := range headers {
		if j, ok := seen[h]; ok {
			return fmt.Errorf("csv header: duplicate column %q at positions %d and %d", h, j, i)
		}
		seen[h] = i
	}
	return nil
}
