// Package parser turns input files into datasets. The format is chosen
// from Options.Format or the file extension; the character encoding is
// decoded (or sniffed) before the format parser sees the bytes.
package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"geoetl/internal/ctxlog"
	"geoetl/internal/dataset"
	pcsv "geoetl/internal/parser/csv"
	pgeojson "geoetl/internal/parser/geojson"
	pjson "geoetl/internal/parser/json"
)

// Supported formats.
const (
	FormatCSV     = "csv"
	FormatGeoJSON = "geojson"
	FormatJSON    = "json"
)

// Options configures Load.
type Options struct {
	// Format is csv, geojson or json; derived from the name when empty.
	Format string

	// Encoding names the input character set; empty or "auto" sniffs.
	Encoding string

	// CRS is assigned to geospatial inputs, overriding the file's own.
	CRS string

	// GeometryColumn names the WKT column of csv inputs and the geometry
	// column of geojson inputs.
	GeometryColumn string

	// Comma is the csv delimiter; ',' when zero.
	Comma rune

	// HeaderMap renames csv headers.
	HeaderMap map[string]string
}

// FormatFor guesses the format from a file name or URL path.
func FormatFor(name string) (string, error) {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt", ".tsv":
		return FormatCSV, nil
	case ".geojson":
		return FormatGeoJSON, nil
	case ".json", ".ndjson", ".jsonl":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("parser: cannot tell the format of %q; set it explicitly", name)
}

// SniffFormat guesses the format from the first bytes of an input whose
// name carries no usable extension.
func SniffFormat(head []byte) string {
	head = bytes.TrimPrefix(head, []byte("\xEF\xBB\xBF"))
	head = bytes.TrimLeft(head, " \t\r\n")
	switch {
	case len(head) == 0:
		return FormatCSV
	case head[0] == '{' && bytes.Contains(head, []byte(`"FeatureCollection"`)):
		return FormatGeoJSON
	case head[0] == '{' || head[0] == '[':
		return FormatJSON
	}
	return FormatCSV
}

// Load parses r, which was read from name, into a dataset.
func Load(ctx context.Context, name string, r io.Reader, opt Options) (*dataset.Dataset, error) {
	format := strings.ToLower(opt.Format)
	if format == "" {
		f, err := FormatFor(name)
		if err != nil {
			return nil, err
		}
		format = f
	}

	dr, enc, err := Decode(r, opt.Encoding)
	if err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx)
	logger.Debug("parser: decoding", "name", name, "format", format, "encoding", enc)

	var d *dataset.Dataset
	switch format {
	case FormatCSV:
		comma := opt.Comma
		if comma == 0 && strings.EqualFold(filepath.Ext(name), ".tsv") {
			comma = '\t'
		}
		var skipped int
		d, skipped, err = pcsv.NewParser(pcsv.Options{
			HasHeader:      true,
			Comma:          comma,
			TrimSpace:      true,
			HeaderMap:      opt.HeaderMap,
			InferTypes:     true,
			GeometryColumn: opt.GeometryColumn,
			CRS:            opt.CRS,
		}).Parse(ctx, dr)
		if skipped > 0 {
			logger.Warn("parser: csv rows skipped", "name", name, "skipped", skipped)
		}
	case FormatGeoJSON:
		d, err = pgeojson.Load(ctx, dr, pgeojson.Options{GeometryColumn: opt.GeometryColumn, CRS: opt.CRS})
	case FormatJSON:
		d, err = pjson.Load(ctx, dr, pjson.Options{AllowArrays: true})
	default:
		return nil, fmt.Errorf("parser: unsupported format %q", opt.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	logger.Info("parser: loaded", "name", name, "rows", d.Len(), "columns", len(d.Columns), "crs", d.CRS)
	return d, nil
}
