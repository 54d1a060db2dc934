package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"geoetl/internal/dataset"
	"geoetl/internal/ddl"
	"geoetl/internal/geom"
)

// GeoJSON writes a whole dataset as one FeatureCollection. Row labels
// become feature ids and are also kept as a property named after the
// index.
type GeoJSON struct {
	f *os.File
}

// NewGeoJSON creates (or truncates) <dir>/<table>.geojson.
func NewGeoJSON(dir, table string) (*GeoJSON, error) {
	f, err := create(dir, table, ".geojson")
	if err != nil {
		return nil, err
	}
	return &GeoJSON{f: f}, nil
}

// Name returns the path of the output file.
func (g *GeoJSON) Name() string { return g.f.Name() }

// WriteDataset implements storage.DatasetWriter.
func (g *GeoJSON) WriteDataset(ctx context.Context, d *dataset.Dataset) (int64, error) {
	fc := FeatureCollection(d)
	bw := bufio.NewWriter(g.f)
	enc := json.NewEncoder(bw)
	if err := enc.Encode(fc); err != nil {
		return 0, fmt.Errorf("geojson sink: encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("geojson sink: flush: %w", err)
	}
	return int64(len(fc.Features)), nil
}

// FeatureCollection converts d into GeoJSON features. Plain datasets yield
// features with null geometry.
func FeatureCollection(d *dataset.Dataset) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if d.CRS != "" {
		fc.ExtraMembers = geojson.Properties{
			"crs": map[string]any{
				"type":       "name",
				"properties": map[string]any{"name": crsURN(d.CRS)},
			},
		}
	}
	index := ddl.IndexName(d)
	for i, r := range d.Rows {
		var g orb.Geometry
		if d.IsGeo() {
			g = d.Geometry(i)
		}
		f := &geojson.Feature{
			Type:       "Feature",
			ID:         d.Label(i),
			Geometry:   g,
			Properties: make(geojson.Properties, len(d.Columns)+1),
		}
		if index != "" {
			f.Properties[index] = d.Label(i)
		}
		for _, c := range d.Columns {
			if c == d.GeometryColumn {
				continue
			}
			f.Properties[c] = r[c]
		}
		fc.Append(f)
	}
	return fc
}

func crsURN(name string) string {
	code := geom.Normalize(name)
	if n, ok := strings.CutPrefix(code, "EPSG:"); ok {
		return "urn:ogc:def:crs:EPSG::" + n
	}
	return code
}

// CopyFrom is not supported; storage.Write uses WriteDataset instead.
func (g *GeoJSON) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	return 0, fmt.Errorf("geojson sink: row copy not supported, write whole datasets")
}

// Exec is a no-op.
func (g *GeoJSON) Exec(ctx context.Context, sql string) error { return nil }

// Close closes the file.
func (g *GeoJSON) Close() { g.f.Close() }
