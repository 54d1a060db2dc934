// Package geojson loads a GeoJSON FeatureCollection into a geospatial
// dataset: one row per feature, one column per property plus the geometry
// column.
package geojson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/paulmach/orb/geojson"

	"geoetl/internal/ctxlog"
	"geoetl/internal/dataset"
	"geoetl/internal/geom"
	jsonrec "geoetl/internal/parser/json"
	"geoetl/pkg/records"
)

// DefaultCRS applies to collections without a crs member (RFC 7946).
const DefaultCRS = "EPSG:4326"

// Options configures Load.
type Options struct {
	// GeometryColumn names the geometry column; "geometry" when empty.
	GeometryColumn string

	// CRS overrides the collection's crs member.
	CRS string
}

// Load decodes a FeatureCollection from r.
func Load(ctx context.Context, r io.Reader, opt Options) (*dataset.Dataset, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("geojson: read: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("geojson: decode: %w", err)
	}

	geomCol := opt.GeometryColumn
	if geomCol == "" {
		geomCol = "geometry"
	}
	columns, err := propertyOrder(raw)
	if err != nil {
		return nil, err
	}
	for _, c := range columns {
		if c == geomCol {
			return nil, fmt.Errorf("geojson: property %q clashes with the geometry column", c)
		}
	}

	rows := make([]records.Record, 0, len(fc.Features))
	for _, f := range fc.Features {
		rec := make(records.Record, len(columns)+1)
		for _, c := range columns {
			rec[c] = f.Properties[c]
		}
		rec[geomCol] = f.Geometry
		rows = append(rows, rec)
	}
	for _, c := range columns {
		integralColumn(rows, c)
	}

	d := dataset.New(append(columns, geomCol), rows)
	d.GeometryColumn = geomCol
	d.CRS = opt.CRS
	if d.CRS == "" {
		d.CRS = collectionCRS(fc)
	}
	ctxlog.FromContext(ctx).Debug("geojson: loaded", "features", len(rows), "columns", len(columns), "crs", d.CRS)
	return d, nil
}

// collectionCRS reads a legacy named crs member, falling back to DefaultCRS.
func collectionCRS(fc *geojson.FeatureCollection) string {
	crs, ok := fc.ExtraMembers["crs"].(map[string]any)
	if !ok {
		return DefaultCRS
	}
	props, _ := crs["properties"].(map[string]any)
	name, _ := props["name"].(string)
	if name == "" {
		return DefaultCRS
	}
	return geom.Normalize(name)
}

// propertyOrder returns the property names of all features in first-seen
// document order; decoded maps lose that order.
func propertyOrder(raw []byte) ([]string, error) {
	var doc struct {
		Features []struct {
			Properties json.RawMessage `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("geojson: decode properties: %w", err)
	}
	var order []string
	seen := map[string]bool{}
	for i, f := range doc.Features {
		if len(f.Properties) == 0 || bytes.Equal(f.Properties, []byte("null")) {
			continue
		}
		keys, err := jsonrec.ObjectKeys(f.Properties)
		if err != nil {
			return nil, fmt.Errorf("geojson: feature %d properties: %w", i, err)
		}
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				order = append(order, k)
			}
		}
	}
	return order, nil
}

// integralColumn turns the float64 values of col into int64 when every
// non-null value is a whole number.
func integralColumn(rows []records.Record, col string) {
	seen := false
	for _, r := range rows {
		switch v := r[col].(type) {
		case nil:
		case float64:
			if v != math.Trunc(v) || math.Abs(v) > 1<<53 {
				return
			}
			seen = true
		default:
			return
		}
	}
	if !seen {
		return
	}
	for _, r := range rows {
		if v, ok := r[col].(float64); ok {
			r[col] = int64(v)
		}
	}
}
