// Package file implements storage backends that write final datasets to
// files instead of database tables: "csv" writes one delimited file per
// table with geometries as WKT, "geojson" writes a FeatureCollection.
//
// For both kinds storage.Config.DSN is the output directory and
// storage.Config.Table is the file name without extension.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"geoetl/internal/storage"
)

// Path returns the output path for table in dir with extension ext.
// Dotted table names ("schema.table") keep only the last part.
func Path(dir, table, ext string) (string, error) {
	name := strings.TrimSpace(table)
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "", fmt.Errorf("file sink: table name must not be empty")
	}
	if strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("file sink: invalid table name %q", table)
	}
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, name+ext), nil
}

func create(dir, table, ext string) (*os.File, error) {
	path, err := Path(dir, table, ext)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("file sink: mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("file sink: create: %w", err)
	}
	return f, nil
}

func init() {
	storage.Register("csv", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewCSV(cfg.DSN, cfg.Table)
	})
	storage.Register("geojson", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewGeoJSON(cfg.DSN, cfg.Table)
	})
}
