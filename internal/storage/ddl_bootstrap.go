package storage

import (
	"context"
	"fmt"
	"sync"

	"geoetl/internal/dataset"
	"geoetl/internal/ddl"
)

var (
	ddlMu    sync.RWMutex
	dialects = map[string]ddl.Dialect{}
)

// RegisterDDL associates a SQL dialect with a storage kind. Backends call it
// from init next to Register; kinds without a dialect (file sinks) never
// create tables.
func RegisterDDL(kind string, d ddl.Dialect) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	dialects[kind] = d
}

// DialectFor returns the dialect registered for kind.
func DialectFor(kind string) (ddl.Dialect, bool) {
	ddlMu.RLock()
	defer ddlMu.RUnlock()
	d, ok := dialects[kind]
	return d, ok
}

// EnsureTable creates the destination table for d when kind has a SQL
// dialect. The statement is idempotent.
func EnsureTable(ctx context.Context, kind string, repo Repository, table string, d *dataset.Dataset) error {
	dl, ok := DialectFor(kind)
	if !ok {
		return nil
	}
	stmt, err := ddl.BuildCreateTableSQL(dl, ddl.InferTableDef(dl, table, d))
	if err != nil {
		return fmt.Errorf("infer table definition: %w", err)
	}
	if err := repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("apply DDL: %w", err)
	}
	return nil
}
