package sqlite

import (
	"context"

	"geoetl/internal/ddl"
	"geoetl/internal/storage"
)

// newRepository is swapped out by tests.
var newRepository = NewRepository

func init() {
	storage.RegisterOpener("sqlite", func(ctx context.Context, cfg storage.Config) (*Repository, func(), error) {
		return newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table, Columns: cfg.Columns})
	})
	storage.RegisterDDL("sqlite", ddl.SQLite)
}
