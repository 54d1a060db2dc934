package mssql

import (
	"context"

	"geoetl/internal/ddl"
	"geoetl/internal/storage"
)

// newRepository is replaced in tests to avoid a live server.
var newRepository = NewRepository

func init() {
	storage.RegisterOpener("mssql", func(ctx context.Context, cfg storage.Config) (*Repository, func(), error) {
		return newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table, Columns: cfg.Columns})
	})
	storage.RegisterDDL("mssql", ddl.MSSQL)
}
