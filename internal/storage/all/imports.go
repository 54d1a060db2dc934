// Package all wires all built-in storage backends into the storage factory.
//
// Importing it for side effects makes these kinds available:
//
//   - "postgres" (geoetl/internal/storage/postgres)
//   - "mssql"    (geoetl/internal/storage/mssql)
//   - "mysql"    (geoetl/internal/storage/mysql)
//   - "sqlite"   (geoetl/internal/storage/sqlite)
//   - "csv", "geojson" (geoetl/internal/storage/file)
//
// Binaries that need fewer backends can import the subpackages directly.
package all

import (
	_ "geoetl/internal/storage/file"
	_ "geoetl/internal/storage/mssql"
	_ "geoetl/internal/storage/mysql"
	_ "geoetl/internal/storage/postgres"
	_ "geoetl/internal/storage/sqlite"
)
