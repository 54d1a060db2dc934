package ddl

import (
	"fmt"
	"strings"
)

// Dialect captures what differs between SQL backends when creating tables:
// identifier quoting, type names and the CREATE statement wrapper.
type Dialect struct {
	Name string

	// Quote quotes a single identifier segment.
	Quote func(id string) string

	// MapType returns the column type used for a logical kind.
	MapType func(k Kind) string

	// Create wraps the quoted table name and the rendered column list into
	// an idempotent statement.
	Create func(fqn, columns string) string
}

// QuoteFQN quotes each dot-separated part of fqn.
func (d Dialect) QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, d.Quote(p))
	}
	return strings.Join(out, ".")
}

func doubleQuote(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

func createIfNotExists(fqn, columns string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", fqn, columns)
}

// Postgres renders DDL for PostgreSQL.
var Postgres = Dialect{
	Name:  "postgres",
	Quote: doubleQuote,
	MapType: func(k Kind) string {
		switch k {
		case KindInt:
			return "BIGINT"
		case KindFloat:
			return "DOUBLE PRECISION"
		case KindBool:
			return "BOOLEAN"
		case KindDate:
			return "DATE"
		case KindTimestamp:
			return "TIMESTAMPTZ"
		default:
			return "TEXT"
		}
	},
	Create: createIfNotExists,
}

// SQLite renders DDL for SQLite. Times are stored as ISO-8601 text.
var SQLite = Dialect{
	Name:  "sqlite",
	Quote: doubleQuote,
	MapType: func(k Kind) string {
		switch k {
		case KindInt, KindBool:
			return "INTEGER"
		case KindFloat:
			return "REAL"
		default:
			return "TEXT"
		}
	},
	Create: createIfNotExists,
}

// MSSQL renders DDL for Microsoft SQL Server.
var MSSQL = Dialect{
	Name:  "mssql",
	Quote: func(id string) string { return "[" + strings.ReplaceAll(id, "]", "]]") + "]" },
	MapType: func(k Kind) string {
		switch k {
		case KindInt:
			return "BIGINT"
		case KindFloat:
			return "FLOAT"
		case KindBool:
			return "BIT"
		case KindDate:
			return "DATE"
		case KindTimestamp:
			return "DATETIME2"
		default:
			return "NVARCHAR(MAX)"
		}
	},
	Create: func(fqn, columns string) string {
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n  CREATE TABLE %s (\n  %s\n  );\nEND;",
			strings.ReplaceAll(fqn, "'", "''"), fqn, columns)
	},
}

// MySQL renders DDL for MySQL and MariaDB.
var MySQL = Dialect{
	Name:  "mysql",
	Quote: func(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" },
	MapType: func(k Kind) string {
		switch k {
		case KindInt:
			return "BIGINT"
		case KindFloat:
			return "DOUBLE"
		case KindBool:
			return "BOOLEAN"
		case KindDate:
			return "DATE"
		case KindTimestamp:
			return "DATETIME(6)"
		case KindGeometry:
			return "LONGTEXT"
		default:
			return "TEXT"
		}
	},
	Create: createIfNotExists,
}
