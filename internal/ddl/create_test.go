package ddl

import (
	"strconv"
	"strings"
	"testing"
)

// TestBuildCreateTableSQL verifies the rendered statement per dialect and the
// errors for invalid definitions.
func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		dialect     Dialect
		def         TableDef
		wantSQL     string
		errContains string
	}{
		{
			name:        "empty FQN returns error",
			dialect:     Postgres,
			def:         TableDef{Columns: []ColumnDef{{Name: "id", SQLType: "INT"}}},
			errContains: "table FQN must not be empty",
		},
		{
			name:        "no columns returns error",
			dialect:     SQLite,
			def:         TableDef{FQN: "t"},
			errContains: "at least one column is required",
		},
		{
			name:        "column with empty name returns error",
			dialect:     MSSQL,
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{SQLType: "INT"}}},
			errContains: "column with empty name",
		},
		{
			name:        "column with empty type returns error",
			dialect:     MySQL,
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Name: "id"}}},
			errContains: "missing SQLType",
		},
		{
			name:    "postgres schema-qualified",
			dialect: Postgres,
			def: TableDef{FQN: " public.villages ", Columns: []ColumnDef{
				{Name: "fid", SQLType: "BIGINT"},
				{Name: "name", SQLType: "TEXT", Nullable: true},
			}},
			wantSQL: "CREATE TABLE IF NOT EXISTS \"public\".\"villages\" (\n  \"fid\" BIGINT NOT NULL,\n  \"name\" TEXT\n);",
		},
		{
			name:    "sqlite trims names and types",
			dialect: SQLite,
			def: TableDef{FQN: "t", Columns: []ColumnDef{
				{Name: " index ", SQLType: " INTEGER "},
				{Name: "flag", SQLType: "INTEGER", Nullable: true},
			}},
			wantSQL: "CREATE TABLE IF NOT EXISTS \"t\" (\n  \"index\" INTEGER NOT NULL,\n  \"flag\" INTEGER\n);",
		},
		{
			name:    "mssql brackets and OBJECT_ID guard",
			dialect: MSSQL,
			def:     TableDef{FQN: "dbo.t", Columns: []ColumnDef{{Name: "a]b", SQLType: "BIT", Nullable: true}}},
			wantSQL: "IF OBJECT_ID(N'[dbo].[t]', N'U') IS NULL\nBEGIN\n  CREATE TABLE [dbo].[t] (\n  [a]]b] BIT\n  );\nEND;",
		},
		{
			name:    "mysql backticks",
			dialect: MySQL,
			def:     TableDef{FQN: "t", Columns: []ColumnDef{{Name: "村里", SQLType: "TEXT", Nullable: true}}},
			wantSQL: "CREATE TABLE IF NOT EXISTS `t` (\n  `村里` TEXT\n);",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gotSQL, err := BuildCreateTableSQL(tt.dialect, tt.def)
			if tt.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("BuildCreateTableSQL() error = %v, want substring %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildCreateTableSQL() unexpected error = %v", err)
			}
			if gotSQL != tt.wantSQL {
				t.Fatalf("BuildCreateTableSQL() =\n%s\nwant:\n%s", gotSQL, tt.wantSQL)
			}
		})
	}
}

var benchmarkSink string

// BenchmarkBuildCreateTableSQL_WideSchema renders a 64-column table.
func BenchmarkBuildCreateTableSQL_WideSchema(b *testing.B) {
	cols := make([]ColumnDef, 0, 64)
	for i := 0; i < 64; i++ {
		cols = append(cols, ColumnDef{Name: "col_" + strconv.Itoa(i), SQLType: "TEXT", Nullable: true})
	}
	def := TableDef{FQN: "large_table", Columns: cols}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sql, err := BuildCreateTableSQL(Postgres, def)
		if err != nil {
			b.Fatalf("BuildCreateTableSQL() error = %v", err)
		}
		benchmarkSink = sql
	}
}
