package ddl

// ColumnDef is one column of a table definition. Name is unquoted; quoting
// happens when the statement is rendered.
type ColumnDef struct {
	Name     string
	SQLType  string
	Nullable bool
}

// TableDef holds the table name (FQN) and an ordered list of columns. The FQN
// may be dotted ("schema.table"); each part is quoted separately.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Kind is the logical type of a dataset column, as inferred from its values.
type Kind string

const (
	KindText      Kind = "text"
	KindInt       Kind = "int"
	KindFloat     Kind = "float"
	KindBool      Kind = "bool"
	KindTimestamp Kind = "timestamp"
	KindDate      Kind = "date"
	// KindGeometry columns are stored as WKT text.
	KindGeometry Kind = "geometry"
)
