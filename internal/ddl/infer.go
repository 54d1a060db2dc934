package ddl

import (
	"time"

	"github.com/paulmach/orb"

	"geoetl/internal/dataset"
)

// IndexColumn is the column name used for the row labels when the dataset's
// index is unnamed.
const IndexColumn = "index"

// InferKinds returns the logical kind of every column of d, in column order.
// A column whose non-null values disagree falls back to KindText, except
// that mixing ints and floats gives KindFloat.
func InferKinds(d *dataset.Dataset) []Kind {
	kinds := make([]Kind, len(d.Columns))
	for i, col := range d.Columns {
		if col == d.GeometryColumn {
			kinds[i] = KindGeometry
			continue
		}
		var k Kind
		for _, r := range d.Rows {
			v := r[col]
			if v == nil {
				continue
			}
			k = merge(k, kindOf(v))
			if k == KindText {
				break
			}
		}
		if k == "" {
			k = KindText
		}
		kinds[i] = k
	}
	return kinds
}

func kindOf(v any) Kind {
	switch t := v.(type) {
	case int, int32, int64:
		return KindInt
	case float32, float64:
		return KindFloat
	case bool:
		return KindBool
	case time.Time:
		h, m, s := t.Clock()
		if h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0 {
			return KindDate
		}
		return KindTimestamp
	case orb.Geometry:
		return KindGeometry
	}
	return KindText
}

func merge(a, b Kind) Kind {
	switch {
	case a == "" || a == b:
		return b
	case (a == KindInt && b == KindFloat) || (a == KindFloat && b == KindInt):
		return KindFloat
	case (a == KindDate && b == KindTimestamp) || (a == KindTimestamp && b == KindDate):
		return KindTimestamp
	}
	return KindText
}

// IndexName returns the column the row labels are written to: the dataset's
// index name, or IndexColumn when unnamed. It returns "" when that name is
// already a data column, in which case labels are not written.
func IndexName(d *dataset.Dataset) string {
	name := d.IndexName
	if name == "" {
		name = IndexColumn
	}
	if d.HasColumn(name) {
		return ""
	}
	return name
}

// InferTableDef builds the table for d in dialect dl. The index becomes a
// leading NOT NULL column (labels may repeat, so it is not a key); every data
// column is nullable.
func InferTableDef(dl Dialect, table string, d *dataset.Dataset) TableDef {
	defs := make([]ColumnDef, 0, len(d.Columns)+1)
	if index := IndexName(d); index != "" {
		defs = append(defs, ColumnDef{Name: index, SQLType: dl.MapType(KindInt)})
	}
	for i, k := range InferKinds(d) {
		defs = append(defs, ColumnDef{Name: d.Columns[i], SQLType: dl.MapType(k), Nullable: true})
	}
	return TableDef{FQN: table, Columns: defs}
}
