// Package dataset implements the in-memory table that rules read and write.
//
// A Dataset is an ordered list of columns, one record per row and an integer
// row label per row (the index). Geospatial datasets additionally name the
// column holding orb.Geometry values and the coordinate reference system
// those geometries are expressed in.
//
// Actions treat their input datasets as read-only: anything that changes data
// is written to a new Dataset (see Derive, Take and Clone), and a record is
// cloned before any of its values is modified. This lets the engine bind the
// same Dataset under several aliases without copies.
package dataset

import (
	"errors"
	"fmt"
	"sort"

	"geoetl/pkg/records"
)

// ErrColumnNotFound is wrapped by every error reporting a missing column.
var ErrColumnNotFound = errors.New("column not found")

// Dataset is a tabular, optionally geospatial, table.
type Dataset struct {
	Columns        []string
	Rows           []records.Record
	Index          []int
	IndexName      string
	CRS            string
	GeometryColumn string
}

// New returns a dataset over rows with a fresh 0..n-1 index.
func New(columns []string, rows []records.Record) *Dataset {
	d := &Dataset{
		Columns: append([]string(nil), columns...),
		Rows:    rows,
	}
	d.Index = sequence(len(rows))
	return d
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Rows) }

// IsGeo reports whether d carries a geometry column.
func (d *Dataset) IsGeo() bool { return d.GeometryColumn != "" }

// HasColumn reports whether name is one of d's columns.
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Require returns an error wrapping ErrColumnNotFound for the first name that
// is not a column of d.
func (d *Dataset) Require(names ...string) error {
	for _, n := range names {
		if !d.HasColumn(n) {
			return fmt.Errorf("%w: %q (have %v)", ErrColumnNotFound, n, d.Columns)
		}
	}
	return nil
}

// Derive returns an empty dataset with d's columns and metadata.
func (d *Dataset) Derive() *Dataset {
	return &Dataset{
		Columns:        append([]string(nil), d.Columns...),
		IndexName:      d.IndexName,
		CRS:            d.CRS,
		GeometryColumn: d.GeometryColumn,
	}
}

// Clone returns a copy of d whose records may be modified freely. Geometry
// values are shared.
func (d *Dataset) Clone() *Dataset {
	out := d.Derive()
	out.Rows = make([]records.Record, len(d.Rows))
	for i, r := range d.Rows {
		out.Rows[i] = r.Clone()
	}
	out.Index = append([]int(nil), d.Index...)
	return out
}

// Take returns the rows at the given positions, keeping their labels. The
// records are shared with d.
func (d *Dataset) Take(positions []int) *Dataset {
	out := d.Derive()
	out.Rows = make([]records.Record, 0, len(positions))
	out.Index = make([]int, 0, len(positions))
	for _, p := range positions {
		out.Rows = append(out.Rows, d.Rows[p])
		out.Index = append(out.Index, d.label(p))
	}
	return out
}

// Append adds a row with the given label.
func (d *Dataset) Append(label int, r records.Record) {
	d.Rows = append(d.Rows, r)
	d.Index = append(d.Index, label)
}

// AddColumn appends name to the column list when it is not present yet.
func (d *Dataset) AddColumn(name string) {
	if !d.HasColumn(name) {
		d.Columns = append(d.Columns, name)
	}
}

// ResetIndex renumbers rows 0..n-1 and names the index.
func (d *Dataset) ResetIndex(name string) {
	d.Index = sequence(len(d.Rows))
	d.IndexName = name
}

// Label returns the index label of row position i.
func (d *Dataset) Label(i int) int { return d.label(i) }

func (d *Dataset) label(i int) int {
	if i < len(d.Index) {
		return d.Index[i]
	}
	return i
}

// SortStableBy reorders rows (and their labels) by column col, keeping the
// relative order of equal values. Nulls sort last.
func (d *Dataset) SortStableBy(col string) error {
	if err := d.Require(col); err != nil {
		return err
	}
	perm := sequence(len(d.Rows))
	sort.SliceStable(perm, func(a, b int) bool {
		return Compare(d.Rows[perm[a]][col], d.Rows[perm[b]][col]) < 0
	})
	rows := make([]records.Record, len(perm))
	index := make([]int, len(perm))
	for i, p := range perm {
		rows[i] = d.Rows[p]
		index[i] = d.label(p)
	}
	d.Rows, d.Index = rows, index
	return nil
}

// Validate checks the structural invariants: unique column names and one
// label per row.
func (d *Dataset) Validate() error {
	seen := make(map[string]struct{}, len(d.Columns))
	for _, c := range d.Columns {
		if _, dup := seen[c]; dup {
			return fmt.Errorf("dataset: duplicate column %q", c)
		}
		seen[c] = struct{}{}
	}
	if len(d.Index) != len(d.Rows) {
		return fmt.Errorf("dataset: %d index labels for %d rows", len(d.Index), len(d.Rows))
	}
	if d.GeometryColumn != "" && !d.HasColumn(d.GeometryColumn) {
		return fmt.Errorf("dataset: geometry %w: %q", ErrColumnNotFound, d.GeometryColumn)
	}
	return nil
}

func sequence(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
