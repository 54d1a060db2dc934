// Package records defines the row representation shared by parsers,
// transformers and storage backends.
package records

// Record is one row keyed by column name. Values are nil, string, int64,
// float64, bool, time.Time or orb.Geometry.
type Record map[string]any

// Clone returns a shallow copy of r. Geometry values are shared; actions that
// modify geometry must clone it themselves.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
