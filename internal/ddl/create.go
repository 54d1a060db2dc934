// Package ddl infers table definitions from datasets and renders them as
// CREATE TABLE statements for the supported SQL dialects.
//
// Statements are idempotent (IF NOT EXISTS or the dialect's equivalent) so
// a sink can always run them before writing.
package ddl

import (
	"fmt"
	"strings"
)

// BuildCreateTableSQL renders the CREATE statement for t in dialect d, one
// column per line as `<name> <type> [NOT NULL]`.
func BuildCreateTableSQL(d Dialect, t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	switch {
	case fqn == "":
		return "", fmt.Errorf("%s ddl: table FQN must not be empty", d.Name)
	case len(t.Columns) == 0:
		return "", fmt.Errorf("%s ddl: at least one column is required", d.Name)
	}

	lines := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		name, typ := strings.TrimSpace(c.Name), strings.TrimSpace(c.SQLType)
		if name == "" {
			return "", fmt.Errorf("%s ddl: column with empty name in table %s", d.Name, fqn)
		}
		if typ == "" {
			return "", fmt.Errorf("%s ddl: column %s missing SQLType", d.Name, name)
		}
		lines[i] = d.Quote(name) + " " + typ
		if !c.Nullable {
			lines[i] += " NOT NULL"
		}
	}
	return d.Create(d.QuoteFQN(fqn), strings.Join(lines, ",\n  ")), nil
}
