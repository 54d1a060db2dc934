package file

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CSV writes batches to a UTF-8 CSV file. The header row is taken from the
// columns of the first CopyFrom call.
type CSV struct {
	f       *os.File
	bw      *bufio.Writer
	w       *csv.Writer
	columns []string
}

// NewCSV creates (or truncates) <dir>/<table>.csv.
func NewCSV(dir, table string) (*CSV, error) {
	f, err := create(dir, table, ".csv")
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	return &CSV{f: f, bw: bw, w: csv.NewWriter(bw)}, nil
}

// Name returns the path of the output file.
func (c *CSV) Name() string { return c.f.Name() }

// CopyFrom appends rows. Every call must pass the same columns.
func (c *CSV) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if c.columns == nil {
		c.columns = append([]string(nil), columns...)
		if err := c.w.Write(c.columns); err != nil {
			return 0, fmt.Errorf("csv sink: header: %w", err)
		}
	} else if len(columns) != len(c.columns) {
		return 0, fmt.Errorf("csv sink: got %d columns, header has %d", len(columns), len(c.columns))
	}

	rec := make([]string, len(columns))
	var n int64
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if len(row) != len(columns) {
			return n, fmt.Errorf("csv sink: row has %d values, want %d", len(row), len(columns))
		}
		for i, v := range row {
			rec[i] = formatCell(v)
		}
		if err := c.w.Write(rec); err != nil {
			return n, fmt.Errorf("csv sink: write: %w", err)
		}
		n++
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return n, fmt.Errorf("csv sink: flush: %w", err)
	}
	return n, nil
}

// Exec is a no-op; files have no schema to create.
func (c *CSV) Exec(ctx context.Context, sql string) error { return nil }

// Close flushes buffered output and closes the file.
func (c *CSV) Close() {
	c.w.Flush()
	c.bw.Flush()
	c.f.Close()
}

// formatCell renders a driver value produced by storage.SQLValue.
func formatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		h, m, s := t.Clock()
		if h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0 {
			return t.Format(time.DateOnly)
		}
		return t.Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}
