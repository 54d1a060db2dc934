package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"golang.org/x/sync/errgroup"

	"geoetl/internal/dataset"
	"geoetl/internal/ddl"
	"geoetl/internal/metrics"
)

// DefaultBatchSize is used when WriteOptions.BatchSize is not positive.
const DefaultBatchSize = 1000

// DatasetWriter is implemented by sinks that store a whole dataset in their
// own format (GeoJSON keeps geometries as objects rather than WKT). Write
// prefers it over CopyFrom.
type DatasetWriter interface {
	WriteDataset(ctx context.Context, d *dataset.Dataset) (int64, error)
}

// WriteOptions tunes Write.
type WriteOptions struct {
	// Job labels the row and batch metrics.
	Job       string
	BatchSize int
}

// Columns returns the destination columns for d: the index column (see
// ddl.IndexName) followed by the data columns.
func Columns(d *dataset.Dataset) []string {
	cols := make([]string, 0, len(d.Columns)+1)
	if index := ddl.IndexName(d); index != "" {
		cols = append(cols, index)
	}
	return append(cols, d.Columns...)
}

// Write stores every row of d through repo and returns the number of rows
// written. Rows are produced on one goroutine and flushed in batches on
// another.
func Write(ctx context.Context, repo Repository, d *dataset.Dataset, opts WriteOptions) (int64, error) {
	if w, ok := repo.(DatasetWriter); ok {
		n, err := w.WriteDataset(ctx, d)
		metrics.RecordRows(opts.Job, "written", n)
		return n, err
	}

	size := opts.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	cols := Columns(d)
	withIndex := len(cols) > len(d.Columns)

	g, gctx := errgroup.WithContext(ctx)
	rows := make(chan []any, size)
	g.Go(func() error {
		defer close(rows)
		for i, r := range d.Rows {
			row := make([]any, 0, len(cols))
			if withIndex {
				row = append(row, int64(d.Label(i)))
			}
			for _, c := range d.Columns {
				v, err := SQLValue(r[c])
				if err != nil {
					return fmt.Errorf("row %d column %q: %w", d.Label(i), c, err)
				}
				row = append(row, v)
			}
			select {
			case rows <- row:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	var total int64
	g.Go(func() error {
		copyFn := func(ctx context.Context, columns []string, batch [][]any) (int64, error) {
			n, err := repo.CopyFrom(ctx, columns, batch)
			if err == nil {
				metrics.RecordBatches(opts.Job, 1)
			}
			return n, err
		}
		n, err := LoadBatches(gctx, cols, rows, size, copyFn)
		total = n
		return err
	})

	err := g.Wait()
	metrics.RecordRows(opts.Job, "written", total)
	return total, err
}

// SQLValue converts a cell to a driver value. Geometries become WKT text;
// plain ints widen to int64.
func SQLValue(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case orb.Geometry:
		return wkt.MarshalString(t), nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case float32:
		return float64(t), nil
	case string, int64, float64, bool, time.Time:
		return t, nil
	}
	return nil, fmt.Errorf("unsupported value %T", v)
}
