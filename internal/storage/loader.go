package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"geoetl/internal/ctxlog"
)

// CopyFn stores one batch of rows aligned to columns and returns how many
// rows the backend reports as written. It must not retain rows after it
// returns.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches drains in, handing rows to copyFn in batches of batchSize,
// and returns the rows written. It stops at the first copy error or when
// ctx is done; the total then covers the batches flushed so far.
func LoadBatches(ctx context.Context, columns []string, in <-chan []any, batchSize int, copyFn CopyFn) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("storage: batch size must be positive, got %d", batchSize)
	}
	if copyFn == nil {
		return 0, fmt.Errorf("storage: nil copy function")
	}
	b := &batcher{
		columns: columns,
		copyFn:  copyFn,
		buf:     make([][]any, 0, batchSize),
		start:   time.Now(),
		log:     ctxlog.FromContext(ctx),
	}

	for {
		select {
		case <-ctx.Done():
			return b.total, ctx.Err()
		case row, ok := <-in:
			if !ok {
				err := b.flush(ctx)
				b.log.Debug("sink: rows drained", "rows", b.total, "batches", b.batches,
					"elapsed", time.Since(b.start).Truncate(time.Millisecond))
				return b.total, err
			}
			b.buf = append(b.buf, row)
			if len(b.buf) >= batchSize {
				if err := b.flush(ctx); err != nil {
					return b.total, err
				}
			}
		}
	}
}

// batcher accumulates rows between flushes.
type batcher struct {
	columns []string
	copyFn  CopyFn
	buf     [][]any

	total   int64
	batches int
	start   time.Time
	log     *slog.Logger
}

func (b *batcher) flush(ctx context.Context) error {
	if len(b.buf) == 0 {
		return nil
	}
	size := len(b.buf)
	n, err := b.copyFn(ctx, b.columns, b.buf)
	b.total += n
	b.buf = b.buf[:0]
	if err != nil {
		return fmt.Errorf("storage: batch %d (%d rows): %w", b.batches+1, size, err)
	}
	b.batches++

	rate := 0.0
	if el := time.Since(b.start).Seconds(); el > 0 {
		rate = float64(b.total) / el
	}
	b.log.Debug("sink: batch flushed", "batch", b.batches, "rows", n, "total", b.total, "rows_per_sec", int64(rate))
	return nil
}
