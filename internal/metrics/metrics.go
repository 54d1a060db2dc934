// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from pipeline runs.
//
// It exposes a narrow interface (Backend) focused on counters and timing
// data, and a global, pluggable backend that defaults to a no-op so callers
// may record metrics whether or not a real backend is configured. Concrete
// metric systems live in subpackages (prompush, datadog).
package metrics

import (
	"sync"
	"time"
)

// Metric names emitted by this package.
const (
	RuleTotal    = "geoetl_rule_total"
	RuleDuration = "geoetl_rule_duration_seconds"
	RowsTotal    = "geoetl_rows_total"
	BatchesTotal = "geoetl_batches_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordRule counts one rule execution and its latency, labelled with the
// pipeline, the action and success or failure.
func RecordRule(pipeline, action string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"pipeline": pipeline,
		"action":   action,
		"status":   status,
	}
	b := current()
	b.IncCounter(RuleTotal, 1, lbls)
	b.ObserveHistogram(RuleDuration, d.Seconds(), lbls)
}

// RecordRows adds delta rows of the given kind. Kinds used by the CLI are
// "loaded" (seed rows read), "output" (rows in final datasets) and
// "written" (rows stored by a sink).
func RecordRows(pipeline, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{
		"pipeline": pipeline,
		"kind":     kind,
	})
}

// RecordBatches increments the sink batch counter for the given pipeline.
func RecordBatches(pipeline string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(BatchesTotal, float64(delta), Labels{
		"pipeline": pipeline,
	})
}
