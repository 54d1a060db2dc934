// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// A pipeline run is a short-lived batch process, so instead of exposing a
// scrape endpoint the collected metrics are pushed to a Pushgateway when the
// run finishes (see metrics.Flush).
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"geoetl/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	ruleCounter  *prometheus.CounterVec   // geoetl_rule_total
	ruleDuration *prometheus.HistogramVec // geoetl_rule_duration_seconds
	rowCounter   *prometheus.CounterVec   // geoetl_rows_total
	batchCounter prometheus.Counter       // geoetl_batches_total
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (usually the pipeline name).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "geoetl"
	}

	reg := prometheus.NewRegistry()

	// The pipeline label is carried by the Pushgateway job grouping key.
	ruleCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.RuleTotal,
			Help: "Rule executions, partitioned by action and status.",
		},
		[]string{"action", "status"},
	)
	ruleDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metrics.RuleDuration,
			Help:    "Rule execution time in seconds, partitioned by action and status.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"action", "status"},
	)
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Rows loaded, produced and written, partitioned by kind.",
		},
		[]string{"kind"},
	)
	batchCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Batches flushed to sinks.",
		},
	)

	for _, c := range []struct {
		what string
		c    prometheus.Collector
	}{
		{"rule counter", ruleCounter},
		{"rule histogram", ruleDuration},
		{"row counter", rowCounter},
		{"batch counter", batchCounter},
	} {
		if err := reg.Register(c.c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", c.what, err)
		}
	}

	return &Backend{
		gatewayURL:   gatewayURL,
		jobName:      jobName,
		reg:          reg,
		ruleCounter:  ruleCounter,
		ruleDuration: ruleDuration,
		rowCounter:   rowCounter,
		batchCounter: batchCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.RuleTotal:
		if b.ruleCounter != nil {
			b.ruleCounter.WithLabelValues(labels["action"], labels["status"]).Add(delta)
		}
	case metrics.RowsTotal:
		if b.rowCounter != nil {
			b.rowCounter.WithLabelValues(labels["kind"]).Add(delta)
		}
	case metrics.BatchesTotal:
		if b.batchCounter != nil {
			b.batchCounter.Add(delta)
		}
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.RuleDuration || b.ruleDuration == nil {
		return
	}
	b.ruleDuration.WithLabelValues(labels["action"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
