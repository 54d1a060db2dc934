package datadog

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"geoetl/internal/metrics"
)

type call struct {
	kind  string
	name  string
	value float64
	tags  []string
}

type fakeClient struct {
	calls  []call
	closed bool
}

func (f *fakeClient) Count(name string, value int64, tags []string, _ float64) error {
	f.calls = append(f.calls, call{"count", name, float64(value), tags})
	return nil
}

func (f *fakeClient) Histogram(name string, value float64, tags []string, _ float64) error {
	f.calls = append(f.calls, call{"histogram", name, value, tags})
	return nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func TestBackend_ForwardsWithTags(t *testing.T) {
	fc := &fakeClient{}
	b := NewWithClient(fc)

	lbls := metrics.Labels{"status": "success", "action": "convert_crs", "pipeline": "p"}
	b.IncCounter(metrics.RuleTotal, 1, lbls)
	b.ObserveHistogram(metrics.RuleDuration, 0.25, lbls)
	b.IncCounter(metrics.BatchesTotal, 2.9, nil)

	want := []call{
		{"count", "rule.total", 1, []string{"action:convert_crs", "pipeline:p", "status:success"}},
		{"histogram", "rule.duration.seconds", 0.25, []string{"action:convert_crs", "pipeline:p", "status:success"}},
		{"count", "batches.total", 2, nil},
	}
	if diff := cmp.Diff(want, fc.calls, cmp.AllowUnexported(call{})); diff != "" {
		t.Fatalf("calls (-want +got):\n%s", diff)
	}
	if err := b.Flush(); err != nil || !fc.closed {
		t.Fatalf("Flush: err=%v closed=%v", err, fc.closed)
	}
}

func TestNewBackend_RequiresAddr(t *testing.T) {
	if _, err := NewBackend(Config{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNilClient(t *testing.T) {
	b := &Backend{}
	b.IncCounter(metrics.RuleTotal, 1, nil)
	b.ObserveHistogram(metrics.RuleDuration, 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}
}
