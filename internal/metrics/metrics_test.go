package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeBackend is a simple in-memory Backend implementation for tests.
type fakeBackend struct {
	mu sync.Mutex

	counters   []sample
	histograms []sample
	flushCount int
}

type sample struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, sample{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histograms = append(f.histograms, sample{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCount++
	return nil
}

func install(t *testing.T) *fakeBackend {
	t.Helper()
	orig := current()
	t.Cleanup(func() {
		mu.Lock()
		backend = orig
		mu.Unlock()
	})
	fb := &fakeBackend{}
	SetBackend(fb)
	return fb
}

func TestRecordRule_SuccessAndFailure(t *testing.T) {
	fb := install(t)

	RecordRule("villages", "convert_crs", nil, 2*time.Second)
	RecordRule("villages", "dissolve_villages", errors.New("boom"), 1500*time.Millisecond)

	if len(fb.counters) != 2 || len(fb.histograms) != 2 {
		t.Fatalf("calls: %d counters, %d histograms", len(fb.counters), len(fb.histograms))
	}
	c0 := fb.counters[0]
	if c0.name != RuleTotal || c0.value != 1 {
		t.Fatalf("counter[0] = %#v", c0)
	}
	if c0.labels["pipeline"] != "villages" || c0.labels["action"] != "convert_crs" || c0.labels["status"] != "success" {
		t.Fatalf("counter[0] labels = %v", c0.labels)
	}
	if h := fb.histograms[0]; h.name != RuleDuration || h.value < 1.999 || h.value > 2.001 {
		t.Fatalf("hist[0] = %#v", h)
	}
	if fb.counters[1].labels["status"] != "failure" {
		t.Fatalf("counter[1] labels = %v", fb.counters[1].labels)
	}
	if h := fb.histograms[1]; h.value < 1.499 || h.value > 1.501 {
		t.Fatalf("hist[1] = %#v", h)
	}
}

func TestRecordRowsAndBatches(t *testing.T) {
	fb := install(t)

	RecordRows("p", "loaded", 3)
	RecordRows("p", "loaded", 0) // ignored
	RecordRows("p", "written", 5)
	RecordBatches("p", 2)
	RecordBatches("p", -1) // ignored

	if len(fb.counters) != 3 {
		t.Fatalf("expected 3 counter calls, got %d", len(fb.counters))
	}
	if c := fb.counters[0]; c.name != RowsTotal || c.value != 3 || c.labels["kind"] != "loaded" {
		t.Fatalf("counter[0] = %#v", c)
	}
	if c := fb.counters[1]; c.value != 5 || c.labels["kind"] != "written" {
		t.Fatalf("counter[1] = %#v", c)
	}
	if c := fb.counters[2]; c.name != BatchesTotal || c.value != 2 || c.labels["pipeline"] != "p" {
		t.Fatalf("counter[2] = %#v", c)
	}
}

func TestSetBackendAndFlush(t *testing.T) {
	fb := install(t)

	if err := Flush(); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if fb.flushCount != 1 {
		t.Fatalf("expected flushCount=1, got %d", fb.flushCount)
	}

	// SetBackend(nil) should not nil out the backend.
	SetBackend(nil)
	if current() != Backend(fb) {
		t.Fatal("SetBackend(nil) should not change backend")
	}
}
