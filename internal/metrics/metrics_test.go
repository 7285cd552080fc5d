package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type histCall struct {
	name   string
	value  float64
	labels Labels
}

type fakeBackend struct {
	mu       sync.Mutex
	counters []counterCall
	hists    []histCall
	flushes  int
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hists = append(f.hists, histCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil
}

func install(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}
	SetBackend(fb)
	t.Cleanup(Reset)
	return fb
}

func TestRecordStep(t *testing.T) {
	fb := install(t)

	RecordStep("job", "scanning", nil, 2*time.Second)
	RecordStep("job", "population", errors.New("boom"), 1500*time.Millisecond)

	if len(fb.counters) != 2 || len(fb.hists) != 2 {
		t.Fatalf("counters=%d hists=%d, want 2/2", len(fb.counters), len(fb.hists))
	}
	if c := fb.counters[0]; c.name != StepTotal || c.delta != 1 || c.labels["step"] != "scanning" || c.labels["status"] != "success" {
		t.Fatalf("counter[0]=%#v", c)
	}
	if c := fb.counters[1]; c.labels["status"] != "failure" {
		t.Fatalf("counter[1].status=%q, want failure", c.labels["status"])
	}
	if h := fb.hists[0]; h.name != StepDuration || h.value < 1.999 || h.value > 2.001 {
		t.Fatalf("hist[0]=%#v, want ~2s", h)
	}
	if h := fb.hists[1]; h.value < 1.499 || h.value > 1.501 {
		t.Fatalf("hist[1].value=%v, want ~1.5", h.value)
	}
}

func TestRecordCounters(t *testing.T) {
	fb := install(t)

	RecordRow("job", "scanned", 3)
	RecordRow("job", "scanned", 0)
	RecordFiles("job", "failed", 1)
	RecordFiles("job", "failed", -1)
	RecordBatches("job", true, 2)

	want := []counterCall{
		{RecordsTotal, 3, Labels{"job": "job", "kind": "scanned"}},
		{FilesTotal, 1, Labels{"job": "job", "outcome": "failed"}},
		{BatchesTotal, 2, Labels{"job": "job", "status": "failure"}},
	}
	if len(fb.counters) != len(want) {
		t.Fatalf("got %d counters, want %d: %#v", len(fb.counters), len(want), fb.counters)
	}
	for i, w := range want {
		g := fb.counters[i]
		if g.name != w.name || g.delta != w.delta {
			t.Fatalf("counter[%d]=%#v, want %#v", i, g, w)
		}
		for k, v := range w.labels {
			if g.labels[k] != v {
				t.Fatalf("counter[%d].labels[%s]=%q, want %q", i, k, g.labels[k], v)
			}
		}
	}
}

func TestSetBackendAndFlush(t *testing.T) {
	fb := install(t)

	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	SetBackend(nil)
	if current() != Backend(fb) {
		t.Fatal("SetBackend(nil) replaced the backend")
	}
	if fb.flushes != 1 {
		t.Fatalf("flushes=%d, want 1", fb.flushes)
	}

	Reset()
	if err := Flush(); err != nil {
		t.Fatalf("nop Flush: %v", err)
	}
	if fb.flushes != 1 {
		t.Fatal("Reset did not detach the backend")
	}
}
