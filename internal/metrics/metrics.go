// Package metrics records operational metrics for ingestion runs behind a
// pluggable Backend.
//
// The default backend discards everything, so instrumentation is always safe
// to call. Concrete systems live in subpackages (see metrics/datadog).
package metrics

import (
	"sync"
	"time"
)

// Metric names emitted by the helpers below.
const (
	StepTotal    = "jsonetl_step_total"
	StepDuration = "jsonetl_step_duration_seconds"
	RecordsTotal = "jsonetl_records_total"
	BatchesTotal = "jsonetl_batches_total"
	FilesTotal   = "jsonetl_files_total"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// Labels are key/value pairs attached to a metric.
type Labels map[string]string

// Backend receives counters and histogram observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes buffered points, if the backend buffers.
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

// SetBackend installs b. A nil b is ignored.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

// Reset restores the no-op backend.
func Reset() {
	mu.Lock()
	backend = nopBackend{}
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the installed backend.
func Flush() error {
	return current().Flush()
}

// RecordStep counts one pipeline phase and observes its duration, labeled
// with its outcome.
func RecordStep(job, step string, err error, d time.Duration) {
	status := statusSuccess
	if err != nil {
		status = statusFailure
	}
	lbls := Labels{"job": job, "step": step, "status": status}

	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow adds delta records of the given kind ("scanned", "inserted",
// "failed", ...). Non-positive deltas are ignored.
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordFiles adds delta files with the given outcome ("processed", "failed").
func RecordFiles(job, outcome string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(FilesTotal, float64(delta), Labels{"job": job, "outcome": outcome})
}

// RecordBatches adds delta load batches with the given status.
func RecordBatches(job string, failed bool, delta int64) {
	if delta <= 0 {
		return
	}
	status := statusSuccess
	if failed {
		status = statusFailure
	}
	current().IncCounter(BatchesTotal, float64(delta), Labels{"job": job, "status": status})
}
