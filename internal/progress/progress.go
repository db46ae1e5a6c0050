// Package progress publishes the monotonically increasing counters spec.md
// §6 requires: bytes_indexed, rows_indexed, bytes_total. Generalized from
// the teacher's private Scanner.rowsScanned/scanBytes atomic counters and
// Indexer.printStatus ticker loop into a public, subscribable sink so a
// CLI or host app can poll or register a callback; the core itself never
// prints.
package progress

import (
	"os"
	"strconv"
	"sync/atomic"
	"time"
)

// Sink tracks progress counters for one read or write call.
type Sink struct {
	bytesIndexed atomic.Int64
	rowsIndexed  atomic.Int64
	bytesTotal   atomic.Int64

	onUpdate func(Snapshot)
	stop     chan struct{}
}

// Snapshot is an immutable read of the counters at one instant.
type Snapshot struct {
	BytesIndexed int64
	RowsIndexed  int64
	BytesTotal   int64
}

// NewSink creates a sink with a known total size (0 if unknown).
func NewSink(bytesTotal int64) *Sink {
	s := &Sink{}
	s.bytesTotal.Store(bytesTotal)
	return s
}

// AddBytes adds n to the running byte count.
func (s *Sink) AddBytes(n int64) { s.bytesIndexed.Add(n) }

// AddRows adds n to the running row count.
func (s *Sink) AddRows(n int64) { s.rowsIndexed.Add(n) }

// Snapshot returns the current counters.
func (s *Sink) Snapshot() Snapshot {
	return Snapshot{
		BytesIndexed: s.bytesIndexed.Load(),
		RowsIndexed:  s.rowsIndexed.Load(),
		BytesTotal:   s.bytesTotal.Load(),
	}
}

// ShowAfter returns READER_PROGRESS_SHOW_AFTER as a duration, defaulting
// to 5 seconds, matching spec.md §6.
func ShowAfter() time.Duration {
	return envSeconds("READER_PROGRESS_SHOW_AFTER", 5*time.Second)
}

// UpdateInterval returns READER_PROGRESS_UPDATE_INTERVAL as a duration,
// defaulting to 1 second (the teacher's own ticker period in
// Indexer.startReporting).
func UpdateInterval() time.Duration {
	return envSeconds("READER_PROGRESS_UPDATE_INTERVAL", 1*time.Second)
}

func envSeconds(name string, fallback time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n >= 0 {
			return time.Duration(n * float64(time.Second))
		}
	}
	return fallback
}

// Subscribe starts a ticker that calls fn with a Snapshot every
// UpdateInterval, after an initial ShowAfter delay. Call the returned
// stop function to end the subscription; calls after the first are no-ops.
func (s *Sink) Subscribe(fn func(Snapshot)) (stop func()) {
	s.onUpdate = fn
	s.stop = make(chan struct{})

	go func() {
		select {
		case <-time.After(ShowAfter()):
		case <-s.stop:
			return
		}
		ticker := time.NewTicker(UpdateInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.onUpdate(s.Snapshot())
			case <-s.stop:
				return
			}
		}
	}()

	var stopped bool
	return func() {
		if stopped {
			return
		}
		stopped = true
		close(s.stop)
	}
}
