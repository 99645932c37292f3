package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/pipefire/internal/console"
	"github.com/torosent/pipefire/internal/runner"
)

// SnapshotSource exposes live run counters.
type SnapshotSource interface {
	Snapshot() runner.Snapshot
}

// ProgressReporter displays real-time progress updates on a single line.
type ProgressReporter struct {
	source   SnapshotSource
	ticker   *time.Ticker
	done     chan struct{}
	finished chan struct{}
	writer   io.Writer
	active   int32
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(source SnapshotSource, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		source:   source,
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		writer:   writer,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates and terminates the line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
		fmt.Fprintln(p.writer)
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			fmt.Fprint(p.writer, "\r"+ProgressLine(p.source.Snapshot()))
		case <-p.done:
			return
		}
	}
}

// ProgressLine renders one snapshot.
func ProgressLine(s runner.Snapshot) string {
	return fmt.Sprintf("Responses: %s / %s | Sending: %d | Finished: %d/%d | RPS: %.1f | Elapsed: %s",
		console.Count(s.Responses),
		console.CountOrInfinity(s.TotalRequests),
		s.SendingStarted,
		s.Finished,
		s.Concurrency,
		s.Throughput,
		s.Elapsed.Truncate(time.Millisecond),
	)
}
