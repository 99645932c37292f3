package output_test

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/torosent/pipefire/internal/output"
	"github.com/torosent/pipefire/internal/runner"
)

type staticSource struct {
	snap runner.Snapshot
}

func (s staticSource) Snapshot() runner.Snapshot { return s.snap }

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProgressLine(t *testing.T) {
	line := output.ProgressLine(runner.Snapshot{
		Concurrency:    4,
		TotalRequests:  8000,
		SendingStarted: 4,
		Finished:       2,
		Responses:      4500,
		Elapsed:        1500 * time.Millisecond,
		Throughput:     3000,
	})
	want := "Responses: 4,500 / 8,000 | Sending: 4 | Finished: 2/4 | RPS: 3000.0 | Elapsed: 1.5s"
	if line != want {
		t.Fatalf("line = %q\nwant   %q", line, want)
	}
}

func TestProgressLineUnbounded(t *testing.T) {
	line := output.ProgressLine(runner.Snapshot{Concurrency: 1, TotalRequests: runner.Unbounded})
	if !strings.Contains(line, "/ ∞") {
		t.Fatalf("line = %q", line)
	}
}

func TestProgressReporterBasic(t *testing.T) {
	var buf syncBuffer
	src := staticSource{snap: runner.Snapshot{Concurrency: 2, TotalRequests: 2000, Responses: 10}}

	reporter := output.NewProgressReporter(src, 10*time.Millisecond, &buf)
	reporter.Start()
	time.Sleep(50 * time.Millisecond)
	reporter.Stop()

	out := buf.String()
	if !strings.Contains(out, "Responses: 10 / 2,000") {
		t.Fatalf("expected progress output, got %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Fatalf("Stop should terminate the line, got %q", out)
	}
}

func TestProgressReporterStartStopIdempotent(t *testing.T) {
	reporter := output.NewProgressReporter(staticSource{}, time.Hour, nil)
	reporter.Stop()
	reporter.Start()
	reporter.Start()
	reporter.Stop()
	reporter.Stop()
}
