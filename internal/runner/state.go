package runner

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	maxSnapshotInterval = 100000
	milestoneDivisor    = 10
)

// epoch anchors the run clock to the monotonic reading taken at start-up.
var epoch = time.Now()

func monotonicNow() int64 { return int64(time.Since(epoch)) }

// RunState holds the counters shared by every worker of one run. It is
// created fresh for each run, so a restart never observes stale values.
type RunState struct {
	id            string
	concurrency   int64
	perConnection int64

	sendingStarted atomic.Int64
	finished       atomic.Int64
	responses      atomic.Int64

	clockStart   atomic.Int64
	clockElapsed atomic.Int64
	clockRunning atomic.Bool

	once sync.Once
	done chan struct{}
	err  error
}

// NewRunState returns zeroed counters for concurrency connections that each
// must receive perConnection responses (negative means unbounded).
func NewRunState(concurrency int, perConnection int64) *RunState {
	if concurrency <= 0 {
		concurrency = 1
	}
	if perConnection < 0 {
		perConnection = Unbounded
	}
	return &RunState{
		id:            ulid.Make().String(),
		concurrency:   int64(concurrency),
		perConnection: perConnection,
		done:          make(chan struct{}),
	}
}

// ID is the unique identifier of the run.
func (s *RunState) ID() string { return s.id }

// Concurrency is the number of worker connections in the run.
func (s *RunState) Concurrency() int { return int(s.concurrency) }

// PerConnection is the per-connection quota, or Unbounded.
func (s *RunState) PerConnection() int64 { return s.perConnection }

// TotalRequests is the whole-run quota, or Unbounded.
func (s *RunState) TotalRequests() int64 {
	if s.perConnection < 0 {
		return Unbounded
	}
	return s.concurrency * s.perConnection
}

// StartClock records the moment the load phase begins.
func (s *RunState) StartClock() {
	s.clockStart.Store(monotonicNow())
	s.clockRunning.Store(true)
}

func (s *RunState) stopClock() {
	if s.clockRunning.CompareAndSwap(true, false) {
		s.clockElapsed.Store(monotonicNow() - s.clockStart.Load())
	}
}

// Elapsed is the time since StartClock, frozen once the run completes.
func (s *RunState) Elapsed() time.Duration {
	if s.clockRunning.Load() {
		return time.Duration(monotonicNow() - s.clockStart.Load())
	}
	return time.Duration(s.clockElapsed.Load())
}

// MarkSending counts a connection that issued its first send and returns the new total.
func (s *RunState) MarkSending() int64 { return s.sendingStarted.Add(1) }

// ResponseReceived counts one response across all connections and returns the new total.
func (s *RunState) ResponseReceived() int64 { return s.responses.Add(1) }

// Finish counts a connection that met its quota. last is true for exactly one
// caller: the one whose increment brings the count to the concurrency and
// which completes the run.
func (s *RunState) Finish() (count int64, last bool) {
	count = s.finished.Add(1)
	if count == s.concurrency {
		last = s.complete(nil)
	}
	return count, last
}

// Abort completes the run with err. It reports whether this call completed
// the run; later calls and calls after a normal completion are no-ops.
func (s *RunState) Abort(err error) bool { return s.complete(err) }

func (s *RunState) complete(err error) bool {
	won := false
	s.once.Do(func() {
		won = true
		s.err = err
		s.stopClock()
		close(s.done)
	})
	return won
}

// Done is closed when the run completes or aborts.
func (s *RunState) Done() <-chan struct{} { return s.done }

// Err is the abort cause, nil after a normal completion. Only valid after Done.
func (s *RunState) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Snapshot is a point-in-time view of the run counters.
type Snapshot struct {
	RunID          string
	Concurrency    int
	TotalRequests  int64
	SendingStarted int64
	Finished       int64
	Responses      int64
	Elapsed        time.Duration
	Throughput     float64
}

// Snapshot reads every counter without blocking workers.
func (s *RunState) Snapshot() Snapshot {
	elapsed := s.Elapsed()
	responses := s.responses.Load()
	snap := Snapshot{
		RunID:          s.id,
		Concurrency:    int(s.concurrency),
		TotalRequests:  s.TotalRequests(),
		SendingStarted: s.sendingStarted.Load(),
		Finished:       s.finished.Load(),
		Responses:      responses,
		Elapsed:        elapsed,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		snap.Throughput = float64(responses) / secs
	}
	return snap
}

// SnapshotInterval is the response count between progress lines:
// min(100000, total/10), or 100000 when that is below one or the run is unbounded.
func (s *RunState) SnapshotInterval() int64 {
	return snapshotInterval(s.TotalRequests())
}

func snapshotInterval(total int64) int64 {
	if total < 0 {
		return maxSnapshotInterval
	}
	loop := min(int64(maxSnapshotInterval), total/10)
	if loop < 1 {
		loop = maxSnapshotInterval
	}
	return loop
}

// isMilestone reports whether a connection count should be announced:
// every tenth of the connections, and always the last one.
func isMilestone(n, concurrency int64) bool {
	step := max(1, concurrency/milestoneDivisor)
	return n%step == 0 || n == concurrency
}
