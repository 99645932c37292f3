package runner

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunStateFinishLastExactlyOnce(t *testing.T) {
	const concurrency = 500
	s := NewRunState(concurrency, 10)

	var lasts atomic.Int64
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			if _, last := s.Finish(); last {
				lasts.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := lasts.Load(); got != 1 {
		t.Fatalf("last reported %d times, want 1", got)
	}
	select {
	case <-s.Done():
	default:
		t.Fatal("Done() not closed after every connection finished")
	}
	if err := s.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil", err)
	}
}

func TestRunStateAbortWinsOverLateFinish(t *testing.T) {
	s := NewRunState(2, 1)
	cause := errors.New("boom")

	if !s.Abort(cause) {
		t.Fatal("first Abort should complete the run")
	}
	if s.Abort(errors.New("second")) {
		t.Fatal("second Abort should be a no-op")
	}
	s.Finish()
	if _, last := s.Finish(); last {
		t.Fatal("Finish after Abort must not report last")
	}
	if !errors.Is(s.Err(), cause) {
		t.Fatalf("Err() = %v, want %v", s.Err(), cause)
	}
}

func TestRunStateErrBeforeDone(t *testing.T) {
	s := NewRunState(1, 1)
	if s.Err() != nil {
		t.Fatalf("Err() before completion = %v", s.Err())
	}
}

func TestRunStateCounters(t *testing.T) {
	s := NewRunState(3, 100)
	if s.MarkSending() != 1 || s.MarkSending() != 2 {
		t.Fatal("MarkSending should return increasing totals")
	}
	for i := int64(1); i <= 5; i++ {
		if got := s.ResponseReceived(); got != i {
			t.Fatalf("ResponseReceived() = %d, want %d", got, i)
		}
	}

	snap := s.Snapshot()
	if snap.SendingStarted != 2 || snap.Responses != 5 || snap.Finished != 0 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.TotalRequests != 300 || snap.Concurrency != 3 {
		t.Fatalf("unexpected totals %+v", snap)
	}
	if snap.RunID == "" || snap.RunID != s.ID() {
		t.Fatalf("RunID = %q, ID() = %q", snap.RunID, s.ID())
	}
}

func TestRunStateFreshPerRun(t *testing.T) {
	a := NewRunState(1, 1)
	a.ResponseReceived()
	a.Finish()

	b := NewRunState(1, 1)
	if b.ID() == a.ID() {
		t.Fatal("run IDs must differ")
	}
	if snap := b.Snapshot(); snap.Responses != 0 || snap.Finished != 0 || snap.Elapsed != 0 {
		t.Fatalf("fresh state not zeroed: %+v", snap)
	}
}

func TestRunStateClockFreezesOnCompletion(t *testing.T) {
	s := NewRunState(1, 1)
	if s.Elapsed() != 0 {
		t.Fatalf("Elapsed() before StartClock = %s", s.Elapsed())
	}
	s.StartClock()
	time.Sleep(5 * time.Millisecond)
	s.Finish()

	frozen := s.Elapsed()
	if frozen < 5*time.Millisecond {
		t.Fatalf("Elapsed() = %s, want >= 5ms", frozen)
	}
	time.Sleep(5 * time.Millisecond)
	if got := s.Elapsed(); got != frozen {
		t.Fatalf("Elapsed() moved after completion: %s -> %s", frozen, got)
	}
}

func TestRunStateUnbounded(t *testing.T) {
	s := NewRunState(4, -7)
	if s.PerConnection() != Unbounded || s.TotalRequests() != Unbounded {
		t.Fatalf("PerConnection=%d TotalRequests=%d, want Unbounded", s.PerConnection(), s.TotalRequests())
	}
	if s.SnapshotInterval() != maxSnapshotInterval {
		t.Fatalf("SnapshotInterval() = %d", s.SnapshotInterval())
	}
}

func TestSnapshotInterval(t *testing.T) {
	tests := []struct {
		total int64
		want  int64
	}{
		{total: 5, want: 100000},
		{total: 9, want: 100000},
		{total: 10, want: 1},
		{total: 8000, want: 800},
		{total: 1000000, want: 100000},
		{total: 50000000, want: 100000},
	}
	for _, tt := range tests {
		if got := snapshotInterval(tt.total); got != tt.want {
			t.Errorf("snapshotInterval(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}
}

func TestIsMilestone(t *testing.T) {
	tests := []struct {
		n, concurrency int64
		want           bool
	}{
		{1, 1, true},
		{1, 4, true},
		{3, 4, true},
		{10, 100, true},
		{11, 100, false},
		{100, 100, true},
		{7, 95, false},
		{95, 95, true},
	}
	for _, tt := range tests {
		if got := isMilestone(tt.n, tt.concurrency); got != tt.want {
			t.Errorf("isMilestone(%d, %d) = %v, want %v", tt.n, tt.concurrency, got, tt.want)
		}
	}
}
