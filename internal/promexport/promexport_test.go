package promexport_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/torosent/pipefire/internal/promexport"
	"github.com/torosent/pipefire/internal/runner"
)

type fixedSource runner.Snapshot

func (f fixedSource) Snapshot() runner.Snapshot { return runner.Snapshot(f) }

func sampleSource() fixedSource {
	return fixedSource{
		RunID:          "01J0000000000000000000TEST",
		Concurrency:    4,
		TotalRequests:  8000,
		SendingStarted: 4,
		Finished:       1,
		Responses:      5000,
		Elapsed:        2 * time.Second,
		Throughput:     2500,
	}
}

func TestExporterWithoutRun(t *testing.T) {
	e := promexport.NewExporter()
	if n := testutil.CollectAndCount(e); n != 2 {
		t.Fatalf("collected %d metrics without a run, want 2 session counters", n)
	}
}

func TestExporterCollect(t *testing.T) {
	e := promexport.NewExporter()
	e.Track(sampleSource(), runner.ModePipelined)
	e.Completed()

	expected := `
# HELP pipefire_responses_total Responses received in the current run.
# TYPE pipefire_responses_total counter
pipefire_responses_total{mode="pipelining-mode",run_id="01J0000000000000000000TEST"} 5000
# HELP pipefire_connections_finished Connections that have received their full quota.
# TYPE pipefire_connections_finished gauge
pipefire_connections_finished{run_id="01J0000000000000000000TEST"} 1
# HELP pipefire_runs_completed_total Runs that received every response of their quota.
# TYPE pipefire_runs_completed_total counter
pipefire_runs_completed_total 1
# HELP pipefire_runs_started_total Runs started in this session.
# TYPE pipefire_runs_started_total counter
pipefire_runs_started_total 1
`
	err := testutil.CollectAndCompare(e, strings.NewReader(expected),
		"pipefire_responses_total", "pipefire_connections_finished",
		"pipefire_runs_completed_total", "pipefire_runs_started_total")
	if err != nil {
		t.Fatal(err)
	}
	if n := testutil.CollectAndCount(e); n != 9 {
		t.Fatalf("collected %d metrics, want 9", n)
	}
}

func TestExporterTracksNewestRun(t *testing.T) {
	e := promexport.NewExporter()
	e.Track(sampleSource(), runner.ModePipelined)

	next := sampleSource()
	next.RunID = "01J0000000000000000000NEXT"
	next.Responses = 7
	e.Track(next, runner.ModeRequestResponse)

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(e); err != nil {
		t.Fatalf("Register: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "pipefire_responses_total" {
			continue
		}
		if len(mf.GetMetric()) != 1 {
			t.Fatalf("expected one series, got %d", len(mf.GetMetric()))
		}
		if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 7 {
			t.Fatalf("responses = %v, want 7", got)
		}
		return
	}
	t.Fatal("pipefire_responses_total not gathered")
}

func TestServe(t *testing.T) {
	e := promexport.NewExporter()
	e.Track(sampleSource(), runner.ModePipelined)

	srv, err := promexport.Serve("127.0.0.1:0", e)
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	for _, want := range []string{
		`pipefire_throughput_rps{run_id="01J0000000000000000000TEST"} 2500`,
		`pipefire_requests_target{run_id="01J0000000000000000000TEST"} 8000`,
		`pipefire_elapsed_seconds{run_id="01J0000000000000000000TEST"} 2`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestServeBadAddress(t *testing.T) {
	if _, err := promexport.Serve("256.0.0.1:-1", promexport.NewExporter()); err == nil {
		t.Fatal("expected listen error")
	}
}
