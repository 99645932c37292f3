package output_test

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/torosent/pipefire/internal/clientmetrics"
	"github.com/torosent/pipefire/internal/console"
	"github.com/torosent/pipefire/internal/metrics"
	"github.com/torosent/pipefire/internal/output"
	"github.com/torosent/pipefire/internal/runner"
)

func sampleResult() runner.Result {
	return runner.Result{
		RunID:         "01HZZZZZZZZZZZZZZZZZZZZZZZ",
		Target:        "127.0.0.1:8080",
		Mode:          runner.ModePipelined,
		Concurrency:   4,
		PerConnection: 2000,
		TotalRequests: 8000,
		Responses:     8000,
		Elapsed:       2 * time.Second,
		RequestBytes:  19,
		FrameLength:   38,
		Transfer: clientmetrics.Snapshot{
			BytesSent:     152000,
			BytesReceived: 304000,
		},
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNewReportFigures(t *testing.T) {
	rep := output.NewReport(sampleResult())

	if rep.Mode != "pipelining-mode" {
		t.Fatalf("mode = %q", rep.Mode)
	}
	if rep.ElapsedMs != 2000 {
		t.Fatalf("elapsed ms = %d, want 2000", rep.ElapsedMs)
	}
	if !approx(rep.Throughput, 4000) {
		t.Fatalf("throughput = %f, want 4000", rep.Throughput)
	}
	if !approx(rep.AvgLatencyMs, 0.25) {
		t.Fatalf("avg latency = %f, want 0.25", rep.AvgLatencyMs)
	}
	if rep.TotalDataBytes != 152000 {
		t.Fatalf("total data = %d, want 152000", rep.TotalDataBytes)
	}
	wantMiB := 152000.0 / (1024 * 1024)
	if !approx(rep.TotalDataMiB, wantMiB) {
		t.Fatalf("total MiB = %f, want %f", rep.TotalDataMiB, wantMiB)
	}
	if !approx(rep.DataThroughputMiBps, wantMiB/2) {
		t.Fatalf("data throughput = %f, want %f", rep.DataThroughputMiBps, wantMiB/2)
	}
	if rep.ResponseBytes != 38 || rep.BytesReceived != 304000 {
		t.Fatalf("response bytes = %d, received = %d", rep.ResponseBytes, rep.BytesReceived)
	}
}

func TestNewReportZeroElapsed(t *testing.T) {
	res := sampleResult()
	res.Elapsed = 0
	rep := output.NewReport(res)
	if rep.Throughput != 0 || rep.DataThroughputMiBps != 0 {
		t.Fatalf("rates with zero elapsed = %f, %f", rep.Throughput, rep.DataThroughputMiBps)
	}
	if math.IsInf(rep.AvgLatencyMs, 0) || math.IsNaN(rep.AvgLatencyMs) {
		t.Fatalf("avg latency = %f", rep.AvgLatencyMs)
	}
}

func TestNewReportUnboundedUsesResponses(t *testing.T) {
	res := sampleResult()
	res.PerConnection = runner.Unbounded
	res.TotalRequests = runner.Unbounded
	res.Responses = 1000
	res.Elapsed = time.Second

	rep := output.NewReport(res)
	if !approx(rep.Throughput, 1000) {
		t.Fatalf("throughput = %f, want 1000", rep.Throughput)
	}
	if rep.TotalDataBytes != 19000 {
		t.Fatalf("total data = %d, want 19000", rep.TotalDataBytes)
	}
}

func TestPassed(t *testing.T) {
	rep := output.NewReport(sampleResult())
	if !rep.Passed() {
		t.Fatal("report without thresholds should pass")
	}
	rep.Thresholds = []output.ThresholdOutcome{
		{Threshold: "throughput:rps > 1000", Actual: 4000, Pass: true},
		{Threshold: "avg_latency:ms < 0.1", Actual: 0.25, Pass: false},
	}
	if rep.Passed() {
		t.Fatal("report with a failing threshold should not pass")
	}
}

func TestPrintReport(t *testing.T) {
	rep := output.NewReport(sampleResult())
	rep.Thresholds = []output.ThresholdOutcome{
		{Threshold: "throughput:rps > 1000", Actual: 4000, Pass: true},
		{Threshold: "avg_latency:ms < 0.1", Actual: 0.25, Pass: false},
	}

	var buf bytes.Buffer
	output.PrintReport(console.New(&buf, false), rep)
	out := buf.String()

	for _, want := range []string{
		"=== RESULT ===",
		"request mode: pipelining-mode",
		"concurrency: 4",
		"total req: 8,000",
		"total time: 2,000 ms (2.00 s)",
		"throughput: 4000.00 req/s",
		"avg latency: 0.2500 ms/req",
		"total data: 152,000 bytes",
		"=== THRESHOLDS ===",
		"PASS  throughput:rps > 1000",
		"FAIL  avg_latency:ms < 0.1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "round trip") {
		t.Errorf("pipelined report should not print round trip line:\n%s", out)
	}
}

func TestPrintReportRoundTrip(t *testing.T) {
	res := sampleResult()
	res.Mode = runner.ModeRequestResponse
	res.RoundTrip = &metrics.Stats{Count: 10, MinLatencyMs: 0.1, P50LatencyMs: 0.2, P90LatencyMs: 0.3, P99LatencyMs: 0.4, MaxLatencyMs: 0.5}

	var buf bytes.Buffer
	output.PrintReport(console.New(&buf, false), output.NewReport(res))
	if !strings.Contains(buf.String(), "round trip: min 0.100 ms, p50 0.200 ms") {
		t.Fatalf("round trip line missing:\n%s", buf.String())
	}
}

func TestPrintJSONReport(t *testing.T) {
	res := sampleResult()
	res.RoundTrip = &metrics.Stats{Count: 10, P99LatencyMs: 1.5}
	rep := output.NewReport(res)
	rep.Thresholds = []output.ThresholdOutcome{{Threshold: "throughput:rps > 1000", Actual: 4000, Pass: true}}

	var buf bytes.Buffer
	if err := output.PrintJSONReport(&buf, rep); err != nil {
		t.Fatalf("PrintJSONReport: %v", err)
	}
	out := buf.String()
	if !gjson.Valid(out) {
		t.Fatalf("invalid JSON: %s", out)
	}

	checks := map[string]string{
		"run_id":            "01HZZZZZZZZZZZZZZZZZZZZZZZ",
		"mode":              "pipelining-mode",
		"total_requests":    "8000",
		"throughput_rps":    "4000",
		"total_data_bytes":  "152000",
		"round_trip.p99_ms": "1.5",
		"thresholds.0.pass": "true",
		"thresholds.#":      "1",
	}
	for path, want := range checks {
		if got := gjson.Get(out, path).String(); got != want {
			t.Errorf("%s = %q, want %q", path, got, want)
		}
	}
}

func TestPrintJSONReportOmitsEmptySections(t *testing.T) {
	var buf bytes.Buffer
	if err := output.PrintJSONReport(&buf, output.NewReport(sampleResult())); err != nil {
		t.Fatalf("PrintJSONReport: %v", err)
	}
	for _, path := range []string{"round_trip", "thresholds"} {
		if gjson.Get(buf.String(), path).Exists() {
			t.Errorf("%s should be omitted", path)
		}
	}
}

func TestPrintYAMLReport(t *testing.T) {
	var buf bytes.Buffer
	if err := output.PrintYAMLReport(&buf, output.NewReport(sampleResult())); err != nil {
		t.Fatalf("PrintYAMLReport: %v", err)
	}
	var decoded map[string]interface{}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}
	if decoded["total_requests"] != 8000 {
		t.Fatalf("total_requests = %v", decoded["total_requests"])
	}
	if decoded["target"] != "127.0.0.1:8080" {
		t.Fatalf("target = %v", decoded["target"])
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	rep := output.NewReport(sampleResult())

	jsonPath := filepath.Join(dir, "result.json")
	if err := output.WriteFile(jsonPath, rep); err != nil {
		t.Fatalf("WriteFile json: %v", err)
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	if gjson.GetBytes(data, "responses").Int() != 8000 {
		t.Fatalf("responses in file = %s", gjson.GetBytes(data, "responses").Raw)
	}

	yamlPath := filepath.Join(dir, "result.YML")
	if err := output.WriteFile(yamlPath, rep); err != nil {
		t.Fatalf("WriteFile yaml: %v", err)
	}
	data, err = os.ReadFile(yamlPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "concurrency: 4") {
		t.Fatalf("yaml file:\n%s", data)
	}

	if err := output.WriteFile(filepath.Join(dir, "result.txt"), rep); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
	if _, err := os.Stat(filepath.Join(dir, "result.txt")); !os.IsNotExist(err) {
		t.Fatal("unsupported extension should not create a file")
	}
}
