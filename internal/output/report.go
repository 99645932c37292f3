package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/pipefire/internal/console"
	"github.com/torosent/pipefire/internal/metrics"
	"github.com/torosent/pipefire/internal/runner"
)

const bytesPerMiB = 1024.0 * 1024.0

// ThresholdOutcome is one evaluated pass/fail assertion attached to a report.
type ThresholdOutcome struct {
	Threshold string  `json:"threshold" yaml:"threshold"`
	Actual    float64 `json:"actual" yaml:"actual"`
	Pass      bool    `json:"pass" yaml:"pass"`
}

// Report is the final summary of a completed run.
type Report struct {
	RunID               string             `json:"run_id" yaml:"run_id"`
	Timestamp           time.Time          `json:"timestamp" yaml:"timestamp"`
	Target              string             `json:"target" yaml:"target"`
	Mode                string             `json:"mode" yaml:"mode"`
	Concurrency         int                `json:"concurrency" yaml:"concurrency"`
	PerConnection       int64              `json:"per_connection" yaml:"per_connection"`
	TotalRequests       int64              `json:"total_requests" yaml:"total_requests"`
	Responses           int64              `json:"responses" yaml:"responses"`
	ElapsedMs           int64              `json:"elapsed_ms" yaml:"elapsed_ms"`
	ElapsedSeconds      float64            `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	Throughput          float64            `json:"throughput_rps" yaml:"throughput_rps"`
	AvgLatencyMs        float64            `json:"avg_latency_ms" yaml:"avg_latency_ms"`
	RequestBytes        int                `json:"request_bytes" yaml:"request_bytes"`
	ResponseBytes       int                `json:"response_bytes" yaml:"response_bytes"`
	TotalDataBytes      int64              `json:"total_data_bytes" yaml:"total_data_bytes"`
	TotalDataMiB        float64            `json:"total_data_mib" yaml:"total_data_mib"`
	DataThroughputMiBps float64            `json:"data_throughput_mibps" yaml:"data_throughput_mibps"`
	BytesSent           int64              `json:"bytes_sent" yaml:"bytes_sent"`
	BytesReceived       int64              `json:"bytes_received" yaml:"bytes_received"`
	RoundTrip           *metrics.Stats     `json:"round_trip,omitempty" yaml:"round_trip,omitempty"`
	Thresholds          []ThresholdOutcome `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// NewReport derives the summary figures from a run result. A zero elapsed
// time yields zero rates instead of infinities.
func NewReport(res runner.Result) Report {
	rep := Report{
		RunID:          res.RunID,
		Timestamp:      time.Now().UTC(),
		Target:         res.Target,
		Mode:           res.Mode.String(),
		Concurrency:    res.Concurrency,
		PerConnection:  res.PerConnection,
		TotalRequests:  res.TotalRequests,
		Responses:      res.Responses,
		ElapsedMs:      res.Elapsed.Milliseconds(),
		ElapsedSeconds: res.Elapsed.Seconds(),
		RequestBytes:   res.RequestBytes,
		ResponseBytes:  res.FrameLength,
		BytesSent:      res.Transfer.BytesSent,
		BytesReceived:  res.Transfer.BytesReceived,
		RoundTrip:      res.RoundTrip,
	}

	total := res.TotalRequests
	if total < 0 {
		total = res.Responses
	}
	rep.TotalDataBytes = int64(res.RequestBytes) * total
	rep.TotalDataMiB = float64(rep.TotalDataBytes) / bytesPerMiB

	elapsedMs := float64(res.Elapsed) / float64(time.Millisecond)
	if secs := res.Elapsed.Seconds(); secs > 0 {
		rep.Throughput = float64(total) / secs
		rep.DataThroughputMiBps = rep.TotalDataMiB / secs
	}
	if total > 0 {
		rep.AvgLatencyMs = elapsedMs / float64(total)
	}
	return rep
}

// Passed reports whether every attached threshold passed.
func (r Report) Passed() bool {
	for _, t := range r.Thresholds {
		if !t.Pass {
			return false
		}
	}
	return true
}

// PrintReport writes the human-readable result block.
func PrintReport(c *console.Console, r Report) {
	c.Println(console.ToneInfo, "")
	c.Println(console.ToneInfo, "=== RESULT ===")
	c.Logf(console.ToneHighlight, "run id: %s", r.RunID)
	c.Logf(console.ToneHighlight, "request mode: %s", r.Mode)
	c.Logf(console.ToneHighlight, "concurrency: %s", console.Count(int64(r.Concurrency)))
	c.Logf(console.ToneInfo, "total req: %s", console.Count(r.TotalRequests))
	c.Logf(console.ToneInfo, "total time: %s ms (%.2f s)", console.Count(r.ElapsedMs), r.ElapsedSeconds)
	c.Logf(console.ToneHighlight, "throughput: %.2f req/s", r.Throughput)
	c.Logf(console.ToneInfo, "avg latency: %.4f ms/req", r.AvgLatencyMs)
	c.Logf(console.ToneInfo, "total data: %s bytes (%.2f MiB)", console.Count(r.TotalDataBytes), r.TotalDataMiB)
	c.Logf(console.ToneInfo, "data throughput: %.2f MiB/s", r.DataThroughputMiBps)
	c.Logf(console.ToneInfo, "bytes received: %s (%s per response)", console.Count(r.BytesReceived), console.Count(int64(r.ResponseBytes)))
	if rt := r.RoundTrip; rt != nil && rt.Count > 0 {
		c.Logf(console.ToneInfo, "round trip: min %.3f ms, p50 %.3f ms, p90 %.3f ms, p99 %.3f ms, max %.3f ms",
			rt.MinLatencyMs, rt.P50LatencyMs, rt.P90LatencyMs, rt.P99LatencyMs, rt.MaxLatencyMs)
	}
	if len(r.Thresholds) > 0 {
		c.Println(console.ToneInfo, "")
		c.Println(console.ToneInfo, "=== THRESHOLDS ===")
		for _, t := range r.Thresholds {
			tone, mark := console.ToneSnapshot, "PASS"
			if !t.Pass {
				tone, mark = console.ToneError, "FAIL"
			}
			c.Logf(tone, "%s  %s (actual %.4f)", mark, t.Threshold, t.Actual)
		}
	}
	c.Println(console.ToneInfo, "")
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

// WriteFile stores the report as JSON or YAML depending on the extension of path.
func WriteFile(path string, r Report) error {
	encode := PrintJSONReport
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
	case ".yaml", ".yml":
		encode = PrintYAMLReport
	default:
		return fmt.Errorf("unsupported report format %q", filepath.Ext(path))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := encode(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}
