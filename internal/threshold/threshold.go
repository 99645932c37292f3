package threshold

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/torosent/pipefire/internal/output"
)

// Threshold represents a performance assertion that can pass or fail.
type Threshold struct {
	Metric    string  // e.g., "throughput", "rtt"
	Aggregate string  // e.g., "rps", "p99", "ms"
	Operator  string  // e.g., "<", "<=", ">", ">=", "=="
	Value     float64 // The threshold value to compare against
	Raw       string  // Original threshold string for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

// Evaluator evaluates thresholds against a finished run report.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Evaluate checks all thresholds against the provided report.
func (e *Evaluator) Evaluate(report output.Report) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, e.evaluateOne(t, report))
	}
	return results
}

func (e *Evaluator) evaluateOne(t Threshold, report output.Report) Result {
	actual, err := extractMetricValue(t, report)
	if err != nil {
		return Result{
			Threshold: t,
			Actual:    0,
			Pass:      false,
			Message:   fmt.Sprintf("error: %v", err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}

	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   fmt.Sprintf("%s %s: %.4f %s %.4f", status, t.Raw, actual, t.Operator, t.Value),
	}
}

// Outcomes converts evaluation results into the form attached to a report.
func Outcomes(results []Result) []output.ThresholdOutcome {
	if len(results) == 0 {
		return nil
	}
	out := make([]output.ThresholdOutcome, 0, len(results))
	for _, r := range results {
		out = append(out, output.ThresholdOutcome{
			Threshold: r.Threshold.Raw,
			Actual:    r.Actual,
			Pass:      r.Pass,
		})
	}
	return out
}

var thresholdPattern = regexp.MustCompile(`^([a-z_]+):([a-z0-9]+)\s*([<>=!]+)\s*([0-9.]+)$`)

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
// - "throughput:rps > 100000"        (requests per second)
// - "avg_latency:ms < 0.05"          (elapsed time per request in ms)
// - "rtt:p99 < 2"                    (round-trip percentile in ms, req-res mode only)
// - "elapsed:ms < 10000"             (total run time)
// - "data_throughput:mibps > 50"     (request bytes per second in MiB)
// - "responses:count >= 1000000"     (responses received)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := thresholdPattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: metric:aggregate operator value, e.g., 'throughput:rps > 100000')", s)
	}

	metric := matches[1]
	aggregate := matches[2]
	operator := matches[3]
	valueStr := matches[4]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", valueStr, err)
	}

	aggregates, ok := supported[metric]
	if !ok {
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: %s)", metric, strings.Join(metricNames, ", "))
	}
	if !contains(aggregates, aggregate) {
		return Threshold{}, fmt.Errorf("unsupported aggregate %q for %s (supported: %s)", aggregate, metric, strings.Join(aggregates, ", "))
	}
	if !contains(operators, operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errors []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errors = append(errors, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errors, "; "))
	}

	return result, nil
}

var supported = map[string][]string{
	"throughput":      {"rps"},
	"avg_latency":     {"ms"},
	"rtt":             {"p50", "p90", "p99", "p999", "avg", "mean", "min", "max"},
	"elapsed":         {"ms", "s"},
	"data_throughput": {"mibps"},
	"total_data":      {"bytes", "mib"},
	"responses":       {"count"},
}

var metricNames = []string{"throughput", "avg_latency", "rtt", "elapsed", "data_throughput", "total_data", "responses"}

var operators = []string{"<", "<=", ">", ">=", "=="}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func extractMetricValue(t Threshold, r output.Report) (float64, error) {
	switch t.Metric {
	case "throughput":
		return r.Throughput, nil
	case "avg_latency":
		return r.AvgLatencyMs, nil
	case "rtt":
		return extractRoundTrip(t.Aggregate, r)
	case "elapsed":
		if t.Aggregate == "s" {
			return r.ElapsedSeconds, nil
		}
		return float64(r.ElapsedMs), nil
	case "data_throughput":
		return r.DataThroughputMiBps, nil
	case "total_data":
		if t.Aggregate == "bytes" {
			return float64(r.TotalDataBytes), nil
		}
		return r.TotalDataMiB, nil
	case "responses":
		return float64(r.Responses), nil
	default:
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
}

func extractRoundTrip(aggregate string, r output.Report) (float64, error) {
	rt := r.RoundTrip
	if rt == nil || rt.Count == 0 {
		return 0, fmt.Errorf("no round-trip samples (rtt is only recorded in req-res mode)")
	}
	switch aggregate {
	case "p50":
		return rt.P50LatencyMs, nil
	case "p90":
		return rt.P90LatencyMs, nil
	case "p99":
		return rt.P99LatencyMs, nil
	case "p999":
		return rt.P999LatencyMs, nil
	case "avg", "mean":
		return rt.MeanLatencyMs, nil
	case "min":
		return rt.MinLatencyMs, nil
	case "max":
		return rt.MaxLatencyMs, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for rtt", aggregate)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
