package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Mode is the per-connection send protocol.
type Mode string

const (
	ModePipelined       Mode = "pipelined"
	ModeRequestResponse Mode = "req-res"
)

const (
	DefaultTarget    = "127.0.0.1:8080"
	DefaultBatchSize = 1000
	// RequestUnit is the multiplier applied to the requests setting.
	RequestUnit = 1000
)

type Config struct {
	Target       string        `mapstructure:"target"`
	Mode         Mode          `mapstructure:"mode"`
	Concurrency  int           `mapstructure:"concurrency"`
	Requests     int           `mapstructure:"requests"` // per connection, in thousands; negative means unbounded
	BatchSize    int           `mapstructure:"batch_size"`
	RequestFile  string        `mapstructure:"request_file"`
	ProbeFraming string        `mapstructure:"probe_framing"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	ConnectRate  int           `mapstructure:"connect_rate"`
	Interactive  bool          `mapstructure:"interactive"`
	JSONOutput   bool          `mapstructure:"json_output"`
	OutputFile   string        `mapstructure:"output_file"`
	HTMLOutput   string        `mapstructure:"html_output"`
	Progress     bool          `mapstructure:"progress"`
	Dashboard    bool          `mapstructure:"dashboard"`
	MetricsAddr  string        `mapstructure:"metrics_addr"`
	HistoryFile  string        `mapstructure:"history_file"`
	Thresholds   []string      `mapstructure:"thresholds"`
	NoColor      bool          `mapstructure:"no_color"`
	Tracing      TracingConfig `mapstructure:"tracing"`
	ConfigFile   string        `mapstructure:"-"`
}

// TracingConfig configures OTLP span export.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" (default) or "http"
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// Enabled reports whether an exporter endpoint is configured, directly or
// through OTEL_EXPORTER_OTLP_ENDPOINT.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// PerConnection is the number of responses each connection must receive, or
// -1 when unbounded.
func (c Config) PerConnection() int64 {
	if c.Requests < 0 {
		return -1
	}
	return int64(c.Requests) * RequestUnit
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.Target) == "" {
		issues = append(issues, "target is required")
	} else if _, port, err := net.SplitHostPort(c.Target); err != nil || port == "" {
		issues = append(issues, fmt.Sprintf("target %q must be host:port", c.Target))
	}

	if _, err := ParseModeName(string(c.Mode)); err != nil {
		issues = append(issues, err.Error())
	}
	if c.Concurrency < 1 {
		issues = append(issues, "concurrency must be at least 1")
	}
	if c.Requests == 0 {
		issues = append(issues, "requests must not be zero (use a negative value for unbounded)")
	}
	if c.BatchSize < 1 {
		issues = append(issues, "batch-size must be at least 1")
	} else if c.Mode == ModePipelined && c.Requests > 0 && c.PerConnection()%int64(c.BatchSize) != 0 {
		issues = append(issues, fmt.Sprintf("requests (%d) must be a whole number of batches of %d in pipelined mode", c.PerConnection(), c.BatchSize))
	}
	if c.DialTimeout < 0 {
		issues = append(issues, "dial-timeout must be non-negative")
	}
	if c.ProbeTimeout < 0 {
		issues = append(issues, "probe-timeout must be non-negative")
	}
	if c.ConnectRate < 0 {
		issues = append(issues, "connect-rate must be non-negative")
	}
	switch strings.ToLower(strings.TrimSpace(c.ProbeFraming)) {
	case "", "chunk", "delimiter":
	default:
		issues = append(issues, fmt.Sprintf("probe-framing %q must be chunk or delimiter", c.ProbeFraming))
	}
	if c.OutputFile != "" {
		switch strings.ToLower(filepath.Ext(c.OutputFile)) {
		case ".json", ".yaml", ".yml":
		default:
			issues = append(issues, fmt.Sprintf("output-file %q must end in .json, .yaml or .yml", c.OutputFile))
		}
	}
	if c.Dashboard && c.Progress {
		issues = append(issues, "dashboard and progress cannot be combined")
	}
	if c.Interactive && c.Dashboard {
		issues = append(issues, "dashboard cannot be combined with interactive prompts")
	}
	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing protocol %q must be grpc or http", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
