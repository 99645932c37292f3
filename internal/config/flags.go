package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pipefire",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Target and load shape
	flags.String("target", DefaultTarget, "Target server as host:port")
	flags.StringP("mode", "m", string(ModePipelined), "Request mode: pipelined (0) or req-res (1)")
	flags.IntP("concurrency", "c", 1, "Number of persistent connections")
	flags.IntP("requests", "n", 1, "Requests per connection in thousands (negative means never stop)")
	flags.Int("batch-size", DefaultBatchSize, "Requests concatenated into one pipelined write")
	flags.String("request-file", "", "Raw request template (default: req.txt beside the executable)")
	flags.String("probe-framing", "chunk", "How the probe connection splits responses: chunk or delimiter")

	// Connection control
	flags.Duration("dial-timeout", 0, "Per-connection dial timeout (0 means none)")
	flags.Duration("probe-timeout", 0, "Bound on the probe exchange (0 means wait indefinitely)")
	flags.Int("connect-rate", 0, "New connections per second while opening workers (0 means unlimited)")

	// Session and output
	flags.BoolP("interactive", "i", false, "Prompt for mode, concurrency and requests, and offer a restart after each run")
	flags.Bool("json-output", false, "Emit the result as JSON")
	flags.StringP("output", "o", "", "Also write the result to a .json or .yaml file")
	flags.String("html-output", "", "Write an HTML report to this file")
	flags.Bool("progress", false, "Show a single-line live progress ticker on stderr")
	flags.Bool("dashboard", false, "Show live terminal dashboard with progress")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flags.String("history-file", "", "Append every result to this JSON-lines file")
	flags.Bool("no-color", false, "Disable coloured console output")
	flags.String("config", "", "Path to configuration file (JSON, YAML or TOML)")

	// Threshold flags
	flags.StringSlice("threshold", nil, "Pass/fail thresholds (repeatable, e.g. 'throughput:rps > 100000')")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (host:port)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.String("tracing-service-name", "", "Service name reported in spans (default pipefire)")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of runs to trace (0.0 - 1.0)")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// loadShapeFlags decide whether a session is interactive when --interactive
// is not given: with none of them set, the user is prompted.
var loadShapeFlags = []string{"mode", "concurrency", "requests"}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("target") {
		val, err := fs.GetString("target")
		if err != nil {
			return err
		}
		cfg.Target = strings.TrimSpace(val)
	}
	if fs.Changed("mode") {
		val, err := fs.GetString("mode")
		if err != nil {
			return err
		}
		mode, err := ParseModeName(val)
		if err != nil {
			return err
		}
		cfg.Mode = mode
	}
	if fs.Changed("concurrency") {
		val, err := fs.GetInt("concurrency")
		if err != nil {
			return err
		}
		cfg.Concurrency = val
	}
	if fs.Changed("requests") {
		val, err := fs.GetInt("requests")
		if err != nil {
			return err
		}
		cfg.Requests = val
	}
	if fs.Changed("batch-size") {
		val, err := fs.GetInt("batch-size")
		if err != nil {
			return err
		}
		cfg.BatchSize = val
	}
	if fs.Changed("request-file") {
		val, err := fs.GetString("request-file")
		if err != nil {
			return err
		}
		cfg.RequestFile = strings.TrimSpace(val)
	}
	if fs.Changed("probe-framing") {
		val, err := fs.GetString("probe-framing")
		if err != nil {
			return err
		}
		cfg.ProbeFraming = val
	}
	if fs.Changed("dial-timeout") {
		val, err := fs.GetDuration("dial-timeout")
		if err != nil {
			return err
		}
		cfg.DialTimeout = val
	}
	if fs.Changed("probe-timeout") {
		val, err := fs.GetDuration("probe-timeout")
		if err != nil {
			return err
		}
		cfg.ProbeTimeout = val
	}
	if fs.Changed("connect-rate") {
		val, err := fs.GetInt("connect-rate")
		if err != nil {
			return err
		}
		cfg.ConnectRate = val
	}
	if fs.Changed("interactive") {
		val, err := fs.GetBool("interactive")
		if err != nil {
			return err
		}
		cfg.Interactive = val
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("output") {
		val, err := fs.GetString("output")
		if err != nil {
			return err
		}
		cfg.OutputFile = strings.TrimSpace(val)
	}
	if fs.Changed("html-output") {
		val, err := fs.GetString("html-output")
		if err != nil {
			return err
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}
	if fs.Changed("progress") {
		val, err := fs.GetBool("progress")
		if err != nil {
			return err
		}
		cfg.Progress = val
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("metrics-addr") {
		val, err := fs.GetString("metrics-addr")
		if err != nil {
			return err
		}
		cfg.MetricsAddr = strings.TrimSpace(val)
	}
	if fs.Changed("history-file") {
		val, err := fs.GetString("history-file")
		if err != nil {
			return err
		}
		cfg.HistoryFile = strings.TrimSpace(val)
	}
	if fs.Changed("no-color") {
		val, err := fs.GetBool("no-color")
		if err != nil {
			return err
		}
		cfg.NoColor = val
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = val
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("tracing-service-name") {
		val, err := fs.GetString("tracing-service-name")
		if err != nil {
			return err
		}
		cfg.Tracing.ServiceName = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	return nil
}
