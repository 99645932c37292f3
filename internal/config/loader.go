package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
// Without any load-shape setting (mode, concurrency, requests) and without an
// explicit --interactive, the session is interactive.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	settings := cfgViper.AllSettings()

	cfg := &Config{
		Target:       DefaultTarget,
		Mode:         ModePipelined,
		Concurrency:  1,
		Requests:     1,
		BatchSize:    DefaultBatchSize,
		ProbeFraming: "chunk",
		ConfigFile:   configPath,
		Tracing:      TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	if !flagSet.Changed("interactive") {
		if _, ok := lookupSetting(settings, "interactive"); !ok {
			cfg.Interactive = !loadShapeGiven(flagSet, settings)
		}
	}

	cfg.Target = strings.TrimSpace(cfg.Target)
	cfg.ProbeFraming = strings.ToLower(strings.TrimSpace(cfg.ProbeFraming))

	return cfg, nil
}

func loadShapeGiven(fs *pflag.FlagSet, settings map[string]interface{}) bool {
	for _, name := range loadShapeFlags {
		if fs.Changed(name) {
			return true
		}
		if _, ok := lookupSetting(settings, name); ok {
			return true
		}
	}
	return false
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "target"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("target: %w", err)
		}
		cfg.Target = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "mode"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("mode: %w", err)
		}
		mode, err := ParseModeName(val)
		if err != nil {
			return err
		}
		cfg.Mode = mode
	}

	intFields := []struct {
		keys []string
		dst  *int
	}{
		{[]string{"concurrency"}, &cfg.Concurrency},
		{[]string{"requests"}, &cfg.Requests},
		{[]string{"batchsize", "batch_size", "batch-size"}, &cfg.BatchSize},
		{[]string{"connectrate", "connect_rate", "connect-rate"}, &cfg.ConnectRate},
	}
	for _, f := range intFields {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asInt(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}

	stringFields := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"requestfile", "request_file", "request-file"}, &cfg.RequestFile},
		{[]string{"probeframing", "probe_framing", "probe-framing"}, &cfg.ProbeFraming},
		{[]string{"outputfile", "output_file", "output-file", "output"}, &cfg.OutputFile},
		{[]string{"htmloutput", "html_output", "html-output"}, &cfg.HTMLOutput},
		{[]string{"metricsaddr", "metrics_addr", "metrics-addr"}, &cfg.MetricsAddr},
		{[]string{"historyfile", "history_file", "history-file"}, &cfg.HistoryFile},
	}
	for _, f := range stringFields {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asString(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = strings.TrimSpace(val)
		}
	}

	if raw, ok := lookupSetting(settings, "dialtimeout", "dial_timeout", "dial-timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("dialTimeout: %w", err)
		}
		cfg.DialTimeout = dur
	}

	if raw, ok := lookupSetting(settings, "probetimeout", "probe_timeout", "probe-timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("probeTimeout: %w", err)
		}
		cfg.ProbeTimeout = dur
	}

	boolFields := []struct {
		keys []string
		dst  *bool
	}{
		{[]string{"interactive"}, &cfg.Interactive},
		{[]string{"jsonoutput", "json_output", "json-output"}, &cfg.JSONOutput},
		{[]string{"dashboard"}, &cfg.Dashboard},
		{[]string{"progress"}, &cfg.Progress},
		{[]string{"nocolor", "no_color", "no-color"}, &cfg.NoColor},
	}
	for _, f := range boolFields {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asBool(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = val
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tc, err := parseTracingConfig(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tc
	}

	return nil
}

func parseTracingConfig(value interface{}, base TracingConfig) (TracingConfig, error) {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return base, err
	}
	tc := base
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		if tc.Endpoint, err = asString(raw); err != nil {
			return tc, fmt.Errorf("endpoint: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		if tc.Protocol, err = asString(raw); err != nil {
			return tc, fmt.Errorf("protocol: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		if tc.Insecure, err = asBool(raw); err != nil {
			return tc, fmt.Errorf("insecure: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		if tc.ServiceName, err = asString(raw); err != nil {
			return tc, fmt.Errorf("service_name: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		if tc.SampleRate, err = asFloat64(raw); err != nil {
			return tc, fmt.Errorf("sample_rate: %w", err)
		}
	}
	return tc, nil
}
