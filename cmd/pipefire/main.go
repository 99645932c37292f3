package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/torosent/pipefire/internal/config"
	"github.com/torosent/pipefire/internal/console"
	"github.com/torosent/pipefire/internal/promexport"
	"github.com/torosent/pipefire/internal/request"
	"github.com/torosent/pipefire/internal/threshold"
	"github.com/torosent/pipefire/internal/tracing"
	"github.com/torosent/pipefire/internal/transport"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
	historyInReport  = 20
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return execute(ctx, args, os.Stdin, os.Stdout, os.Stderr)
}

// app holds everything that survives across restarts of an interactive session.
type app struct {
	cfg        *config.Config
	request    []byte
	factory    transport.Factory
	thresholds []threshold.Threshold
	tracer     *tracing.Provider
	exporter   *promexport.Exporter

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	out    *console.Console // result block and prompts
	log    *console.Console // progress lines
}

func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.NewLoader().Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}
	framing, err := transport.ParseFraming(cfg.ProbeFraming)
	if err != nil {
		return err
	}

	a := &app{
		cfg:        cfg,
		factory:    &transport.TCPFactory{DialTimeout: cfg.DialTimeout, ProbeFraming: framing},
		thresholds: thresholds,
		stdin:      stdin,
		stdout:     stdout,
		stderr:     stderr,
		out:        console.New(stdout, !cfg.NoColor),
	}
	// Keep stdout machine-readable when the result is JSON.
	a.log = a.out
	if cfg.JSONOutput {
		a.log = console.New(stderr, !cfg.NoColor)
	}

	if a.request, err = a.loadRequest(); err != nil {
		return err
	}

	a.tracer, err = tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = a.tracer.Shutdown(shutdownCtx)
	}()

	if cfg.MetricsAddr != "" {
		a.exporter = promexport.NewExporter()
		srv, err := promexport.Serve(cfg.MetricsAddr, a.exporter)
		if err != nil {
			return err
		}
		a.log.Logf(console.ToneInfo, "metrics available at http://%s/metrics", srv.Addr())
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if cfg.Interactive {
		return a.interactive(ctx)
	}
	return a.single(ctx)
}

func (a *app) loadRequest() ([]byte, error) {
	path := a.cfg.RequestFile
	if path == "" {
		var err error
		if path, err = request.DefaultPath(); err != nil {
			return nil, err
		}
	}
	a.log.Logf(console.ToneInfo, "read request content from file: %s", path)
	data, created, err := request.LoadOrCreate(path, request.DefaultFor(a.cfg.Target))
	if err != nil {
		return nil, err
	}
	if created {
		a.log.Logf(console.ToneWarn, "request file not found, wrote a default request to %s", path)
	}
	return data, nil
}
