package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/torosent/pipefire/internal/config"
	"github.com/torosent/pipefire/internal/console"
	"github.com/torosent/pipefire/internal/dashboard"
	"github.com/torosent/pipefire/internal/gate"
	"github.com/torosent/pipefire/internal/history"
	"github.com/torosent/pipefire/internal/output"
	"github.com/torosent/pipefire/internal/runner"
	"github.com/torosent/pipefire/internal/threshold"
)

// errInterrupted marks a run that ended by signal or operator request
// rather than by meeting its quota.
var errInterrupted = errors.New("run interrupted")

// single performs one run with the configured shape and fails when any
// threshold fails.
func (a *app) single(ctx context.Context) error {
	rep, err := a.runOnce(ctx, *a.cfg)
	if err != nil {
		if errors.Is(err, errInterrupted) {
			a.log.Println(console.ToneWarn, "run interrupted before completion")
			return nil
		}
		return err
	}
	if !rep.Passed() {
		failed := 0
		for _, t := range rep.Thresholds {
			if !t.Pass {
				failed++
			}
		}
		return fmt.Errorf("%d of %d thresholds failed", failed, len(rep.Thresholds))
	}
	return nil
}

// interactive prompts for the load shape, runs it, and offers a restart
// until the operator quits or ctx is done.
func (a *app) interactive(ctx context.Context) error {
	for {
		a.out.Logf(console.ToneInfo, "welcome to use pipefire %s!", version)

		cfg, err := a.promptShape(ctx)
		if err != nil {
			if errors.Is(err, gate.ErrNoAnswer) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		_, err = a.runOnce(ctx, cfg)
		switch {
		case err == nil:
		case errors.Is(err, errInterrupted):
			return nil
		case isConnectFailure(err):
			a.out.Logf(console.ToneError, "connection failed, please check the server is alive! (%v)", err)
			// Nothing more can be done without the server; hold until the
			// operator ends the session.
			<-ctx.Done()
			return nil
		default:
			a.out.Logf(console.ToneError, "run failed: %v", err)
		}

		choice, err := gate.Wait(ctx, a.stdin, a.stdout)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, gate.ErrNoChoice) {
				return nil
			}
			return err
		}
		switch choice {
		case gate.ChoiceQuit:
			return nil
		case gate.ChoiceClear:
			a.out.Clear()
		default:
			a.out.Println(console.ToneInfo, "")
		}
	}
}

func isConnectFailure(err error) bool {
	var connErr *runner.ConnectionError
	return errors.As(err, &connErr)
}

// runOnce starts a fresh run, waits for it, and publishes the result to
// every configured sink.
func (a *app) runOnce(ctx context.Context, cfg config.Config) (output.Report, error) {
	mode := toRunnerMode(cfg.Mode)

	var logger runner.Logger = a.log
	if cfg.Dashboard {
		// termui owns the screen
		logger = console.Discard
	}

	opts := runner.Options{
		Target:        cfg.Target,
		Mode:          mode,
		Concurrency:   cfg.Concurrency,
		PerConnection: cfg.PerConnection(),
		BatchSize:     cfg.BatchSize,
		Request:       a.request,
		Factory:       a.factory,
		ConnectRate:   cfg.ConnectRate,
		ProbeTimeout:  cfg.ProbeTimeout,
		Logger:        logger,
		Tracer:        a.tracer.Tracer(),
	}
	if a.exporter != nil {
		opts.OnComplete = func(runner.Result) { a.exporter.Completed() }
	}

	r, err := runner.New(opts).Start(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return output.Report{}, errInterrupted
		}
		return output.Report{}, err
	}
	if a.exporter != nil {
		a.exporter.Track(r, mode)
	}

	if cfg.Dashboard {
		dash, err := dashboard.New(r, dashboard.RunInfo{
			Target:        cfg.Target,
			Mode:          mode,
			Concurrency:   cfg.Concurrency,
			PerConnection: cfg.PerConnection(),
			BatchSize:     cfg.BatchSize,
			ConnectRate:   cfg.ConnectRate,
			RequestBytes:  len(a.request),
			ConfigFile:    cfg.ConfigFile,
		}, r.Stop)
		if err != nil {
			r.Stop()
			return output.Report{}, err
		}
		dash.Start()
		defer dash.Stop()
	}

	if cfg.Progress {
		progress := output.NewProgressReporter(r, progressInterval, a.stderr)
		progress.Start()
		defer progress.Stop()
	}

	res, err := r.Wait(ctx)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, runner.ErrStopped) {
			return output.Report{}, errInterrupted
		}
		return output.Report{}, err
	}

	rep := output.NewReport(res)
	if len(a.thresholds) > 0 {
		results := threshold.NewEvaluator(a.thresholds).Evaluate(rep)
		rep.Thresholds = threshold.Outcomes(results)
	}
	return rep, a.publish(cfg, rep)
}

// publish prints the report and writes it to the configured files.
func (a *app) publish(cfg config.Config, rep output.Report) error {
	if cfg.JSONOutput {
		if err := output.PrintJSONReport(a.stdout, rep); err != nil {
			return err
		}
	} else {
		output.PrintReport(a.out, rep)
	}

	if cfg.OutputFile != "" {
		if err := output.WriteFile(cfg.OutputFile, rep); err != nil {
			return err
		}
		a.log.Logf(console.ToneInfo, "report written to %s", cfg.OutputFile)
	}

	var previous []output.Report
	if cfg.HistoryFile != "" {
		var err error
		if previous, err = history.Load(cfg.HistoryFile); err != nil {
			return err
		}
		if err := history.Append(cfg.HistoryFile, rep); err != nil {
			return err
		}
	}

	if cfg.HTMLOutput != "" {
		if err := writeHTML(cfg.HTMLOutput, rep, history.Last(previous, historyInReport)); err != nil {
			return err
		}
		a.log.Logf(console.ToneInfo, "HTML report written to %s", cfg.HTMLOutput)
	}
	return nil
}

func writeHTML(path string, rep output.Report, previous []output.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create HTML report: %w", err)
	}
	if err := output.GenerateHTMLReport(f, rep, previous); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func toRunnerMode(m config.Mode) runner.Mode {
	if m == config.ModeRequestResponse {
		return runner.ModeRequestResponse
	}
	return runner.ModePipelined
}
