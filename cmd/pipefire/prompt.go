package main

import (
	"context"

	"github.com/torosent/pipefire/internal/config"
	"github.com/torosent/pipefire/internal/console"
	"github.com/torosent/pipefire/internal/gate"
)

const (
	modePrompt        = "input number to select request mode:  0: pipelining-mode  1: request-response-mode"
	concurrencyPrompt = "input the count of concurrency client:"
	requestsPrompt    = "input the count of request for each client ( unit: thousands ):"
)

var shapeQuestions = []gate.Question{
	{Prompt: modePrompt, Placeholder: "0"},
	{Prompt: concurrencyPrompt, Placeholder: "1"},
	{Prompt: requestsPrompt, Placeholder: "1"},
}

// promptShape asks for mode, concurrency and request count, starting from
// the loaded configuration for everything else. Invalid answers fall back
// with a warning instead of asking again.
func (a *app) promptShape(ctx context.Context) (config.Config, error) {
	cfg := *a.cfg

	answers, err := gate.Ask(ctx, a.stdin, a.stdout, shapeQuestions)
	if err != nil {
		return cfg, err
	}
	// the form clears itself; keep a transcript of what was asked
	for i, q := range shapeQuestions {
		a.out.Logf(console.ToneInfo, "%s %s", q.Prompt, answers[i])
	}

	mode, warn := config.ParseMode(answers[0])
	a.warn(warn)
	cfg.Mode = mode

	concurrency, warn := config.ParseConcurrency(answers[1])
	a.warn(warn)
	cfg.Concurrency = concurrency

	requests, warn := config.ParseRequestCount(answers[2])
	a.warn(warn)
	cfg.Requests = requests

	return cfg, nil
}

func (a *app) warn(msg string) {
	if msg != "" {
		a.out.Println(console.ToneWarn, msg)
	}
}
