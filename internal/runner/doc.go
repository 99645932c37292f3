// Package runner is the benchmark engine: it probes the target once to learn
// the response size, opens the worker connections, drives them in pipelined
// or request-response mode, and detects completion.
//
// # Lifecycle
//
//	bench := runner.New(runner.Options{
//		Target:        "127.0.0.1:8080",
//		Mode:          runner.ModePipelined,
//		Concurrency:   100,
//		PerConnection: 10000,
//		Request:       req,
//		Factory:       &transport.TCPFactory{},
//	})
//	run, err := bench.Start(ctx)
//	if err != nil {
//		return err
//	}
//	result, err := run.Wait(ctx)
//
// Start returns only after every connection is established and sending has
// begun. Each call creates a new [RunState], so the same Bench can be started
// again for a restart.
//
// # Completion
//
// Every connection counts its own responses. When a connection reaches its
// quota it closes itself and increments the shared finished counter; the
// connection whose increment equals the concurrency completes the run and
// invokes Options.OnComplete exactly once. A connection that fails or is
// closed by the server aborts the run and Wait returns the cause.
//
// # Modes
//
//   - [ModePipelined] writes PerConnection/BatchSize batches of BatchSize
//     concatenated requests back to back.
//   - [ModeRequestResponse] keeps one request outstanding and sends the next
//     from the receive path. Round-trip latency is recorded only here.
package runner
