package runner

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/pipefire/internal/clientmetrics"
	"github.com/torosent/pipefire/internal/console"
	"github.com/torosent/pipefire/internal/metrics"
	"github.com/torosent/pipefire/internal/pool"
	"github.com/torosent/pipefire/internal/request"
	"github.com/torosent/pipefire/internal/tracing"
	"github.com/torosent/pipefire/internal/transport"
)

var (
	// ErrNoFactory is returned by Start when Options.Factory is nil.
	ErrNoFactory = errors.New("transport factory is required")
	// ErrStopped is the abort cause recorded by Stop.
	ErrStopped = errors.New("run stopped")
)

// Result captures the outcome of a completed run.
type Result struct {
	RunID         string
	Target        string
	Mode          Mode
	Concurrency   int
	PerConnection int64
	TotalRequests int64
	Responses     int64
	Elapsed       time.Duration
	RequestBytes  int
	FrameLength   int
	Transfer      clientmetrics.Snapshot
	RoundTrip     *metrics.Stats // round-trip latency, only in req-res mode
}

// Bench orchestrates one benchmark configuration. Each Start creates a fresh
// run with its own counters, clock and connections, so a Bench can be
// restarted any number of times.
type Bench struct {
	opt Options
}

func New(opt Options) *Bench {
	opt.normalize()
	return &Bench{opt: opt}
}

// Options returns the normalized configuration.
func (b *Bench) Options() Options { return b.opt }

// Start probes the target, opens every worker connection, and launches the
// load. It returns once all workers are sending; use Wait for the outcome.
// Any connect or probe failure aborts before load starts and is returned as
// a *ConnectionError.
func (b *Bench) Start(ctx context.Context) (*Run, error) {
	opt := b.opt
	if opt.Factory == nil {
		return nil, ErrNoFactory
	}
	if err := opt.validate(); err != nil {
		return nil, err
	}

	state := NewRunState(opt.Concurrency, opt.PerConnection)
	runCtx, cancel := context.WithCancel(ctx)
	runCtx, span := tracing.StartPhase(runCtx, opt.Tracer, "run",
		attribute.String("pipefire.run_id", state.ID()),
		attribute.String("pipefire.target", opt.Target),
		attribute.String("pipefire.mode", opt.Mode.String()),
		attribute.Int("pipefire.concurrency", opt.Concurrency),
		attribute.Int64("pipefire.per_connection", opt.PerConnection),
	)

	r := &Run{
		opt:       opt,
		state:     state,
		pool:      pool.NewConnectionPool(opt.Concurrency),
		collector: metrics.NewCollector(),
		interval:  state.SnapshotInterval(),
		cancel:    cancel,
		span:      span,
		finished:  make(chan struct{}),
	}
	if opt.Mode == ModePipelined {
		r.batch = request.Batch(opt.Request, opt.BatchSize)
	}

	abortStart := func(err error) (*Run, error) {
		if !state.Abort(err) {
			return nil, state.Err()
		}
		r.finalize(err)
		return nil, err
	}

	log := opt.Logger
	log.Logf(console.ToneInfo, "target server: %s", opt.Target)
	log.Logf(console.ToneInfo, "testing if available...")

	frameLen, err := b.probe(runCtx)
	if err != nil {
		return abortStart(&ConnectionError{Role: transport.RoleProbe, Endpoint: opt.Target, Err: err})
	}
	r.frameLen = frameLen
	log.Logf(console.ToneInfo, "test ok!")

	workers, err := r.connect(runCtx)
	if err != nil {
		return abortStart(err)
	}
	// A worker connection may already have dropped while the rest were dialing.
	select {
	case <-state.Done():
		return nil, state.Err()
	default:
	}

	log.Logf(console.ToneInfo, "all connections are established!")
	log.Logf(console.ToneInfo, "send %s http requests in %s for each connection...",
		console.CountOrInfinity(opt.PerConnection), opt.Mode)
	log.Logf(console.ToneInfo, "total %s http requests.", console.CountOrInfinity(opt.TotalRequests()))
	log.Logf(console.ToneInfo, "start to send concurrently...")

	span.AddEvent("load started")
	state.StartClock()
	for _, w := range workers {
		go w.start()
	}
	go func() {
		select {
		case <-runCtx.Done():
			r.abort(context.Cause(runCtx))
		case <-r.finished:
		}
	}()
	return r, nil
}

func (b *Bench) probe(ctx context.Context) (int, error) {
	ctx, span := tracing.StartPhase(ctx, b.opt.Tracer, "probe")
	if b.opt.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opt.ProbeTimeout)
		defer cancel()
	}

	b.opt.Logger.Logf(console.ToneInfo, "=== REQUEST ( %d bytes) ===", len(b.opt.Request))
	b.opt.Logger.Logf(console.TonePayload, "%s", b.opt.Request)

	frameLen, err := Probe(ctx, b.opt.Factory, b.opt.Target, b.opt.Request, b.opt.Logger)
	tracing.EndSpan(span, err, attribute.Int("pipefire.frame_length", frameLen))
	return frameLen, err
}

// Run is one in-flight execution started by Bench.Start.
type Run struct {
	opt       Options
	state     *RunState
	pool      *pool.ConnectionPool
	collector *metrics.Collector
	batch     []byte
	interval  int64
	frameLen  int
	cancel    context.CancelFunc
	span      trace.Span

	finished chan struct{}
	result   Result
	err      error
}

// connect opens the worker connections one at a time, paced by ConnectRate.
func (r *Run) connect(runCtx context.Context) (workers []*worker, err error) {
	opt := r.opt
	ctx, span := tracing.StartPhase(runCtx, opt.Tracer, "connect",
		attribute.Int("pipefire.connections", opt.Concurrency))
	defer func() { tracing.EndSpan(span, err) }()

	opt.Logger.Logf(console.ToneInfo, "start to connect %s http connections...", console.Count(int64(opt.Concurrency)))
	limiter := opt.LimiterFactory(opt.ConnectRate)
	workers = make([]*worker, opt.Concurrency)
	for i := range workers {
		if werr := limiter.Wait(ctx); werr != nil {
			return nil, &ConnectionError{Role: transport.RoleWorker, Index: i, Endpoint: opt.Target, Err: werr}
		}
		w := &worker{id: i, run: r, ctx: runCtx}
		w.conn = opt.Factory.New(transport.RoleWorker, r.frameLen, w.callbacks())
		if cerr := w.conn.Connect(ctx, opt.Target); cerr != nil {
			return nil, &ConnectionError{Role: transport.RoleWorker, Index: i, Endpoint: opt.Target, Err: cerr}
		}
		_ = r.pool.Add(w.conn)
		workers[i] = w
	}
	return workers, nil
}

func (r *Run) abort(err error) {
	if r.state.Abort(err) {
		r.finalize(err)
	}
}

// finalize runs once, by whoever completed the RunState.
func (r *Run) finalize(err error) {
	r.cancel()
	_ = r.pool.Close()
	if err != nil {
		r.err = err
		tracing.EndSpan(r.span, err, attribute.Int64("pipefire.responses", r.state.Snapshot().Responses))
	} else {
		r.result = r.buildResult()
		if r.opt.OnComplete != nil {
			r.opt.OnComplete(r.result)
		}
		tracing.EndSpan(r.span, nil,
			attribute.Int64("pipefire.responses", r.result.Responses),
			attribute.Int64("pipefire.elapsed_us", r.result.Elapsed.Microseconds()),
		)
	}
	close(r.finished)
}

func (r *Run) buildResult() Result {
	snap := r.state.Snapshot()
	res := Result{
		RunID:         snap.RunID,
		Target:        r.opt.Target,
		Mode:          r.opt.Mode,
		Concurrency:   r.opt.Concurrency,
		PerConnection: r.opt.PerConnection,
		TotalRequests: r.opt.TotalRequests(),
		Responses:     snap.Responses,
		Elapsed:       snap.Elapsed,
		RequestBytes:  len(r.opt.Request),
		FrameLength:   r.frameLen,
		Transfer:      r.pool.Totals(),
	}
	if r.opt.Mode == ModeRequestResponse {
		stats := r.collector.Stats()
		res.RoundTrip = &stats
	}
	return res
}

// Wait blocks until the run completes, aborts, or ctx is done. Cancelling
// ctx stops the run and closes every connection.
func (r *Run) Wait(ctx context.Context) (Result, error) {
	select {
	case <-r.finished:
	case <-ctx.Done():
		r.abort(ctx.Err())
		<-r.finished
	}
	return r.result, r.err
}

// Stop aborts the run and closes every connection. It is a no-op once the run is over.
func (r *Run) Stop() { r.abort(ErrStopped) }

// Done is closed after the run is finalized.
func (r *Run) Done() <-chan struct{} { return r.finished }

// State exposes the live counters for progress displays.
func (r *Run) State() *RunState { return r.state }

// FrameLength is the response size discovered by the probe.
func (r *Run) FrameLength() int { return r.frameLen }

// Transfer sums the byte and message counters of every worker connection.
func (r *Run) Transfer() clientmetrics.Snapshot { return r.pool.Totals() }

// Snapshot reads the live counters.
func (r *Run) Snapshot() Snapshot { return r.state.Snapshot() }

// Mode is the send protocol of this run.
func (r *Run) Mode() Mode { return r.opt.Mode }

// RoundTrip summarizes the latencies recorded so far. It is empty in
// pipelined mode.
func (r *Run) RoundTrip() metrics.Stats { return r.collector.Stats() }
