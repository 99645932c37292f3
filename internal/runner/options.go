package runner

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/torosent/pipefire/internal/console"
	"github.com/torosent/pipefire/internal/transport"
)

// Mode selects the per-connection send protocol for a whole run.
type Mode int

const (
	// ModePipelined writes batches of requests back to back without waiting for responses.
	ModePipelined Mode = iota
	// ModeRequestResponse keeps exactly one request in flight per connection.
	ModeRequestResponse
)

func (m Mode) String() string {
	if m == ModeRequestResponse {
		return "req-res-mode"
	}
	return "pipelining-mode"
}

const (
	// DefaultBatchSize is the number of requests concatenated into one pipelined write.
	DefaultBatchSize = 1000
	// Unbounded as a per-connection count means the run never completes on its own.
	Unbounded int64 = -1
)

// Logger receives human-facing progress lines.
type Logger interface {
	Logf(tone console.Tone, format string, args ...any)
}

// Options configure a Bench.
type Options struct {
	Target         string            // host:port of the server under test
	Mode           Mode              // send protocol for every connection
	Concurrency    int               // number of worker connections
	PerConnection  int64             // responses each connection must receive (negative means unbounded, 0 is rejected)
	BatchSize      int               // requests per pipelined write
	Request        []byte            // one raw request
	Factory        transport.Factory // builds probe and worker connections (required)
	ConnectRate    int               // new worker connections per second during fan-out (0 means unlimited)
	ProbeTimeout   time.Duration     // bound on the probe exchange (0 means wait indefinitely)
	Logger         Logger            // progress output
	Tracer         trace.Tracer      // spans for probe, connect and load phases
	OnComplete     func(Result)      // called exactly once by the connection that completes the run
	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
}

func (o *Options) normalize() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.PerConnection < 0 {
		o.PerConnection = Unbounded
	}
	if o.ConnectRate < 0 {
		o.ConnectRate = 0
	}
	if o.Logger == nil {
		o.Logger = console.Discard
	}
	if o.Tracer == nil {
		o.Tracer = noop.NewTracerProvider().Tracer("pipefire")
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			return rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

func (o *Options) validate() error {
	if len(o.Request) == 0 {
		return ErrNoRequest
	}
	if o.PerConnection == 0 {
		return ErrZeroQuota
	}
	if o.Mode == ModePipelined && o.PerConnection > 0 && o.PerConnection%int64(o.BatchSize) != 0 {
		return ErrBatchSize
	}
	return nil
}

// TotalRequests is Concurrency*PerConnection, or Unbounded.
func (o *Options) TotalRequests() int64 {
	if o.PerConnection < 0 {
		return Unbounded
	}
	return int64(o.Concurrency) * o.PerConnection
}
