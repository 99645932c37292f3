// Package promexport serves the live progress counters of the current run
// on a Prometheus scrape endpoint.
package promexport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/torosent/pipefire/internal/runner"
)

// Source exposes a run's counters.
type Source interface {
	Snapshot() runner.Snapshot
}

var (
	responsesDesc = prometheus.NewDesc("pipefire_responses_total",
		"Responses received in the current run.", []string{"run_id", "mode"}, nil)
	connectionsDesc = prometheus.NewDesc("pipefire_connections",
		"Worker connections in the current run.", []string{"run_id"}, nil)
	sendingDesc = prometheus.NewDesc("pipefire_connections_sending",
		"Connections that have started sending.", []string{"run_id"}, nil)
	finishedDesc = prometheus.NewDesc("pipefire_connections_finished",
		"Connections that have received their full quota.", []string{"run_id"}, nil)
	targetDesc = prometheus.NewDesc("pipefire_requests_target",
		"Requests the run will send in total, -1 when unbounded.", []string{"run_id"}, nil)
	elapsedDesc = prometheus.NewDesc("pipefire_elapsed_seconds",
		"Time since the run clock started.", []string{"run_id"}, nil)
	throughputDesc = prometheus.NewDesc("pipefire_throughput_rps",
		"Responses per second so far.", []string{"run_id"}, nil)
)

// Exporter is a prometheus.Collector reading whichever run is current.
// Runs are swapped in with Track as the session restarts.
type Exporter struct {
	mu     sync.RWMutex
	source Source
	mode   string

	runs      prometheus.Counter
	completed prometheus.Counter
}

// NewExporter returns an Exporter with no run attached.
func NewExporter() *Exporter {
	return &Exporter{
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipefire_runs_started_total",
			Help: "Runs started in this session.",
		}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipefire_runs_completed_total",
			Help: "Runs that received every response of their quota.",
		}),
	}
}

// Track makes source the current run.
func (e *Exporter) Track(source Source, mode runner.Mode) {
	e.mu.Lock()
	e.source = source
	e.mode = mode.String()
	e.mu.Unlock()
	e.runs.Inc()
}

// Completed records a run that met its quota.
func (e *Exporter) Completed() {
	e.completed.Inc()
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- responsesDesc
	ch <- connectionsDesc
	ch <- sendingDesc
	ch <- finishedDesc
	ch <- targetDesc
	ch <- elapsedDesc
	ch <- throughputDesc
	e.runs.Describe(ch)
	e.completed.Describe(ch)
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	e.runs.Collect(ch)
	e.completed.Collect(ch)

	e.mu.RLock()
	source, mode := e.source, e.mode
	e.mu.RUnlock()
	if source == nil {
		return
	}

	s := source.Snapshot()
	ch <- prometheus.MustNewConstMetric(responsesDesc, prometheus.CounterValue, float64(s.Responses), s.RunID, mode)
	ch <- prometheus.MustNewConstMetric(connectionsDesc, prometheus.GaugeValue, float64(s.Concurrency), s.RunID)
	ch <- prometheus.MustNewConstMetric(sendingDesc, prometheus.GaugeValue, float64(s.SendingStarted), s.RunID)
	ch <- prometheus.MustNewConstMetric(finishedDesc, prometheus.GaugeValue, float64(s.Finished), s.RunID)
	ch <- prometheus.MustNewConstMetric(targetDesc, prometheus.GaugeValue, float64(s.TotalRequests), s.RunID)
	ch <- prometheus.MustNewConstMetric(elapsedDesc, prometheus.GaugeValue, s.Elapsed.Seconds(), s.RunID)
	ch <- prometheus.MustNewConstMetric(throughputDesc, prometheus.GaugeValue, s.Throughput, s.RunID)
}

// Server is a running /metrics endpoint.
type Server struct {
	srv      *http.Server
	listener net.Listener
	done     chan error
}

// Serve registers e on a fresh registry and serves it on addr until
// Shutdown. addr may use port 0.
func Serve(addr string, e *Exporter) (*Server, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(e); err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s := &Server{
		srv:      &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		listener: ln,
		done:     make(chan error, 1),
	}
	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()
	return s, nil
}

// Addr is the bound listen address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown stops the server and waits for it to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return err
	}
	return <-s.done
}
