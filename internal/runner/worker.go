package runner

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/torosent/pipefire/internal/console"
	"github.com/torosent/pipefire/internal/transport"
)

// worker drives one load connection. received is only touched from the
// connection's read loop; everything shared with the send path is atomic.
type worker struct {
	id   int
	run  *Run
	conn transport.Conn
	ctx  context.Context

	sent     atomic.Int64
	received int64
	started  atomic.Bool
	finished atomic.Bool
	lastSend atomic.Int64 // monotonic nanos of the outstanding request in req-res mode
}

func (w *worker) callbacks() transport.Callbacks {
	return transport.Callbacks{OnMessage: w.onMessage, OnClose: w.onClose}
}

// start issues the initial traffic. In pipelined mode it owns the whole send
// loop; in req-res mode it sends one request and the read loop takes over.
func (w *worker) start() {
	r := w.run
	if r.opt.Mode == ModeRequestResponse {
		w.send(r.opt.Request, 1)
		return
	}

	batches := int64(-1)
	if r.opt.PerConnection > 0 {
		batches = r.opt.PerConnection / int64(r.opt.BatchSize)
	}
	for i := int64(0); batches < 0 || i < batches; i++ {
		if w.ctx.Err() != nil || w.finished.Load() {
			return
		}
		if !w.send(r.batch, r.opt.BatchSize) {
			return
		}
	}
}

func (w *worker) send(payload []byte, n int) bool {
	r := w.run
	if w.started.CompareAndSwap(false, true) {
		started := r.state.MarkSending()
		if isMilestone(started, r.state.concurrency) {
			r.opt.Logger.Logf(console.ToneStarted, "▲ %s clients have started sending %s requests.",
				console.Count(started), console.CountOrInfinity(r.opt.PerConnection))
		}
	}
	if r.opt.Mode == ModeRequestResponse {
		w.lastSend.Store(monotonicNow())
	}
	if err := w.conn.Send(w.ctx, payload); err != nil {
		w.fail(&SendError{Worker: w.id, Err: err})
		return false
	}
	w.sent.Add(int64(n))
	return true
}

func (w *worker) onMessage(msg []byte) {
	if w.finished.Load() {
		return
	}
	r := w.run
	if r.opt.Mode == ModeRequestResponse {
		r.collector.Record(w.id, time.Duration(monotonicNow()-w.lastSend.Load()))
	}

	w.received++
	total := r.state.ResponseReceived()
	if total%r.interval == 0 {
		snap := r.state.Snapshot()
		r.opt.Logger.Logf(console.ToneSnapshot, "● total received: %s responses, throughput: %s req/s",
			console.Count(total), console.Count(int64(snap.Throughput)))
	}

	if r.opt.PerConnection > 0 && w.received == r.opt.PerConnection {
		w.complete()
		return
	}

	if r.opt.Mode == ModeRequestResponse {
		w.send(r.opt.Request, 1)
	}
}

func (w *worker) complete() {
	if !w.finished.CompareAndSwap(false, true) {
		return
	}
	r := w.run
	n, last := r.state.Finish()
	if isMilestone(n, r.state.concurrency) {
		r.opt.Logger.Logf(console.ToneFinished, "■ %s clients have completed %s requests.",
			console.Count(n), console.Count(r.opt.PerConnection))
	}
	_ = w.conn.CloseActive()
	if last {
		r.finalize(nil)
	}
}

func (w *worker) onClose(err error) {
	if w.finished.Load() || w.ctx.Err() != nil {
		return
	}
	w.fail(&ClosedError{Worker: w.id, Responses: w.received, Quota: w.run.opt.PerConnection, Err: err})
}

func (w *worker) fail(err error) {
	if w.finished.Load() || w.ctx.Err() != nil {
		return
	}
	w.run.abort(err)
}
