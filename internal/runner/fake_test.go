package runner_test

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/torosent/pipefire/internal/transport"
)

// fakeFactory answers every request with one frame of respLen bytes. Probe
// connections answer with probeLens in order.
type fakeFactory struct {
	reqLen    int
	respLen   int
	probeLens []int
	// failConnect, when set, decides whether Connect fails for worker i.
	failConnect func(i int) error
	// closeAfter makes worker connections report a remote close after that many responses.
	closeAfter int

	mu             sync.Mutex
	conns          []*fakeConn
	workers        int
	maxOutstanding atomic.Int64
	probeSends     atomic.Int64
}

func (f *fakeFactory) New(role transport.Role, frameLen int, cb transport.Callbacks) transport.Conn {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &fakeConn{
		f:     f,
		role:  role,
		index: f.workers,
		cb:    cb,
		queue: make(chan int, 1024),
		done:  make(chan struct{}),
	}
	if role == transport.RoleWorker {
		f.workers++
		c.frameLen = frameLen
	}
	f.conns = append(f.conns, c)
	return c
}

func (f *fakeFactory) workerConns() []*fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*fakeConn
	for _, c := range f.conns {
		if c.role == transport.RoleWorker {
			out = append(out, c)
		}
	}
	return out
}

type fakeConn struct {
	f        *fakeFactory
	role     transport.Role
	index    int
	frameLen int
	cb       transport.Callbacks

	queue       chan int
	outstanding atomic.Int64
	delivered   int
	closed      atomic.Bool
	closeOnce   sync.Once
	done        chan struct{}
}

func (c *fakeConn) Connect(ctx context.Context, endpoint string) error {
	if c.role == transport.RoleWorker && c.f.failConnect != nil {
		if err := c.f.failConnect(c.index); err != nil {
			return err
		}
	}
	go c.loop()
	return nil
}

func (c *fakeConn) loop() {
	for {
		select {
		case n := <-c.queue:
			for i := 0; i < n; i++ {
				if c.closed.Load() {
					return
				}
				c.outstanding.Add(-1)
				c.cb.OnMessage(make([]byte, c.responseLen()))
				c.delivered++
				if c.role == transport.RoleWorker && c.f.closeAfter > 0 && c.delivered == c.f.closeAfter {
					c.CloseActive()
					c.cb.OnClose(io.EOF)
					return
				}
			}
		case <-c.done:
			return
		}
	}
}

func (c *fakeConn) responseLen() int {
	if c.role == transport.RoleProbe {
		if c.delivered < len(c.f.probeLens) {
			return c.f.probeLens[c.delivered]
		}
	}
	return c.f.respLen
}

func (c *fakeConn) Send(ctx context.Context, payload []byte) error {
	if c.closed.Load() {
		return net.ErrClosed
	}
	if c.role == transport.RoleProbe {
		c.f.probeSends.Add(1)
	}
	n := 1
	if c.f.reqLen > 0 {
		n = len(payload) / c.f.reqLen
	}
	out := c.outstanding.Add(int64(n))
	for {
		max := c.f.maxOutstanding.Load()
		if out <= max || c.f.maxOutstanding.CompareAndSwap(max, out) {
			break
		}
	}
	select {
	case c.queue <- n:
		return nil
	case <-c.done:
		return net.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeConn) CloseActive() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
	})
	return nil
}

func (c *fakeConn) isClosed() bool { return c.closed.Load() }

var errRefused = errors.New("connection refused")

func startEchoServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_, _ = io.Copy(conn, conn)
			}()
		}
	}()
	return ln.Addr().String()
}
