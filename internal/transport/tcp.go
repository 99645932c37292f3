package transport

import (
	"bufio"
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/torosent/pipefire/internal/clientmetrics"
)

const defaultReadBufferSize = 64 * 1024

// TCPFactory creates TCP connections.
type TCPFactory struct {
	DialTimeout    time.Duration // 0 means no dial timeout beyond the context
	ProbeFraming   Framing       // framing used by RoleProbe connections
	ReadBufferSize int           // bufio reader size per connection
}

// New implements Factory.
func (f *TCPFactory) New(role Role, frameLen int, cb Callbacks) Conn {
	var framer Framer
	if role == RoleProbe {
		framer = f.ProbeFraming.newFramer()
	} else {
		framer = NewFixedLength(frameLen)
	}
	size := f.ReadBufferSize
	if size <= 0 {
		size = defaultReadBufferSize
	}
	return &TCPConn{
		role:        role,
		framer:      framer,
		cb:          cb,
		dialTimeout: f.DialTimeout,
		bufSize:     size,
		metrics:     clientmetrics.New(),
		done:        make(chan struct{}),
	}
}

// TCPConn is a Conn over net.Conn with a single read loop goroutine.
type TCPConn struct {
	role        Role
	framer      Framer
	cb          Callbacks
	dialTimeout time.Duration
	bufSize     int
	metrics     *clientmetrics.ConnMetrics

	writeMu sync.Mutex
	conn    net.Conn
	closed  atomic.Bool
	done    chan struct{}
}

// Connect dials endpoint and starts the read loop.
func (c *TCPConn) Connect(ctx context.Context, endpoint string) error {
	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		c.metrics.RecordError()
		return err
	}
	c.conn = conn
	c.metrics.MarkConnected()
	go c.readLoop(bufio.NewReaderSize(conn, c.bufSize))
	return nil
}

// Send writes payload in full. Concurrent callers are serialized.
func (c *TCPConn) Send(ctx context.Context, payload []byte) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	if c.closed.Load() {
		return net.ErrClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetWriteDeadline(time.Now())
	})
	defer stop()

	n, err := c.conn.Write(payload)
	if err != nil {
		c.metrics.RecordError()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	c.metrics.RecordSent(n)
	return nil
}

// CloseActive closes the socket once; later calls are no-ops.
func (c *TCPConn) CloseActive() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Done is closed when the read loop has exited.
func (c *TCPConn) Done() <-chan struct{} {
	return c.done
}

// Metrics returns the connection's counters.
func (c *TCPConn) Metrics() clientmetrics.Snapshot {
	return c.metrics.Snapshot()
}

// Role reports the role this connection was built for.
func (c *TCPConn) Role() Role {
	return c.role
}

func (c *TCPConn) readLoop(r *bufio.Reader) {
	defer close(c.done)
	for {
		msg, err := c.framer.Next(r)
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.metrics.RecordError()
			_ = c.CloseActive()
			if c.cb.OnClose != nil {
				c.cb.OnClose(err)
			}
			return
		}
		c.metrics.RecordReceived(len(msg))
		if c.cb.OnMessage != nil {
			c.cb.OnMessage(msg)
		}
		// Bytes already buffered must not be delivered after the owner closed us.
		if c.closed.Load() {
			return
		}
	}
}
