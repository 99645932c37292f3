package pool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/torosent/pipefire/internal/clientmetrics"
	"github.com/torosent/pipefire/internal/transport"
)

// MetricsProvider allows connections to expose their counters.
type MetricsProvider interface {
	Metrics() clientmetrics.Snapshot
}

// ConnectionPool holds every live connection of one run so they can be
// closed as a unit on cancel or restart. Connections still close themselves
// when their quota is met; closing twice is harmless.
type ConnectionPool struct {
	mu     sync.Mutex
	conns  []transport.Conn
	closed bool
}

// NewConnectionPool creates a pool sized for the expected connection count.
func NewConnectionPool(size int) *ConnectionPool {
	if size < 0 {
		size = 0
	}
	return &ConnectionPool{conns: make([]transport.Conn, 0, size)}
}

// Add registers a connected connection. Adding to a closed pool closes conn immediately.
func (p *ConnectionPool) Add(conn transport.Conn) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return conn.CloseActive()
	}
	p.conns = append(p.conns, conn)
	p.mu.Unlock()
	return nil
}

// Len returns the number of registered connections.
func (p *ConnectionPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Totals sums the counters of every connection that exposes them.
func (p *ConnectionPool) Totals() clientmetrics.Snapshot {
	p.mu.Lock()
	conns := append([]transport.Conn(nil), p.conns...)
	p.mu.Unlock()

	var total clientmetrics.Snapshot
	for _, c := range conns {
		if mp, ok := c.(MetricsProvider); ok {
			total = total.Add(mp.Metrics())
		}
	}
	return total
}

// Close closes every registered connection and rejects later additions.
func (p *ConnectionPool) Close() error {
	p.mu.Lock()
	conns := p.conns
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for i, c := range conns {
		if err := c.CloseActive(); err != nil {
			errs = append(errs, fmt.Errorf("connection %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
