package clientmetrics

import (
	"sync/atomic"
	"time"
)

// ConnMetrics tracks message and byte counters for a single transport connection.
// Writers are the connection's send path and its read loop, which run on
// different goroutines, so every field is atomic.
type ConnMetrics struct {
	connectedAt  atomic.Int64
	messagesSent atomic.Int64
	messagesRecv atomic.Int64
	bytesSent    atomic.Int64
	bytesRecv    atomic.Int64
	errors       atomic.Int64
}

// New creates a new ConnMetrics instance.
func New() *ConnMetrics {
	return &ConnMetrics{}
}

// MarkConnected records the connection time.
func (m *ConnMetrics) MarkConnected() {
	m.connectedAt.Store(time.Now().UnixNano())
}

// RecordSent counts one write of n bytes.
func (m *ConnMetrics) RecordSent(n int) {
	m.messagesSent.Add(1)
	m.bytesSent.Add(int64(n))
}

// RecordReceived counts one framed message of n bytes.
func (m *ConnMetrics) RecordReceived(n int) {
	m.messagesRecv.Add(1)
	m.bytesRecv.Add(int64(n))
}

// RecordError increments the error counter.
func (m *ConnMetrics) RecordError() {
	m.errors.Add(1)
}

// ConnectionDuration returns how long the connection has been up, or 0 before MarkConnected.
func (m *ConnMetrics) ConnectionDuration() time.Duration {
	at := m.connectedAt.Load()
	if at == 0 {
		return 0
	}
	return time.Since(time.Unix(0, at))
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	ConnectionDuration time.Duration `json:"-"`
	MessagesSent       int64         `json:"messages_sent"`
	MessagesReceived   int64         `json:"messages_received"`
	BytesSent          int64         `json:"bytes_sent"`
	BytesReceived      int64         `json:"bytes_received"`
	Errors             int64         `json:"errors"`
}

// Snapshot loads every counter. Individual loads are atomic; the set is not.
func (m *ConnMetrics) Snapshot() Snapshot {
	return Snapshot{
		ConnectionDuration: m.ConnectionDuration(),
		MessagesSent:       m.messagesSent.Load(),
		MessagesReceived:   m.messagesRecv.Load(),
		BytesSent:          m.bytesSent.Load(),
		BytesReceived:      m.bytesRecv.Load(),
		Errors:             m.errors.Load(),
	}
}

// Add sums two snapshots; ConnectionDuration keeps the longer of the two.
func (s Snapshot) Add(o Snapshot) Snapshot {
	out := Snapshot{
		ConnectionDuration: s.ConnectionDuration,
		MessagesSent:       s.MessagesSent + o.MessagesSent,
		MessagesReceived:   s.MessagesReceived + o.MessagesReceived,
		BytesSent:          s.BytesSent + o.BytesSent,
		BytesReceived:      s.BytesReceived + o.BytesReceived,
		Errors:             s.Errors + o.Errors,
	}
	if o.ConnectionDuration > out.ConnectionDuration {
		out.ConnectionDuration = o.ConnectionDuration
	}
	return out
}
