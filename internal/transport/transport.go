// Package transport provides the raw TCP capability the benchmark drives:
// connect to an endpoint, write payloads, and receive framed messages in
// arrival order through a callback.
//
// Each connection owns exactly one read loop, so message callbacks for a
// single connection never run concurrently with each other. Callbacks for
// different connections do.
package transport

import (
	"context"
	"errors"
)

// Role selects how a connection frames incoming bytes.
type Role int

const (
	// RoleProbe is the bootstrap connection used to discover the response length.
	RoleProbe Role = iota
	// RoleWorker is a load-generating connection reading fixed-length frames.
	RoleWorker
)

func (r Role) String() string {
	switch r {
	case RoleProbe:
		return "probe"
	case RoleWorker:
		return "worker"
	default:
		return "unknown"
	}
}

// ErrNotConnected is returned by Send before Connect succeeded.
var ErrNotConnected = errors.New("transport: not connected")

// Callbacks receive events from a connection's read loop.
type Callbacks struct {
	// OnMessage is called once per framed message. The slice is only valid
	// for the duration of the call.
	OnMessage func(msg []byte)
	// OnClose is called at most once when the read loop stops for any reason
	// other than CloseActive.
	OnClose func(err error)
}

// Conn is a single client connection.
type Conn interface {
	Connect(ctx context.Context, endpoint string) error
	// Send returns once the whole payload has been handed to the kernel.
	Send(ctx context.Context, payload []byte) error
	// CloseActive tears the connection down. It is safe to call more than once
	// and from inside OnMessage.
	CloseActive() error
}

// Factory builds connections for a role. frameLen is ignored for RoleProbe.
type Factory interface {
	New(role Role, frameLen int, cb Callbacks) Conn
}
