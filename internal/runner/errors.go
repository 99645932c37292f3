package runner

import (
	"errors"
	"fmt"

	"github.com/torosent/pipefire/internal/transport"
)

var (
	// ErrZeroQuota is returned when each connection would be asked for zero responses.
	ErrZeroQuota = errors.New("per-connection request count must not be zero")
	// ErrBatchSize is returned when a pipelined quota is not a whole number of batches.
	ErrBatchSize = errors.New("per-connection request count must be a multiple of the batch size in pipelined mode")
	// ErrNoRequest is returned when the request payload is empty.
	ErrNoRequest = errors.New("request payload is empty")
)

// ConnectionError reports a failed connect (or initial probe exchange). It is
// fatal for the whole run.
type ConnectionError struct {
	Role     transport.Role
	Index    int // worker index; unused for the probe
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Role == transport.RoleProbe {
		return fmt.Sprintf("probe connection to %s failed: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("worker %d connection to %s failed: %v", e.Index, e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SendError reports a failed write on an established worker connection.
type SendError struct {
	Worker int
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("worker %d send failed: %v", e.Worker, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// ClosedError reports a worker connection closed by the peer before its quota was met.
type ClosedError struct {
	Worker    int
	Responses int64
	Quota     int64
	Err       error
}

func (e *ClosedError) Error() string {
	quota := "unbounded"
	if e.Quota > 0 {
		quota = fmt.Sprintf("%d", e.Quota)
	}
	return fmt.Sprintf("worker %d connection closed after %d of %s responses: %v", e.Worker, e.Responses, quota, e.Err)
}

func (e *ClosedError) Unwrap() error { return e.Err }
