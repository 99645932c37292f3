package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/torosent/pipefire/internal/console"
	"github.com/torosent/pipefire/internal/transport"
)

// ErrProbeClosed is returned when the server closes the probe connection
// before the second response arrives.
var ErrProbeClosed = errors.New("connection closed during probe")

type probeOutcome struct {
	frameLen int
	err      error
}

// Probe opens one connection to endpoint, sends payload, re-sends it when the
// first response arrives, and returns the byte length of the second response.
// That length becomes the fixed frame size of every worker connection. The
// probe connection is always closed before Probe returns.
func Probe(ctx context.Context, factory transport.Factory, endpoint string, payload []byte, logger Logger) (int, error) {
	if logger == nil {
		logger = console.Discard
	}
	if len(payload) == 0 {
		return 0, ErrNoRequest
	}

	result := make(chan probeOutcome, 1)
	deliver := func(o probeOutcome) {
		select {
		case result <- o:
		default:
		}
	}

	var conn transport.Conn
	responses := 0
	conn = factory.New(transport.RoleProbe, 0, transport.Callbacks{
		OnMessage: func(msg []byte) {
			responses++
			logger.Logf(console.ToneInfo, "=== RESPONSE%d ( %d bytes) ===", responses, len(msg))
			logger.Logf(console.TonePayload, "%s", msg)
			switch responses {
			case 1:
				if err := conn.Send(ctx, payload); err != nil {
					deliver(probeOutcome{err: fmt.Errorf("re-send: %w", err)})
				}
			case 2:
				deliver(probeOutcome{frameLen: len(msg)})
			}
		},
		OnClose: func(err error) {
			if err == nil {
				err = ErrProbeClosed
			}
			deliver(probeOutcome{err: err})
		},
	})
	defer conn.CloseActive()

	if err := conn.Connect(ctx, endpoint); err != nil {
		return 0, err
	}
	if err := conn.Send(ctx, payload); err != nil {
		return 0, err
	}

	select {
	case o := <-result:
		return o.frameLen, o.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
