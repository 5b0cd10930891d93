package ports

import (
	"errors"
	"time"
)

// ErrIdleShutdown is reported by a Receiver whose idle window elapsed with
// no frames arriving. It signals a clean pipeline shutdown, not a fault.
var ErrIdleShutdown = errors.New("receiver idle timeout")

// ErrTransportUnavailable is reported after the receive endpoint failed
// beyond the configured retry budget.
var ErrTransportUnavailable = errors.New("transport unavailable")

// FrameHandler consumes one raw datagram. The frame slice is borrowed from
// the receiver's buffer and is only valid for the duration of the call;
// implementations must copy anything they keep.
type FrameHandler func(frame []byte, recvAt time.Time)

// Receiver delivers raw frames from the upstream transport into the
// pipeline. Start returns once the endpoint is bound; delivery happens on
// a background goroutine that calls the handler synchronously per frame.
type Receiver interface {
	Start(h FrameHandler) error
	Stop() error

	// Done is closed when the receive loop exits for any reason.
	Done() <-chan struct{}
	// Err reports why the loop exited: ErrIdleShutdown for a clean idle
	// stop, ErrTransportUnavailable after exhausted retries, nil after Stop.
	Err() error
}
