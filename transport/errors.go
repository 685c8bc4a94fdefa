package transport

import (
	"errors"
	"fmt"

	"github.com/moffa90/go-mw4ota/protocol"
)

// ErrBusy is returned when another operation already owns the link.
var ErrBusy = errors.New("transport: link is busy with another operation")

// ErrClosed is returned for calls on a closed session.
var ErrClosed = errors.New("transport: session closed")

// ConnectError indicates the device could not be reached or rejected the connection.
type ConnectError struct {
	// Device is the address or name that was targeted
	Device string

	Err error
}

func (e *ConnectError) Error() string {
	if e.Device == "" {
		return fmt.Sprintf("connect failed: %v", e.Err)
	}
	return fmt.Sprintf("connect to %s failed: %v", e.Device, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// TransportError indicates a read, write or subscribe failed at the link layer.
type TransportError struct {
	// Op is "read", "write" or "subscribe"
	Op string

	// Endpoint is the characteristic involved
	Endpoint protocol.Endpoint

	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransportError returns true if the error is or wraps a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
