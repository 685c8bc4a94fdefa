package transport

import (
	"context"

	"github.com/moffa90/go-mw4ota/protocol"
)

// Connector opens a session to a device.
type Connector interface {
	// Connect establishes the link and resolves every endpoint.
	// Failures are reported as *ConnectError.
	Connect(ctx context.Context) (Session, error)
}

// Session is a live link to one device. Every call may block until the link
// answers; implementations must honor ctx for all of them and must not return
// from WriteValueConfirmed while the write is still pending on the link.
//
// Failures are reported as *TransportError.
type Session interface {
	// ReadValue reads the current value of an endpoint.
	ReadValue(ctx context.Context, ep protocol.Endpoint) ([]byte, error)

	// WriteValueConfirmed writes p and waits for the device's write response.
	WriteValueConfirmed(ctx context.Context, ep protocol.Endpoint, p []byte) error

	// Subscribe registers onNotify for value-changed notifications on ep.
	// Implementations deliver notifications one at a time, in order.
	Subscribe(ctx context.Context, ep protocol.Endpoint, onNotify func([]byte)) (Subscription, error)

	// Close disconnects from the device.
	Close() error
}

// Subscription is an active notification registration.
type Subscription interface {
	// Unsubscribe stops notifications. Safe to call more than once.
	Unsubscribe() error
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func() error

// Unsubscribe calls f.
func (f SubscriptionFunc) Unsubscribe() error {
	return f()
}
