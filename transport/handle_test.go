package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-mw4ota/protocol"
)

type nopSession struct{}

func (nopSession) ReadValue(context.Context, protocol.Endpoint) ([]byte, error) { return nil, nil }
func (nopSession) WriteValueConfirmed(context.Context, protocol.Endpoint, []byte) error {
	return nil
}
func (nopSession) Subscribe(context.Context, protocol.Endpoint, func([]byte)) (Subscription, error) {
	return SubscriptionFunc(func() error { return nil }), nil
}
func (nopSession) Close() error { return nil }

func TestHandleAcquireIsExclusive(t *testing.T) {
	h := NewHandle(nopSession{})

	sess, release, err := h.Acquire("firmware update")
	require.NoError(t, err)
	require.NotNil(t, sess)

	_, _, err = h.Acquire("set text")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Contains(t, err.Error(), "firmware update in progress")

	release()
	release() // second call is a no-op

	_, release2, err := h.Acquire("set text")
	require.NoError(t, err)
	release2()
}

func TestNewHandleNilPanics(t *testing.T) {
	assert.Panics(t, func() { NewHandle(nil) })
}

func TestErrorTypes(t *testing.T) {
	inner := errors.New("att error 0x0e")
	te := &TransportError{Op: "write", Endpoint: protocol.EndpointData, Err: inner}
	assert.Equal(t, "write ota-data: att error 0x0e", te.Error())
	assert.ErrorIs(t, te, inner)
	assert.True(t, IsTransportError(te))

	ce := &ConnectError{Device: "AA:BB:CC:DD:EE:FF", Err: inner}
	assert.Contains(t, ce.Error(), "connect to AA:BB:CC:DD:EE:FF failed")
	assert.ErrorIs(t, ce, inner)

	anon := &ConnectError{Err: inner}
	assert.Equal(t, "connect failed: att error 0x0e", anon.Error())
}
