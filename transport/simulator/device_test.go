package simulator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-mw4ota/protocol"
	"github.com/moffa90/go-mw4ota/transport"
)

func collect(t *testing.T, dev *Device) <-chan []byte {
	t.Helper()
	ch := make(chan []byte, 16)
	_, err := dev.Subscribe(context.Background(), protocol.EndpointControl, func(v []byte) { ch <- v })
	require.NoError(t, err)
	return ch
}

func next(t *testing.T, ch <-chan []byte) protocol.ControlCode {
	t.Helper()
	select {
	case v := <-ch:
		code, err := protocol.ParseControl(v)
		require.NoError(t, err)
		return code
	case <-time.After(time.Second):
		t.Fatal("no notification")
		return 0
	}
}

func TestDeviceProtocolFlow(t *testing.T) {
	dev := New(WithVersion(4))
	defer func() { _ = dev.Close() }()
	ctx := context.Background()

	v, err := dev.ReadValue(ctx, protocol.EndpointVersion)
	require.NoError(t, err)
	assert.Equal(t, []byte{4}, v)

	ch := collect(t, dev)
	require.NoError(t, dev.WriteValueConfirmed(ctx, protocol.EndpointControl, protocol.EncodeControl(protocol.ControlStart)))
	assert.Equal(t, protocol.ControlACK, next(t, ch))

	require.NoError(t, dev.WriteValueConfirmed(ctx, protocol.EndpointControl, protocol.EncodeControl(protocol.ControlNOP)))
	require.NoError(t, dev.WriteValueConfirmed(ctx, protocol.EndpointData, []byte{1, 2, 3}))
	require.NoError(t, dev.WriteValueConfirmed(ctx, protocol.EndpointData, []byte{4}))

	require.NoError(t, dev.WriteValueConfirmed(ctx, protocol.EndpointControl, protocol.EncodeControl(protocol.ControlEnd)))
	assert.Equal(t, protocol.ControlACK, next(t, ch))

	assert.Equal(t, []byte{1, 2, 3, 4}, dev.Image())
	assert.Equal(t, []int{3, 1}, dev.Chunks())
	assert.True(t, dev.Finished())
}

func TestDeviceRejectsDataOutsideTransfer(t *testing.T) {
	dev := New()
	defer func() { _ = dev.Close() }()

	err := dev.WriteValueConfirmed(context.Background(), protocol.EndpointData, []byte{1})
	require.Error(t, err)
	assert.True(t, transport.IsTransportError(err))
}

func TestDeviceRejectsOversizeWrite(t *testing.T) {
	dev := New()
	defer func() { _ = dev.Close() }()

	err := dev.WriteValueConfirmed(context.Background(), protocol.EndpointData, make([]byte, protocol.MaxPayloadSize+1))
	assert.Error(t, err)
}

func TestDeviceNackStart(t *testing.T) {
	dev := New(WithStartResponse(protocol.ControlNACK))
	defer func() { _ = dev.Close() }()
	ctx := context.Background()

	ch := collect(t, dev)
	require.NoError(t, dev.WriteValueConfirmed(ctx, protocol.EndpointControl, protocol.EncodeControl(protocol.ControlStart)))
	assert.Equal(t, protocol.ControlNACK, next(t, ch))

	require.NoError(t, dev.WriteValueConfirmed(ctx, protocol.EndpointControl, protocol.EncodeControl(protocol.ControlNOP)))
	assert.Error(t, dev.WriteValueConfirmed(ctx, protocol.EndpointData, []byte{1}), "rejected start never opens a transfer")
}

func TestDeviceDisplay(t *testing.T) {
	dev := New(WithText("hello"))
	defer func() { _ = dev.Close() }()
	ctx := context.Background()

	v, err := dev.ReadValue(ctx, protocol.EndpointText)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(v))

	require.NoError(t, dev.WriteValueConfirmed(ctx, protocol.EndpointText, []byte("MW4")))
	assert.Equal(t, "MW4", dev.Text())

	require.NoError(t, dev.WriteValueConfirmed(ctx, protocol.EndpointBrightness, []byte{200}))
	assert.Equal(t, byte(200), dev.Brightness())
	assert.Error(t, dev.WriteValueConfirmed(ctx, protocol.EndpointBrightness, []byte{1, 2}))
}

func TestDeviceConnect(t *testing.T) {
	dev := New()
	defer func() { _ = dev.Close() }()

	sess, err := dev.Connect(context.Background())
	require.NoError(t, err)
	assert.Same(t, dev, sess)

	failing := New(WithConnectError(errors.New("out of range")))
	defer func() { _ = failing.Close() }()

	_, err = failing.Connect(context.Background())
	var ce *transport.ConnectError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "simulator", ce.Device)
}

func TestDeviceWriteLatencyHonorsContext(t *testing.T) {
	dev := New(WithWriteLatency(time.Second))
	defer func() { _ = dev.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := dev.WriteValueConfirmed(ctx, protocol.EndpointText, []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDeviceClosed(t *testing.T) {
	dev := New()
	require.NoError(t, dev.Close())
	require.NoError(t, dev.Close())

	_, err := dev.ReadValue(context.Background(), protocol.EndpointVersion)
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestDeviceUnsubscribe(t *testing.T) {
	dev := New()
	defer func() { _ = dev.Close() }()

	sub, err := dev.Subscribe(context.Background(), protocol.EndpointControl, func([]byte) {})
	require.NoError(t, err)
	assert.True(t, dev.Subscribed())

	require.NoError(t, sub.Unsubscribe())
	assert.False(t, dev.Subscribed())

	_, err = dev.Subscribe(context.Background(), protocol.EndpointText, func([]byte) {})
	assert.Error(t, err)
}
