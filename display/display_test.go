package display

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-mw4ota/protocol"
	"github.com/moffa90/go-mw4ota/transport"
	"github.com/moffa90/go-mw4ota/transport/simulator"
)

func newDisplay(t *testing.T, opts ...simulator.Option) (*Display, *simulator.Device, *transport.Handle) {
	t.Helper()
	dev := simulator.New(opts...)
	t.Cleanup(func() { _ = dev.Close() })
	h := transport.NewHandle(dev)
	return New(h), dev, h
}

func TestSetText(t *testing.T) {
	d, dev, _ := newDisplay(t)

	require.NoError(t, d.SetText(context.Background(), "ZAKU ⚙"))
	assert.Equal(t, "ZAKU ⚙", dev.Text())

	require.NoError(t, d.SetText(context.Background(), ""))
	assert.Empty(t, dev.Text())
}

func TestSetTextRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"too long", strings.Repeat("a", protocol.MaxPayloadSize+1)},
		{"invalid utf8", string([]byte{0xff, 0xfe})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, dev, _ := newDisplay(t, simulator.WithText("keep"))
			err := d.SetText(context.Background(), tt.text)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidText)
			assert.Equal(t, "keep", dev.Text())
		})
	}
}

func TestSetTextMaxLength(t *testing.T) {
	d, dev, _ := newDisplay(t)
	text := strings.Repeat("x", protocol.MaxPayloadSize)
	require.NoError(t, d.SetText(context.Background(), text))
	assert.Equal(t, text, dev.Text())
}

func TestSetBrightness(t *testing.T) {
	d, dev, _ := newDisplay(t)

	for _, level := range []int{0, 128, 255} {
		require.NoError(t, d.SetBrightness(context.Background(), level))
		assert.Equal(t, byte(level), dev.Brightness())
	}

	assert.Error(t, d.SetBrightness(context.Background(), 256))
	assert.Error(t, d.SetBrightness(context.Background(), -1))
	assert.Equal(t, byte(255), dev.Brightness())
}

func TestText(t *testing.T) {
	d, _, _ := newDisplay(t, simulator.WithText("CHAR'S ZAKU"))
	text, err := d.Text(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "CHAR'S ZAKU", text)
}

func TestDisplayBusyDuringUpdate(t *testing.T) {
	d, dev, h := newDisplay(t)

	_, release, err := h.Acquire("firmware update")
	require.NoError(t, err)

	err = d.SetText(context.Background(), "hi")
	assert.ErrorIs(t, err, transport.ErrBusy)
	assert.Empty(t, dev.Text())

	release()
	require.NoError(t, d.SetText(context.Background(), "hi"))
}
