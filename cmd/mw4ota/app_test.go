package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-mw4ota/internal/config"
	"github.com/moffa90/go-mw4ota/manifest"
	"github.com/moffa90/go-mw4ota/ota"
	"github.com/moffa90/go-mw4ota/protocol"
	"github.com/moffa90/go-mw4ota/transport"
)

func TestRetry(t *testing.T) {
	log := newLogger("error")

	tests := []struct {
		name      string
		attempts  int
		errs      []error
		wantCalls int
		wantErr   bool
	}{
		{"first attempt succeeds", 3, []error{nil}, 1, false},
		{"second attempt succeeds", 3, []error{errors.New("link lost"), nil}, 2, false},
		{"all attempts fail", 3, []error{errors.New("a"), errors.New("b"), errors.New("c")}, 3, true},
		{"decode error stops", 3, []error{&manifest.DecodeError{Source: "manifest", Err: errors.New("bad")}}, 1, true},
		{"cancelled update stops", 3, []error{&ota.UpdateError{Reason: ota.ReasonCancelled}}, 1, true},
		{"invalid chunk size stops", 3, []error{ota.ErrInvalidChunkSize}, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := retry(context.Background(), tt.attempts, time.Millisecond, log, func(attempt int) error {
				calls++
				assert.Equal(t, calls, attempt)
				if calls <= len(tt.errs) {
					return tt.errs[calls-1]
				}
				return nil
			})
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retry(ctx, 5, time.Hour, newLogger("error"), func(int) error {
		calls++
		cancel()
		return errors.New("link lost")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func simulatedApp(t *testing.T, imageLen int) *app {
	t.Helper()
	path := filepath.Join(t.TempDir(), "firmware.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, imageLen), 0600))

	return newApp(config.Defaults(), newLogger("error"), options{
		simulate:     true,
		imagePath:    path,
		imageVersion: 2,
	})
}

func TestUpdateSimulated(t *testing.T) {
	a := simulatedApp(t, 3000)
	require.NoError(t, a.update(context.Background()))
}

func TestUpdateSimulatedSkipsCurrent(t *testing.T) {
	a := simulatedApp(t, 100)
	a.source = manifest.NewFileSource(a.source.(*manifest.FileSource).Path(), 0)
	require.NoError(t, a.update(context.Background()))
}

func TestSimulatedConnectorIsFreshPerConnect(t *testing.T) {
	c := simulatedConnector{}
	first, err := c.Connect(context.Background())
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := c.Connect(context.Background())
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	v, err := second.ReadValue(context.Background(), protocol.EndpointVersion)
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, v)
}

func TestDisplayCommandsSimulated(t *testing.T) {
	a := simulatedApp(t, 1)
	require.NoError(t, a.setText(context.Background(), "HELLO"))
	require.NoError(t, a.setBrightness(context.Background(), 10))
	assert.Error(t, a.setBrightness(context.Background(), 300))
}

func TestWithLinkReportsConnectError(t *testing.T) {
	a := simulatedApp(t, 1)
	a.connector = failingConnector{}
	err := a.withLink(context.Background(), func(*transport.Handle) error { return nil })

	var ce *transport.ConnectError
	require.ErrorAs(t, err, &ce)
}

type failingConnector struct{}

func (failingConnector) Connect(context.Context) (transport.Session, error) {
	return nil, &transport.ConnectError{Device: "AA:BB", Err: errors.New("out of range")}
}
