//go:build (darwin || windows) && !baremetal

package ble

import (
	"context"

	"tinygo.org/x/bluetooth"

	"github.com/moffa90/go-mw4ota/protocol"
)

// newRequestWriter uses the stack's own write with response.
func newRequestWriter(_ bluetooth.Device, chars map[protocol.Endpoint]bluetooth.DeviceCharacteristic) (requestWriter, error) {
	return func(_ context.Context, ep protocol.Endpoint, value []byte) error {
		ch := chars[ep]
		_, err := ch.Write(value)
		return err
	}, nil
}
