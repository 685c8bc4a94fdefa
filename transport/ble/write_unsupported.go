//go:build baremetal || !(linux || darwin || windows)

package ble

import (
	"errors"

	"tinygo.org/x/bluetooth"

	"github.com/moffa90/go-mw4ota/protocol"
)

// newRequestWriter fails: the stack offers no write request here, and a write
// command would not confirm delivery.
func newRequestWriter(bluetooth.Device, map[protocol.Endpoint]bluetooth.DeviceCharacteristic) (requestWriter, error) {
	return nil, errors.New("confirmed writes are not supported on this platform")
}
