// Package transport defines the link the OTA engine and the display client run on.
//
// A Session exposes small-value reads, confirmed writes and notifications on
// the logical endpoints of protocol.Endpoint. The ble subpackage implements it
// on a real Bluetooth LE adapter; the simulator subpackage implements it in
// memory for tests and bench runs.
//
// A Handle wraps a Session and serializes operations on it:
//
//	h := transport.NewHandle(sess)
//	link, release, err := h.Acquire("firmware update")
//	if err != nil {
//	    return err // transport.ErrBusy while another operation runs
//	}
//	defer release()
package transport
