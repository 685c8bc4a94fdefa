package ota

import (
	"errors"
	"fmt"

	"github.com/moffa90/go-mw4ota/protocol"
)

// ErrInvalidChunkSize is returned when the configured chunk size is outside 1..protocol.MaxPayloadSize.
var ErrInvalidChunkSize = fmt.Errorf("chunk size must be between 1 and %d", protocol.MaxPayloadSize)

// Failure reasons carried by UpdateError.Reason.
const (
	ReasonSubscribeFailed      = "subscribe failed"
	ReasonControlWriteFailed   = "control write failed"
	ReasonStartRejected        = "device rejected start"
	ReasonNoStartAck           = "no start acknowledgment"
	ReasonTransferFailed       = "transfer failed"
	ReasonDeviceAborted        = "device aborted transfer"
	ReasonChunkRejected        = "device rejected chunk"
	ReasonNoChunkAck           = "no chunk acknowledgment"
	ReasonEndRejected          = "device rejected end"
	ReasonNoEndConfirmation    = "no end confirmation"
	ReasonNotificationOverflow = "control notification overflow"
	ReasonCancelled            = "cancelled"
)

// UpdateError indicates a session ended in StateFailed.
// Partial resume is not supported: a retry must start from offset zero.
type UpdateError struct {
	// State is the state the session was in when it failed
	State State

	// Reason is one of the Reason* constants
	Reason string

	// Offset is the last image offset the device confirmed
	Offset int

	// Total is the image length
	Total int

	// Percent is the last reported progress percentage
	Percent int

	// Err is the underlying transport, protocol or context error (may be nil)
	Err error
}

func (e *UpdateError) Error() string {
	msg := fmt.Sprintf("update failed in %s: %s at %d/%d bytes (%d%%)",
		e.State, e.Reason, e.Offset, e.Total, e.Percent)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpdateError) Unwrap() error { return e.Err }

// IsCancelled reports whether err is an UpdateError caused by cancellation.
func IsCancelled(err error) bool {
	var ue *UpdateError
	return errors.As(err, &ue) && ue.Reason == ReasonCancelled
}
