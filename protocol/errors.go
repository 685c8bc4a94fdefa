package protocol

import (
	"errors"
	"fmt"
)

// ProtocolError represents a control exchange the device answered wrongly,
// or did not answer in time.
type ProtocolError struct {
	// Operation is the exchange that failed ("start", "end", "chunk ack", ...)
	Operation string

	// Code is the control code the device sent, if any
	Code ControlCode

	// HasCode is false when the failure is a missing response
	HasCode bool

	// Reason is a short human-readable cause
	Reason string
}

func (e *ProtocolError) Error() string {
	if e.HasCode {
		return fmt.Sprintf("%s failed: %s (device sent %s, 0x%02X)", e.Operation, e.Reason, e.Code, byte(e.Code))
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Reason)
}

// IsProtocolError returns true if the error is or wraps a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
