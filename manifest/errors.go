package manifest

import (
	"errors"
	"fmt"
)

// NetworkError indicates the manifest or image could not be retrieved.
type NetworkError struct {
	// URL is the location that was requested
	URL string

	// StatusCode is the HTTP status, 0 when no response was received
	StatusCode int

	Err error
}

func (e *NetworkError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	case e.URL == "":
		return fmt.Sprintf("fetch: %v", e.Err)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError indicates the manifest or image was retrieved but is unusable.
type DecodeError struct {
	// Source is "manifest" or "image"
	Source string

	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsNetworkError returns true if the error is or wraps a NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsDecodeError returns true if the error is or wraps a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
