package protocol

import "fmt"

// EncodeControl returns the wire value for a control code.
func EncodeControl(code ControlCode) []byte {
	return []byte{byte(code)}
}

// ParseControl extracts the control code from a control characteristic value.
// The device sends exactly one byte; anything else is malformed.
func ParseControl(value []byte) (ControlCode, error) {
	if len(value) != 1 {
		return 0, fmt.Errorf("invalid control value length: got %d bytes, expected 1", len(value))
	}
	return ControlCode(value[0]), nil
}

// ParseVersion decodes the firmware version characteristic.
// The running version is the first byte; trailing bytes are ignored.
func ParseVersion(value []byte) (uint32, error) {
	if len(value) == 0 {
		return 0, fmt.Errorf("empty firmware version value")
	}
	return uint32(value[0]), nil
}

// EncodeBrightness returns the wire value for a brightness level.
func EncodeBrightness(level int) ([]byte, error) {
	if level < 0 || level > MaxBrightness {
		return nil, fmt.Errorf("brightness %d out of range 0-%d", level, MaxBrightness)
	}
	return []byte{byte(level)}, nil
}
