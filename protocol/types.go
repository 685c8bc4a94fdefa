package protocol

import "fmt"

// ControlCode is a single-byte OTA control message.
type ControlCode byte

// String returns the protocol name of the code.
func (c ControlCode) String() string {
	switch c {
	case ControlNOP:
		return "NOP"
	case ControlACK:
		return "ACK"
	case ControlNACK:
		return "NACK"
	case ControlStart:
		return "START"
	case ControlEnd:
		return "END"
	case ControlErr:
		return "ERR"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", byte(c))
	}
}

// Known reports whether c is one of the six defined control codes.
func (c ControlCode) Known() bool {
	switch c {
	case ControlNOP, ControlACK, ControlNACK, ControlStart, ControlEnd, ControlErr:
		return true
	}
	return false
}

// Endpoint identifies one of the logical characteristics on the device.
type Endpoint int

const (
	// EndpointData is the OTA data characteristic
	EndpointData Endpoint = iota

	// EndpointControl is the OTA control characteristic
	EndpointControl

	// EndpointVersion is the firmware version characteristic
	EndpointVersion

	// EndpointText is the display text characteristic
	EndpointText

	// EndpointBrightness is the display brightness characteristic
	EndpointBrightness
)

// String returns a short endpoint name for logs and errors.
func (e Endpoint) String() string {
	switch e {
	case EndpointData:
		return "ota-data"
	case EndpointControl:
		return "ota-control"
	case EndpointVersion:
		return "fw-version"
	case EndpointText:
		return "text"
	case EndpointBrightness:
		return "brightness"
	default:
		return fmt.Sprintf("endpoint(%d)", int(e))
	}
}

// ServiceUUID returns the UUID of the GATT service that hosts the endpoint.
func (e Endpoint) ServiceUUID() string {
	switch e {
	case EndpointText, EndpointBrightness:
		return TextDisplayServiceUUID
	default:
		return CostumeControllerServiceUUID
	}
}

// CharacteristicUUID returns the UUID of the endpoint's characteristic,
// or "" for an unknown endpoint.
func (e Endpoint) CharacteristicUUID() string {
	switch e {
	case EndpointData:
		return OTADataCharUUID
	case EndpointControl:
		return OTAControlCharUUID
	case EndpointVersion:
		return FirmwareVersionCharUUID
	case EndpointText:
		return TextCharUUID
	case EndpointBrightness:
		return BrightnessCharUUID
	default:
		return ""
	}
}

// Endpoints lists every endpoint a session resolves on connect.
var Endpoints = []Endpoint{
	EndpointData,
	EndpointControl,
	EndpointVersion,
	EndpointText,
	EndpointBrightness,
}
