// Package protocol defines the wire contract of the costume controller.
//
// # Endpoints
//
// The device exposes two GATT services. The costume controller service carries
// the firmware version and the two OTA characteristics; the text display
// service carries the display text and brightness:
//
//	fw-version   read           [VERSION][...]
//	ota-data     write+response [IMAGE CHUNK <= MaxPayloadSize]
//	ota-control  write+notify   [CODE]
//	text         read/write     [UTF-8 <= MaxPayloadSize]
//	brightness   write          [LEVEL]
//
// # Control Codes
//
// The OTA control characteristic carries exactly one byte per value:
//
//	NOP=0x00 ACK=0x01 NACK=0x02 START=0x04 END=0x08 ERR=0xFF
//
// A transfer runs:
//
//	host -> START
//	device -> ACK
//	host -> NOP
//	host -> data chunks on ota-data
//	host -> END
//	device -> ACK or NOP
//
// # Parsing
//
//	code, err := protocol.ParseControl(value)
//	version, err := protocol.ParseVersion(value)
//
// # Error Handling
//
// ProtocolError describes a negative, unexpected or missing control response:
//
//	err := &protocol.ProtocolError{Operation: "start", Code: protocol.ControlNACK, HasCode: true, Reason: "device rejected start"}
//	// err.Error() returns: "start failed: device rejected start (device sent NACK, 0x02)"
package protocol
