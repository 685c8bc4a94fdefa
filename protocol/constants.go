package protocol

// ProtocolVersion is the costume controller OTA control protocol revision implemented by this library.
const ProtocolVersion = "1"

// Control codes exchanged on the OTA control characteristic.
// Each code is a single unsigned byte with no payload.
const (
	// ControlNOP acknowledges the device's start ACK and signals completion
	ControlNOP ControlCode = 0x00

	// ControlACK is a positive acknowledgment
	ControlACK ControlCode = 0x01

	// ControlNACK is a negative acknowledgment
	ControlNACK ControlCode = 0x02

	// ControlStart asks the device to prepare for an image
	ControlStart ControlCode = 0x04

	// ControlEnd tells the device the last chunk has been written
	ControlEnd ControlCode = 0x08

	// ControlErr reports a device-side failure
	ControlErr ControlCode = 0xFF
)

// MaxPayloadSize is the largest value the device accepts in a single characteristic write.
const MaxPayloadSize = 512

// DefaultChunkSize is the recommended OTA data chunk size (one full characteristic value).
const DefaultChunkSize = MaxPayloadSize

// Service UUIDs advertised by the costume controller.
const (
	// CostumeControllerServiceUUID hosts the firmware version and OTA characteristics
	CostumeControllerServiceUUID = "47191881-ebb3-4a9f-9645-3a5c6dae4900"

	// TextDisplayServiceUUID hosts the text and brightness characteristics
	TextDisplayServiceUUID = "aafca82b-95ae-4f33-9cf3-7ee0ef15ddf4"
)

// Characteristic UUIDs.
const (
	// FirmwareVersionCharUUID is read-only; byte 0 holds the running firmware version
	FirmwareVersionCharUUID = "55cf24c7-7a28-4df4-9b53-356b336bab71"

	// OTADataCharUUID receives image chunks (write with response)
	OTADataCharUUID = "1083b9a4-fdc0-4aa6-b027-a2600c8837c4"

	// OTAControlCharUUID carries control codes in both directions (write + notify)
	OTAControlCharUUID = "d1627dbe-b6ae-421f-b2eb-5878576410c0"

	// TextCharUUID holds the UTF-8 text shown on the costume display
	TextCharUUID = "c5b56d2e-b6e9-49c7-b098-5af9a75f46cd"

	// BrightnessCharUUID holds a single brightness byte (0-255)
	BrightnessCharUUID = "48387eca-eedf-40ee-ab37-b4fb3a18cdf1"
)

// MaxBrightness is the largest brightness value the display accepts.
const MaxBrightness = 255
