package keypad

import "errors"

// Device link failures. Callers classify them with errors.Is.
var (
	// ErrSerial is returned when a serial port cannot be opened or configured.
	ErrSerial = errors.New("keypad: cannot open serial port")

	// ErrSerialCommunication is returned for byte-level I/O failures on an
	// open port, including short reads.
	ErrSerialCommunication = errors.New("keypad: serial communication error")

	// ErrTimeout is returned alongside ErrSerialCommunication when the device
	// did not answer within the configured read timeout.
	ErrTimeout = errors.New("keypad: read timed out")

	// ErrInvalidData is returned when a decoded code matches no known key or
	// modifier.
	ErrInvalidData = errors.New("keypad: invalid data")

	// ErrNoAcknowledge is returned when the device answers a handshake or
	// flash command with anything other than the acknowledge byte.
	ErrNoAcknowledge = errors.New("keypad: no acknowledge received")

	// ErrNoDeviceFound is returned by AutoDetect when no port answered the
	// handshake.
	ErrNoDeviceFound = errors.New("keypad: no device found")

	// ErrWrongKeyCount is returned when a combo response does not decode to
	// exactly one combo per button.
	ErrWrongKeyCount = errors.New("keypad: device returned unexpected key count")

	// ErrNoProfiles is returned when a switcher or monitor is built from an
	// empty profile list.
	ErrNoProfiles = errors.New("keypad: at least one profile is required")

	// ErrNoApplier is returned when a monitor is built without an Applier.
	ErrNoApplier = errors.New("keypad: nil applier")
)
