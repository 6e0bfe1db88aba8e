package keypad

// Command bytes understood by the keypad firmware.
const (
	cmdHello     byte = 'H'
	cmdAck       byte = 'A'
	cmdReadKeys  byte = 'R'
	cmdWriteKeys byte = 'W'
	cmdFlash     byte = 'F'
)

// Command describes a request that can be written to the keypad.
type Command interface {
	// EncodeCommand encodes the command byte and its payload as one frame.
	EncodeCommand() []byte
}

// Hello is the handshake probe. The device answers with a single
// acknowledge byte.
type Hello struct{}

// EncodeCommand implements the [Command] interface.
func (Hello) EncodeCommand() []byte {
	return []byte{cmdHello}
}

// ReadKeys asks the device for the combos it currently stores. The device
// answers with CombosSize bytes.
type ReadKeys struct{}

// EncodeCommand implements the [Command] interface.
func (ReadKeys) EncodeCommand() []byte {
	return []byte{cmdReadKeys}
}

// WriteKeys stores new combos on the device. The device answers the same way
// it answers [ReadKeys], echoing what it now stores.
type WriteKeys struct {
	Combos Combos
}

// EncodeCommand implements the [Command] interface.
func (w WriteKeys) EncodeCommand() []byte {
	frame := make([]byte, 0, 1+CombosSize)
	frame = append(frame, cmdWriteKeys)
	return append(frame, w.Combos.Encode()...)
}

// Flash blinks the selected buttons. The device answers with a single
// acknowledge byte.
type Flash struct {
	Buttons [ButtonCount]bool
}

// FlashButtons returns a Flash command for the given button positions.
// Positions outside the keypad are ignored.
func FlashButtons(positions ...int) Flash {
	var f Flash
	for _, p := range positions {
		if p >= 0 && p < ButtonCount {
			f.Buttons[p] = true
		}
	}
	return f
}

// Mask packs the selected buttons into the low bits of one byte, bit i
// being button i.
func (f Flash) Mask() byte {
	var mask byte
	for i, on := range f.Buttons {
		if on {
			mask |= 1 << i
		}
	}
	return mask
}

// EncodeCommand implements the [Command] interface.
func (f Flash) EncodeCommand() []byte {
	return []byte{cmdFlash, f.Mask()}
}
