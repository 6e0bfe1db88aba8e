package keypad

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ButtonCount is the number of physical buttons on the keypad.
const ButtonCount = 6

// Wire sizes of the encoded records.
const (
	KeyPressSize = 4
	KeyComboSize = 2 * KeyPressSize
	CombosSize   = ButtonCount * KeyComboSize
)

// KeyPress is one held key together with the left-hand modifiers held with
// it.
type KeyPress struct {
	Ctrl    bool `json:"ctrl"`
	Alt     bool `json:"alt"`
	Shift   bool `json:"shift"`
	Windows bool `json:"windows"`
	Key     Key  `json:"key"`
}

// Press returns a KeyPress for key with no modifiers held.
func Press(key Key) KeyPress {
	return KeyPress{Key: key}
}

// ModifierSet accumulates modifiers for a KeyPress, e.g.
//
//	keypad.Ctrl().Shift().Key(keypad.KeyT)
type ModifierSet struct {
	ctrl, alt, shift, windows bool
}

// Ctrl starts a modifier set holding Ctrl.
func Ctrl() ModifierSet { return ModifierSet{ctrl: true} }

// Alt starts a modifier set holding Alt.
func Alt() ModifierSet { return ModifierSet{alt: true} }

// Shift starts a modifier set holding Shift.
func Shift() ModifierSet { return ModifierSet{shift: true} }

// Windows starts a modifier set holding the Windows (GUI) key.
func Windows() ModifierSet { return ModifierSet{windows: true} }

// Ctrl adds Ctrl to the set.
func (m ModifierSet) Ctrl() ModifierSet { m.ctrl = true; return m }

// Alt adds Alt to the set.
func (m ModifierSet) Alt() ModifierSet { m.alt = true; return m }

// Shift adds Shift to the set.
func (m ModifierSet) Shift() ModifierSet { m.shift = true; return m }

// Windows adds the Windows (GUI) key to the set.
func (m ModifierSet) Windows() ModifierSet { m.windows = true; return m }

// Key completes the KeyPress.
func (m ModifierSet) Key(key Key) KeyPress {
	return KeyPress{
		Ctrl:    m.ctrl,
		Alt:     m.alt,
		Shift:   m.shift,
		Windows: m.windows,
		Key:     key,
	}
}

// modifierMask folds the held modifiers into one tagged bitmask. A press with
// no modifiers encodes as zero.
func (p KeyPress) modifierMask() uint16 {
	var mask uint16
	if p.Ctrl {
		mask |= uint16(ModLeftCtrl)
	}
	if p.Alt {
		mask |= uint16(ModLeftAlt)
	}
	if p.Shift {
		mask |= uint16(ModLeftShift)
	}
	if p.Windows {
		mask |= uint16(ModLeftGUI)
	}
	return mask
}

// Encode returns the 4-byte wire form of the press: the modifier mask then
// the key code, both little-endian.
func (p KeyPress) Encode() [KeyPressSize]byte {
	var b [KeyPressSize]byte
	binary.LittleEndian.PutUint16(b[0:2], p.modifierMask())
	binary.LittleEndian.PutUint16(b[2:4], uint16(p.Key))
	return b
}

// DecodeKeyPress parses the 4-byte wire form of a press.
func DecodeKeyPress(b []byte) (KeyPress, error) {
	if len(b) != KeyPressSize {
		return KeyPress{}, fmt.Errorf("%w: key press needs %d bytes, got %d", ErrInvalidData, KeyPressSize, len(b))
	}
	return decodePress(
		binary.LittleEndian.Uint16(b[0:2]),
		binary.LittleEndian.Uint16(b[2:4]),
	)
}

func decodePress(modifier, code uint16) (KeyPress, error) {
	if modifier != 0 && modifier&tagMask != modifierTag {
		return KeyPress{}, fmt.Errorf("%w: modifier mask 0x%04X is not tagged as a modifier", ErrInvalidData, modifier)
	}

	key, err := KeyFromCode(code)
	if err != nil {
		return KeyPress{}, err
	}

	// Right-hand flags are accepted but not surfaced.
	return KeyPress{
		Ctrl:    ModLeftCtrl.In(modifier),
		Alt:     ModLeftAlt.In(modifier),
		Shift:   ModLeftShift.In(modifier),
		Windows: ModLeftGUI.In(modifier),
		Key:     key,
	}, nil
}

func (p KeyPress) String() string {
	var b strings.Builder
	if p.Ctrl {
		b.WriteString("Ctrl + ")
	}
	if p.Alt {
		b.WriteString("Alt + ")
	}
	if p.Shift {
		b.WriteString("Shift + ")
	}
	if p.Windows {
		b.WriteString("Win + ")
	}
	b.WriteString(p.Key.String())
	return b.String()
}

// KeyCombo is what a single button emits: one key press, optionally followed
// by a second one.
type KeyCombo struct {
	One KeyPress  `json:"one"`
	Two *KeyPress `json:"two,omitempty"`
}

// Single returns a combo emitting only press.
func Single(press KeyPress) KeyCombo {
	return KeyCombo{One: press}
}

// Chord returns a combo emitting one followed by two.
func Chord(one, two KeyPress) KeyCombo {
	return KeyCombo{One: one, Two: &two}
}

// DefaultCombo is the combo assigned to buttons that were never configured.
func DefaultCombo() KeyCombo {
	return Single(Press(KeyA))
}

// Equal reports whether both combos emit the same presses.
func (c KeyCombo) Equal(other KeyCombo) bool {
	if c.One != other.One {
		return false
	}
	if c.Two == nil || other.Two == nil {
		return c.Two == nil && other.Two == nil
	}
	return *c.Two == *other.Two
}

// Encode returns the 8-byte wire form of the combo. An absent second press
// is written as four zero bytes.
func (c KeyCombo) Encode() [KeyComboSize]byte {
	var b [KeyComboSize]byte
	one := c.One.Encode()
	copy(b[:KeyPressSize], one[:])
	if c.Two != nil {
		two := c.Two.Encode()
		copy(b[KeyPressSize:], two[:])
	}
	return b
}

// DecodeKeyCombo parses the 8-byte wire form of a combo. A second press
// whose key field is zero decodes as absent.
func DecodeKeyCombo(b []byte) (KeyCombo, error) {
	if len(b) != KeyComboSize {
		return KeyCombo{}, fmt.Errorf("%w: key combo needs %d bytes, got %d", ErrInvalidData, KeyComboSize, len(b))
	}

	one, err := DecodeKeyPress(b[:KeyPressSize])
	if err != nil {
		return KeyCombo{}, fmt.Errorf("first press: %w", err)
	}
	combo := KeyCombo{One: one}

	if binary.LittleEndian.Uint16(b[6:8]) == 0 {
		return combo, nil
	}

	two, err := DecodeKeyPress(b[KeyPressSize:])
	if err != nil {
		return KeyCombo{}, fmt.Errorf("second press: %w", err)
	}
	combo.Two = &two
	return combo, nil
}

func (c KeyCombo) String() string {
	if c.Two == nil {
		return c.One.String()
	}
	return c.One.String() + ", " + c.Two.String()
}

// Combos holds one combo per button. Index i is physical button i.
type Combos [ButtonCount]KeyCombo

// DefaultCombos returns DefaultCombo on every button.
func DefaultCombos() Combos {
	var c Combos
	for i := range c {
		c[i] = DefaultCombo()
	}
	return c
}

// Equal reports whether every button carries the same combo.
func (c Combos) Equal(other Combos) bool {
	for i := range c {
		if !c[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// Validate checks that every press names a key in the vocabulary.
func (c Combos) Validate() error {
	for i, combo := range c {
		if !combo.One.Key.Valid() {
			return fmt.Errorf("%w: button %d: first press has no valid key", ErrInvalidData, i)
		}
		if combo.Two != nil && !combo.Two.Key.Valid() {
			return fmt.Errorf("%w: button %d: second press has no valid key", ErrInvalidData, i)
		}
	}
	return nil
}

// Encode returns the 48-byte payload carrying all six combos in button
// order.
func (c Combos) Encode() []byte {
	b := make([]byte, 0, CombosSize)
	for _, combo := range c {
		enc := combo.Encode()
		b = append(b, enc[:]...)
	}
	return b
}

// DecodeCombos splits b into consecutive 8-byte records and decodes each.
// Anything other than exactly ButtonCount records fails with
// ErrWrongKeyCount.
func DecodeCombos(b []byte) (Combos, error) {
	if len(b)%KeyComboSize != 0 {
		return Combos{}, fmt.Errorf("%w: %d bytes is not a whole number of combos", ErrInvalidData, len(b))
	}

	decoded := make([]KeyCombo, 0, len(b)/KeyComboSize)
	for off := 0; off < len(b); off += KeyComboSize {
		combo, err := DecodeKeyCombo(b[off : off+KeyComboSize])
		if err != nil {
			return Combos{}, fmt.Errorf("button %d: %w", off/KeyComboSize, err)
		}
		decoded = append(decoded, combo)
	}

	if len(decoded) != ButtonCount {
		return Combos{}, fmt.Errorf("%w: got %d, want %d", ErrWrongKeyCount, len(decoded), ButtonCount)
	}

	var combos Combos
	copy(combos[:], decoded)
	return combos, nil
}
