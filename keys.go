package keypad

import (
	"fmt"
	"strings"
)

// Discriminant nibbles carried by every code on the wire. Key codes are
// tagged with keyTag and modifier codes with modifierTag so that the two
// vocabularies never overlap.
const (
	keyTag      = 0xF000
	modifierTag = 0xE000
	tagMask     = 0xF000
)

// Key identifies one physical key the keypad can emit. The numeric value is
// the tagged 16-bit code sent over the wire.
type Key uint16

// Keys understood by the keypad firmware. Codes 102 and 103 are unassigned.
const (
	KeyA              Key = keyTag | 4
	KeyB              Key = keyTag | 5
	KeyC              Key = keyTag | 6
	KeyD              Key = keyTag | 7
	KeyE              Key = keyTag | 8
	KeyF              Key = keyTag | 9
	KeyG              Key = keyTag | 10
	KeyH              Key = keyTag | 11
	KeyI              Key = keyTag | 12
	KeyJ              Key = keyTag | 13
	KeyK              Key = keyTag | 14
	KeyL              Key = keyTag | 15
	KeyM              Key = keyTag | 16
	KeyN              Key = keyTag | 17
	KeyO              Key = keyTag | 18
	KeyP              Key = keyTag | 19
	KeyQ              Key = keyTag | 20
	KeyR              Key = keyTag | 21
	KeyS              Key = keyTag | 22
	KeyT              Key = keyTag | 23
	KeyU              Key = keyTag | 24
	KeyV              Key = keyTag | 25
	KeyW              Key = keyTag | 26
	KeyX              Key = keyTag | 27
	KeyY              Key = keyTag | 28
	KeyZ              Key = keyTag | 29
	Key1              Key = keyTag | 30
	Key2              Key = keyTag | 31
	Key3              Key = keyTag | 32
	Key4              Key = keyTag | 33
	Key5              Key = keyTag | 34
	Key6              Key = keyTag | 35
	Key7              Key = keyTag | 36
	Key8              Key = keyTag | 37
	Key9              Key = keyTag | 38
	Key0              Key = keyTag | 39
	KeyEnter          Key = keyTag | 40
	KeyEsc            Key = keyTag | 41
	KeyBackspace      Key = keyTag | 42
	KeyTab            Key = keyTag | 43
	KeySpace          Key = keyTag | 44
	KeyMinus          Key = keyTag | 45
	KeyEqual          Key = keyTag | 46
	KeyLeftBrace      Key = keyTag | 47
	KeyRightBrace     Key = keyTag | 48
	KeyBackslash      Key = keyTag | 49
	KeyNonUSHash      Key = keyTag | 50
	KeySemicolon      Key = keyTag | 51
	KeyQuote          Key = keyTag | 52
	KeyGrave          Key = keyTag | 53
	KeyComma          Key = keyTag | 54
	KeyPeriod         Key = keyTag | 55
	KeySlash          Key = keyTag | 56
	KeyCapsLock       Key = keyTag | 57
	KeyF1             Key = keyTag | 58
	KeyF2             Key = keyTag | 59
	KeyF3             Key = keyTag | 60
	KeyF4             Key = keyTag | 61
	KeyF5             Key = keyTag | 62
	KeyF6             Key = keyTag | 63
	KeyF7             Key = keyTag | 64
	KeyF8             Key = keyTag | 65
	KeyF9             Key = keyTag | 66
	KeyF10            Key = keyTag | 67
	KeyF11            Key = keyTag | 68
	KeyF12            Key = keyTag | 69
	KeyPrintScreen    Key = keyTag | 70
	KeyScrollLock     Key = keyTag | 71
	KeyPause          Key = keyTag | 72
	KeyInsert         Key = keyTag | 73
	KeyHome           Key = keyTag | 74
	KeyPageUp         Key = keyTag | 75
	KeyDelete         Key = keyTag | 76
	KeyEnd            Key = keyTag | 77
	KeyPageDown       Key = keyTag | 78
	KeyRight          Key = keyTag | 79
	KeyLeft           Key = keyTag | 80
	KeyDown           Key = keyTag | 81
	KeyUp             Key = keyTag | 82
	KeyNumLock        Key = keyTag | 83
	KeyPadSlash       Key = keyTag | 84
	KeyPadAsterisk    Key = keyTag | 85
	KeyPadMinus       Key = keyTag | 86
	KeyPadPlus        Key = keyTag | 87
	KeyPadEnter       Key = keyTag | 88
	KeyPad1           Key = keyTag | 89
	KeyPad2           Key = keyTag | 90
	KeyPad3           Key = keyTag | 91
	KeyPad4           Key = keyTag | 92
	KeyPad5           Key = keyTag | 93
	KeyPad6           Key = keyTag | 94
	KeyPad7           Key = keyTag | 95
	KeyPad8           Key = keyTag | 96
	KeyPad9           Key = keyTag | 97
	KeyPad0           Key = keyTag | 98
	KeyPadPeriod      Key = keyTag | 99
	KeyNonUSBackslash Key = keyTag | 100
	KeyMenu           Key = keyTag | 101
	KeyF13            Key = keyTag | 104
	KeyF14            Key = keyTag | 105
	KeyF15            Key = keyTag | 106
	KeyF16            Key = keyTag | 107
	KeyF17            Key = keyTag | 108
	KeyF18            Key = keyTag | 109
	KeyF19            Key = keyTag | 110
	KeyF20            Key = keyTag | 111
	KeyF21            Key = keyTag | 112
	KeyF22            Key = keyTag | 113
	KeyF23            Key = keyTag | 114
	KeyF24            Key = keyTag | 115
)

// keyTable lists every key in declaration order along with its display name.
// Names are what profile files store, so they must never change.
var keyTable = []struct {
	key  Key
	name string
}{
	{KeyA, "A"},
	{KeyB, "B"},
	{KeyC, "C"},
	{KeyD, "D"},
	{KeyE, "E"},
	{KeyF, "F"},
	{KeyG, "G"},
	{KeyH, "H"},
	{KeyI, "I"},
	{KeyJ, "J"},
	{KeyK, "K"},
	{KeyL, "L"},
	{KeyM, "M"},
	{KeyN, "N"},
	{KeyO, "O"},
	{KeyP, "P"},
	{KeyQ, "Q"},
	{KeyR, "R"},
	{KeyS, "S"},
	{KeyT, "T"},
	{KeyU, "U"},
	{KeyV, "V"},
	{KeyW, "W"},
	{KeyX, "X"},
	{KeyY, "Y"},
	{KeyZ, "Z"},
	{Key1, "Key1"},
	{Key2, "Key2"},
	{Key3, "Key3"},
	{Key4, "Key4"},
	{Key5, "Key5"},
	{Key6, "Key6"},
	{Key7, "Key7"},
	{Key8, "Key8"},
	{Key9, "Key9"},
	{Key0, "Key0"},
	{KeyEnter, "Enter"},
	{KeyEsc, "Esc"},
	{KeyBackspace, "Backspace"},
	{KeyTab, "Tab"},
	{KeySpace, "Space"},
	{KeyMinus, "Minus"},
	{KeyEqual, "Equal"},
	{KeyLeftBrace, "LeftBrace"},
	{KeyRightBrace, "RightBrace"},
	{KeyBackslash, "Backslash"},
	{KeyNonUSHash, "NonUsNum"},
	{KeySemicolon, "Semicolon"},
	{KeyQuote, "Guote"},
	{KeyGrave, "Tilde"},
	{KeyComma, "Comma"},
	{KeyPeriod, "Period"},
	{KeySlash, "Slash"},
	{KeyCapsLock, "CapsLock"},
	{KeyF1, "F1"},
	{KeyF2, "F2"},
	{KeyF3, "F3"},
	{KeyF4, "F4"},
	{KeyF5, "F5"},
	{KeyF6, "F6"},
	{KeyF7, "F7"},
	{KeyF8, "F8"},
	{KeyF9, "F9"},
	{KeyF10, "F10"},
	{KeyF11, "F11"},
	{KeyF12, "F12"},
	{KeyPrintScreen, "PrintScreen"},
	{KeyScrollLock, "ScrollLock"},
	{KeyPause, "Pause"},
	{KeyInsert, "Insert"},
	{KeyHome, "Home"},
	{KeyPageUp, "PageUp"},
	{KeyDelete, "Delete"},
	{KeyEnd, "End"},
	{KeyPageDown, "PageDown"},
	{KeyRight, "Right"},
	{KeyLeft, "Left"},
	{KeyDown, "Down"},
	{KeyUp, "Up"},
	{KeyNumLock, "NumLock"},
	{KeyPadSlash, "KeyPadSlash"},
	{KeyPadAsterisk, "KeyPadAsterix"},
	{KeyPadMinus, "KeyPadMinus"},
	{KeyPadPlus, "KeyPadPlus"},
	{KeyPadEnter, "KeyPadEnter"},
	{KeyPad1, "KeyPad1"},
	{KeyPad2, "KeyPad2"},
	{KeyPad3, "KeyPad3"},
	{KeyPad4, "KeyPad4"},
	{KeyPad5, "KeyPad5"},
	{KeyPad6, "KeyPad6"},
	{KeyPad7, "KeyPad7"},
	{KeyPad8, "KeyPad8"},
	{KeyPad9, "KeyPad9"},
	{KeyPad0, "KeyPad0"},
	{KeyPadPeriod, "KeyPadPeriod"},
	{KeyNonUSBackslash, "NonUsBs"},
	{KeyMenu, "Menu"},
	{KeyF13, "F13"},
	{KeyF14, "F14"},
	{KeyF15, "F15"},
	{KeyF16, "F16"},
	{KeyF17, "F17"},
	{KeyF18, "F18"},
	{KeyF19, "F19"},
	{KeyF20, "F20"},
	{KeyF21, "F21"},
	{KeyF22, "F22"},
	{KeyF23, "F23"},
	{KeyF24, "F24"},
}

// keyAliases are shorter names accepted by ParseKey.
var keyAliases = map[string]Key{
	"1":              Key1,
	"2":              Key2,
	"3":              Key3,
	"4":              Key4,
	"5":              Key5,
	"6":              Key6,
	"7":              Key7,
	"8":              Key8,
	"9":              Key9,
	"0":              Key0,
	"NonUSHash":      KeyNonUSHash,
	"Quote":          KeyQuote,
	"Grave":          KeyGrave,
	"PadSlash":       KeyPadSlash,
	"PadAsterisk":    KeyPadAsterisk,
	"PadMinus":       KeyPadMinus,
	"PadPlus":        KeyPadPlus,
	"PadEnter":       KeyPadEnter,
	"Pad1":           KeyPad1,
	"Pad2":           KeyPad2,
	"Pad3":           KeyPad3,
	"Pad4":           KeyPad4,
	"Pad5":           KeyPad5,
	"Pad6":           KeyPad6,
	"Pad7":           KeyPad7,
	"Pad8":           KeyPad8,
	"Pad9":           KeyPad9,
	"Pad0":           KeyPad0,
	"PadPeriod":      KeyPadPeriod,
	"NonUSBackslash": KeyNonUSBackslash,
}

var (
	keysByCode = make(map[uint16]Key, len(keyTable))
	keysByName = make(map[string]Key, len(keyTable))
	keyNames   = make(map[Key]string, len(keyTable))
)

func init() {
	for _, k := range keyTable {
		keysByCode[uint16(k.key)] = k.key
		keysByName[strings.ToLower(k.name)] = k.key
		keyNames[k.key] = k.name
	}
	for name, k := range keyAliases {
		keysByName[strings.ToLower(name)] = k
	}
}

// AllKeys returns every key in the vocabulary, in declaration order.
func AllKeys() []Key {
	keys := make([]Key, len(keyTable))
	for i, k := range keyTable {
		keys[i] = k.key
	}
	return keys
}

// KeyFromCode maps a tagged wire code to its Key. Codes that lack the key
// tag or that name no key fail with ErrInvalidData.
func KeyFromCode(code uint16) (Key, error) {
	if code&tagMask != keyTag {
		return 0, fmt.Errorf("%w: key code 0x%04X is not tagged as a key", ErrInvalidData, code)
	}
	k, ok := keysByCode[code]
	if !ok {
		return 0, fmt.Errorf("%w: unknown key code 0x%04X", ErrInvalidData, code)
	}
	return k, nil
}

// ParseKey looks up a key by its display name or one of its shorter
// aliases, such as "1" for Key1 or "PadEnter" for KeyPadEnter. Matching
// ignores case.
func ParseKey(name string) (Key, error) {
	k, ok := keysByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown key name %q", name)
	}
	return k, nil
}

// Code returns the tagged wire code of the key.
func (k Key) Code() uint16 { return uint16(k) }

// Valid reports whether k is part of the vocabulary.
func (k Key) Valid() bool {
	_, ok := keyNames[k]
	return ok
}

// String returns the display name of the key.
func (k Key) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Key(0x%04X)", uint16(k))
}

// MarshalText implements encoding.TextMarshaler. Keys are stored by name.
func (k Key) MarshalText() ([]byte, error) {
	name, ok := keyNames[k]
	if !ok {
		return nil, fmt.Errorf("%w: unknown key code 0x%04X", ErrInvalidData, uint16(k))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ModifierKey is a single modifier bit flag, tagged with modifierTag.
type ModifierKey uint16

// Modifier flags. Only the left-hand flags are surfaced by KeyPress; the
// right-hand flags exist on the wire but decode as nothing.
const (
	ModLeftCtrl   ModifierKey = modifierTag | 0x01
	ModLeftShift  ModifierKey = modifierTag | 0x02
	ModLeftAlt    ModifierKey = modifierTag | 0x04
	ModLeftGUI    ModifierKey = modifierTag | 0x08
	ModRightCtrl  ModifierKey = modifierTag | 0x10
	ModRightShift ModifierKey = modifierTag | 0x20
	ModRightAlt   ModifierKey = modifierTag | 0x40
	ModRightGUI   ModifierKey = modifierTag | 0x80
)

// AllModifiers lists the eight modifier flags, left-hand first.
var AllModifiers = [8]ModifierKey{
	ModLeftCtrl, ModLeftShift, ModLeftAlt, ModLeftGUI,
	ModRightCtrl, ModRightShift, ModRightAlt, ModRightGUI,
}

// In reports whether the modifier flag is set in the given modifier mask.
func (m ModifierKey) In(mask uint16) bool {
	return mask&uint16(m) == uint16(m)
}

func (m ModifierKey) String() string {
	switch m {
	case ModLeftCtrl:
		return "LeftCtrl"
	case ModLeftShift:
		return "LeftShift"
	case ModLeftAlt:
		return "LeftAlt"
	case ModLeftGUI:
		return "LeftGUI"
	case ModRightCtrl:
		return "RightCtrl"
	case ModRightShift:
		return "RightShift"
	case ModRightAlt:
		return "RightAlt"
	case ModRightGUI:
		return "RightGUI"
	default:
		return fmt.Sprintf("ModifierKey(0x%04X)", uint16(m))
	}
}
