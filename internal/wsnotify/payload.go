package wsnotify

import (
	"encoding/json"

	keypad "libdb.so/go-keypad"
)

// PayloadVersion is the version stamped on every payload.
const PayloadVersion = 1

// PayloadType tells receivers how to decode Payload.Data.
type PayloadType string

const (
	PayloadTypeApplied PayloadType = "applied"
	PayloadTypeError   PayloadType = "error"
)

// Payload is the envelope of every websocket message.
type Payload struct {
	Version int             `json:"version"`
	Type    PayloadType     `json:"type"`
	Data    json.RawMessage `json:"data"`
}

// AppliedPayload is the data of a PayloadTypeApplied message.
type AppliedPayload struct {
	Profile   string   `json:"profile"`
	Program   string   `json:"program,omitempty"`
	Confirmed bool     `json:"confirmed"`
	Combos    []string `json:"combos"`
}

// ErrorPayload is the data of a PayloadTypeError message.
type ErrorPayload struct {
	Profile string `json:"profile"`
	Error   string `json:"error"`
}

// EncodeNotification turns a monitor notification into a payload.
func EncodeNotification(n keypad.Notification) ([]byte, error) {
	if n.Err != nil {
		return encodePayload(PayloadTypeError, ErrorPayload{
			Profile: n.Profile.Name,
			Error:   n.Err.Error(),
		})
	}

	program, _ := n.Profile.WatchedProgram()
	combos := make([]string, len(n.Stored))
	for i, c := range n.Stored {
		combos[i] = c.String()
	}

	return encodePayload(PayloadTypeApplied, AppliedPayload{
		Profile:   n.Profile.Name,
		Program:   program,
		Confirmed: n.Confirmed,
		Combos:    combos,
	})
}

func encodePayload(typ PayloadType, data any) ([]byte, error) {
	db, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Payload{Version: PayloadVersion, Type: typ, Data: db})
}
