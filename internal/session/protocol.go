package session

import (
	"encoding/json"
)

type MessageType string

const (
	MsgEvent  MessageType = "event"
	MsgAction MessageType = "action"
	MsgResult MessageType = "result"
	MsgError  MessageType = "error"
)

// Inbound event names.
const (
	EventUIInit        = "ui/init"
	EventPropertyEvent = "property/event"
)

// Outbound action names.
const (
	ActionViewAdd        = "view/add"
	ActionViewRemove     = "view/remove"
	ActionViewUpdate     = "view/update"
	ActionViewPropChange = "view/propchange"
)

// Error texts sent to peers.
const (
	ErrTextParse           = "Unable to parse to JSON the incoming request"
	ErrTextUnknownType     = "Unknown request type"
	ErrTextUnknownEvent    = "Unknown event received"
	ErrTextViewNotFound    = "Specified view was not found"
	ErrTextPropertyMissing = "Specified property was not found"
	ErrTextRateLimited     = "Too many requests"
)

func missingParam(name string) string {
	return "Missing '" + name + "' parameter in the incoming request"
}

type ActionMessage struct {
	Type MessageType `json:"type"`
	Name string      `json:"name"`
	ID   string      `json:"id"`
	Data interface{} `json:"data"`
}

type ResultMessage struct {
	Type MessageType `json:"type"`
	ID   string      `json:"id"`
	Data interface{} `json:"data"`
}

type ErrorMessage struct {
	Type  MessageType `json:"type"`
	ID    string      `json:"id,omitempty"`
	Error string      `json:"error"`
}

type ViewRemovedPayload struct {
	ID string `json:"id"`
}

type PropChangePayload struct {
	ID    string      `json:"id"`
	Prop  string      `json:"prop"`
	Value interface{} `json:"value"`
}

// fields holds a decoded JSON object with its members left raw, so that
// absent members can be told apart from null or zero values.
type fields map[string]json.RawMessage

func decodeFields(data []byte) (fields, error) {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f == nil {
		f = fields{}
	}
	return f, nil
}

// text returns member name as a string. JSON strings are unquoted; any
// other JSON value is returned verbatim.
func (f fields) text(name string) string {
	raw := f[name]
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func (f fields) has(name string) bool {
	_, ok := f[name]
	return ok
}
