package model

import "encoding/json"

// MessageType identifies a collaboration wire message. The set is closed:
// messages are decoded once at the transport boundary and dispatched by type,
// never re-inspected deeper in the hub.
type MessageType string

const (
	// Client -> Server message types
	MessageTypeCodeUpdate   MessageType = "code_update"
	MessageTypeVoiceCommand MessageType = "voice_command"
	MessageTypeCursorUpdate MessageType = "cursor_update"

	// Server -> Client message types
	MessageTypeUserJoined MessageType = "user_joined"
	MessageTypeUserLeft   MessageType = "user_left"
	MessageTypeError      MessageType = "error"
)

// Message is the JSON envelope exchanged on the collaboration channel. Fields
// are populated per type; unused fields are omitted on the wire.
type Message struct {
	Type     MessageType     `json:"type"`
	UserID   string          `json:"user_id,omitempty"`
	Users    []string        `json:"users,omitempty"`
	Code     *string         `json:"code,omitempty"`
	Language string          `json:"language,omitempty"`
	Command  string          `json:"command,omitempty"`
	Position json.RawMessage `json:"position,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Audio replies share the persistent channel as prefixed text messages so the
// two logical fields stay distinguishable in arrival order.
const (
	TranscriptPrefix = "TRANSCRIPT:"
	CodePrefix       = "CODE:"
)
