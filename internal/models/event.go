package models

// Event types carried over Redis Pub/Sub and WebSocket frames.
const (
	EventMessage = "message"
	EventError   = "error"
	EventSystem  = "system"
)

// Event is the realtime envelope.
type Event struct {
	Type    string   `json:"type"`
	Message *Message `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
	Info    string   `json:"info,omitempty"`
}

// OutgoingText is what a WebSocket client sends to append a message.
type OutgoingText struct {
	Text        string `json:"text"`
	ClientToken string `json:"client_token,omitempty"`
}
