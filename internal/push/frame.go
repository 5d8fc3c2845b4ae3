// Package push is the WebSocket side of presence: it upgrades authenticated
// requests, waits for the client to announce its user id, and registers the
// connection with a presence.Registry until it closes.
//
// WIRE FORMAT:
// Every frame in either direction is a JSON object
//
//	{"event": "<name>", "data": <any JSON>}
//
// Client → server: "register" with data = the user id (a JSON string).
// Server → client: "registered", "new-contact", "text-message", "error".
package push

import "encoding/json"

const (
	EventRegister    = "register"
	EventRegistered  = "registered"
	EventNewContact  = "new-contact"
	EventTextMessage = "text-message"
	EventError       = "error"
)

// Frame is one outbound message.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// inboundFrame keeps data raw until the event is known.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ErrorData is the payload of an "error" frame.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
