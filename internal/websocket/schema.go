package websocket

import "github.com/cogniseal/cogniseal-ledger/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSubscribe Action = "subscribe"
	ActionPing      Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// SubscribeRequest replaces the connection's log filter. Empty fields match
// everything.
type SubscribeRequest struct {
	Action   Action `json:"action"`
	Event    string `json:"event,omitempty"`
	ExamID   uint64 `json:"exam_id,omitempty"`
	Examinee string `json:"examinee,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError      Event = "error"
	EventSubscribed Event = "subscribed"
	EventLog        Event = "log"
	EventPong       Event = "pong"
)

// LogResponse carries one mined log and its decoded arguments.
type LogResponse struct {
	Event   Event     `json:"event"`
	Name    string    `json:"name"`
	Log     model.Log `json:"log"`
	Decoded any       `json:"decoded,omitempty"`
}

type SubscribedResponse struct {
	Event  Event            `json:"event"`
	Filter SubscribeRequest `json:"filter"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
