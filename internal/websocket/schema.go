package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer Action = "answer"
	ActionFlag   Action = "flag"
	ActionSubmit Action = "submit"
	ActionPing   Action = "ping"
)

// RequestPayload is the single client message shape. Fields beyond the
// action are read only by the action that needs them.
type RequestPayload struct {
	Action      Action `json:"action"`
	QuestionID  string `json:"question_id,omitempty"`
	OptionIndex *int   `json:"option_index,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventAck   Event = "ack"
	EventError Event = "error"
	EventPong  Event = "pong"
	// Engine events (phase, timer, questions, ...) pass through with the
	// session.Event type string in the "event" field.
)

type AckResponse struct {
	Event  Event  `json:"event"`
	Action Action `json:"action"`
	Status string `json:"status"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

// EngineEvent wraps a session engine event for the wire.
type EngineEvent struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}
