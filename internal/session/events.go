package session

import "github.com/prepforge/session-backend/internal/model"

// EventType tags an engine event on the stream consumed by the WebSocket
// handler.
type EventType string

const (
	// EventPhase signals a phase transition.
	EventPhase EventType = "phase"
	// EventQuestions signals newly merged questions (question_count updated).
	EventQuestions EventType = "questions"
	// EventProgress carries a generation progress snapshot.
	EventProgress EventType = "progress"
	// EventPartial warns that generation errored but the session can proceed
	// with the questions generated so far. Non-blocking for the UI.
	EventPartial EventType = "generation_partial"
	// EventTimer carries the countdown value once per second while Active.
	EventTimer EventType = "timer"
	// EventCompleted carries the submission result.
	EventCompleted EventType = "completed"
	// EventFailed signals a fatal condition (start, generation or submission).
	EventFailed EventType = "failed"
)

// Event is one engine notification.
type Event struct {
	Type             EventType                 `json:"type"`
	Phase            Phase                     `json:"phase,omitempty"`
	QuestionCount    int                       `json:"question_count,omitempty"`
	RemainingSeconds int                       `json:"remaining_seconds"`
	Progress         *model.GenerationProgress `json:"progress,omitempty"`
	Result           *model.SubmissionResult   `json:"result,omitempty"`
	Warning          string                    `json:"warning,omitempty"`
	Failure          FailureKind               `json:"failure,omitempty"`
	Error            string                    `json:"error,omitempty"`
}
