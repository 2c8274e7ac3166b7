package model

import (
	"time"

	"github.com/google/uuid"
)

// AnswerSubmission is one entry of the final submission payload. Selected is
// an option letter (A-D) or AnswerUnanswered.
type AnswerSubmission struct {
	QuestionID uuid.UUID `json:"question_id"`
	Selected   string    `json:"selected"`
}

// SubmissionResult is the grading outcome returned by the remote service.
type SubmissionResult struct {
	Score             float64 `json:"score"`
	Percentage        float64 `json:"percentage"`
	RemainingAttempts int     `json:"remaining_attempts"`
	IsFinalAttempt    bool    `json:"is_final_attempt"`
}

// Attempt is one finished test attempt as persisted in attempt_history.
type Attempt struct {
	ID             uuid.UUID `json:"id"`
	UserID         int       `json:"user_id"`
	SessionID      string    `json:"session_id"`
	Score          float64   `json:"score"`
	Percentage     float64   `json:"percentage"`
	QuestionCount  int       `json:"question_count"`
	AnsweredCount  int       `json:"answered_count"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	IsReattempt    bool      `json:"is_reattempt"`
	CompletedAt    time.Time `json:"completed_at"`
}

// ─── Request payloads ───────────────────────────────────────────────

// StartFreshRequest starts chunked generation for a test card.
type StartFreshRequest struct {
	CardID string `json:"card_id" binding:"required,min=1,max=64"`
}

// StartReattemptRequest reloads a previously generated fixed question set.
type StartReattemptRequest struct {
	SessionID string `json:"session_id" binding:"required,min=1,max=64"`
}

// ApplyAnswerRequest records the selected option for one question.
type ApplyAnswerRequest struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	// Bounds are re-checked by the engine; the binding range only catches
	// obviously malformed payloads early.
	OptionIndex *int `json:"option_index" binding:"required,min=0,max=3"`
}

// ToggleFlagRequest flips the review flag on one question.
type ToggleFlagRequest struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
}
