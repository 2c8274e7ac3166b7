package genapi

import (
	"context"

	"github.com/prepforge/session-backend/internal/model"
)

// StartResult is the response to a chunked-generation start. The initial
// question batch may be a small fraction of TotalNeeded; the rest arrives
// through status polls.
type StartResult struct {
	GenerationHandle string                   `json:"generation_handle"`
	DurationSeconds  int                      `json:"duration_seconds"`
	Questions        []model.Question         `json:"questions"`
	Progress         model.GenerationProgress `json:"progress"`
}

// StatusResult is one generation status snapshot plus the full question list
// known for the handle so far.
type StatusResult struct {
	Progress  model.GenerationProgress `json:"progress"`
	Questions []model.Question         `json:"questions"`
}

// FixedSetResult is the re-attempt payload: a complete, previously generated
// question set.
type FixedSetResult struct {
	DurationSeconds int              `json:"duration_seconds"`
	Questions       []model.Question `json:"questions"`
}

// Service is the remote generator/grading collaborator the session engine
// consumes. Implementations must be safe for concurrent use.
type Service interface {
	// StartGeneration kicks off chunked generation for a test card. The
	// backing generator is expensive and non-idempotent; callers guard
	// against duplicate invocations.
	StartGeneration(ctx context.Context, cardID string) (*StartResult, error)

	// PollGenerationStatus fetches the current progress snapshot for a
	// generation handle.
	PollGenerationStatus(ctx context.Context, handle string) (*StatusResult, error)

	// LoadFixedQuestions returns the fixed question set of a prior session
	// (re-attempt path).
	LoadFixedQuestions(ctx context.Context, sessionRef string) (*FixedSetResult, error)

	// SubmitAnswers grades a finished attempt. One entry per question,
	// answered or not.
	SubmitAnswers(ctx context.Context, sessionRef string, answers []model.AnswerSubmission, elapsedSeconds int) (*model.SubmissionResult, error)
}
