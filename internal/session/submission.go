package session

import (
	"context"
	"fmt"
	"time"

	"github.com/prepforge/session-backend/internal/genapi"
	"github.com/prepforge/session-backend/internal/model"
)

// SubmissionCoordinator builds the final answer payload and issues the single
// remote submission call for a Submitting transition.
type SubmissionCoordinator struct {
	api     genapi.Service
	timeout time.Duration
}

// NewSubmissionCoordinator creates a coordinator with the given per-call
// timeout. A non-positive timeout disables the deadline.
func NewSubmissionCoordinator(api genapi.Service, timeout time.Duration) *SubmissionCoordinator {
	return &SubmissionCoordinator{api: api, timeout: timeout}
}

// BuildPayload produces one entry per question, in question order: the
// selected option letter, or the explicit unanswered marker. No question is
// ever omitted.
func BuildPayload(questions []model.Question, store *AnswerStore) []model.AnswerSubmission {
	payload := make([]model.AnswerSubmission, 0, len(questions))
	for _, q := range questions {
		entry := model.AnswerSubmission{QuestionID: q.ID, Selected: model.AnswerUnanswered}
		if idx, ok := store.Selected(q.ID); ok {
			entry.Selected = model.OptionLetter(idx)
		}
		payload = append(payload, entry)
	}
	return payload
}

// Submit issues the remote submission call. It never mutates answers or
// flags; on failure the caller may retry with identical state.
func (s *SubmissionCoordinator) Submit(ctx context.Context, sessionRef string, answers []model.AnswerSubmission, elapsedSeconds int) (*model.SubmissionResult, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := s.api.SubmitAnswers(ctx, sessionRef, answers, elapsedSeconds)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}
	return res, nil
}
