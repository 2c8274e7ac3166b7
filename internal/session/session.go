package session

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/prepforge/session-backend/internal/model"
)

// TestSession is the aggregate state of one test attempt. All fields are
// owned by the controller and mutated only under its lock.
type TestSession struct {
	SessionID        string
	Questions        []model.Question
	DurationSeconds  int
	RemainingSeconds int
	Phase            Phase
	IsReattempt      bool

	seen map[uuid.UUID]struct{} // ids already merged into Questions
}

func newTestSession() *TestSession {
	return &TestSession{
		Phase: PhaseIdle,
		seen:  make(map[uuid.UUID]struct{}),
	}
}

// appendNew appends questions whose id has not been merged yet, preserving
// arrival order. Idempotent with respect to re-delivered snapshots.
func (s *TestSession) appendNew(qs []model.Question) int {
	added := 0
	for _, q := range qs {
		if _, ok := s.seen[q.ID]; ok {
			continue
		}
		s.seen[q.ID] = struct{}{}
		s.Questions = append(s.Questions, q)
		added++
	}
	return added
}

// has reports whether a question id is part of the session.
func (s *TestSession) has(id uuid.UUID) bool {
	_, ok := s.seen[id]
	return ok
}

// Snapshot is the read view handed to UI callers. Grading fields are
// stripped from questions until the session completes.
type Snapshot struct {
	SessionID        string                  `json:"session_id"`
	Phase            Phase                   `json:"phase"`
	IsReattempt      bool                    `json:"is_reattempt"`
	CanStart         bool                    `json:"can_start"`
	Questions        []model.QuestionView    `json:"questions"`
	QuestionCount    int                     `json:"question_count"`
	Answers          map[string]int          `json:"answers"`
	Flagged          []string                `json:"flagged"`
	AnsweredCount    int                     `json:"answered_count"`
	UnansweredCount  int                     `json:"unanswered_count"`
	DurationSeconds  int                     `json:"duration_seconds"`
	RemainingSeconds int                     `json:"remaining_seconds"`
	RemainingDisplay string                  `json:"remaining_display"`
	Warning          string                  `json:"warning,omitempty"`
	Failure          FailureKind             `json:"failure,omitempty"`
	Result           *model.SubmissionResult `json:"result,omitempty"`
}

// FormatRemaining renders seconds as MM:SS, or HH:MM:SS from one hour up.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
