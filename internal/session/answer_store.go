package session

import (
	"sort"

	"github.com/google/uuid"
)

// AnswerStore holds per-question selected options and review flags for one
// session. Pure data structure; the controller serializes access to it.
type AnswerStore struct {
	answers map[uuid.UUID]int
	flagged map[uuid.UUID]struct{}
}

// NewAnswerStore creates an empty AnswerStore.
func NewAnswerStore() *AnswerStore {
	return &AnswerStore{
		answers: make(map[uuid.UUID]int),
		flagged: make(map[uuid.UUID]struct{}),
	}
}

// Set records the selected option for a question, overwriting any prior
// selection. Last write wins.
func (s *AnswerStore) Set(questionID uuid.UUID, optionIndex int) {
	s.answers[questionID] = optionIndex
}

// Selected returns the selected option index for a question, if any.
func (s *AnswerStore) Selected(questionID uuid.UUID) (int, bool) {
	idx, ok := s.answers[questionID]
	return idx, ok
}

// ToggleFlag flips a question's review-flag membership and returns the new
// state. Flags never touch answers.
func (s *AnswerStore) ToggleFlag(questionID uuid.UUID) bool {
	if _, ok := s.flagged[questionID]; ok {
		delete(s.flagged, questionID)
		return false
	}
	s.flagged[questionID] = struct{}{}
	return true
}

// IsFlagged reports review-flag membership.
func (s *AnswerStore) IsFlagged(questionID uuid.UUID) bool {
	_, ok := s.flagged[questionID]
	return ok
}

// AnsweredCount returns the number of questions with a recorded answer.
func (s *AnswerStore) AnsweredCount() int {
	return len(s.answers)
}

// UnansweredCount returns how many of total questions have no answer yet.
func (s *AnswerStore) UnansweredCount(total int) int {
	n := total - len(s.answers)
	if n < 0 {
		return 0
	}
	return n
}

// Answers returns a copy of the answer map keyed by question id string.
func (s *AnswerStore) Answers() map[string]int {
	out := make(map[string]int, len(s.answers))
	for id, idx := range s.answers {
		out[id.String()] = idx
	}
	return out
}

// FlaggedIDs returns the flagged question ids in stable (lexicographic) order.
func (s *AnswerStore) FlaggedIDs() []string {
	out := make([]string, 0, len(s.flagged))
	for id := range s.flagged {
		out = append(out, id.String())
	}
	sort.Strings(out)
	return out
}
