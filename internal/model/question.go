package model

import "github.com/google/uuid"

// OptionCount is the fixed number of options per question.
const OptionCount = 4

// optionLetters maps an option index to the letter the grading service expects.
var optionLetters = [OptionCount]string{"A", "B", "C", "D"}

// AnswerUnanswered is the explicit marker submitted for questions the user
// never answered. Every question appears in the submission payload, answered
// or not.
const AnswerUnanswered = "UNANSWERED"

// OptionLetter converts a 0-based option index to its submission letter.
// Callers must validate the index range first.
func OptionLetter(idx int) string {
	return optionLetters[idx]
}

// Question is a single multiple-choice question. Immutable once merged into
// a session's question list.
type Question struct {
	ID            uuid.UUID `json:"id"`
	Prompt        string    `json:"prompt"`
	Options       []string  `json:"options"`
	CorrectOption string    `json:"correct_option,omitempty"`
	Explanation   string    `json:"explanation,omitempty"`
}

// QuestionView is a question as exposed to UI callers during a live session.
// The correct option and explanation never leave the engine before the
// session completes.
type QuestionView struct {
	ID      uuid.UUID `json:"id"`
	Prompt  string    `json:"prompt"`
	Options []string  `json:"options"`
}

// View strips the grading fields from a question.
func (q Question) View() QuestionView {
	return QuestionView{ID: q.ID, Prompt: q.Prompt, Options: q.Options}
}
