package model

import (
	"strings"
	"time"
)

type QuestionKind string

const (
	QuestionMultipleChoice QuestionKind = "multiple_choice"
	QuestionTrueFalse      QuestionKind = "true_false"
)

type Quiz struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	CreatedByID string     `json:"created_by"`
	Questions   []Question `json:"questions,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Question is a tagged variant over QuestionKind. Options only carry data
// for multiple-choice questions; true/false questions store "true" or
// "false" in CorrectAnswer.
type Question struct {
	ID            string       `json:"id"`
	QuizID        string       `json:"quiz_id"`
	Kind          QuestionKind `json:"kind"`
	Prompt        string       `json:"prompt"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"-"` // Never serialized to players
	Points        int          `json:"points"`
}

// ValidateAnswer checks a submitted answer against the stored correct
// answer, matching exhaustively on the question kind. Unknown kinds never
// validate.
func ValidateAnswer(q Question, answer string) bool {
	switch q.Kind {
	case QuestionMultipleChoice:
		return answer == q.CorrectAnswer
	case QuestionTrueFalse:
		return strings.EqualFold(strings.TrimSpace(answer), q.CorrectAnswer)
	default:
		return false
	}
}
