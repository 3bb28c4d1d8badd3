package model

import "time"

// QuizResult is the single-player result record a challenge participant's
// attempt links to through Participant.ResultID.
type QuizResult struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	QuizID           string    `json:"quiz_id"`
	Score            int       `json:"score"`
	TotalTimeSeconds int       `json:"total_time_seconds"`
	CreatedAt        time.Time `json:"created_at"`
}

// QuestionAttempt is the durable per-answer record written as a player
// works through a quiz over the realtime connection.
type QuestionAttempt struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	QuizID           string    `json:"quiz_id"`
	QuestionID       string    `json:"question_id"`
	Answer           string    `json:"answer"`
	Correct          bool      `json:"correct"`
	TimeTakenSeconds int       `json:"time_taken_seconds"`
	CreatedAt        time.Time `json:"created_at"`
}
