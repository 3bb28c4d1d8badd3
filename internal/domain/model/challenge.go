package model

import "time"

type ChallengeStatus string

const (
	ChallengePending   ChallengeStatus = "pending"
	ChallengeActive    ChallengeStatus = "active"
	ChallengeCompleted ChallengeStatus = "completed"
)

// Challenge is a two-player quiz duel. Declined or cancelled challenges are
// removed rather than kept in a terminal state, so there is no status for
// them. A draw stamps CompletedAt but leaves Status at "active"; clients
// poll status=completed for decisive outcomes only.
type Challenge struct {
	ID                string          `json:"id"`
	QuizID            string          `json:"quiz_id"`
	CreatorID         string          `json:"creator_id"`
	OpponentID        string          `json:"opponent_id"`
	Status            ChallengeStatus `json:"status"`
	WinnerID          *string         `json:"winner_id,omitempty"`
	ParentChallengeID *string         `json:"parent_challenge_id,omitempty"`
	IsRematch         bool            `json:"is_rematch"`
	CreatedAt         time.Time       `json:"created_at"`
	StartedAt         *time.Time      `json:"started_at,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`

	// Display fields joined in by list/detail queries.
	QuizTitle        *string `json:"quiz_title,omitempty"`
	CreatorUsername  *string `json:"creator_username,omitempty"`
	OpponentUsername *string `json:"opponent_username,omitempty"`
}

// Participant is one user's per-challenge score/time/completion record.
// Composite key: (ChallengeID, UserID).
type Participant struct {
	ChallengeID      string     `json:"challenge_id"`
	UserID           string     `json:"user_id"`
	Score            int        `json:"score"`
	TotalTimeSeconds int        `json:"total_time_seconds"`
	Completed        bool       `json:"completed"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	ResultID         *string    `json:"result_id,omitempty"`

	Username *string `json:"username,omitempty"`
}

type StatsOutcome string

const (
	OutcomeWon   StatsOutcome = "won"
	OutcomeLost  StatsOutcome = "lost"
	OutcomeDrawn StatsOutcome = "drawn"
)

// ChallengeStats is one user's lifetime challenge record, materialized
// lazily on first reference.
type ChallengeStats struct {
	UserID           string    `json:"user_id"`
	TotalChallenges  int       `json:"total_challenges"`
	ChallengesWon    int       `json:"challenges_won"`
	ChallengesLost   int       `json:"challenges_lost"`
	ChallengesDrawn  int       `json:"challenges_drawn"`
	CurrentWinStreak int       `json:"current_win_streak"`
	BestWinStreak    int       `json:"best_win_streak"`
	UpdatedAt        time.Time `json:"updated_at"`
}
