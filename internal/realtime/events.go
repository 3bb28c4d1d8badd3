package realtime

// EventType names the server→client events of the live-play protocol.
type EventType string

const (
	EventOpponentJoined     EventType = "opponent_joined"
	EventWaitingForOpponent EventType = "waiting_for_opponent"
	EventBothPlayersReady   EventType = "both_players_ready"
	EventChallengeStart     EventType = "challenge_start"
	EventAnswerResult       EventType = "answer_result"
	EventScoreUpdate        EventType = "score_update"
	EventResultSaved        EventType = "result_saved"
	EventChallengeDeclined  EventType = "challenge_declined"
	EventError              EventType = "error"
)

// Event is the envelope written to a client's SSE stream.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

type OpponentJoinedPayload struct {
	Username string `json:"username"`
}

type AnswerResultPayload struct {
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correct_answer"`
}

type ScoreUpdatePayload struct {
	Score int `json:"score"`
}

type ResultSavedPayload struct {
	Success         bool     `json:"success"`
	ResultID        string   `json:"result_id"`
	NewAchievements []string `json:"new_achievements"`
}

type ChallengeDeclinedPayload struct {
	ChallengeID      string `json:"challenge_id"`
	CreatorID        string `json:"creator_id"`
	OpponentUsername string `json:"opponent_username"`
	QuizTitle        string `json:"quiz_title"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
