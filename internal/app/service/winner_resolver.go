package service

// ParticipantResult is the final score/time tuple resolution works from.
type ParticipantResult struct {
	UserID      string
	Score       int
	TimeSeconds int
}

// ChallengeOutcome is the result of resolving two participants. WinnerID is
// nil exactly when the outcome is a draw.
type ChallengeOutcome struct {
	WinnerID *string
	Drawn    bool
}

// ResolveWinner decides a head-to-head outcome. A strictly higher score wins
// outright. On equal scores the strictly lower recorded time wins, but a
// zero time means "not meaningfully timed" and never breaks a tie, so a
// participant cannot win on time they never recorded.
func ResolveWinner(a, b ParticipantResult) ChallengeOutcome {
	if a.Score > b.Score {
		return ChallengeOutcome{WinnerID: &a.UserID}
	}
	if b.Score > a.Score {
		return ChallengeOutcome{WinnerID: &b.UserID}
	}

	if a.TimeSeconds != b.TimeSeconds {
		lower := a
		if b.TimeSeconds < a.TimeSeconds {
			lower = b
		}
		if lower.TimeSeconds > 0 {
			return ChallengeOutcome{WinnerID: &lower.UserID}
		}
	}

	return ChallengeOutcome{Drawn: true}
}
