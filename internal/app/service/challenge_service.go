package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"quizclash/internal/common"
	"quizclash/internal/domain/model"
	"quizclash/internal/domain/repository"
	"quizclash/internal/realtime"
)

// ChallengeNotifier carries challenge events out of the lifecycle, to the
// realtime hub via pub/sub.
type ChallengeNotifier interface {
	PublishChallengeEvent(ctx context.Context, payload any) error
}

// ChallengeService owns the challenge state machine:
// pending → active → completed, with pending → removed for decline/cancel.
// No transition ever regresses a status.
type ChallengeService struct {
	challengeRepo repository.ChallengeRepository
	userRepo      repository.UserRepository
	quizRepo      repository.QuizRepository
	resultRepo    repository.ResultRepository
	notifier      ChallengeNotifier
	db            *sql.DB // For transactions spanning repo calls
	logger        *slog.Logger
}

func NewChallengeService(
	challengeRepo repository.ChallengeRepository,
	userRepo repository.UserRepository,
	quizRepo repository.QuizRepository,
	resultRepo repository.ResultRepository,
	notifier ChallengeNotifier,
	db *sql.DB,
	logger *slog.Logger,
) *ChallengeService {
	return &ChallengeService{
		challengeRepo: challengeRepo,
		userRepo:      userRepo,
		quizRepo:      quizRepo,
		resultRepo:    resultRepo,
		notifier:      notifier,
		db:            db,
		logger:        logger,
	}
}

type CreateChallengeRequest struct {
	QuizID           string `json:"quiz_id"`
	OpponentUsername string `json:"opponent_username"`
}

func (s *ChallengeService) CreateChallenge(ctx context.Context, creatorID string, req CreateChallengeRequest) (*model.Challenge, error) {
	if req.QuizID == "" || req.OpponentUsername == "" {
		return nil, fmt.Errorf("quiz_id and opponent_username are required: %w", common.ErrValidation)
	}

	opponent, err := s.userRepo.FindByUsername(ctx, req.OpponentUsername)
	if err != nil {
		return nil, fmt.Errorf("opponent %q: %w", req.OpponentUsername, err)
	}
	if opponent.ID == creatorID {
		return nil, fmt.Errorf("cannot challenge yourself: %w", common.ErrConflict)
	}

	quiz, err := s.quizRepo.FindQuizByID(ctx, req.QuizID)
	if err != nil {
		return nil, fmt.Errorf("quiz %s: %w", req.QuizID, err)
	}
	if len(quiz.Questions) == 0 {
		return nil, fmt.Errorf("quiz has no questions: %w", common.ErrValidation)
	}

	done, err := s.resultRepo.HasUserCompletedQuiz(ctx, creatorID, quiz.ID)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, fmt.Errorf("you already completed this quiz: %w", common.ErrConflict)
	}

	open, err := s.challengeRepo.FindOpenChallengeForPair(ctx, quiz.ID, creatorID, opponent.ID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, fmt.Errorf("an open challenge for this quiz and opponent already exists: %w", common.ErrConflict)
	}

	id, err := s.challengeRepo.CreateChallenge(ctx, quiz.ID, creatorID, opponent.ID)
	if err != nil {
		return nil, err
	}
	return s.challengeRepo.FindChallengeByID(ctx, id)
}

func (s *ChallengeService) GetChallenge(ctx context.Context, requesterID, id string) (*model.Challenge, error) {
	ch, err := s.challengeRepo.FindChallengeByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if requesterID != ch.CreatorID && requesterID != ch.OpponentID {
		return nil, fmt.Errorf("not a participant of this challenge: %w", common.ErrForbidden)
	}
	return ch, nil
}

func (s *ChallengeService) ListMyChallenges(ctx context.Context, userID string, filter repository.ChallengeFilter) ([]model.Challenge, error) {
	return s.challengeRepo.ListUserChallenges(ctx, userID, filter)
}

// Accept moves a pending challenge to active. Both participants are reset
// to initial values so a stale pending challenge plays from a clean slate.
func (s *ChallengeService) Accept(ctx context.Context, userID, id string) (*model.Challenge, error) {
	ch, err := s.challengeRepo.FindChallengeByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID != ch.OpponentID {
		return nil, fmt.Errorf("only the opponent may accept: %w", common.ErrForbidden)
	}
	if ch.Status != model.ChallengePending {
		return nil, fmt.Errorf("challenge is not pending: %w", common.ErrInvalidState)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("accept begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.challengeRepo.UpdateChallengeStatus(ctx, tx, id, model.ChallengeActive); err != nil {
		return nil, err
	}
	if err := s.challengeRepo.ResetParticipants(ctx, tx, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("accept commit: %w", err)
	}

	return s.challengeRepo.FindChallengeByID(ctx, id)
}

// Decline removes a pending challenge on the opponent's behalf and notifies
// the creator through the challenge events channel.
func (s *ChallengeService) Decline(ctx context.Context, userID, id string) error {
	ch, err := s.challengeRepo.FindChallengeByID(ctx, id)
	if err != nil {
		return err
	}
	if userID != ch.OpponentID {
		return fmt.Errorf("only the opponent may decline: %w", common.ErrForbidden)
	}
	if ch.Status != model.ChallengePending {
		return fmt.Errorf("challenge is not pending: %w", common.ErrInvalidState)
	}

	// The delete path re-validates creator+pending; decline acts for the
	// creator after its own opponent check above.
	if err := s.challengeRepo.DeleteChallenge(ctx, id, ch.CreatorID); err != nil {
		return err
	}

	payload := realtime.Event{
		Type: realtime.EventChallengeDeclined,
		Data: realtime.ChallengeDeclinedPayload{
			ChallengeID:      ch.ID,
			CreatorID:        ch.CreatorID,
			OpponentUsername: deref(ch.OpponentUsername),
			QuizTitle:        deref(ch.QuizTitle),
		},
	}
	if err := s.notifier.PublishChallengeEvent(ctx, payload); err != nil {
		// The decline itself committed; a lost notification is log-only.
		s.logger.Error("failed to publish challenge_declined", "challenge_id", id, "error", err)
	}
	return nil
}

// Cancel delegates to the store's delete, which enforces creator+pending.
func (s *ChallengeService) Cancel(ctx context.Context, userID, id string) error {
	return s.challengeRepo.DeleteChallenge(ctx, id, userID)
}

// SubmitResult records one participant's final score/time and, when both
// sides are in, triggers resolution.
func (s *ChallengeService) SubmitResult(ctx context.Context, userID, challengeID string, score, timeSeconds int, resultID *string) error {
	ch, err := s.challengeRepo.FindChallengeByID(ctx, challengeID)
	if err != nil {
		return err
	}
	if userID != ch.CreatorID && userID != ch.OpponentID {
		return fmt.Errorf("not a participant of this challenge: %w", common.ErrForbidden)
	}
	if ch.Status != model.ChallengeActive {
		return fmt.Errorf("challenge is not active: %w", common.ErrInvalidState)
	}

	if err := s.challengeRepo.UpdateParticipantScore(ctx, challengeID, userID, score, timeSeconds, resultID); err != nil {
		return err
	}
	if err := s.challengeRepo.MarkParticipantCompleted(ctx, challengeID, userID); err != nil {
		return err
	}

	participants, err := s.challengeRepo.GetChallengeParticipants(ctx, challengeID)
	if err != nil {
		return err
	}
	if len(participants) != 2 || !participants[0].Completed || !participants[1].Completed {
		return nil
	}
	return s.resolve(ctx, challengeID, participants)
}

// resolve computes the outcome and applies it exactly once. MarkResolved is
// the idempotency gate: when two submissions race, the losing call sees no
// row updated and skips the stats writes.
func (s *ChallengeService) resolve(ctx context.Context, challengeID string, participants []model.Participant) error {
	a := ParticipantResult{UserID: participants[0].UserID, Score: participants[0].Score, TimeSeconds: participants[0].TotalTimeSeconds}
	b := ParticipantResult{UserID: participants[1].UserID, Score: participants[1].Score, TimeSeconds: participants[1].TotalTimeSeconds}
	outcome := ResolveWinner(a, b)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("resolve begin tx: %w", err)
	}
	defer tx.Rollback()

	applied, err := s.challengeRepo.MarkResolved(ctx, tx, challengeID, outcome.WinnerID)
	if err != nil {
		return err
	}
	if !applied {
		s.logger.Debug("challenge already resolved", "challenge_id", challengeID)
		return nil
	}

	if outcome.Drawn {
		for _, p := range participants {
			if err := s.challengeRepo.IncrementStats(ctx, tx, p.UserID, model.OutcomeDrawn); err != nil {
				return err
			}
		}
	} else {
		loserID := a.UserID
		if *outcome.WinnerID == a.UserID {
			loserID = b.UserID
		}
		if err := s.challengeRepo.IncrementStats(ctx, tx, *outcome.WinnerID, model.OutcomeWon); err != nil {
			return err
		}
		if err := s.challengeRepo.IncrementStats(ctx, tx, loserID, model.OutcomeLost); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("resolve commit: %w", err)
	}

	s.logger.Info("challenge resolved",
		"challenge_id", challengeID, "drawn", outcome.Drawn, "winner_id", deref(outcome.WinnerID))
	return nil
}

// Rematch creates a new challenge off a completed one with the roles
// swapped: the requester becomes the creator.
func (s *ChallengeService) Rematch(ctx context.Context, userID, challengeID string) (*model.Challenge, error) {
	ch, err := s.challengeRepo.FindChallengeByID(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if userID != ch.CreatorID && userID != ch.OpponentID {
		return nil, fmt.Errorf("not a participant of this challenge: %w", common.ErrForbidden)
	}
	if ch.Status != model.ChallengeCompleted {
		return nil, fmt.Errorf("only completed challenges can be rematched: %w", common.ErrInvalidState)
	}

	opponentID := ch.CreatorID
	if userID == ch.CreatorID {
		opponentID = ch.OpponentID
	}

	id, err := s.challengeRepo.CreateRematch(ctx, ch.QuizID, userID, opponentID, ch.ID)
	if err != nil {
		return nil, err
	}
	return s.challengeRepo.FindChallengeByID(ctx, id)
}

// GetStats returns a user's challenge record; users may only read their own.
func (s *ChallengeService) GetStats(ctx context.Context, requesterID, userID string) (*model.ChallengeStats, error) {
	if requesterID != userID {
		return nil, fmt.Errorf("stats are private: %w", common.ErrForbidden)
	}
	return s.challengeRepo.GetOrCreateStats(ctx, userID)
}

// GetChallengeParticipants returns the scoreboard pair, creator first.
// Only the two participants may read it.
func (s *ChallengeService) GetChallengeParticipants(ctx context.Context, requesterID, challengeID string) ([]model.Participant, error) {
	ch, err := s.challengeRepo.FindChallengeByID(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if requesterID != ch.CreatorID && requesterID != ch.OpponentID {
		return nil, fmt.Errorf("not a participant of this challenge: %w", common.ErrForbidden)
	}
	return s.challengeRepo.GetChallengeParticipants(ctx, challengeID)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
