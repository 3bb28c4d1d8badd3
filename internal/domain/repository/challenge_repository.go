package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"quizclash/internal/common"
	"quizclash/internal/domain/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// ChallengeFilterType narrows a listing to challenges the user created or
// challenges sent to them. Empty means both.
type ChallengeFilterType string

const (
	FilterSent     ChallengeFilterType = "sent"
	FilterReceived ChallengeFilterType = "received"
)

type ChallengeFilter struct {
	Status model.ChallengeStatus
	Type   ChallengeFilterType
	Limit  int
}

// ChallengeRepository is the only component that reads or writes challenge,
// participant, and challenge-stats rows.
type ChallengeRepository interface {
	CreateChallenge(ctx context.Context, quizID, creatorID, opponentID string) (string, error)
	CreateRematch(ctx context.Context, quizID, creatorID, opponentID, parentChallengeID string) (string, error)
	FindChallengeByID(ctx context.Context, id string) (*model.Challenge, error)
	ListUserChallenges(ctx context.Context, userID string, filter ChallengeFilter) ([]model.Challenge, error)
	FindOpenChallengeForPair(ctx context.Context, quizID, userA, userB string) (bool, error)

	UpdateChallengeStatus(ctx context.Context, tx *sql.Tx, id string, status model.ChallengeStatus) error
	ResetParticipants(ctx context.Context, tx *sql.Tx, challengeID string) error
	UpdateParticipantScore(ctx context.Context, challengeID, userID string, score, timeSeconds int, resultID *string) error
	MarkParticipantCompleted(ctx context.Context, challengeID, userID string) error
	GetChallengeParticipants(ctx context.Context, challengeID string) ([]model.Participant, error)

	// MarkResolved stamps completed_at, records the winner (nil on a draw),
	// and advances status to completed only for decisive outcomes. It is the
	// idempotency gate for resolution: the update is guarded by
	// completed_at IS NULL, and the bool reports whether this call took it.
	MarkResolved(ctx context.Context, tx *sql.Tx, id string, winnerID *string) (bool, error)

	DeleteChallenge(ctx context.Context, id, requestingUserID string) error

	GetOrCreateStats(ctx context.Context, userID string) (*model.ChallengeStats, error)
	IncrementStats(ctx context.Context, tx *sql.Tx, userID string, outcome model.StatsOutcome) error
}

type pgChallengeRepository struct {
	db *sql.DB
}

func NewPgChallengeRepository(db *sql.DB) ChallengeRepository {
	return &pgChallengeRepository{db: db}
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *pgChallengeRepository) runner(tx *sql.Tx) dbtx {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *pgChallengeRepository) CreateChallenge(ctx context.Context, quizID, creatorID, opponentID string) (string, error) {
	return r.insertChallenge(ctx, quizID, creatorID, opponentID, nil)
}

func (r *pgChallengeRepository) CreateRematch(ctx context.Context, quizID, creatorID, opponentID, parentChallengeID string) (string, error) {
	return r.insertChallenge(ctx, quizID, creatorID, opponentID, &parentChallengeID)
}

// insertChallenge writes the challenge row and both participant rows as one
// atomic unit; a failure on any insert rolls back all three.
func (r *pgChallengeRepository) insertChallenge(ctx context.Context, quizID, creatorID, opponentID string, parentID *string) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("pgChallengeRepository.insertChallenge begin: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	query := `INSERT INTO challenges (id, quiz_id, creator_id, opponent_id, status, parent_challenge_id, is_rematch)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = tx.ExecContext(ctx, query, id, quizID, creatorID, opponentID, model.ChallengePending, parentID, parentID != nil)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", fmt.Errorf("challenge already exists: %w", common.ErrConflict)
		}
		return "", fmt.Errorf("pgChallengeRepository.insertChallenge challenge: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO challenge_participants (challenge_id, user_id, score, total_time_seconds, completed)
	                                     VALUES ($1, $2, 0, 0, FALSE)`)
	if err != nil {
		return "", fmt.Errorf("pgChallengeRepository.insertChallenge prepare: %w", err)
	}
	defer stmt.Close()

	for _, userID := range []string{creatorID, opponentID} {
		if _, err := stmt.ExecContext(ctx, id, userID); err != nil {
			return "", fmt.Errorf("pgChallengeRepository.insertChallenge participant %s: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("pgChallengeRepository.insertChallenge commit: %w", err)
	}
	return id, nil
}

func (r *pgChallengeRepository) FindChallengeByID(ctx context.Context, id string) (*model.Challenge, error) {
	query := `
        SELECT c.id, c.quiz_id, c.creator_id, c.opponent_id, c.status,
               c.winner_id, c.parent_challenge_id, c.is_rematch,
               c.created_at, c.started_at, c.completed_at,
               q.title, cu.username, ou.username
        FROM challenges c
        JOIN quizzes q ON c.quiz_id = q.id
        JOIN users cu ON c.creator_id = cu.id
        JOIN users ou ON c.opponent_id = ou.id
        WHERE c.id = $1`

	ch := &model.Challenge{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&ch.ID, &ch.QuizID, &ch.CreatorID, &ch.OpponentID, &ch.Status,
		&ch.WinnerID, &ch.ParentChallengeID, &ch.IsRematch,
		&ch.CreatedAt, &ch.StartedAt, &ch.CompletedAt,
		&ch.QuizTitle, &ch.CreatorUsername, &ch.OpponentUsername,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgChallengeRepository.FindChallengeByID: %w", err)
	}
	return ch, nil
}

// ListUserChallenges always constrains to challenges the user is part of;
// filters only narrow within that set.
func (r *pgChallengeRepository) ListUserChallenges(ctx context.Context, userID string, filter ChallengeFilter) ([]model.Challenge, error) {
	var query strings.Builder
	query.WriteString(`
        SELECT c.id, c.quiz_id, c.creator_id, c.opponent_id, c.status,
               c.winner_id, c.parent_challenge_id, c.is_rematch,
               c.created_at, c.started_at, c.completed_at,
               q.title, cu.username, ou.username
        FROM challenges c
        JOIN quizzes q ON c.quiz_id = q.id
        JOIN users cu ON c.creator_id = cu.id
        JOIN users ou ON c.opponent_id = ou.id`)

	args := []any{userID}
	argID := 2

	switch filter.Type {
	case FilterSent:
		query.WriteString(" WHERE c.creator_id = $1")
	case FilterReceived:
		query.WriteString(" WHERE c.opponent_id = $1")
	default:
		query.WriteString(" WHERE (c.creator_id = $1 OR c.opponent_id = $1)")
	}

	if filter.Status != "" {
		query.WriteString(fmt.Sprintf(" AND c.status = $%d", argID))
		args = append(args, filter.Status)
		argID++
	}

	query.WriteString(" ORDER BY c.created_at DESC")

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query.WriteString(fmt.Sprintf(" LIMIT $%d", argID))
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("pgChallengeRepository.ListUserChallenges query: %w", err)
	}
	defer rows.Close()

	challenges := []model.Challenge{}
	for rows.Next() {
		var ch model.Challenge
		if err := rows.Scan(
			&ch.ID, &ch.QuizID, &ch.CreatorID, &ch.OpponentID, &ch.Status,
			&ch.WinnerID, &ch.ParentChallengeID, &ch.IsRematch,
			&ch.CreatedAt, &ch.StartedAt, &ch.CompletedAt,
			&ch.QuizTitle, &ch.CreatorUsername, &ch.OpponentUsername,
		); err != nil {
			return nil, fmt.Errorf("pgChallengeRepository.ListUserChallenges scan: %w", err)
		}
		challenges = append(challenges, ch)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgChallengeRepository.ListUserChallenges rows.Err: %w", err)
	}
	return challenges, nil
}

func (r *pgChallengeRepository) FindOpenChallengeForPair(ctx context.Context, quizID, userA, userB string) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM challenges
            WHERE quiz_id = $1
              AND status IN ($2, $3)
              AND ((creator_id = $4 AND opponent_id = $5) OR (creator_id = $5 AND opponent_id = $4))
        )`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, quizID, model.ChallengePending, model.ChallengeActive, userA, userB).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("pgChallengeRepository.FindOpenChallengeForPair: %w", err)
	}
	return exists, nil
}

// UpdateChallengeStatus stamps started_at on the transition into active and
// completed_at on the transition into completed, when not already set.
func (r *pgChallengeRepository) UpdateChallengeStatus(ctx context.Context, tx *sql.Tx, id string, status model.ChallengeStatus) error {
	query := `
        UPDATE challenges SET
            status = $1,
            started_at = CASE WHEN $1 = 'active' AND started_at IS NULL THEN CURRENT_TIMESTAMP ELSE started_at END,
            completed_at = CASE WHEN $1 = 'completed' AND completed_at IS NULL THEN CURRENT_TIMESTAMP ELSE completed_at END
        WHERE id = $2`
	res, err := r.runner(tx).ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("pgChallengeRepository.UpdateChallengeStatus: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// ResetParticipants returns both participants to their initial values so a
// re-accepted challenge starts from a clean slate.
func (r *pgChallengeRepository) ResetParticipants(ctx context.Context, tx *sql.Tx, challengeID string) error {
	query := `
        UPDATE challenge_participants SET
            score = 0, total_time_seconds = 0, completed = FALSE,
            completed_at = NULL, result_id = NULL
        WHERE challenge_id = $1`
	if _, err := r.runner(tx).ExecContext(ctx, query, challengeID); err != nil {
		return fmt.Errorf("pgChallengeRepository.ResetParticipants: %w", err)
	}
	return nil
}

func (r *pgChallengeRepository) UpdateParticipantScore(ctx context.Context, challengeID, userID string, score, timeSeconds int, resultID *string) error {
	query := `
        UPDATE challenge_participants SET
            score = $1, total_time_seconds = $2, result_id = COALESCE($3, result_id)
        WHERE challenge_id = $4 AND user_id = $5`
	res, err := r.db.ExecContext(ctx, query, score, timeSeconds, resultID, challengeID, userID)
	if err != nil {
		return fmt.Errorf("pgChallengeRepository.UpdateParticipantScore: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgChallengeRepository) MarkParticipantCompleted(ctx context.Context, challengeID, userID string) error {
	query := `
        UPDATE challenge_participants SET
            completed = TRUE,
            completed_at = COALESCE(completed_at, CURRENT_TIMESTAMP)
        WHERE challenge_id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, challengeID, userID)
	if err != nil {
		return fmt.Errorf("pgChallengeRepository.MarkParticipantCompleted: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// GetChallengeParticipants returns the pair ordered creator-first so callers
// can rely on the position.
func (r *pgChallengeRepository) GetChallengeParticipants(ctx context.Context, challengeID string) ([]model.Participant, error) {
	query := `
        SELECT p.challenge_id, p.user_id, p.score, p.total_time_seconds,
               p.completed, p.completed_at, p.result_id, u.username
        FROM challenge_participants p
        JOIN users u ON p.user_id = u.id
        JOIN challenges c ON p.challenge_id = c.id
        WHERE p.challenge_id = $1
        ORDER BY (p.user_id = c.creator_id) DESC`

	rows, err := r.db.QueryContext(ctx, query, challengeID)
	if err != nil {
		return nil, fmt.Errorf("pgChallengeRepository.GetChallengeParticipants query: %w", err)
	}
	defer rows.Close()

	participants := []model.Participant{}
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.ChallengeID, &p.UserID, &p.Score, &p.TotalTimeSeconds,
			&p.Completed, &p.CompletedAt, &p.ResultID, &p.Username); err != nil {
			return nil, fmt.Errorf("pgChallengeRepository.GetChallengeParticipants scan: %w", err)
		}
		participants = append(participants, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgChallengeRepository.GetChallengeParticipants rows.Err: %w", err)
	}
	return participants, nil
}

func (r *pgChallengeRepository) MarkResolved(ctx context.Context, tx *sql.Tx, id string, winnerID *string) (bool, error) {
	query := `
        UPDATE challenges SET
            winner_id = $1,
            completed_at = CURRENT_TIMESTAMP,
            status = CASE WHEN $1 IS NOT NULL THEN 'completed' ELSE status END
        WHERE id = $2 AND completed_at IS NULL`
	res, err := r.runner(tx).ExecContext(ctx, query, winnerID, id)
	if err != nil {
		return false, fmt.Errorf("pgChallengeRepository.MarkResolved: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgChallengeRepository.MarkResolved rows: %w", err)
	}
	return n == 1, nil
}

// DeleteChallenge removes a pending challenge on behalf of its creator.
// Participants go first to respect the foreign key on challenge_id.
func (r *pgChallengeRepository) DeleteChallenge(ctx context.Context, id, requestingUserID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgChallengeRepository.DeleteChallenge begin: %w", err)
	}
	defer tx.Rollback()

	var creatorID string
	var status model.ChallengeStatus
	err = tx.QueryRowContext(ctx, `SELECT creator_id, status FROM challenges WHERE id = $1 FOR UPDATE`, id).
		Scan(&creatorID, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		return fmt.Errorf("pgChallengeRepository.DeleteChallenge select: %w", err)
	}
	if creatorID != requestingUserID {
		return fmt.Errorf("only the creator may delete a challenge: %w", common.ErrForbidden)
	}
	if status != model.ChallengePending {
		return fmt.Errorf("only pending challenges may be deleted: %w", common.ErrInvalidState)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM challenge_participants WHERE challenge_id = $1`, id); err != nil {
		return fmt.Errorf("pgChallengeRepository.DeleteChallenge participants: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM challenges WHERE id = $1`, id); err != nil {
		return fmt.Errorf("pgChallengeRepository.DeleteChallenge challenge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgChallengeRepository.DeleteChallenge commit: %w", err)
	}
	return nil
}

func (r *pgChallengeRepository) GetOrCreateStats(ctx context.Context, userID string) (*model.ChallengeStats, error) {
	query := `
        INSERT INTO challenge_stats (user_id)
        VALUES ($1)
        ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
        RETURNING user_id, total_challenges, challenges_won, challenges_lost,
                  challenges_drawn, current_win_streak, best_win_streak, updated_at`

	stats := &model.ChallengeStats{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&stats.UserID, &stats.TotalChallenges, &stats.ChallengesWon, &stats.ChallengesLost,
		&stats.ChallengesDrawn, &stats.CurrentWinStreak, &stats.BestWinStreak, &stats.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("pgChallengeRepository.GetOrCreateStats: %w", err)
	}
	return stats, nil
}

// IncrementStats applies exactly one outcome to a user's counters. The win
// streak grows on a win, resets on a loss, and is untouched by a draw.
func (r *pgChallengeRepository) IncrementStats(ctx context.Context, tx *sql.Tx, userID string, outcome model.StatsOutcome) error {
	var query string
	switch outcome {
	case model.OutcomeWon:
		query = `
            INSERT INTO challenge_stats (user_id, total_challenges, challenges_won, current_win_streak, best_win_streak)
            VALUES ($1, 1, 1, 1, 1)
            ON CONFLICT (user_id) DO UPDATE SET
                total_challenges = challenge_stats.total_challenges + 1,
                challenges_won = challenge_stats.challenges_won + 1,
                current_win_streak = challenge_stats.current_win_streak + 1,
                best_win_streak = GREATEST(challenge_stats.best_win_streak, challenge_stats.current_win_streak + 1),
                updated_at = CURRENT_TIMESTAMP`
	case model.OutcomeLost:
		query = `
            INSERT INTO challenge_stats (user_id, total_challenges, challenges_lost)
            VALUES ($1, 1, 1)
            ON CONFLICT (user_id) DO UPDATE SET
                total_challenges = challenge_stats.total_challenges + 1,
                challenges_lost = challenge_stats.challenges_lost + 1,
                current_win_streak = 0,
                updated_at = CURRENT_TIMESTAMP`
	case model.OutcomeDrawn:
		query = `
            INSERT INTO challenge_stats (user_id, total_challenges, challenges_drawn)
            VALUES ($1, 1, 1)
            ON CONFLICT (user_id) DO UPDATE SET
                total_challenges = challenge_stats.total_challenges + 1,
                challenges_drawn = challenge_stats.challenges_drawn + 1,
                updated_at = CURRENT_TIMESTAMP`
	default:
		return fmt.Errorf("unknown stats outcome %q: %w", outcome, common.ErrBadRequest)
	}

	if _, err := r.runner(tx).ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("pgChallengeRepository.IncrementStats: %w", err)
	}
	return nil
}
