package repository

import (
	"context"
	"database/sql"
	"fmt"

	"quizclash/internal/domain/model"

	"github.com/google/uuid"
)

// ResultRepository records the durable traces of live play: the per-answer
// attempt log and the final single-player result a participant links to.
type ResultRepository interface {
	CreateResult(ctx context.Context, result *model.QuizResult) (string, error)
	SaveQuestionAttempt(ctx context.Context, attempt *model.QuestionAttempt) error
	HasUserCompletedQuiz(ctx context.Context, userID, quizID string) (bool, error)
}

type pgResultRepository struct {
	db *sql.DB
}

func NewPgResultRepository(db *sql.DB) ResultRepository {
	return &pgResultRepository{db: db}
}

func (r *pgResultRepository) CreateResult(ctx context.Context, result *model.QuizResult) (string, error) {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	query := `INSERT INTO quiz_results (id, user_id, quiz_id, score, total_time_seconds)
	          VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, result.ID, result.UserID, result.QuizID, result.Score, result.TotalTimeSeconds)
	if err != nil {
		return "", fmt.Errorf("pgResultRepository.CreateResult: %w", err)
	}
	return result.ID, nil
}

func (r *pgResultRepository) SaveQuestionAttempt(ctx context.Context, attempt *model.QuestionAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	query := `INSERT INTO question_attempts (id, user_id, quiz_id, question_id, answer, correct, time_taken_seconds)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query,
		attempt.ID, attempt.UserID, attempt.QuizID, attempt.QuestionID,
		attempt.Answer, attempt.Correct, attempt.TimeTakenSeconds)
	if err != nil {
		return fmt.Errorf("pgResultRepository.SaveQuestionAttempt: %w", err)
	}
	return nil
}

func (r *pgResultRepository) HasUserCompletedQuiz(ctx context.Context, userID, quizID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM quiz_results WHERE user_id = $1 AND quiz_id = $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID, quizID).Scan(&exists); err != nil {
		return false, fmt.Errorf("pgResultRepository.HasUserCompletedQuiz: %w", err)
	}
	return exists, nil
}
