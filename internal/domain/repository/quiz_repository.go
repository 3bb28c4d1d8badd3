package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"quizclash/internal/common"
	"quizclash/internal/domain/model"
)

// QuizRepository is read-only here: quiz authoring lives in a separate
// subsystem, the challenge engine only looks quizzes up.
type QuizRepository interface {
	FindQuizByID(ctx context.Context, id string) (*model.Quiz, error)
}

type pgQuizRepository struct {
	db *sql.DB
}

func NewPgQuizRepository(db *sql.DB) QuizRepository {
	return &pgQuizRepository{db: db}
}

func (r *pgQuizRepository) FindQuizByID(ctx context.Context, id string) (*model.Quiz, error) {
	query := `SELECT id, title, description, created_by, created_at
	          FROM quizzes WHERE id = $1`
	quiz := &model.Quiz{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&quiz.ID, &quiz.Title, &quiz.Description, &quiz.CreatedByID, &quiz.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgQuizRepository.FindQuizByID: %w", err)
	}

	questions, err := r.questionsByQuizID(ctx, id)
	if err != nil {
		return nil, err
	}
	quiz.Questions = questions
	return quiz, nil
}

func (r *pgQuizRepository) questionsByQuizID(ctx context.Context, quizID string) ([]model.Question, error) {
	// options is a jsonb array of option labels; empty for true/false.
	query := `SELECT id, quiz_id, kind, prompt, options, correct_answer, points
	          FROM questions WHERE quiz_id = $1 ORDER BY sort_order ASC`
	rows, err := r.db.QueryContext(ctx, query, quizID)
	if err != nil {
		return nil, fmt.Errorf("pgQuizRepository.questionsByQuizID query: %w", err)
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var options []byte
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Kind, &q.Prompt, &options, &q.CorrectAnswer, &q.Points); err != nil {
			return nil, fmt.Errorf("pgQuizRepository.questionsByQuizID scan: %w", err)
		}
		if len(options) > 0 {
			if err := json.Unmarshal(options, &q.Options); err != nil {
				return nil, fmt.Errorf("pgQuizRepository.questionsByQuizID options for %s: %w", q.ID, err)
			}
		}
		questions = append(questions, q)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgQuizRepository.questionsByQuizID rows.Err: %w", err)
	}
	return questions, nil
}
