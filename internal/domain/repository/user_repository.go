package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"quizclash/internal/common"
	"quizclash/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, username, email, hashed_password)
	          VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Username, user.Email, user.HashedPassword)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("user with given username or email already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Create: %w", err)
	}
	return nil
}

func (r *pgUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, `SELECT id, username, email, hashed_password, created_at, updated_at
	                       FROM users WHERE username = $1`, username)
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, `SELECT id, username, email, hashed_password, created_at, updated_at
	                       FROM users WHERE id = $1`, id)
}

func (r *pgUserRepository) findOne(ctx context.Context, query string, arg any) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.Email, &user.HashedPassword, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.findOne: %w", err)
	}
	return user, nil
}
