package repository

import (
	"context"
	"testing"
	"time"

	"quizclash/internal/common"
	"quizclash/internal/domain/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoMock(t *testing.T) (ChallengeRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPgChallengeRepository(db), mock
}

func challengeColumns() []string {
	return []string{
		"id", "quiz_id", "creator_id", "opponent_id", "status",
		"winner_id", "parent_challenge_id", "is_rematch",
		"created_at", "started_at", "completed_at",
		"title", "creator_username", "opponent_username",
	}
}

func TestCreateChallengeInsertsBothParticipants(t *testing.T) {
	repo, mock := newRepoMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO challenges").
		WithArgs(sqlmock.AnyArg(), "quiz-1", "u1", "u2", model.ChallengePending, nil, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep := mock.ExpectPrepare("INSERT INTO challenge_participants")
	prep.ExpectExec().WithArgs(sqlmock.AnyArg(), "u1").WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs(sqlmock.AnyArg(), "u2").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := repo.CreateChallenge(context.Background(), "quiz-1", "u1", "u2")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRematchLinksParent(t *testing.T) {
	repo, mock := newRepoMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO challenges").
		WithArgs(sqlmock.AnyArg(), "quiz-1", "u2", "u1", model.ChallengePending, "ch-0", true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep := mock.ExpectPrepare("INSERT INTO challenge_participants")
	prep.ExpectExec().WithArgs(sqlmock.AnyArg(), "u2").WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs(sqlmock.AnyArg(), "u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := repo.CreateRematch(context.Background(), "quiz-1", "u2", "u1", "ch-0")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindChallengeByIDNotFound(t *testing.T) {
	repo, mock := newRepoMock(t)

	mock.ExpectQuery("FROM challenges c").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(challengeColumns()))

	_, err := repo.FindChallengeByID(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListUserChallenges(t *testing.T) {
	now := time.Now()

	t.Run("received filter narrows to opponent side", func(t *testing.T) {
		repo, mock := newRepoMock(t)
		rows := sqlmock.NewRows(challengeColumns()).
			AddRow("ch-1", "quiz-1", "u1", "u2", "pending",
				nil, nil, false, now, nil, nil, "Capitals", "alice", "bob")
		mock.ExpectQuery("WHERE c.opponent_id").
			WithArgs("u2", model.ChallengePending, 10).
			WillReturnRows(rows)

		got, err := repo.ListUserChallenges(context.Background(), "u2",
			ChallengeFilter{Status: model.ChallengePending, Type: FilterReceived, Limit: 10})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "ch-1", got[0].ID)
		assert.Equal(t, "bob", *got[0].OpponentUsername)
	})

	t.Run("no filter covers both sides with a default limit", func(t *testing.T) {
		repo, mock := newRepoMock(t)
		mock.ExpectQuery("OR c.opponent_id").
			WithArgs("u1", 50).
			WillReturnRows(sqlmock.NewRows(challengeColumns()))

		got, err := repo.ListUserChallenges(context.Background(), "u1", ChallengeFilter{})
		require.NoError(t, err)
		assert.Empty(t, got)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMarkResolved(t *testing.T) {
	t.Run("decisive outcome updates the row", func(t *testing.T) {
		repo, mock := newRepoMock(t)
		winner := "u1"
		mock.ExpectExec("UPDATE challenges SET").
			WithArgs("u1", "ch-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		applied, err := repo.MarkResolved(context.Background(), nil, "ch-1", &winner)
		require.NoError(t, err)
		assert.True(t, applied)
	})

	t.Run("already resolved challenge is untouched", func(t *testing.T) {
		repo, mock := newRepoMock(t)
		winner := "u1"
		mock.ExpectExec("UPDATE challenges SET").
			WithArgs("u1", "ch-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		applied, err := repo.MarkResolved(context.Background(), nil, "ch-1", &winner)
		require.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("draw records no winner", func(t *testing.T) {
		repo, mock := newRepoMock(t)
		mock.ExpectExec("UPDATE challenges SET").
			WithArgs(nil, "ch-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		applied, err := repo.MarkResolved(context.Background(), nil, "ch-1", nil)
		require.NoError(t, err)
		assert.True(t, applied)
	})
}

func TestDeleteChallenge(t *testing.T) {
	selectForUpdate := "SELECT creator_id, status FROM challenges"

	t.Run("only the creator may delete", func(t *testing.T) {
		repo, mock := newRepoMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(selectForUpdate).WithArgs("ch-1").
			WillReturnRows(sqlmock.NewRows([]string{"creator_id", "status"}).AddRow("u1", "pending"))
		mock.ExpectRollback()

		err := repo.DeleteChallenge(context.Background(), "ch-1", "u2")
		assert.ErrorIs(t, err, common.ErrForbidden)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("only pending challenges may be deleted", func(t *testing.T) {
		repo, mock := newRepoMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(selectForUpdate).WithArgs("ch-1").
			WillReturnRows(sqlmock.NewRows([]string{"creator_id", "status"}).AddRow("u1", "active"))
		mock.ExpectRollback()

		err := repo.DeleteChallenge(context.Background(), "ch-1", "u1")
		assert.ErrorIs(t, err, common.ErrInvalidState)
	})

	t.Run("missing challenge", func(t *testing.T) {
		repo, mock := newRepoMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(selectForUpdate).WithArgs("ch-1").
			WillReturnRows(sqlmock.NewRows([]string{"creator_id", "status"}))
		mock.ExpectRollback()

		err := repo.DeleteChallenge(context.Background(), "ch-1", "u1")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("participants removed before the challenge row", func(t *testing.T) {
		repo, mock := newRepoMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(selectForUpdate).WithArgs("ch-1").
			WillReturnRows(sqlmock.NewRows([]string{"creator_id", "status"}).AddRow("u1", "pending"))
		mock.ExpectExec("DELETE FROM challenge_participants").WithArgs("ch-1").
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec("DELETE FROM challenges").WithArgs("ch-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.DeleteChallenge(context.Background(), "ch-1", "u1")
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdateChallengeStatusNotFound(t *testing.T) {
	repo, mock := newRepoMock(t)
	mock.ExpectExec("UPDATE challenges SET").
		WithArgs(model.ChallengeActive, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateChallengeStatus(context.Background(), nil, "missing", model.ChallengeActive)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestIncrementStats(t *testing.T) {
	t.Run("win bumps the streak", func(t *testing.T) {
		repo, mock := newRepoMock(t)
		mock.ExpectExec("current_win_streak = challenge_stats.current_win_streak").
			WithArgs("u1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.IncrementStats(context.Background(), nil, "u1", model.OutcomeWon)
		require.NoError(t, err)
	})

	t.Run("loss zeroes the streak", func(t *testing.T) {
		repo, mock := newRepoMock(t)
		mock.ExpectExec("current_win_streak = 0").
			WithArgs("u1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.IncrementStats(context.Background(), nil, "u1", model.OutcomeLost)
		require.NoError(t, err)
	})

	t.Run("draw leaves the streak alone", func(t *testing.T) {
		repo, mock := newRepoMock(t)
		mock.ExpectExec("challenges_drawn = challenge_stats.challenges_drawn").
			WithArgs("u1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.IncrementStats(context.Background(), nil, "u1", model.OutcomeDrawn)
		require.NoError(t, err)
	})

	t.Run("unknown outcome is rejected before any write", func(t *testing.T) {
		repo, _ := newRepoMock(t)
		err := repo.IncrementStats(context.Background(), nil, "u1", model.StatsOutcome("forfeit"))
		assert.ErrorIs(t, err, common.ErrBadRequest)
	})
}

func TestGetOrCreateStats(t *testing.T) {
	repo, mock := newRepoMock(t)
	rows := sqlmock.NewRows([]string{
		"user_id", "total_challenges", "challenges_won", "challenges_lost",
		"challenges_drawn", "current_win_streak", "best_win_streak", "updated_at",
	}).AddRow("u1", 5, 3, 1, 1, 2, 3, time.Now())
	mock.ExpectQuery("INSERT INTO challenge_stats").WithArgs("u1").WillReturnRows(rows)

	stats, err := repo.GetOrCreateStats(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.ChallengesWon)
	assert.Equal(t, 2, stats.CurrentWinStreak)
}
