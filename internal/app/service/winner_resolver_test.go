package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWinner(t *testing.T) {
	a := func(score, seconds int) ParticipantResult {
		return ParticipantResult{UserID: "user-a", Score: score, TimeSeconds: seconds}
	}
	b := func(score, seconds int) ParticipantResult {
		return ParticipantResult{UserID: "user-b", Score: score, TimeSeconds: seconds}
	}

	t.Run("higher score wins regardless of time", func(t *testing.T) {
		outcome := ResolveWinner(a(80, 50), b(60, 10))
		require.NotNil(t, outcome.WinnerID)
		assert.Equal(t, "user-a", *outcome.WinnerID)
		assert.False(t, outcome.Drawn)
	})

	t.Run("equal scores fall back to lower time", func(t *testing.T) {
		outcome := ResolveWinner(a(50, 30), b(50, 20))
		require.NotNil(t, outcome.WinnerID)
		assert.Equal(t, "user-b", *outcome.WinnerID)
	})

	t.Run("equal scores and equal zero times draw", func(t *testing.T) {
		outcome := ResolveWinner(a(50, 0), b(50, 0))
		assert.Nil(t, outcome.WinnerID)
		assert.True(t, outcome.Drawn)
	})

	t.Run("zero time never breaks a tie", func(t *testing.T) {
		outcome := ResolveWinner(a(50, 40), b(50, 0))
		assert.Nil(t, outcome.WinnerID)
		assert.True(t, outcome.Drawn)
	})

	t.Run("equal scores and equal nonzero times draw", func(t *testing.T) {
		outcome := ResolveWinner(a(50, 25), b(50, 25))
		assert.True(t, outcome.Drawn)
	})

	t.Run("second participant can win on score", func(t *testing.T) {
		outcome := ResolveWinner(a(10, 5), b(90, 500))
		require.NotNil(t, outcome.WinnerID)
		assert.Equal(t, "user-b", *outcome.WinnerID)
	})

	t.Run("zero total score still resolves on time", func(t *testing.T) {
		outcome := ResolveWinner(a(0, 15), b(0, 40))
		require.NotNil(t, outcome.WinnerID)
		assert.Equal(t, "user-a", *outcome.WinnerID)
	})
}
