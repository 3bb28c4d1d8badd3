package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRegistryLifecycle(t *testing.T) {
	r := NewSessionRegistry()

	s := r.StartSession("conn-1", "user-1", "quiz-1")
	require.NotNil(t, s)
	assert.Equal(t, 0, s.Score)
	assert.Equal(t, 0, s.CurrentQuestionIndex)
	assert.False(t, s.StartTime.IsZero())

	got, ok := r.GetSession("conn-1")
	require.True(t, ok)
	assert.Equal(t, "user-1", got.UserID)

	removed, ok := r.EndSession("conn-1")
	require.True(t, ok)
	assert.Equal(t, "quiz-1", removed.QuizID)

	_, ok = r.GetSession("conn-1")
	assert.False(t, ok)

	_, ok = r.EndSession("conn-1")
	assert.False(t, ok)
}

func TestSessionRegistryUpdateScore(t *testing.T) {
	r := NewSessionRegistry()
	r.StartSession("conn-1", "user-1", "quiz-1")

	assert.Equal(t, 10, r.UpdateScore("conn-1", 10))
	assert.Equal(t, 25, r.UpdateScore("conn-1", 15))

	// Unknown connection is a no-op, not an error.
	assert.Equal(t, 0, r.UpdateScore("ghost", 10))
}

func TestSessionRegistrySnapshotsAreStable(t *testing.T) {
	r := NewSessionRegistry()
	r.StartSession("conn-1", "user-1", "quiz-1")

	snap, ok := r.GetSession("conn-1")
	require.True(t, ok)

	r.UpdateScore("conn-1", 10)
	r.AdvanceQuestion("conn-1")

	// The snapshot is a copy; later mutations only show up on a re-read.
	assert.Equal(t, 0, snap.Score)
	assert.Equal(t, 0, snap.CurrentQuestionIndex)

	fresh, _ := r.GetSession("conn-1")
	assert.Equal(t, 10, fresh.Score)
	assert.Equal(t, 1, fresh.CurrentQuestionIndex)
}

func TestSessionRegistryOverwritesStaleSession(t *testing.T) {
	r := NewSessionRegistry()
	r.StartSession("conn-1", "user-1", "quiz-1")
	r.UpdateScore("conn-1", 30)

	fresh := r.StartSession("conn-1", "user-1", "quiz-2")
	assert.Equal(t, 0, fresh.Score)
	assert.Equal(t, "quiz-2", fresh.QuizID)
}

func TestSessionRegistryPerConnectionIsolation(t *testing.T) {
	r := NewSessionRegistry()
	// Same user on two connections holds independent sessions.
	r.StartSession("tab-a", "user-1", "quiz-1")
	r.StartSession("tab-b", "user-1", "quiz-1")

	r.UpdateScore("tab-a", 10)

	a, _ := r.GetSession("tab-a")
	b, _ := r.GetSession("tab-b")
	assert.Equal(t, 10, a.Score)
	assert.Equal(t, 0, b.Score)
}
