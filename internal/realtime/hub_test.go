package realtime

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	return NewHub(slog.Default())
}

func TestHubSendAndUnregister(t *testing.T) {
	h := newTestHub()
	events := h.Register("conn-1", "user-1", "alice")

	h.Send("conn-1", Event{Type: EventChallengeStart})

	select {
	case e := <-events:
		assert.Equal(t, EventChallengeStart, e.Type)
	default:
		t.Fatal("expected buffered event")
	}

	h.Unregister("conn-1")
	_, open := <-events
	assert.False(t, open, "channel should be closed after unregister")

	// Sending to a gone connection must not panic or block.
	h.Send("conn-1", Event{Type: EventScoreUpdate})
}

func TestHubJoinChallengePairing(t *testing.T) {
	h := newTestHub()
	h.Register("conn-1", "user-1", "alice")
	h.Register("conn-2", "user-2", "bob")

	opponents := h.JoinChallenge("ch-1", "conn-1", "user-1")
	assert.Empty(t, opponents)

	opponents = h.JoinChallenge("ch-1", "conn-2", "user-2")
	require.Len(t, opponents, 1)
	assert.Equal(t, "conn-1", opponents[0])

	id, ok := h.ChallengeFor("conn-2")
	require.True(t, ok)
	assert.Equal(t, "ch-1", id)

	h.Unregister("conn-1")
	_, ok = h.ChallengeFor("conn-1")
	assert.False(t, ok)
}

func TestHubJoinChallengeIgnoresOwnConnections(t *testing.T) {
	h := newTestHub()
	h.Register("tab-a", "user-1", "alice")
	h.Register("tab-b", "user-1", "alice")
	h.Register("conn-2", "user-2", "bob")

	opponents := h.JoinChallenge("ch-1", "tab-a", "user-1")
	assert.Empty(t, opponents)

	// A second tab of the same user is not an opponent; play must not start.
	opponents = h.JoinChallenge("ch-1", "tab-b", "user-1")
	assert.Empty(t, opponents)

	opponents = h.JoinChallenge("ch-1", "conn-2", "user-2")
	require.Len(t, opponents, 2)
	assert.ElementsMatch(t, []string{"tab-a", "tab-b"}, opponents)
}

func TestHubBroadcast(t *testing.T) {
	h := newTestHub()
	a := h.Register("conn-1", "user-1", "alice")
	b := h.Register("conn-2", "user-2", "bob")

	h.Broadcast(Event{Type: EventChallengeDeclined})

	for _, ch := range []<-chan Event{a, b} {
		select {
		case e := <-ch:
			assert.Equal(t, EventChallengeDeclined, e.Type)
		default:
			t.Fatal("expected broadcast event on every connection")
		}
	}
}

func TestHubUsername(t *testing.T) {
	h := newTestHub()
	h.Register("conn-1", "user-1", "alice")
	assert.Equal(t, "alice", h.Username("conn-1"))
	assert.Equal(t, "", h.Username("ghost"))
}
