package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

const connBuffer = 16

type connection struct {
	userID   string
	username string
	events   chan Event
}

// Hub owns every live connection's outbound event channel and the pairing
// of connections to the challenge they are currently playing. All methods
// are safe for concurrent use; sends never block the caller.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*connection
	joined map[string]map[string]string // challengeID -> connID -> userID
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		conns:  make(map[string]*connection),
		joined: make(map[string]map[string]string),
		logger: logger,
	}
}

// Register opens an outbound channel for a connection. The returned channel
// is owned by the hub and closed on Unregister.
func (h *Hub) Register(connID, userID, username string) <-chan Event {
	c := &connection{userID: userID, username: username, events: make(chan Event, connBuffer)}
	h.mu.Lock()
	if old, ok := h.conns[connID]; ok {
		close(old.events)
	}
	h.conns[connID] = c
	h.mu.Unlock()
	return c.events
}

// Unregister tears down a connection and detaches it from any challenge it
// had joined.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.conns[connID]; ok {
		close(c.events)
		delete(h.conns, connID)
	}
	for challengeID, members := range h.joined {
		if _, ok := members[connID]; ok {
			delete(members, connID)
			if len(members) == 0 {
				delete(h.joined, challengeID)
			}
		}
	}
}

// Send delivers an event to one connection. A full or missing channel drops
// the event rather than blocking the sending handler.
func (h *Hub) Send(connID string, event Event) {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case c.events <- event:
	default:
		h.logger.Warn("dropping event for slow connection", "conn_id", connID, "event", event.Type)
	}
}

// Broadcast fans an event out to every live connection.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for connID, c := range h.conns {
		select {
		case c.events <- event:
		default:
			h.logger.Warn("dropping broadcast for slow connection", "conn_id", connID, "event", event.Type)
		}
	}
}

// JoinChallenge attaches a connection to a challenge's play instance and
// reports the opposing participant's connections already present, so the
// gateway can decide between a waiting signal and a start signal. The
// joiner's own connections never count: a second tab of the same user is
// not an opponent.
func (h *Hub) JoinChallenge(challengeID, connID, userID string) (opponents []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.joined[challengeID]
	if !ok {
		members = make(map[string]string)
		h.joined[challengeID] = members
	}
	for id, uid := range members {
		if uid != userID {
			opponents = append(opponents, id)
		}
	}
	members[connID] = userID
	return opponents
}

// ChallengeFor reports the challenge a connection has joined, if any.
func (h *Hub) ChallengeFor(connID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for challengeID, members := range h.joined {
		if _, ok := members[connID]; ok {
			return challengeID, true
		}
	}
	return "", false
}

// Username reports the registered username for a connection.
func (h *Hub) Username(connID string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.conns[connID]; ok {
		return c.username
	}
	return ""
}

// RunSubscriber forwards challenge events published by other parts of the
// process (or another handler's goroutine) to every live connection. It
// blocks until ctx is cancelled.
func (h *Hub) RunSubscriber(ctx context.Context, pubsub *redis.PubSub) {
	defer pubsub.Close()
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("challenge event subscriber stopping")
			return
		case msg, ok := <-ch:
			if !ok {
				if !errors.Is(ctx.Err(), context.Canceled) {
					h.logger.Error("challenge event subscription closed unexpectedly")
				}
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				h.logger.Error("malformed challenge event", "error", err)
				continue
			}
			h.Broadcast(event)
		}
	}
}
