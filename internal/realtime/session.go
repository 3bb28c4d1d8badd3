package realtime

import (
	"sync"
	"time"
)

// Session is one connection's live-play cursor. It is never persisted: a
// dropped connection loses all live progress, only explicitly submitted
// results survive in storage.
type Session struct {
	ConnectionID         string
	UserID               string
	QuizID               string
	Score                int
	CurrentQuestionIndex int
	StartTime            time.Time
}

// SessionRegistry tracks exactly one live-play cursor per connection.
// Keyed by connection, not by user: the same user on two connections holds
// two independent sessions. Instantiated once per process (or per test) and
// injected, never reached through a package global.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

// StartSession creates a fresh session for the connection, overwriting any
// stale one left behind by a previous play on the same connection.
func (r *SessionRegistry) StartSession(connectionID, userID, quizID string) Session {
	s := &Session{
		ConnectionID: connectionID,
		UserID:       userID,
		QuizID:       quizID,
		StartTime:    time.Now(),
	}
	r.mu.Lock()
	r.sessions[connectionID] = s
	r.mu.Unlock()
	return *s
}

// GetSession returns a snapshot of the session. Callers get a copy taken
// under the lock, so reading its fields never races a concurrent
// UpdateScore or AdvanceQuestion.
func (r *SessionRegistry) GetSession(connectionID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connectionID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// UpdateScore adds delta to the session's running score and returns the new
// total. A missing session is a no-op returning 0; the gateway validates
// sessions before scoring, so this is not an error path.
func (r *SessionRegistry) UpdateScore(connectionID string, delta int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connectionID]
	if !ok {
		return 0
	}
	s.Score += delta
	return s.Score
}

// AdvanceQuestion moves the cursor to the next question.
func (r *SessionRegistry) AdvanceQuestion(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[connectionID]; ok {
		s.CurrentQuestionIndex++
	}
}

// EndSession removes and returns a snapshot of the session, called on
// disconnect or explicit end of play.
func (r *SessionRegistry) EndSession(connectionID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connectionID]
	if !ok {
		return Session{}, false
	}
	delete(r.sessions, connectionID)
	return *s, true
}
