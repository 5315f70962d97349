package core

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"discharge-assistant/pkg"
)

// Session is one conversation.  Its transcript only grows, and turns are
// handled one at a time.
type Session struct {
	ID        string
	CreatedAt time.Time

	turnMu sync.Mutex // serializes HandleTurn

	mu         sync.RWMutex
	transcript []pkg.Turn
}

// NewSession starts a conversation seeded with the assistant greeting.
func NewSession() *Session {
	return &Session{
		ID:         uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
		transcript: []pkg.Turn{{Role: pkg.RoleAssistant, Content: Greeting}},
	}
}

// Transcript returns a copy of every turn so far.
func (s *Session) Transcript() []pkg.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]pkg.Turn, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Len returns the number of turns.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transcript)
}

// append adds a turn and returns the new transcript length.
func (s *Session) append(role pkg.Role, content string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, pkg.Turn{Role: role, Content: content})
	return len(s.transcript)
}

// Sessions is an in-memory session registry for servers that host many
// conversations.
type Sessions struct {
	mu    sync.RWMutex
	byID  map[string]*Session
	limit int
}

// NewSessions constructs a registry.  limit caps how many sessions are kept;
// when full the oldest is evicted.  limit <= 0 means unbounded.
func NewSessions(limit int) *Sessions {
	return &Sessions{byID: make(map[string]*Session), limit: limit}
}

// Create registers and returns a new session.
func (r *Sessions) Create() *Session {
	s := NewSession()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.limit > 0 && len(r.byID) >= r.limit {
		r.evictOldestLocked()
	}
	r.byID[s.ID] = s
	return s
}

// Get looks up a session by id.
func (r *Sessions) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// Len returns the number of live sessions.
func (r *Sessions) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *Sessions) evictOldestLocked() {
	var oldest *Session
	for _, s := range r.byID {
		if oldest == nil || s.CreatedAt.Before(oldest.CreatedAt) {
			oldest = s
		}
	}
	if oldest != nil {
		delete(r.byID, oldest.ID)
	}
}
