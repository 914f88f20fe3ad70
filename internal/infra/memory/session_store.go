package memory

import (
	"sync"

	"quizhost-service/internal/app"
	"quizhost-service/internal/domain"
)

// SessionStore is the in-memory implementation of app.SessionRepository.
// Sessions are owned entities looked up by id; a side index maps player ids
// to their session.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
	players  map[string]string // player id -> session id
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
		players:  make(map[string]string),
	}
}

func (s *SessionStore) Add(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) BindPlayer(playerID, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[playerID] = sessionID
}

func (s *SessionStore) FindByPlayer(playerID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessionID, ok := s.players[playerID]
	if !ok {
		return nil, false
	}
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) CountActiveForOwner(ownerID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, session := range s.sessions {
		if session.OwnerID() == ownerID && session.State() != domain.StateEnd {
			count++
		}
	}
	return count
}
