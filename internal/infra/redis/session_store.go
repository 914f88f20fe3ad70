package redis

import (
	"context"
	"sync"
	"time"

	"quizhost-service/internal/app"
	"quizhost-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions stay in a local map: the state machine, its timers, and its
//     subscriber fanout are in-process concerns.
//   - Redis mirrors session liveness and player routing so an operator (or a
//     future cross-instance router) can see which sessions exist and where a
//     player id belongs.
//   - Mirror writes are best-effort; the local map is authoritative.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
	players  map[string]string
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
		players:  make(map[string]string),
	}
}

func (s *SessionStore) Add(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
	_ = s.client.Set(context.Background(), s.sessionKey(session.ID()), session.State().String(), s.ttl).Err()
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
	_ = s.client.Set(context.Background(), s.playerKey(playerID), sessionID, s.ttl).Err()
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

func (s *SessionStore) sessionKey(sessionID string) string {
	return "session:" + sessionID + ":state"
}

func (s *SessionStore) playerKey(playerID string) string {
	return "player:" + playerID + ":session"
}
