package app

import (
	"context"

	"quizhost-service/internal/domain"
	"github.com/google/uuid"
)

// SessionRepository abstracts how live sessions are registered and looked up
// (in-memory, Redis-backed, etc). Sessions themselves are always in-process
// entities; the repository owns id and player-id indexing.
type SessionRepository interface {
	Add(session *Session)
	Get(sessionID string) (*Session, bool)
	BindPlayer(playerID, sessionID string)
	FindByPlayer(playerID string) (*Session, bool)
	CountActiveForOwner(ownerID string) int
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// maxActiveSessions caps concurrently running (non-END) sessions per owner.
const maxActiveSessions = 10

// SessionService contains the session engine use cases: starting sessions,
// owner actions, player join/submit, and the result views.
type SessionService struct {
	sessions SessionRepository
	quizzes  QuizRepository
}

func NewSessionService(sessions SessionRepository, quizzes QuizRepository) *SessionService {
	return &SessionService{sessions: sessions, quizzes: quizzes}
}

// Start snapshots the quiz and registers a new session in LOBBY.
func (s *SessionService) Start(ctx context.Context, ownerID, quizID string, autoStartNum int) (domain.SessionStatus, error) {
	if autoStartNum < 0 || autoStartNum > 50 {
		return domain.SessionStatus{}, domain.ErrAutoStartNumTooLarge
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.SessionStatus{}, err
	}
	if len(quiz.Questions) == 0 {
		return domain.SessionStatus{}, domain.ErrQuizHasNoQuestions
	}
	if s.sessions.CountActiveForOwner(ownerID) >= maxActiveSessions {
		return domain.SessionStatus{}, domain.ErrTooManySessions
	}

	session := NewSession(uuid.NewString(), ownerID, quiz, autoStartNum)
	s.sessions.Add(session)
	return session.Status(), nil
}

// Apply parses and performs an owner action against a session.
func (s *SessionService) Apply(_ context.Context, sessionID, action string) error {
	parsed, err := domain.ParseAction(action)
	if err != nil {
		return err
	}
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.Apply(parsed)
}

// Join admits a player to a session still in LOBBY. An empty name gets a
// generated one.
func (s *SessionService) Join(_ context.Context, sessionID, name string) (domain.Player, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Player{}, domain.ErrSessionNotFound
	}
	player, _, err := session.Join(uuid.NewString(), name)
	if err != nil {
		return domain.Player{}, err
	}
	s.sessions.BindPlayer(player.ID, sessionID)
	return player, nil
}

// Submit records a player's answer for the currently open question.
func (s *SessionService) Submit(_ context.Context, playerID string, questionPosition int, answerIDs []int) error {
	session, ok := s.sessions.FindByPlayer(playerID)
	if !ok {
		return domain.ErrPlayerNotFound
	}
	return session.Submit(playerID, questionPosition, answerIDs)
}

// Status returns the current session view.
func (s *SessionService) Status(_ context.Context, sessionID string) (domain.SessionStatus, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionStatus{}, domain.ErrSessionNotFound
	}
	return session.Status(), nil
}

// QuestionResults returns one question's aggregate for the session the
// player is in.
func (s *SessionService) QuestionResults(_ context.Context, playerID string, questionPosition int) (domain.QuestionResult, error) {
	session, ok := s.sessions.FindByPlayer(playerID)
	if !ok {
		return domain.QuestionResult{}, domain.ErrPlayerNotFound
	}
	return session.QuestionResults(questionPosition)
}

// FinalResults returns the end-of-game summary for the session the player
// is in.
func (s *SessionService) FinalResults(_ context.Context, playerID string) (domain.FinalResults, error) {
	session, ok := s.sessions.FindByPlayer(playerID)
	if !ok {
		return domain.FinalResults{}, domain.ErrPlayerNotFound
	}
	return session.FinalResults()
}

// SessionResults is the owner-facing final results view.
func (s *SessionService) SessionResults(_ context.Context, sessionID string) (domain.FinalResults, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.FinalResults{}, domain.ErrSessionNotFound
	}
	return session.FinalResults()
}

// ResultsRecords returns the CSV-shaped results grid; rendering is owned by
// an external collaborator.
func (s *SessionService) ResultsRecords(_ context.Context, sessionID string) ([][]string, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.ResultsRecords()
}

// Subscribe returns a channel that receives status updates for a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *SessionService) Subscribe(_ context.Context, sessionID string) (<-chan domain.SessionStatus, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}
