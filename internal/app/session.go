package app

import (
	"fmt"
	"sync"
	"time"

	"quizhost-service/internal/domain"
)

// countdownDelay is the fixed pause between NEXT_QUESTION and the question
// opening for answers.
const countdownDelay = 3 * time.Second

// scheduleFunc defers fn by d. Production sessions use time.AfterFunc; tests
// inject a capture-and-fire implementation for deterministic timer control.
type scheduleFunc func(d time.Duration, fn func())

// Session is one live run-through of a quiz. All mutation is serialized
// through its mutex; timer callbacks re-acquire it and re-check state before
// acting, so a stale timer can never clobber a transition the owner already
// made. Different sessions share nothing and run fully in parallel.
type Session struct {
	id           string
	ownerID      string
	autoStartNum int

	mu         sync.Mutex
	state      domain.State
	atQuestion int         // 0 = no current question
	quiz       domain.Quiz // private snapshot, never mutated
	players    []domain.Player

	// submissions are keyed by question position then player id
	submissions      map[int]map[string]domain.Submission
	questionOpenedAt time.Time
	gen              uint64 // bumped on every transition; stale-timer guard
	subSeq           uint64

	now      func() time.Time
	schedule scheduleFunc

	subscribers map[chan domain.SessionStatus]struct{}
}

// NewSession snapshots the quiz and returns a session waiting in LOBBY.
func NewSession(id, ownerID string, quiz domain.Quiz, autoStartNum int) *Session {
	return newSessionWithClock(id, ownerID, quiz, autoStartNum, time.Now, func(d time.Duration, fn func()) {
		time.AfterFunc(d, fn)
	})
}

// newSessionWithClock is test-only wiring for deterministic time and timers.
func newSessionWithClock(id, ownerID string, quiz domain.Quiz, autoStartNum int, now func() time.Time, schedule scheduleFunc) *Session {
	return &Session{
		id:           id,
		ownerID:      ownerID,
		autoStartNum: autoStartNum,
		state:        domain.StateLobby,
		quiz:         quiz.Clone(),
		submissions:  make(map[int]map[string]domain.Submission),
		now:          now,
		schedule:     schedule,
		subscribers:  make(map[chan domain.SessionStatus]struct{}),
	}
}

// ID returns the session's stable identifier.
func (s *Session) ID() string { return s.id }

// OwnerID returns the opaque owner identity the session was started under.
func (s *Session) OwnerID() string { return s.ownerID }

// State reads the current lifecycle phase.
func (s *Session) State() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the snapshot view exposed to transports.
func (s *Session) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Session) statusLocked() domain.SessionStatus {
	names := make([]string, len(s.players))
	for i, p := range s.players {
		names[i] = p.Name
	}
	return domain.SessionStatus{
		SessionID:  s.id,
		State:      s.state,
		AtQuestion: s.atQuestion,
		Players:    names,
		Metadata: domain.SessionMetadata{
			QuizID:       s.quiz.ID,
			QuizName:     s.quiz.Name,
			NumQuestions: len(s.quiz.Questions),
			AutoStartNum: s.autoStartNum,
		},
	}
}

// Apply performs an owner action. A rejected action leaves the session
// completely unchanged.
func (s *Session) Apply(action domain.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.applyLocked(action); err != nil {
		return err
	}
	s.broadcastLocked()
	return nil
}

// applyLocked is the transition table. Every reachable (state, action) pair
// is listed; everything else falls through to ErrActionNotApplicable.
func (s *Session) applyLocked(action domain.Action) error {
	switch s.state {
	case domain.StateLobby:
		switch action {
		case domain.ActionNextQuestion:
			return s.beginCountdownLocked()
		case domain.ActionEnd:
			s.finishLocked()
			return nil
		}
	case domain.StateQuestionCountdown:
		switch action {
		case domain.ActionSkipCountdown:
			s.openQuestionLocked()
			return nil
		case domain.ActionEnd:
			s.finishLocked()
			return nil
		}
	case domain.StateQuestionOpen:
		switch action {
		case domain.ActionGoToAnswer:
			s.showAnswerLocked()
			return nil
		case domain.ActionEnd:
			s.finishLocked()
			return nil
		}
	case domain.StateQuestionClose:
		switch action {
		case domain.ActionGoToAnswer:
			s.showAnswerLocked()
			return nil
		case domain.ActionGoToFinalResults:
			s.finalResultsLocked()
			return nil
		case domain.ActionNextQuestion:
			return s.beginCountdownLocked()
		case domain.ActionEnd:
			s.finishLocked()
			return nil
		}
	case domain.StateAnswerShow:
		switch action {
		case domain.ActionNextQuestion:
			return s.beginCountdownLocked()
		case domain.ActionGoToFinalResults:
			s.finalResultsLocked()
			return nil
		case domain.ActionEnd:
			s.finishLocked()
			return nil
		}
	case domain.StateFinalResults:
		if action == domain.ActionEnd {
			s.finishLocked()
			return nil
		}
	case domain.StateEnd:
		// terminal: nothing applies
	}
	return fmt.Errorf("%s: %w", action, domain.ErrActionNotApplicable)
}

func (s *Session) beginCountdownLocked() error {
	if s.atQuestion >= len(s.quiz.Questions) {
		return fmt.Errorf("no question after %d: %w", s.atQuestion, domain.ErrActionNotApplicable)
	}
	s.atQuestion++
	s.state = domain.StateQuestionCountdown
	s.questionOpenedAt = time.Time{}
	s.gen++

	gen := s.gen
	s.schedule(countdownDelay, func() {
		s.autoAdvance(gen, domain.StateQuestionCountdown)
	})
	return nil
}

func (s *Session) openQuestionLocked() {
	s.state = domain.StateQuestionOpen
	s.questionOpenedAt = s.now()
	s.gen++

	gen := s.gen
	window := time.Duration(s.quiz.Questions[s.atQuestion-1].Duration) * time.Second
	s.schedule(window, func() {
		s.autoAdvance(gen, domain.StateQuestionOpen)
	})
}

func (s *Session) closeQuestionLocked() {
	s.state = domain.StateQuestionClose
	s.questionOpenedAt = time.Time{}
	s.gen++
}

func (s *Session) showAnswerLocked() {
	s.state = domain.StateAnswerShow
	s.questionOpenedAt = time.Time{}
	s.gen++
}

func (s *Session) finalResultsLocked() {
	s.state = domain.StateFinalResults
	s.atQuestion = 0
	s.questionOpenedAt = time.Time{}
	s.gen++
}

func (s *Session) finishLocked() {
	s.state = domain.StateEnd
	s.atQuestion = 0
	s.questionOpenedAt = time.Time{}
	s.gen++
}

// autoAdvance is the deferred-timer entry point. The generation check is the
// guard discipline: if the session transitioned at all since the timer was
// armed, the callback is a silent no-op.
func (s *Session) autoAdvance(gen uint64, from domain.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.state != from {
		return
	}
	switch from {
	case domain.StateQuestionCountdown:
		s.openQuestionLocked()
	case domain.StateQuestionOpen:
		s.closeQuestionLocked()
	default:
		return
	}
	s.broadcastLocked()
}

// Join admits a player while the session is still in LOBBY. An empty name
// gets a generated one, retried until unique within the roster. The returned
// bool reports whether the join tripped the auto-start threshold.
func (s *Session) Join(playerID, name string) (domain.Player, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateLobby {
		return domain.Player{}, false, domain.ErrSessionNotInLobby
	}
	if name != "" {
		if s.nameTakenLocked(name) {
			return domain.Player{}, false, fmt.Errorf("name %q: %w", name, domain.ErrNameTaken)
		}
	} else {
		for {
			name = randomPlayerName()
			if !s.nameTakenLocked(name) {
				break
			}
		}
	}

	player := domain.Player{ID: playerID, Name: name, SessionID: s.id}
	s.players = append(s.players, player)

	started := false
	if s.autoStartNum > 0 && len(s.players) == s.autoStartNum {
		// same edge as an explicit owner NEXT_QUESTION
		if err := s.beginCountdownLocked(); err == nil {
			started = true
		}
	}
	s.broadcastLocked()
	return player, started, nil
}

func (s *Session) nameTakenLocked(name string) bool {
	for _, p := range s.players {
		if p.Name == name {
			return true
		}
	}
	return false
}

// HasPlayer reports whether the player id belongs to this session's roster.
func (s *Session) HasPlayer(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerLocked(playerID) != nil
}

func (s *Session) playerLocked(playerID string) *domain.Player {
	for i := range s.players {
		if s.players[i].ID == playerID {
			return &s.players[i]
		}
	}
	return nil
}

// Submit records a player's answer for the currently open question. Any
// rejection leaves the ledger unchanged; a resubmission before the window
// closes fully replaces the earlier one.
func (s *Session) Submit(playerID string, questionPosition int, answerIDs []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playerLocked(playerID) == nil {
		return domain.ErrPlayerNotFound
	}
	if questionPosition < 1 || questionPosition > len(s.quiz.Questions) {
		return domain.ErrInvalidQuestionPosition
	}
	if s.state != domain.StateQuestionOpen {
		return domain.ErrSessionNotOpen
	}
	if questionPosition != s.atQuestion {
		return domain.ErrQuestionNotReached
	}
	if err := validateAnswerIDs(s.quiz.Questions[questionPosition-1], answerIDs); err != nil {
		return err
	}

	s.subSeq++
	byPlayer := s.submissions[questionPosition]
	if byPlayer == nil {
		byPlayer = make(map[string]domain.Submission)
		s.submissions[questionPosition] = byPlayer
	}
	byPlayer[playerID] = domain.Submission{
		AnswerIDs:  append([]int(nil), answerIDs...),
		AnsweredAt: s.now().Sub(s.questionOpenedAt).Seconds(),
		Seq:        s.subSeq,
	}
	return nil
}

func validateAnswerIDs(q domain.Question, answerIDs []int) error {
	if len(answerIDs) == 0 {
		return domain.ErrNoAnswerIDs
	}
	seen := make(map[int]struct{}, len(answerIDs))
	for _, id := range answerIDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("answer id %d: %w", id, domain.ErrDuplicateAnswerIDs)
		}
		seen[id] = struct{}{}
		found := false
		for _, a := range q.Answers {
			if a.ID == id {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("answer id %d: %w", id, domain.ErrUnknownAnswerID)
		}
	}
	return nil
}

// QuestionResults returns the aggregate for one question. It is readable in
// ANSWER_SHOW for the current question and any position already played.
func (s *Session) QuestionResults(questionPosition int) (domain.QuestionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if questionPosition < 1 || questionPosition > len(s.quiz.Questions) {
		return domain.QuestionResult{}, domain.ErrInvalidQuestionPosition
	}
	if s.state != domain.StateAnswerShow {
		return domain.QuestionResult{}, domain.ErrSessionNotInAnswerShow
	}
	if questionPosition > s.atQuestion {
		return domain.QuestionResult{}, domain.ErrQuestionNotReached
	}
	return questionResult(s.quiz.Questions[questionPosition-1], s.players, s.submissions[questionPosition]), nil
}

// FinalResults returns the end-of-game summary once the session reached
// FINAL_RESULTS.
func (s *Session) FinalResults() (domain.FinalResults, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateFinalResults {
		return domain.FinalResults{}, domain.ErrSessionNotInFinalResults
	}
	return finalResults(s.quiz, s.players, s.submissions), nil
}

// ResultsRecords returns the CSV-shaped per-player score/rank grid. The
// actual CSV formatting is owned by an external collaborator.
func (s *Session) ResultsRecords() ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateFinalResults {
		return nil, domain.ErrSessionNotInFinalResults
	}
	return resultsRecords(s.quiz, s.players, s.submissions), nil
}

// Subscribe returns a channel receiving the session status on every
// transition, seeded with the current status. The cancel func must be called
// to release the subscription.
func (s *Session) Subscribe() (<-chan domain.SessionStatus, func()) {
	ch := make(chan domain.SessionStatus, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.statusLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() {
	status := s.statusLocked()
	for ch := range s.subscribers {
		select {
		case ch <- status:
		default:
			// drop the oldest update so a slow subscriber never blocks the session
			select {
			case <-ch:
			default:
			}
			ch <- status
		}
	}
}
