package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"quizhost-service/internal/domain"
)

// fakeScheduler captures deferred callbacks so tests can fire timers (or
// leave them stale) deterministically.
type fakeScheduler struct {
	mu      sync.Mutex
	pending []func()
	delays  []time.Duration
}

func (f *fakeScheduler) schedule(d time.Duration, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, fn)
	f.delays = append(f.delays, d)
}

// fireLast runs the most recently armed timer.
func (f *fakeScheduler) fireLast(t *testing.T) {
	t.Helper()
	f.mu.Lock()
	if len(f.pending) == 0 {
		f.mu.Unlock()
		t.Fatalf("no pending timer to fire")
	}
	fn := f.pending[len(f.pending)-1]
	f.mu.Unlock()
	fn()
}

// fireAt fires the i-th armed timer (0-based, in arming order).
func (f *fakeScheduler) fireAt(t *testing.T, i int) {
	t.Helper()
	f.mu.Lock()
	if i >= len(f.pending) {
		f.mu.Unlock()
		t.Fatalf("no timer %d, only %d armed", i, len(f.pending))
	}
	fn := f.pending[i]
	f.mu.Unlock()
	fn()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func twoQuestionQuiz() domain.Quiz {
	return domain.Quiz{
		ID:   "quiz-1",
		Name: "States",
		Questions: []domain.Question{
			{
				ID: 1, Text: "First?", Duration: 30, Points: 5,
				Answers: []domain.Answer{
					{ID: 0, Text: "no", Correct: false},
					{ID: 1, Text: "yes", Correct: true},
				},
			},
			{
				ID: 2, Text: "Second?", Duration: 10, Points: 4,
				Answers: []domain.Answer{
					{ID: 0, Text: "no", Correct: false},
					{ID: 1, Text: "yes", Correct: true},
				},
			},
		},
	}
}

func newTestSession(t *testing.T) (*Session, *fakeClock, *fakeScheduler) {
	t.Helper()
	clock := newFakeClock()
	sched := &fakeScheduler{}
	s := newSessionWithClock("sess-1", "owner-1", twoQuestionQuiz(), 0, clock.Now, sched.schedule)
	return s, clock, sched
}

func TestTransitionTable(t *testing.T) {
	// drive reaches the named state through real transitions
	drive := map[domain.State]func(*Session, *fakeScheduler){
		domain.StateLobby: func(s *Session, f *fakeScheduler) {},
		domain.StateQuestionCountdown: func(s *Session, f *fakeScheduler) {
			mustApply(t, s, domain.ActionNextQuestion)
		},
		domain.StateQuestionOpen: func(s *Session, f *fakeScheduler) {
			mustApply(t, s, domain.ActionNextQuestion)
			mustApply(t, s, domain.ActionSkipCountdown)
		},
		domain.StateQuestionClose: func(s *Session, f *fakeScheduler) {
			mustApply(t, s, domain.ActionNextQuestion)
			mustApply(t, s, domain.ActionSkipCountdown)
			f.fireLast(t) // question duration elapses
		},
		domain.StateAnswerShow: func(s *Session, f *fakeScheduler) {
			mustApply(t, s, domain.ActionNextQuestion)
			mustApply(t, s, domain.ActionSkipCountdown)
			mustApply(t, s, domain.ActionGoToAnswer)
		},
		domain.StateFinalResults: func(s *Session, f *fakeScheduler) {
			mustApply(t, s, domain.ActionNextQuestion)
			mustApply(t, s, domain.ActionSkipCountdown)
			mustApply(t, s, domain.ActionGoToAnswer)
			mustApply(t, s, domain.ActionGoToFinalResults)
		},
		domain.StateEnd: func(s *Session, f *fakeScheduler) {
			mustApply(t, s, domain.ActionEnd)
		},
	}

	allowed := map[domain.State]map[domain.Action]domain.State{
		domain.StateLobby: {
			domain.ActionNextQuestion: domain.StateQuestionCountdown,
			domain.ActionEnd:          domain.StateEnd,
		},
		domain.StateQuestionCountdown: {
			domain.ActionSkipCountdown: domain.StateQuestionOpen,
			domain.ActionEnd:           domain.StateEnd,
		},
		domain.StateQuestionOpen: {
			domain.ActionGoToAnswer: domain.StateAnswerShow,
			domain.ActionEnd:        domain.StateEnd,
		},
		domain.StateQuestionClose: {
			domain.ActionGoToAnswer:       domain.StateAnswerShow,
			domain.ActionGoToFinalResults: domain.StateFinalResults,
			domain.ActionNextQuestion:     domain.StateQuestionCountdown,
			domain.ActionEnd:              domain.StateEnd,
		},
		domain.StateAnswerShow: {
			domain.ActionNextQuestion:     domain.StateQuestionCountdown,
			domain.ActionGoToFinalResults: domain.StateFinalResults,
			domain.ActionEnd:              domain.StateEnd,
		},
		domain.StateFinalResults: {
			domain.ActionEnd: domain.StateEnd,
		},
		domain.StateEnd: {},
	}

	actions := []domain.Action{
		domain.ActionNextQuestion,
		domain.ActionSkipCountdown,
		domain.ActionGoToAnswer,
		domain.ActionGoToFinalResults,
		domain.ActionEnd,
	}

	for from, edges := range allowed {
		for _, action := range actions {
			s, _, sched := newTestSession(t)
			drive[from](s, sched)
			if s.State() != from {
				t.Fatalf("setup for %s landed in %s", from, s.State())
			}

			want, ok := edges[action]
			err := s.Apply(action)
			if ok {
				if err != nil {
					t.Fatalf("%s + %s: unexpected error %v", from, action, err)
				}
				if s.State() != want {
					t.Fatalf("%s + %s: got %s, want %s", from, action, s.State(), want)
				}
			} else {
				if !errors.Is(err, domain.ErrActionNotApplicable) {
					t.Fatalf("%s + %s: expected rejection, got %v", from, action, err)
				}
				if s.State() != from {
					t.Fatalf("%s + %s: rejected action mutated state to %s", from, action, s.State())
				}
			}
		}
	}
}

func mustApply(t *testing.T, s *Session, a domain.Action) {
	t.Helper()
	if err := s.Apply(a); err != nil {
		t.Fatalf("apply %s: %v", a, err)
	}
}

func TestNextQuestionAdvancesPointer(t *testing.T) {
	s, _, sched := newTestSession(t)

	mustApply(t, s, domain.ActionNextQuestion)
	if got := s.Status().AtQuestion; got != 1 {
		t.Fatalf("expected atQuestion 1, got %d", got)
	}

	mustApply(t, s, domain.ActionSkipCountdown)
	sched.fireLast(t) // close question 1
	mustApply(t, s, domain.ActionNextQuestion)
	if got := s.Status().AtQuestion; got != 2 {
		t.Fatalf("expected atQuestion 2, got %d", got)
	}
}

func TestCannotAdvancePastLastQuestion(t *testing.T) {
	s, _, sched := newTestSession(t)

	for i := 0; i < 2; i++ {
		mustApply(t, s, domain.ActionNextQuestion)
		mustApply(t, s, domain.ActionSkipCountdown)
		sched.fireLast(t)
	}

	err := s.Apply(domain.ActionNextQuestion)
	if !errors.Is(err, domain.ErrActionNotApplicable) {
		t.Fatalf("expected rejection past last question, got %v", err)
	}
	if s.State() != domain.StateQuestionClose {
		t.Fatalf("rejected advance mutated state to %s", s.State())
	}
	if got := s.Status().AtQuestion; got != 2 {
		t.Fatalf("rejected advance mutated atQuestion to %d", got)
	}
}

func TestCountdownTimerOpensQuestion(t *testing.T) {
	s, _, sched := newTestSession(t)

	mustApply(t, s, domain.ActionNextQuestion)
	if len(sched.delays) != 1 || sched.delays[0] != 3*time.Second {
		t.Fatalf("expected one 3s countdown timer, got %v", sched.delays)
	}

	sched.fireLast(t)
	if s.State() != domain.StateQuestionOpen {
		t.Fatalf("expected QUESTION_OPEN after countdown, got %s", s.State())
	}
}

func TestOpenTimerUsesQuestionDuration(t *testing.T) {
	s, _, sched := newTestSession(t)

	mustApply(t, s, domain.ActionNextQuestion)
	mustApply(t, s, domain.ActionSkipCountdown)
	if got := sched.delays[len(sched.delays)-1]; got != 30*time.Second {
		t.Fatalf("expected 30s window for question 1, got %v", got)
	}

	sched.fireLast(t)
	if s.State() != domain.StateQuestionClose {
		t.Fatalf("expected QUESTION_CLOSE after window, got %s", s.State())
	}
}

func TestStaleCountdownTimerIsNoOp(t *testing.T) {
	s, _, sched := newTestSession(t)

	mustApply(t, s, domain.ActionNextQuestion)
	mustApply(t, s, domain.ActionSkipCountdown) // owner races ahead of the 3s timer

	sched.fireAt(t, 0) // the now-stale countdown timer finally fires
	if s.State() != domain.StateQuestionOpen {
		t.Fatalf("stale countdown clobbered state: %s", s.State())
	}
}

func TestStaleTimersAfterEnd(t *testing.T) {
	s, _, sched := newTestSession(t)

	mustApply(t, s, domain.ActionNextQuestion)
	mustApply(t, s, domain.ActionSkipCountdown)
	mustApply(t, s, domain.ActionEnd)

	for i := range sched.pending {
		sched.fireAt(t, i)
	}
	if s.State() != domain.StateEnd {
		t.Fatalf("stale timer resurrected an ended session: %s", s.State())
	}
}

func TestStaleOpenTimerAcrossNextQuestion(t *testing.T) {
	s, _, sched := newTestSession(t)

	mustApply(t, s, domain.ActionNextQuestion)
	mustApply(t, s, domain.ActionSkipCountdown)
	openTimer := len(sched.pending) - 1
	mustApply(t, s, domain.ActionGoToAnswer)
	mustApply(t, s, domain.ActionNextQuestion)
	mustApply(t, s, domain.ActionSkipCountdown) // question 2 now open

	sched.fireAt(t, openTimer) // question 1's window timer, long stale
	if s.State() != domain.StateQuestionOpen {
		t.Fatalf("stale window timer closed the wrong question: %s", s.State())
	}
	if got := s.Status().AtQuestion; got != 2 {
		t.Fatalf("expected atQuestion 2, got %d", got)
	}
}

func TestEndResetsAtQuestion(t *testing.T) {
	s, _, _ := newTestSession(t)

	mustApply(t, s, domain.ActionNextQuestion)
	mustApply(t, s, domain.ActionEnd)

	status := s.Status()
	if status.State != domain.StateEnd || status.AtQuestion != 0 {
		t.Fatalf("expected END with atQuestion 0, got %s at %d", status.State, status.AtQuestion)
	}
}

func TestFinalResultsResetsAtQuestion(t *testing.T) {
	s, _, _ := newTestSession(t)

	mustApply(t, s, domain.ActionNextQuestion)
	mustApply(t, s, domain.ActionSkipCountdown)
	mustApply(t, s, domain.ActionGoToAnswer)
	mustApply(t, s, domain.ActionGoToFinalResults)

	status := s.Status()
	if status.State != domain.StateFinalResults || status.AtQuestion != 0 {
		t.Fatalf("expected FINAL_RESULTS with atQuestion 0, got %s at %d", status.State, status.AtQuestion)
	}
}

func TestSubmissionWindow(t *testing.T) {
	s, clock, sched := newTestSession(t)

	p1, _, err := s.Join("p1", "alice")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := s.Submit(p1.ID, 1, []int{1}); !errors.Is(err, domain.ErrSessionNotOpen) {
		t.Fatalf("expected not-open rejection in LOBBY, got %v", err)
	}

	mustApply(t, s, domain.ActionNextQuestion)
	mustApply(t, s, domain.ActionSkipCountdown)

	if err := s.Submit("ghost", 1, []int{1}); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected player-not-found, got %v", err)
	}
	if err := s.Submit(p1.ID, 3, []int{1}); !errors.Is(err, domain.ErrInvalidQuestionPosition) {
		t.Fatalf("expected invalid position, got %v", err)
	}
	if err := s.Submit(p1.ID, 2, []int{1}); !errors.Is(err, domain.ErrQuestionNotReached) {
		t.Fatalf("expected not-reached rejection, got %v", err)
	}
	if err := s.Submit(p1.ID, 1, nil); !errors.Is(err, domain.ErrNoAnswerIDs) {
		t.Fatalf("expected empty-selection rejection, got %v", err)
	}
	if err := s.Submit(p1.ID, 1, []int{1, 1}); !errors.Is(err, domain.ErrDuplicateAnswerIDs) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
	if err := s.Submit(p1.ID, 1, []int{9}); !errors.Is(err, domain.ErrUnknownAnswerID) {
		t.Fatalf("expected unknown-id rejection, got %v", err)
	}
	if len(s.submissions) != 0 {
		t.Fatalf("rejected submissions mutated the ledger: %v", s.submissions)
	}

	clock.Advance(4 * time.Second)
	if err := s.Submit(p1.ID, 1, []int{1}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := s.submissions[1][p1.ID].AnsweredAt; got != 4 {
		t.Fatalf("expected answeredAt 4s, got %v", got)
	}

	sched.fireLast(t) // window closes
	if err := s.Submit(p1.ID, 1, []int{0}); !errors.Is(err, domain.ErrSessionNotOpen) {
		t.Fatalf("expected rejection after close, got %v", err)
	}
	if got := s.submissions[1][p1.ID].AnswerIDs; len(got) != 1 || got[0] != 1 {
		t.Fatalf("closed-window submit mutated the ledger: %v", got)
	}
}

func TestResubmissionOverwrites(t *testing.T) {
	s, clock, _ := newTestSession(t)

	p1, _, err := s.Join("p1", "alice")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	mustApply(t, s, domain.ActionNextQuestion)
	mustApply(t, s, domain.ActionSkipCountdown)

	if err := s.Submit(p1.ID, 1, []int{0}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	clock.Advance(2 * time.Second)
	if err := s.Submit(p1.ID, 1, []int{1}); err != nil {
		t.Fatalf("resubmit: %v", err)
	}

	sub := s.submissions[1][p1.ID]
	if len(sub.AnswerIDs) != 1 || sub.AnswerIDs[0] != 1 {
		t.Fatalf("resubmission accumulated instead of replacing: %v", sub.AnswerIDs)
	}
	if sub.AnsweredAt != 2 {
		t.Fatalf("resubmission kept the old timestamp: %v", sub.AnsweredAt)
	}
}

func TestJoinRules(t *testing.T) {
	s, _, _ := newTestSession(t)

	if _, _, err := s.Join("p1", "alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, _, err := s.Join("p2", "alice"); !errors.Is(err, domain.ErrNameTaken) {
		t.Fatalf("expected duplicate-name rejection, got %v", err)
	}

	generated, _, err := s.Join("p3", "")
	if err != nil {
		t.Fatalf("join with generated name: %v", err)
	}
	assertGeneratedName(t, generated.Name)

	mustApply(t, s, domain.ActionNextQuestion)
	if _, _, err := s.Join("p4", "bob"); !errors.Is(err, domain.ErrSessionNotInLobby) {
		t.Fatalf("expected lobby-only rejection, got %v", err)
	}
}

func TestAutoStartOnThreshold(t *testing.T) {
	clock := newFakeClock()
	sched := &fakeScheduler{}
	s := newSessionWithClock("sess-1", "owner-1", twoQuestionQuiz(), 3, clock.Now, sched.schedule)

	for i, name := range []string{"alice", "bob"} {
		if _, started, err := s.Join(string(rune('a'+i)), name); err != nil || started {
			t.Fatalf("join %s: err=%v started=%v", name, err, started)
		}
	}
	if s.State() != domain.StateLobby {
		t.Fatalf("session started early: %s", s.State())
	}

	_, started, err := s.Join("c", "carol")
	if err != nil {
		t.Fatalf("third join: %v", err)
	}
	if !started || s.State() != domain.StateQuestionCountdown {
		t.Fatalf("expected auto-start on third join, started=%v state=%s", started, s.State())
	}
}

func TestSubscribeSeesTimerTransitions(t *testing.T) {
	s, _, sched := newTestSession(t)

	ch, cancel := s.Subscribe()
	defer cancel()
	<-ch // initial snapshot

	mustApply(t, s, domain.ActionNextQuestion)
	if got := (<-ch).State; got != domain.StateQuestionCountdown {
		t.Fatalf("expected countdown update, got %s", got)
	}

	sched.fireLast(t)
	if got := (<-ch).State; got != domain.StateQuestionOpen {
		t.Fatalf("expected open update from timer, got %s", got)
	}
}

func assertGeneratedName(t *testing.T, name string) {
	t.Helper()
	if len(name) != 8 {
		t.Fatalf("generated name %q is not 8 chars", name)
	}
	seen := map[byte]bool{}
	for i := 0; i < 5; i++ {
		c := name[i]
		if c < 'a' || c > 'z' || seen[c] {
			t.Fatalf("generated name %q: bad letter block", name)
		}
		seen[c] = true
	}
	seen = map[byte]bool{}
	for i := 5; i < 8; i++ {
		c := name[i]
		if c < '0' || c > '9' || seen[c] {
			t.Fatalf("generated name %q: bad digit block", name)
		}
		seen[c] = true
	}
}
