package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a session id does not resolve.
	ErrSessionNotFound = errors.New("session not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrPlayerNotFound is returned when a player id does not resolve.
	ErrPlayerNotFound = errors.New("player not found")

	// ErrUnknownAction rejects action strings outside the defined set.
	ErrUnknownAction = errors.New("action is not a valid action")
	// ErrActionNotApplicable rejects a known action that has no edge from the
	// session's current state.
	ErrActionNotApplicable = errors.New("action cannot be applied in current state")

	// ErrSessionNotInLobby rejects joins once the game has started.
	ErrSessionNotInLobby = errors.New("session is not in LOBBY state")
	// ErrNameTaken rejects a join with a name already in the roster.
	ErrNameTaken = errors.New("name is not unique")

	// ErrSessionNotOpen rejects submissions outside the answer window.
	ErrSessionNotOpen = errors.New("session is not in QUESTION_OPEN state")
	// ErrInvalidQuestionPosition rejects positions outside [1, numQuestions].
	ErrInvalidQuestionPosition = errors.New("question position is not valid for the session this player is in")
	// ErrQuestionNotReached rejects submissions or result reads for a question
	// the session has not advanced to.
	ErrQuestionNotReached = errors.New("session is not yet up to this question")
	// ErrNoAnswerIDs rejects an empty answer selection.
	ErrNoAnswerIDs = errors.New("at least one answer id must be submitted")
	// ErrDuplicateAnswerIDs rejects a selection naming the same answer twice.
	ErrDuplicateAnswerIDs = errors.New("duplicate answer ids submitted")
	// ErrUnknownAnswerID rejects an answer id the question does not have.
	ErrUnknownAnswerID = errors.New("answer id is not valid for this question")

	// ErrSessionNotInAnswerShow guards per-question result reads.
	ErrSessionNotInAnswerShow = errors.New("session is not in ANSWER_SHOW state")
	// ErrSessionNotInFinalResults guards final result reads.
	ErrSessionNotInFinalResults = errors.New("session is not in FINAL_RESULTS state")

	// ErrAutoStartNumTooLarge bounds the auto-start threshold at 50.
	ErrAutoStartNumTooLarge = errors.New("autoStartNum cannot be greater than 50")
	// ErrQuizHasNoQuestions rejects starting a session on an empty quiz.
	ErrQuizHasNoQuestions = errors.New("quiz has no questions")
	// ErrTooManySessions caps concurrently active sessions per owner.
	ErrTooManySessions = errors.New("maximum number of active sessions reached for this owner")
)
