package domain

// Answer is one selectable option of a question.
type Answer struct {
	ID      int    `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models an MCQ question. Several answers may be correct; a
// submission scores only when it selects exactly the correct set.
type Question struct {
	ID       int      `json:"id"`
	Text     string   `json:"text"`
	Duration int      `json:"duration"` // answer window in seconds
	Points   int      `json:"points"`   // defaults to 1 if zero
	Answers  []Answer `json:"answers"`
}

// Quiz is a collection of questions authored outside this service.
type Quiz struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// Clone returns a deep copy of the quiz. Sessions snapshot their quiz at
// start time so later edits to the live quiz never leak into a running game.
func (q Quiz) Clone() Quiz {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		out.Questions[i] = question
		out.Questions[i].Answers = append([]Answer(nil), question.Answers...)
	}
	return out
}

// Player is a guest participant in one session. Players are created on join
// and persist for the session's life.
type Player struct {
	ID        string `json:"playerId"`
	Name      string `json:"name"`
	SessionID string `json:"sessionId"`
}

// Submission is a player's answer to one question. A resubmission before the
// window closes fully replaces the previous one.
type Submission struct {
	AnswerIDs  []int   `json:"answerIds"`
	AnsweredAt float64 `json:"answeredAt"` // seconds elapsed since the question opened
	Seq        uint64  `json:"-"`          // arrival order, tie-breaker for equal times
}

// SessionMetadata is the immutable header of a session's status view.
type SessionMetadata struct {
	QuizID       string `json:"quizId"`
	QuizName     string `json:"quizName"`
	NumQuestions int    `json:"numQuestions"`
	AutoStartNum int    `json:"autoStartNum"`
}

// SessionStatus is the snapshot view exposed to transports and broadcast to
// subscribers on every transition.
type SessionStatus struct {
	SessionID  string          `json:"sessionId"`
	State      State           `json:"state"`
	AtQuestion int             `json:"atQuestion"`
	Players    []string        `json:"players"`
	Metadata   SessionMetadata `json:"metadata"`
}

// QuestionResult aggregates one question's outcome across the session.
type QuestionResult struct {
	QuestionID         int      `json:"questionId"`
	PlayersCorrectList []string `json:"playersCorrectList"`
	AverageAnswerTime  int      `json:"averageAnswerTime"`
	PercentCorrect     int      `json:"percentCorrect"`
}

// RankedPlayer is one row of the final scoreboard.
type RankedPlayer struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// FinalResults is the end-of-game summary.
type FinalResults struct {
	UsersRankedByScore []RankedPlayer   `json:"usersRankedByScore"`
	QuestionResults    []QuestionResult `json:"questionResults"`
}
