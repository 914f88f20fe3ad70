package domain

import "fmt"

// State is the lifecycle phase of a session. LOBBY is initial, END is
// terminal; no action is valid from END.
type State int

const (
	StateLobby State = iota
	StateQuestionCountdown
	StateQuestionOpen
	StateQuestionClose
	StateAnswerShow
	StateFinalResults
	StateEnd
)

var stateNames = map[State]string{
	StateLobby:             "LOBBY",
	StateQuestionCountdown: "QUESTION_COUNTDOWN",
	StateQuestionOpen:      "QUESTION_OPEN",
	StateQuestionClose:     "QUESTION_CLOSE",
	StateAnswerShow:        "ANSWER_SHOW",
	StateFinalResults:      "FINAL_RESULTS",
	StateEnd:               "END",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalJSON renders the state as its wire name.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Action is an owner command against a session. Timer-driven transitions are
// not actions; they are scheduled internally by the session.
type Action int

const (
	ActionNextQuestion Action = iota
	ActionSkipCountdown
	ActionGoToAnswer
	ActionGoToFinalResults
	ActionEnd
)

var actionNames = map[Action]string{
	ActionNextQuestion:     "NEXT_QUESTION",
	ActionSkipCountdown:    "SKIP_COUNTDOWN",
	ActionGoToAnswer:       "GO_TO_ANSWER",
	ActionGoToFinalResults: "GO_TO_FINAL_RESULTS",
	ActionEnd:              "END",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ParseAction maps a wire string to an Action. Matching is case-sensitive;
// anything outside the five defined names is rejected.
func ParseAction(raw string) (Action, error) {
	for action, name := range actionNames {
		if raw == name {
			return action, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", raw, ErrUnknownAction)
}
