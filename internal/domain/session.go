package domain

import "time"

// SessionState is the host-driven lifecycle phase of a session.
type SessionState string

const (
	StateLobby       SessionState = "lobby"
	StatePreparing   SessionState = "preparing"
	StateQuestion    SessionState = "question"
	StateLeaderboard SessionState = "leaderboard"
	StateResults     SessionState = "results"
	StateEnded       SessionState = "ended"
	StateCancelled   SessionState = "cancelled"
)

// Terminal reports whether the session can no longer change state.
func (s SessionState) Terminal() bool {
	return s == StateEnded || s == StateCancelled
}

// transitions is the allowed lifecycle graph. Cancellation from any
// non-terminal state is handled separately in CanTransition.
var transitions = map[SessionState][]SessionState{
	StateLobby:       {StatePreparing, StateQuestion},
	StatePreparing:   {StateQuestion},
	StateQuestion:    {StateLeaderboard, StateResults},
	StateLeaderboard: {StateQuestion, StateResults},
	StateResults:     {StateEnded},
}

// CanTransition reports whether moving from s to next is allowed.
func (s SessionState) CanTransition(next SessionState) bool {
	if next == StateCancelled {
		return !s.Terminal()
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Session is one live run of a quiz/poll/rating activity. The engine mutates
// it only through host-driven transitions.
type Session struct {
	ID                   string       `json:"id"`
	HostID               string       `json:"hostId"`
	State                SessionState `json:"state"`
	CurrentQuestionIndex int          `json:"currentQuestionIndex"`
	QuestionCount        int          `json:"questionCount"`
	// QuestionStartedAt anchors server-side time-remaining reconciliation
	// while State == question.
	QuestionStartedAt time.Time `json:"questionStartedAt,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Answerable reports whether submissions for questionIndex are accepted.
func (s Session) Answerable(questionIndex int) bool {
	return s.State == StateQuestion && s.CurrentQuestionIndex == questionIndex
}
