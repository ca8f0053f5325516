package domain

import (
	"encoding/json"
	"time"
)

// AnswerRecord is the append-once record of one scored response. At most one
// exists per (participant, question index); the submission coordinator's
// transaction is the only writer.
type AnswerRecord struct {
	QuestionIndex    int
	Type             QuestionType
	Answer           Submission
	SubmittedAt      time.Time
	Points           int
	Correct          bool
	PartiallyCorrect bool
	TimedOut         bool
}

type answerRecordJSON struct {
	QuestionIndex    int             `json:"questionIndex"`
	Type             QuestionType    `json:"type"`
	Answer           json.RawMessage `json:"answer"`
	SubmittedAt      time.Time       `json:"submittedAt"`
	Points           int             `json:"points"`
	Correct          bool            `json:"correct"`
	PartiallyCorrect bool            `json:"partiallyCorrect,omitempty"`
	TimedOut         bool            `json:"timedOut,omitempty"`
}

func (r AnswerRecord) MarshalJSON() ([]byte, error) {
	answer, err := MarshalSubmission(r.Answer)
	if err != nil {
		return nil, err
	}
	return json.Marshal(answerRecordJSON{
		QuestionIndex:    r.QuestionIndex,
		Type:             r.Type,
		Answer:           answer,
		SubmittedAt:      r.SubmittedAt,
		Points:           r.Points,
		Correct:          r.Correct,
		PartiallyCorrect: r.PartiallyCorrect,
		TimedOut:         r.TimedOut,
	})
}

func (r *AnswerRecord) UnmarshalJSON(data []byte) error {
	var raw answerRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	answer, err := UnmarshalSubmission(raw.Answer)
	if err != nil {
		return err
	}
	*r = AnswerRecord{
		QuestionIndex:    raw.QuestionIndex,
		Type:             raw.Type,
		Answer:           answer,
		SubmittedAt:      raw.SubmittedAt,
		Points:           raw.Points,
		Correct:          raw.Correct,
		PartiallyCorrect: raw.PartiallyCorrect,
		TimedOut:         raw.TimedOut,
	}
	return nil
}

// Participant is one player's session-scoped record. Score only grows, and
// only together with an answer append inside the coordinator's transaction.
type Participant struct {
	ID           string               `json:"id"`
	DisplayName  string               `json:"displayName"`
	Score        int                  `json:"score"`
	Streak       int                  `json:"streak"`
	JoinedAt     time.Time            `json:"joinedAt"`
	LastScoredAt time.Time            `json:"lastScoredAt,omitempty"`
	Answers      map[int]AnswerRecord `json:"answers,omitempty"`
}

// Answered reports whether a record exists for questionIndex.
func (p Participant) Answered(questionIndex int) bool {
	_, ok := p.Answers[questionIndex]
	return ok
}

// Clone returns a deep copy so store reads never alias live state.
func (p Participant) Clone() Participant {
	out := p
	if p.Answers != nil {
		out.Answers = make(map[int]AnswerRecord, len(p.Answers))
		for k, v := range p.Answers {
			out.Answers[k] = v
		}
	}
	return out
}
