package domain

// QuestionType tags the shape of a question and its submissions.
type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	Slider         QuestionType = "slider"
	FreeResponse   QuestionType = "free_response"
	PollSingle     QuestionType = "poll_single"
	PollMultiple   QuestionType = "poll_multiple"
	PollFreeText   QuestionType = "poll_free_text"
)

// IsPoll reports whether the type is a poll variant. Polls are recorded for
// distribution only and never award points.
func (t QuestionType) IsPoll() bool {
	return t == PollSingle || t == PollMultiple || t == PollFreeText
}

// IsScored reports whether the type participates in correctness rates.
func (t QuestionType) IsScored() bool {
	switch t {
	case SingleChoice, MultipleChoice, Slider, FreeResponse:
		return true
	}
	return false
}

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	return t.IsScored() || t.IsPoll()
}

// AnswerKeyEntry is the server-only correctness spec for one question. It is
// written once when the session is created and never sent to participants.
type AnswerKeyEntry struct {
	QuestionIndex int          `json:"questionIndex"`
	Type          QuestionType `json:"type"`
	TimeLimit     float64      `json:"timeLimit"` // seconds
	OptionCount   int          `json:"optionCount,omitempty"`

	// Choice types.
	CorrectIndex   int   `json:"correctIndex,omitempty"`
	CorrectIndices []int `json:"correctIndices,omitempty"`

	// Slider.
	CorrectValue float64 `json:"correctValue,omitempty"`
	SliderMin    float64 `json:"sliderMin,omitempty"`
	SliderMax    float64 `json:"sliderMax,omitempty"`

	// Free response.
	CorrectText     string   `json:"correctText,omitempty"`
	AcceptedAnswers []string `json:"acceptedAnswers,omitempty"`
	CaseSensitive   bool     `json:"caseSensitive,omitempty"`
	AllowTypos      bool     `json:"allowTypos,omitempty"`
	MaxAnswerLength int      `json:"maxAnswerLength,omitempty"`
}

// SliderRange returns the width of the slider scale.
func (e AnswerKeyEntry) SliderRange() float64 {
	return e.SliderMax - e.SliderMin
}
