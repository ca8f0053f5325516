package domain

import (
	"encoding/json"
	"fmt"
)

// Submission is the typed payload of one participant answer. Exactly one
// concrete type exists per payload shape; validators and the scoring engine
// switch exhaustively over them.
type Submission interface {
	submission()
}

// ChoiceAnswer selects a single option by index.
type ChoiceAnswer struct {
	Index int `json:"index"`
}

// MultiChoiceAnswer selects a set of options by index.
type MultiChoiceAnswer struct {
	Indices []int `json:"indices"`
}

// SliderAnswer submits a numeric value on the question's scale.
type SliderAnswer struct {
	Value float64 `json:"value"`
}

// TextAnswer submits free text.
type TextAnswer struct {
	Text string `json:"text"`
}

// NoAnswer is the synthetic sentinel recorded when the deadline passes
// without a submission.
type NoAnswer struct{}

func (ChoiceAnswer) submission()      {}
func (MultiChoiceAnswer) submission() {}
func (SliderAnswer) submission()      {}
func (TextAnswer) submission()        {}
func (NoAnswer) submission()          {}

// submissionEnvelope is the persisted form of the union.
type submissionEnvelope struct {
	Kind    string  `json:"kind"`
	Index   int     `json:"index,omitempty"`
	Indices []int   `json:"indices,omitempty"`
	Value   float64 `json:"value,omitempty"`
	Text    string  `json:"text,omitempty"`
}

// MarshalSubmission encodes a submission for storage.
func MarshalSubmission(sub Submission) ([]byte, error) {
	var env submissionEnvelope
	switch v := sub.(type) {
	case ChoiceAnswer:
		env = submissionEnvelope{Kind: "choice", Index: v.Index}
	case MultiChoiceAnswer:
		env = submissionEnvelope{Kind: "multi_choice", Indices: v.Indices}
	case SliderAnswer:
		env = submissionEnvelope{Kind: "slider", Value: v.Value}
	case TextAnswer:
		env = submissionEnvelope{Kind: "text", Text: v.Text}
	case NoAnswer:
		env = submissionEnvelope{Kind: "none"}
	default:
		return nil, fmt.Errorf("unknown submission type %T", sub)
	}
	return json.Marshal(env)
}

// UnmarshalSubmission decodes a stored submission.
func UnmarshalSubmission(data []byte) (Submission, error) {
	var env submissionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Kind {
	case "choice":
		return ChoiceAnswer{Index: env.Index}, nil
	case "multi_choice":
		return MultiChoiceAnswer{Indices: env.Indices}, nil
	case "slider":
		return SliderAnswer{Value: env.Value}, nil
	case "text":
		return TextAnswer{Text: env.Text}, nil
	case "none":
		return NoAnswer{}, nil
	}
	return nil, fmt.Errorf("unknown submission kind %q", env.Kind)
}
