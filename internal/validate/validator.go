// Package validate checks inbound submissions structurally against the
// question they claim to answer, before any scoring or state mutation.
package validate

import (
	"live-quiz-engine/internal/domain"
)

// defaultMaxTextLength caps free-text payloads when the answer key does not
// set its own limit.
const defaultMaxTextLength = 500

// Submission verifies that sub has the right shape and bounds for the
// question described by entry, and that the reported time remaining is
// plausible. All rejections are invalid-argument errors.
func Submission(sub domain.Submission, entry domain.AnswerKeyEntry, timeRemaining float64) error {
	if sub == nil {
		return domain.Invalidf("missing submission payload")
	}
	if timeRemaining < 0 {
		return domain.Invalidf("time remaining must not be negative")
	}
	if timeRemaining > entry.TimeLimit {
		return domain.Invalidf("time remaining %.1fs exceeds the %.1fs limit", timeRemaining, entry.TimeLimit)
	}

	switch answer := sub.(type) {
	case domain.ChoiceAnswer:
		if entry.Type != domain.SingleChoice && entry.Type != domain.PollSingle {
			return typeMismatch(entry)
		}
		return checkIndex(answer.Index, entry.OptionCount)
	case domain.MultiChoiceAnswer:
		if entry.Type != domain.MultipleChoice && entry.Type != domain.PollMultiple {
			return typeMismatch(entry)
		}
		return checkIndexSet(answer.Indices, entry.OptionCount)
	case domain.SliderAnswer:
		if entry.Type != domain.Slider {
			return typeMismatch(entry)
		}
		if answer.Value < entry.SliderMin || answer.Value > entry.SliderMax {
			return domain.Invalidf("value %.2f outside slider range [%.2f, %.2f]",
				answer.Value, entry.SliderMin, entry.SliderMax)
		}
		return nil
	case domain.TextAnswer:
		if entry.Type != domain.FreeResponse && entry.Type != domain.PollFreeText {
			return typeMismatch(entry)
		}
		return checkText(answer.Text, entry.MaxAnswerLength)
	case domain.NoAnswer:
		// Timeout sentinel; only the coordinator submits these.
		return nil
	}
	return domain.Invalidf("unknown submission payload")
}

func typeMismatch(entry domain.AnswerKeyEntry) error {
	return domain.Invalidf("payload does not match question type %q", entry.Type)
}

func checkIndex(index, optionCount int) error {
	if index < 0 || index >= optionCount {
		return domain.Invalidf("option index %d out of range [0, %d)", index, optionCount)
	}
	return nil
}

func checkIndexSet(indices []int, optionCount int) error {
	if len(indices) == 0 {
		return domain.Invalidf("at least one option must be selected")
	}
	seen := make(map[int]struct{}, len(indices))
	for _, idx := range indices {
		if err := checkIndex(idx, optionCount); err != nil {
			return err
		}
		if _, dup := seen[idx]; dup {
			return domain.Invalidf("option index %d selected twice", idx)
		}
		seen[idx] = struct{}{}
	}
	return nil
}

func checkText(text string, maxLength int) error {
	if text == "" {
		return domain.Invalidf("answer text must not be empty")
	}
	if maxLength <= 0 {
		maxLength = defaultMaxTextLength
	}
	if len([]rune(text)) > maxLength {
		return domain.Invalidf("answer text longer than %d characters", maxLength)
	}
	return nil
}
