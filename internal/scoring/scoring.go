// Package scoring turns a validated submission plus its answer key entry
// into points. Everything here is pure; the coordinator owns all state.
package scoring

import (
	"fmt"
	"math"

	"live-quiz-engine/internal/domain"
	"live-quiz-engine/internal/match"
)

const (
	// maxPoints is the ceiling for any single question.
	maxPoints = 1000
	// choiceBase is awarded for a correct choice answer before time bonus.
	choiceBase = 100
	// timeBonusMax scales with remaining time on choice questions.
	timeBonusMax = 900
	// wrongSelectionPenalty is subtracted from the multiple-choice
	// multiplier per wrong selection.
	wrongSelectionPenalty = 0.2
	// Slider error bands, as fractions of the slider range.
	sliderFullCreditBand    = 0.10
	sliderPartialCreditBand = 0.20
)

// Result is the outcome of scoring one submission.
type Result struct {
	Points           int
	Correct          bool
	PartiallyCorrect bool
}

// Score evaluates a submission against its answer key entry. timeRemaining
// is clamped into [0, entry.TimeLimit] before the bonus is computed. The
// submission must already have passed structural validation; a shape
// mismatch here is a programmer error and is reported as such.
func Score(sub domain.Submission, entry domain.AnswerKeyEntry, timeRemaining float64) (Result, error) {
	if _, ok := sub.(domain.NoAnswer); ok {
		return Result{}, nil
	}
	if entry.Type.IsPoll() {
		// Polls are recorded for distribution only.
		return Result{}, nil
	}

	timeRemaining = clamp(timeRemaining, 0, entry.TimeLimit)

	switch entry.Type {
	case domain.SingleChoice:
		answer, ok := sub.(domain.ChoiceAnswer)
		if !ok {
			return Result{}, shapeError(sub, entry)
		}
		return scoreSingleChoice(answer, entry, timeRemaining), nil
	case domain.MultipleChoice:
		answer, ok := sub.(domain.MultiChoiceAnswer)
		if !ok {
			return Result{}, shapeError(sub, entry)
		}
		return scoreMultipleChoice(answer, entry, timeRemaining), nil
	case domain.Slider:
		answer, ok := sub.(domain.SliderAnswer)
		if !ok {
			return Result{}, shapeError(sub, entry)
		}
		return scoreSlider(answer, entry), nil
	case domain.FreeResponse:
		answer, ok := sub.(domain.TextAnswer)
		if !ok {
			return Result{}, shapeError(sub, entry)
		}
		return scoreFreeResponse(answer, entry), nil
	}
	return Result{}, fmt.Errorf("unhandled question type %q", entry.Type)
}

func scoreSingleChoice(answer domain.ChoiceAnswer, entry domain.AnswerKeyEntry, timeRemaining float64) Result {
	if answer.Index != entry.CorrectIndex {
		return Result{}
	}
	points := choiceBase + timeBonus(timeRemaining, entry.TimeLimit)
	if points > maxPoints {
		points = maxPoints
	}
	return Result{Points: points, Correct: true}
}

func scoreMultipleChoice(answer domain.MultiChoiceAnswer, entry domain.AnswerKeyEntry, timeRemaining float64) Result {
	correctSet := make(map[int]struct{}, len(entry.CorrectIndices))
	for _, idx := range entry.CorrectIndices {
		correctSet[idx] = struct{}{}
	}

	correctSelected, wrongSelected := 0, 0
	for _, idx := range answer.Indices {
		if _, ok := correctSet[idx]; ok {
			correctSelected++
		} else {
			wrongSelected++
		}
	}

	totalCorrect := len(entry.CorrectIndices)
	if totalCorrect == 0 {
		return Result{}
	}

	multiplier := float64(correctSelected)/float64(totalCorrect) - wrongSelectionPenalty*float64(wrongSelected)
	if multiplier < 0 {
		multiplier = 0
	}

	points := int(math.Round(maxPoints * multiplier))
	fullCredit := correctSelected == totalCorrect && wrongSelected == 0
	if fullCredit {
		points += timeBonus(timeRemaining, entry.TimeLimit)
		if points > maxPoints {
			points = maxPoints
		}
	}
	return Result{
		Points:           points,
		Correct:          fullCredit,
		PartiallyCorrect: multiplier > 0 && multiplier < 1,
	}
}

func scoreSlider(answer domain.SliderAnswer, entry domain.AnswerKeyEntry) Result {
	span := entry.SliderRange()
	if span <= 0 {
		return Result{}
	}
	errFraction := math.Abs(answer.Value-entry.CorrectValue) / span
	accuracy := 1 - errFraction
	if accuracy < 0 {
		accuracy = 0
	}
	switch {
	case errFraction <= sliderFullCreditBand:
		return Result{Points: int(math.Round(maxPoints * accuracy * accuracy)), Correct: true}
	case errFraction <= sliderPartialCreditBand:
		return Result{Points: int(math.Round(maxPoints * accuracy * accuracy)), PartiallyCorrect: true}
	default:
		return Result{}
	}
}

func scoreFreeResponse(answer domain.TextAnswer, entry domain.AnswerKeyEntry) Result {
	submitted := match.Normalize(answer.Text, entry.CaseSensitive)
	correct := match.Normalize(entry.CorrectText, entry.CaseSensitive)
	if submitted == correct {
		return Result{Points: maxPoints, Correct: true}
	}
	for _, alt := range entry.AcceptedAnswers {
		if submitted == match.Normalize(alt, entry.CaseSensitive) {
			return Result{Points: maxPoints, Correct: true}
		}
	}

	if !entry.AllowTypos {
		return Result{}
	}

	// Each candidate is held to the threshold its own length dictates, so
	// a short accepted alternative is not bound by a long primary answer.
	if fuzzyMatches(submitted, correct) {
		return Result{Points: maxPoints, Correct: true}
	}
	for _, alt := range entry.AcceptedAnswers {
		if fuzzyMatches(submitted, match.Normalize(alt, entry.CaseSensitive)) {
			return Result{Points: maxPoints, Correct: true}
		}
	}
	return Result{}
}

func fuzzyMatches(submitted, candidate string) bool {
	return match.Similarity(submitted, candidate) >= typoThreshold(candidate)
}

// typoThreshold adapts to answer length: short answers leave little room for
// edits, so they get a looser bound.
func typoThreshold(normalizedAnswer string) float64 {
	switch n := len([]rune(normalizedAnswer)); {
	case n <= 5:
		return 0.80
	case n <= 10:
		return 0.85
	default:
		return 0.90
	}
}

func timeBonus(timeRemaining, timeLimit float64) int {
	if timeLimit <= 0 {
		return 0
	}
	return int(math.Round(timeRemaining / timeLimit * timeBonusMax))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func shapeError(sub domain.Submission, entry domain.AnswerKeyEntry) error {
	return fmt.Errorf("submission %T does not match question type %q", sub, entry.Type)
}
