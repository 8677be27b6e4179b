package services

import (
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/models"
)

// scoreObjectiveAnswer grades one answer against the question's key. It
// returns gradable=false for text questions, which only a human can score.
// Objective questions are all-or-nothing: no partial credit for a partially
// right multi select.
func scoreObjectiveAnswer(question *models.Question, numericKeys map[uint]float64, answer *models.Answer) (points float64, correct bool, gradable bool) {
	switch question.Type {
	case models.SingleSelect, models.MultiSelect:
		selected := unmarshalOptionIDs(answer.SelectedOptionIDs)
		correct = equalUintSets(selected, question.CorrectOptionIDs())
	case models.Numeric:
		expected, ok := numericKeys[question.ID]
		if !ok || answer.NumericAnswer == nil {
			return 0, false, true
		}
		correct = *answer.NumericAnswer == expected
	default:
		return 0, false, false
	}

	if correct {
		points = question.Points
	}
	return points, correct, true
}

// equalUintSets compares two id slices as sets.
func equalUintSets(a, b []uint) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[uint]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	for _, id := range b {
		if !set[id] {
			return false
		}
	}
	return true
}
