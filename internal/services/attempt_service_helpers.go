package services

import (
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/models"
)

// sanitizeQuestionsForTaking strips everything a taker must not see: option
// correctness flags, explanations, numeric keys.
func sanitizeQuestionsForTaking(questions []models.Question) []*TakingQuestion {
	out := make([]*TakingQuestion, 0, len(questions))
	for i := range questions {
		q := &questions[i]
		taking := &TakingQuestion{
			ID:     q.ID,
			Type:   q.Type,
			Text:   q.Text,
			Points: q.Points,
			Order:  q.Order,
		}
		for _, opt := range q.Options {
			taking.Options = append(taking.Options, TakingOption{
				ID:    opt.ID,
				Text:  opt.Text,
				Order: opt.Order,
			})
		}
		out = append(out, taking)
	}
	return out
}

// questionsByID indexes a test's questions for grading and result assembly.
func questionsByID(questions []*models.Question) map[uint]*models.Question {
	byID := make(map[uint]*models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return byID
}

// totalTestPoints sums the points across a test's questions.
func totalTestPoints(questions []*models.Question) float64 {
	var total float64
	for _, q := range questions {
		total += q.Points
	}
	return total
}
