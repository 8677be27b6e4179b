package services

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/models"
)

// buildAnswer validates a save-answer payload against the question's type and
// returns the row to upsert. The payload is a tagged union: only the field
// matching the question type may be populated. An empty payload of the right
// shape clears the answer, which upserts a row with no response content.
func buildAnswer(attemptID uint, question *models.Question, req *SaveAnswerRequest) (*models.Answer, error) {
	answer := &models.Answer{
		AttemptID:  attemptID,
		QuestionID: question.ID,
	}

	switch question.Type {
	case models.SingleSelect:
		if err := rejectExtraFields(req, false, true, true); err != nil {
			return nil, err
		}
		if len(req.SelectedOptionIDs) > 1 {
			return nil, fmt.Errorf("%w: single select takes at most one option", ErrInvalidAnswerShape)
		}
		if err := checkOptionMembership(question, req.SelectedOptionIDs); err != nil {
			return nil, err
		}
		answer.SelectedOptionIDs = marshalOptionIDs(req.SelectedOptionIDs)

	case models.MultiSelect:
		if err := rejectExtraFields(req, false, true, true); err != nil {
			return nil, err
		}
		selected := dedupeOptionIDs(req.SelectedOptionIDs)
		if err := checkOptionMembership(question, selected); err != nil {
			return nil, err
		}
		answer.SelectedOptionIDs = marshalOptionIDs(selected)

	case models.Numeric:
		if err := rejectExtraFields(req, true, false, true); err != nil {
			return nil, err
		}
		answer.NumericAnswer = req.NumericAnswer

	case models.ShortText, models.LongText:
		if err := rejectExtraFields(req, true, true, false); err != nil {
			return nil, err
		}
		answer.AnswerText = req.AnswerText

	default:
		return nil, fmt.Errorf("%w: unknown question type %q", ErrInvalidAnswerShape, question.Type)
	}

	return answer, nil
}

// checkOptionMembership verifies every selected option belongs to the
// question.
func checkOptionMembership(question *models.Question, selected []uint) error {
	valid := question.OptionIDSet()
	for _, id := range selected {
		if !valid[id] {
			return fmt.Errorf("%w: option %d", ErrInvalidOption, id)
		}
	}
	return nil
}

// rejectExtraFields fails when a payload carries content for a different
// question type, which usually means a client-side mixup between questions.
func rejectExtraFields(req *SaveAnswerRequest, noOptions, noNumeric, noText bool) error {
	if noOptions && len(req.SelectedOptionIDs) > 0 {
		return fmt.Errorf("%w: unexpected option selection", ErrInvalidAnswerShape)
	}
	if noNumeric && req.NumericAnswer != nil {
		return fmt.Errorf("%w: unexpected numeric answer", ErrInvalidAnswerShape)
	}
	if noText && req.AnswerText != nil {
		return fmt.Errorf("%w: unexpected text answer", ErrInvalidAnswerShape)
	}
	return nil
}

func dedupeOptionIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func marshalOptionIDs(ids []uint) datatypes.JSON {
	if ids == nil {
		ids = []uint{}
	}
	data, _ := json.Marshal(ids)
	return datatypes.JSON(data)
}

// unmarshalOptionIDs reads the stored selection back out of the answer row.
func unmarshalOptionIDs(raw datatypes.JSON) []uint {
	if len(raw) == 0 {
		return nil
	}
	var ids []uint
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil
	}
	return ids
}
