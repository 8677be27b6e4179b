package services

import (
	"errors"
	"testing"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/models"
)

func selectQuestion(qType models.QuestionType, optionIDs ...uint) *models.Question {
	q := &models.Question{ID: 10, Type: qType, Points: 2}
	for i, id := range optionIDs {
		q.Options = append(q.Options, models.QuestionOption{ID: id, Order: i})
	}
	return q
}

func floatPtr(v float64) *float64 { return &v }
func strPtr(s string) *string     { return &s }

func TestBuildAnswer_SingleSelect(t *testing.T) {
	question := selectQuestion(models.SingleSelect, 1, 2, 3)

	t.Run("valid selection", func(t *testing.T) {
		answer, err := buildAnswer(5, question, &SaveAnswerRequest{
			QuestionID:        question.ID,
			SelectedOptionIDs: []uint{2},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if answer.AttemptID != 5 || answer.QuestionID != question.ID {
			t.Errorf("answer keyed wrong: attempt=%d question=%d", answer.AttemptID, answer.QuestionID)
		}
		if got := unmarshalOptionIDs(answer.SelectedOptionIDs); len(got) != 1 || got[0] != 2 {
			t.Errorf("stored selection = %v, want [2]", got)
		}
	})

	t.Run("empty selection clears the answer", func(t *testing.T) {
		answer, err := buildAnswer(5, question, &SaveAnswerRequest{QuestionID: question.ID})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := unmarshalOptionIDs(answer.SelectedOptionIDs); len(got) != 0 {
			t.Errorf("stored selection = %v, want empty", got)
		}
	})

	t.Run("two options rejected", func(t *testing.T) {
		_, err := buildAnswer(5, question, &SaveAnswerRequest{
			QuestionID:        question.ID,
			SelectedOptionIDs: []uint{1, 2},
		})
		if !errors.Is(err, ErrInvalidAnswerShape) {
			t.Errorf("expected ErrInvalidAnswerShape, got %v", err)
		}
	})

	t.Run("foreign option rejected", func(t *testing.T) {
		_, err := buildAnswer(5, question, &SaveAnswerRequest{
			QuestionID:        question.ID,
			SelectedOptionIDs: []uint{99},
		})
		if !errors.Is(err, ErrInvalidOption) {
			t.Errorf("expected ErrInvalidOption, got %v", err)
		}
	})

	t.Run("stray numeric content rejected", func(t *testing.T) {
		_, err := buildAnswer(5, question, &SaveAnswerRequest{
			QuestionID:        question.ID,
			SelectedOptionIDs: []uint{1},
			NumericAnswer:     floatPtr(3.14),
		})
		if !errors.Is(err, ErrInvalidAnswerShape) {
			t.Errorf("expected ErrInvalidAnswerShape, got %v", err)
		}
	})

	t.Run("stray text content rejected", func(t *testing.T) {
		_, err := buildAnswer(5, question, &SaveAnswerRequest{
			QuestionID:        question.ID,
			SelectedOptionIDs: []uint{1},
			AnswerText:        strPtr("hello"),
		})
		if !errors.Is(err, ErrInvalidAnswerShape) {
			t.Errorf("expected ErrInvalidAnswerShape, got %v", err)
		}
	})
}

func TestBuildAnswer_MultiSelect(t *testing.T) {
	question := selectQuestion(models.MultiSelect, 1, 2, 3)

	t.Run("valid selection", func(t *testing.T) {
		answer, err := buildAnswer(5, question, &SaveAnswerRequest{
			QuestionID:        question.ID,
			SelectedOptionIDs: []uint{1, 3},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := unmarshalOptionIDs(answer.SelectedOptionIDs); len(got) != 2 {
			t.Errorf("stored selection = %v, want two entries", got)
		}
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		answer, err := buildAnswer(5, question, &SaveAnswerRequest{
			QuestionID:        question.ID,
			SelectedOptionIDs: []uint{2, 2, 2},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := unmarshalOptionIDs(answer.SelectedOptionIDs); len(got) != 1 || got[0] != 2 {
			t.Errorf("stored selection = %v, want [2]", got)
		}
	})

	t.Run("empty selection clears the answer", func(t *testing.T) {
		answer, err := buildAnswer(5, question, &SaveAnswerRequest{
			QuestionID:        question.ID,
			SelectedOptionIDs: []uint{},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := unmarshalOptionIDs(answer.SelectedOptionIDs); len(got) != 0 {
			t.Errorf("stored selection = %v, want empty", got)
		}
	})

	t.Run("foreign option rejected", func(t *testing.T) {
		_, err := buildAnswer(5, question, &SaveAnswerRequest{
			QuestionID:        question.ID,
			SelectedOptionIDs: []uint{1, 42},
		})
		if !errors.Is(err, ErrInvalidOption) {
			t.Errorf("expected ErrInvalidOption, got %v", err)
		}
	})
}

func TestBuildAnswer_Numeric(t *testing.T) {
	question := &models.Question{ID: 20, Type: models.Numeric, Points: 1}

	t.Run("valid value", func(t *testing.T) {
		answer, err := buildAnswer(5, question, &SaveAnswerRequest{
			QuestionID:    question.ID,
			NumericAnswer: floatPtr(42.5),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if answer.NumericAnswer == nil || *answer.NumericAnswer != 42.5 {
			t.Errorf("stored numeric = %v, want 42.5", answer.NumericAnswer)
		}
	})

	t.Run("zero is a valid value", func(t *testing.T) {
		answer, err := buildAnswer(5, question, &SaveAnswerRequest{
			QuestionID:    question.ID,
			NumericAnswer: floatPtr(0),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if answer.NumericAnswer == nil || *answer.NumericAnswer != 0 {
			t.Errorf("stored numeric = %v, want 0", answer.NumericAnswer)
		}
	})

	t.Run("null clears the answer", func(t *testing.T) {
		answer, err := buildAnswer(5, question, &SaveAnswerRequest{QuestionID: question.ID})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if answer.NumericAnswer != nil {
			t.Errorf("stored numeric = %v, want nil", answer.NumericAnswer)
		}
	})

	t.Run("stray options rejected", func(t *testing.T) {
		_, err := buildAnswer(5, question, &SaveAnswerRequest{
			QuestionID:        question.ID,
			NumericAnswer:     floatPtr(1),
			SelectedOptionIDs: []uint{1},
		})
		if !errors.Is(err, ErrInvalidAnswerShape) {
			t.Errorf("expected ErrInvalidAnswerShape, got %v", err)
		}
	})
}

func TestBuildAnswer_Text(t *testing.T) {
	for _, qType := range []models.QuestionType{models.ShortText, models.LongText} {
		t.Run(string(qType), func(t *testing.T) {
			question := &models.Question{ID: 30, Type: qType, Points: 5}

			answer, err := buildAnswer(5, question, &SaveAnswerRequest{
				QuestionID: question.ID,
				AnswerText: strPtr("photosynthesis"),
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if answer.AnswerText == nil || *answer.AnswerText != "photosynthesis" {
				t.Errorf("stored text = %v, want photosynthesis", answer.AnswerText)
			}

			cleared, err := buildAnswer(5, question, &SaveAnswerRequest{
				QuestionID: question.ID,
				AnswerText: strPtr(""),
			})
			if err != nil {
				t.Fatalf("empty text: %v", err)
			}
			if cleared.AnswerText == nil || *cleared.AnswerText != "" {
				t.Errorf("empty text stored as %v, want empty string", cleared.AnswerText)
			}

			cleared, err = buildAnswer(5, question, &SaveAnswerRequest{
				QuestionID: question.ID,
			})
			if err != nil {
				t.Fatalf("nil text: %v", err)
			}
			if cleared.AnswerText != nil {
				t.Errorf("nil text stored as %v, want nil", cleared.AnswerText)
			}

			if _, err := buildAnswer(5, question, &SaveAnswerRequest{
				QuestionID:    question.ID,
				AnswerText:    strPtr("answer"),
				NumericAnswer: floatPtr(1),
			}); !errors.Is(err, ErrInvalidAnswerShape) {
				t.Errorf("stray numeric: expected ErrInvalidAnswerShape, got %v", err)
			}
		})
	}
}

func TestBuildAnswer_UnknownType(t *testing.T) {
	question := &models.Question{ID: 40, Type: "essay", Points: 1}
	_, err := buildAnswer(5, question, &SaveAnswerRequest{QuestionID: question.ID})
	if !errors.Is(err, ErrInvalidAnswerShape) {
		t.Errorf("expected ErrInvalidAnswerShape, got %v", err)
	}
}

func TestOptionIDRoundTrip(t *testing.T) {
	ids := []uint{3, 1, 2}
	got := unmarshalOptionIDs(marshalOptionIDs(ids))
	if len(got) != 3 || got[0] != 3 || got[1] != 1 || got[2] != 2 {
		t.Errorf("round trip = %v, want %v", got, ids)
	}

	if got := unmarshalOptionIDs(nil); got != nil {
		t.Errorf("nil payload = %v, want nil", got)
	}
}
