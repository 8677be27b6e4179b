package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/events"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/models"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/validator"
)

func newGradingServiceForTest(repo *fakeRepository) GradingService {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	v := validator.New()
	eventSvc := NewNotificationEventService(repo, events.NewMockEventPublisher(logger), logger, v)
	return NewGradingService(repo, nil, logger, v, eventSvc)
}

func TestScoreObjectiveAnswer(t *testing.T) {
	singleSelect := &models.Question{
		ID: 1, Type: models.SingleSelect, Points: 2,
		Options: []models.QuestionOption{
			{ID: 11, IsCorrect: true},
			{ID: 12},
		},
	}
	multiSelect := &models.Question{
		ID: 2, Type: models.MultiSelect, Points: 4,
		Options: []models.QuestionOption{
			{ID: 21, IsCorrect: true},
			{ID: 22, IsCorrect: true},
			{ID: 23},
		},
	}
	numeric := &models.Question{ID: 3, Type: models.Numeric, Points: 3}
	shortText := &models.Question{ID: 4, Type: models.ShortText, Points: 5}
	keys := map[uint]float64{3: 9.81}

	tests := []struct {
		name         string
		question     *models.Question
		answer       models.Answer
		wantPoints   float64
		wantCorrect  bool
		wantGradable bool
	}{
		{
			name:         "single select correct",
			question:     singleSelect,
			answer:       models.Answer{SelectedOptionIDs: marshalOptionIDs([]uint{11})},
			wantPoints:   2,
			wantCorrect:  true,
			wantGradable: true,
		},
		{
			name:         "single select wrong",
			question:     singleSelect,
			answer:       models.Answer{SelectedOptionIDs: marshalOptionIDs([]uint{12})},
			wantGradable: true,
		},
		{
			name:         "multi select exact set",
			question:     multiSelect,
			answer:       models.Answer{SelectedOptionIDs: marshalOptionIDs([]uint{22, 21})},
			wantPoints:   4,
			wantCorrect:  true,
			wantGradable: true,
		},
		{
			name:         "multi select partial gets nothing",
			question:     multiSelect,
			answer:       models.Answer{SelectedOptionIDs: marshalOptionIDs([]uint{21})},
			wantGradable: true,
		},
		{
			name:         "multi select superset gets nothing",
			question:     multiSelect,
			answer:       models.Answer{SelectedOptionIDs: marshalOptionIDs([]uint{21, 22, 23})},
			wantGradable: true,
		},
		{
			name:         "numeric exact match",
			question:     numeric,
			answer:       models.Answer{NumericAnswer: floatPtr(9.81)},
			wantPoints:   3,
			wantCorrect:  true,
			wantGradable: true,
		},
		{
			name:         "numeric off by a little",
			question:     numeric,
			answer:       models.Answer{NumericAnswer: floatPtr(9.8)},
			wantGradable: true,
		},
		{
			name:         "text not gradable",
			question:     shortText,
			answer:       models.Answer{AnswerText: strPtr("mitochondria")},
			wantGradable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, correct, gradable := scoreObjectiveAnswer(tt.question, keys, &tt.answer)
			if points != tt.wantPoints || correct != tt.wantCorrect || gradable != tt.wantGradable {
				t.Errorf("scoreObjectiveAnswer() = (%v, %v, %v), want (%v, %v, %v)",
					points, correct, gradable, tt.wantPoints, tt.wantCorrect, tt.wantGradable)
			}
		})
	}

	t.Run("numeric without key stays zero", func(t *testing.T) {
		points, correct, gradable := scoreObjectiveAnswer(numeric, map[uint]float64{}, &models.Answer{NumericAnswer: floatPtr(9.81)})
		if points != 0 || correct || !gradable {
			t.Errorf("scoreObjectiveAnswer() = (%v, %v, %v), want (0, false, true)", points, correct, gradable)
		}
	})
}

func gradingFixture(t *testing.T) (*fakeRepository, AttemptService, GradingService, uint) {
	t.Helper()
	repo := newFakeRepository()
	test := openTest(1)
	test.Questions = []models.Question{
		{
			ID: 10, TestID: 1, Type: models.SingleSelect, Text: "Q1", Points: 2, Order: 1,
			Options: []models.QuestionOption{
				{ID: 101, QuestionID: 10, IsCorrect: true},
				{ID: 102, QuestionID: 10},
			},
		},
		{ID: 11, TestID: 1, Type: models.Numeric, Text: "Q2", Points: 3, Order: 2},
		{ID: 12, TestID: 1, Type: models.LongText, Text: "Q3", Points: 5, Order: 3},
	}
	repo.addTest(test)
	repo.numericKeys[11] = 42

	attemptSvc := newAttemptServiceForTest(repo)
	gradingSvc := newGradingServiceForTest(repo)

	ctx := context.Background()
	started, err := attemptSvc.Start(ctx, &StartAttemptRequest{TestID: 1}, learner("m1"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	saves := []*SaveAnswerRequest{
		{QuestionID: 10, SelectedOptionIDs: []uint{101}},
		{QuestionID: 11, NumericAnswer: floatPtr(42)},
		{QuestionID: 12, AnswerText: strPtr("an essay about birds")},
	}
	for _, req := range saves {
		if err := attemptSvc.SaveAnswer(ctx, started.Attempt.ID, req, "m1"); err != nil {
			t.Fatalf("save answer %d: %v", req.QuestionID, err)
		}
	}
	return repo, attemptSvc, gradingSvc, started.Attempt.ID
}

func TestGradingService_AutoGradeAttempt(t *testing.T) {
	ctx := context.Background()

	t.Run("objective graded, text left pending", func(t *testing.T) {
		repo, attemptSvc, gradingSvc, attemptID := gradingFixture(t)
		if _, err := attemptSvc.Submit(ctx, attemptID, "m1"); err != nil {
			t.Fatalf("submit: %v", err)
		}

		// Submit already auto-graded once; a second run is idempotent.
		result, err := gradingSvc.AutoGradeAttempt(ctx, attemptID)
		if err != nil {
			t.Fatalf("auto grade: %v", err)
		}
		if result.GradedPoints != 5 {
			t.Errorf("GradedPoints = %v, want 5", result.GradedPoints)
		}
		if result.TotalPoints != 10 {
			t.Errorf("TotalPoints = %v, want 10", result.TotalPoints)
		}
		if result.GradingComplete {
			t.Error("grading complete despite ungraded text answer")
		}

		answers, _ := repo.Answer().GetByAttempt(ctx, attemptID)
		for _, a := range answers {
			if a.QuestionID == 12 {
				if a.IsGraded() {
					t.Error("text answer should stay pending")
				}
			} else if !a.IsGraded() {
				t.Errorf("answer for question %d not graded", a.QuestionID)
			} else if a.GradedBy != nil {
				t.Errorf("auto-graded answer carries grader %v", *a.GradedBy)
			}
		}
	})

	t.Run("rejects in-progress attempt", func(t *testing.T) {
		_, _, gradingSvc, attemptID := gradingFixture(t)
		_, err := gradingSvc.AutoGradeAttempt(ctx, attemptID)
		if !errors.Is(err, ErrAttemptNotActive) {
			t.Errorf("expected ErrAttemptNotActive, got %v", err)
		}
	})

	t.Run("attempt not found", func(t *testing.T) {
		repo := newFakeRepository()
		gradingSvc := newGradingServiceForTest(repo)
		_, err := gradingSvc.AutoGradeAttempt(ctx, 99)
		if !errors.Is(err, ErrAttemptNotFound) {
			t.Errorf("expected ErrAttemptNotFound, got %v", err)
		}
	})
}

func TestGradingService_GradeAnswer(t *testing.T) {
	ctx := context.Background()
	grader := adminMember("a1")

	findAnswer := func(t *testing.T, repo *fakeRepository, attemptID, questionID uint) *models.Answer {
		t.Helper()
		answers, _ := repo.Answer().GetByAttempt(ctx, attemptID)
		for _, a := range answers {
			if a.QuestionID == questionID {
				return a
			}
		}
		t.Fatalf("no answer for question %d", questionID)
		return nil
	}

	t.Run("manual grade completes the attempt", func(t *testing.T) {
		repo, attemptSvc, gradingSvc, attemptID := gradingFixture(t)
		if _, err := attemptSvc.Submit(ctx, attemptID, "m1"); err != nil {
			t.Fatalf("submit: %v", err)
		}
		textAnswer := findAnswer(t, repo, attemptID, 12)

		result, err := gradingSvc.GradeAnswer(ctx, textAnswer.ID, &GradeAnswerRequest{
			Points: 4,
			Note:   strPtr("solid, missing one citation"),
		}, grader)
		if err != nil {
			t.Fatalf("grade: %v", err)
		}
		if result.PointsAwarded != 4 {
			t.Errorf("PointsAwarded = %v, want 4", result.PointsAwarded)
		}
		if result.GradedBy == nil || *result.GradedBy != grader.ID {
			t.Errorf("GradedBy = %v, want %s", result.GradedBy, grader.ID)
		}

		stored := repo.attempts[attemptID]
		if stored.GradeEarned == nil || *stored.GradeEarned != 9 {
			t.Errorf("attempt GradeEarned = %v, want 9", stored.GradeEarned)
		}

		complete, _ := repo.Answer().AreAllAnswersGraded(ctx, attemptID)
		if !complete {
			t.Error("grading should be complete after manual grade")
		}
	})

	t.Run("points clamped to question worth", func(t *testing.T) {
		repo, attemptSvc, gradingSvc, attemptID := gradingFixture(t)
		if _, err := attemptSvc.Submit(ctx, attemptID, "m1"); err != nil {
			t.Fatalf("submit: %v", err)
		}
		textAnswer := findAnswer(t, repo, attemptID, 12)

		result, err := gradingSvc.GradeAnswer(ctx, textAnswer.ID, &GradeAnswerRequest{Points: 50}, grader)
		if err != nil {
			t.Fatalf("grade: %v", err)
		}
		if result.PointsAwarded != 5 {
			t.Errorf("PointsAwarded = %v, want clamp to 5", result.PointsAwarded)
		}
	})

	t.Run("regrade overwrites and recomputes", func(t *testing.T) {
		repo, attemptSvc, gradingSvc, attemptID := gradingFixture(t)
		if _, err := attemptSvc.Submit(ctx, attemptID, "m1"); err != nil {
			t.Fatalf("submit: %v", err)
		}
		textAnswer := findAnswer(t, repo, attemptID, 12)

		if _, err := gradingSvc.GradeAnswer(ctx, textAnswer.ID, &GradeAnswerRequest{Points: 5}, grader); err != nil {
			t.Fatalf("first grade: %v", err)
		}
		if _, err := gradingSvc.GradeAnswer(ctx, textAnswer.ID, &GradeAnswerRequest{Points: 2}, grader); err != nil {
			t.Fatalf("second grade: %v", err)
		}

		stored := repo.attempts[attemptID]
		if stored.GradeEarned == nil || *stored.GradeEarned != 7 {
			t.Errorf("attempt GradeEarned = %v, want 7 after regrade", stored.GradeEarned)
		}
	})

	t.Run("non-admin denied", func(t *testing.T) {
		repo, attemptSvc, gradingSvc, attemptID := gradingFixture(t)
		if _, err := attemptSvc.Submit(ctx, attemptID, "m1"); err != nil {
			t.Fatalf("submit: %v", err)
		}
		textAnswer := findAnswer(t, repo, attemptID, 12)

		_, err := gradingSvc.GradeAnswer(ctx, textAnswer.ID, &GradeAnswerRequest{Points: 1}, learner("m1"))
		var permErr *PermissionError
		if !errors.As(err, &permErr) {
			t.Errorf("expected PermissionError, got %v", err)
		}
	})

	t.Run("rejects active attempt", func(t *testing.T) {
		repo, _, gradingSvc, attemptID := gradingFixture(t)
		textAnswer := findAnswer(t, repo, attemptID, 12)

		_, err := gradingSvc.GradeAnswer(ctx, textAnswer.ID, &GradeAnswerRequest{Points: 1}, grader)
		if !errors.Is(err, ErrAttemptNotActive) {
			t.Errorf("expected ErrAttemptNotActive, got %v", err)
		}
	})

	t.Run("answer not found", func(t *testing.T) {
		repo := newFakeRepository()
		gradingSvc := newGradingServiceForTest(repo)
		_, err := gradingSvc.GradeAnswer(ctx, 999, &GradeAnswerRequest{Points: 1}, grader)
		if !errors.Is(err, ErrAnswerNotFound) {
			t.Errorf("expected ErrAnswerNotFound, got %v", err)
		}
	})
}

func TestGradingService_GetGradingStats(t *testing.T) {
	ctx := context.Background()

	_, attemptSvc, gradingSvc, attemptID := gradingFixture(t)
	if _, err := attemptSvc.Submit(ctx, attemptID, "m1"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	t.Run("admin sees progress", func(t *testing.T) {
		stats, err := gradingSvc.GetGradingStats(ctx, attemptID, "a1", true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stats.TotalAnswers != 3 || stats.GradedAnswers != 2 || stats.PendingAnswers != 1 {
			t.Errorf("stats = %+v, want 3 total, 2 graded, 1 pending", stats)
		}
	})

	t.Run("non-admin denied", func(t *testing.T) {
		_, err := gradingSvc.GetGradingStats(ctx, attemptID, "m1", false)
		var permErr *PermissionError
		if !errors.As(err, &permErr) {
			t.Errorf("expected PermissionError, got %v", err)
		}
	})
}
