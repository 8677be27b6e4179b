package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/models"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/repositories"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/validator"
)

type resultsService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewResultsService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator) ResultsService {
	return &resultsService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
	}
}

// ViewAttempt projects an attempt through the test's disclosure policy.
// Admins previewing a learner's result get the identical projection; there is
// no privileged variant of this view.
func (s *resultsService) ViewAttempt(ctx context.Context, attemptID uint, memberID string, isAdmin bool) (*AttemptResultView, error) {
	attempt, err := s.repo.Attempt().GetByIDWithAnswers(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.MemberID != memberID && !isAdmin {
		return nil, NewPermissionError(memberID, attemptID, "attempt", "view_result", "not owner or insufficient permissions")
	}

	test, err := s.repo.Test().GetByIDWithQuestions(ctx, attempt.TestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	numericKeys, err := s.repo.Question().GetNumericKeysByTest(ctx, attempt.TestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get numeric keys: %w", err)
	}

	return projectAttempt(test, numericKeys, attempt, time.Now().UTC()), nil
}

func (s *resultsService) ListTestResults(ctx context.Context, testID uint, userID string, isAdmin bool) ([]*models.MemberResultRow, error) {
	if !isAdmin {
		return nil, NewPermissionError(userID, testID, "test", "list_results", "insufficient permissions")
	}

	test, err := s.repo.Test().GetByIDWithQuestions(ctx, testID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	totalPoints := 0.0
	for _, q := range test.Questions {
		totalPoints += q.Points
	}

	attempts, _, err := s.repo.Attempt().List(ctx, repositories.AttemptFilters{
		TestID:    &testID,
		SortBy:    "started_at",
		SortOrder: "asc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	rows := make([]*models.MemberResultRow, 0, len(attempts))
	for _, attempt := range attempts {
		complete, err := s.repo.Answer().AreAllAnswersGraded(ctx, attempt.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check grading for attempt %d: %w", attempt.ID, err)
		}

		gradedPoints := 0.0
		if attempt.GradeEarned != nil {
			gradedPoints = *attempt.GradeEarned
		}

		rows = append(rows, &models.MemberResultRow{
			MemberID:           attempt.MemberID,
			MemberName:         attempt.Member.FullName,
			MemberEmail:        attempt.Member.Email,
			AttemptID:          attempt.ID,
			Status:             attempt.Status,
			StartedAt:          attempt.StartedAt,
			SubmittedAt:        attempt.SubmittedAt,
			GradeEarned:        attempt.GradeEarned,
			GradedPoints:       gradedPoints,
			TotalPoints:        totalPoints,
			GradingComplete:    complete,
			TabSwitchCount:     attempt.TabSwitchCount,
			TimeOffPageSeconds: attempt.TimeOffPageSeconds,
		})
	}

	return rows, nil
}

// ===== DISCLOSURE PROJECTION =====

// projectAttempt is the pure disclosure engine. Everything the caller may see
// is derived here from the release mode and release time; callers above only
// check ownership.
func projectAttempt(test *models.Test, numericKeys map[uint]float64, attempt *models.Attempt, now time.Time) *AttemptResultView {
	view := &AttemptResultView{
		AttemptID:      attempt.ID,
		TestID:         test.ID,
		TestTitle:      test.Title,
		Status:         attempt.Status,
		StartedAt:      attempt.StartedAt,
		SubmittedAt:    attempt.SubmittedAt,
		ScoresReleased: AreScoresReleased(test, now),
	}

	// Tier 1: nothing beyond existence and lifecycle state
	if !view.ScoresReleased {
		return view
	}

	answersByQuestion := make(map[uint]*models.Answer, len(attempt.Answers))
	for i := range attempt.Answers {
		answersByQuestion[attempt.Answers[i].QuestionID] = &attempt.Answers[i]
	}

	// Tier 2: the score, computed over graded questions only. Unanswered
	// questions count as graded zeros; an answer still waiting on a human
	// keeps its points out of the denominator and raises the
	// grading-in-progress flag, so a partial total never reads as final.
	var earned, gradedTotal float64
	gradingInProgress := false
	for i := range test.Questions {
		q := &test.Questions[i]
		answer, ok := answersByQuestion[q.ID]
		if !ok {
			gradedTotal += q.Points
			continue
		}
		if answer.IsGraded() {
			gradedTotal += q.Points
			if answer.PointsAwarded != nil {
				earned += *answer.PointsAwarded
			}
		} else {
			gradingInProgress = true
		}
	}

	view.GradeEarned = attempt.GradeEarned
	view.GradedPoints = &earned
	view.TotalPoints = &gradedTotal
	view.GradingInProgress = gradingInProgress

	if test.ScoreReleaseMode == models.ReleaseScoreOnly {
		return view
	}

	// Tier 3: per-question correctness booleans only. Question text, the
	// learner's stored responses, and awarded points wait for tier 4.
	fullDisclosure := test.ScoreReleaseMode == models.ReleaseFullTest
	for i := range test.Questions {
		q := &test.Questions[i]
		qr := QuestionResult{
			QuestionID: q.ID,
			Order:      q.Order,
			Type:       q.Type,
			Points:     q.Points,
		}

		if answer, ok := answersByQuestion[q.ID]; ok {
			if answer.IsGraded() && answer.PointsAwarded != nil {
				correct := *answer.PointsAwarded == q.Points
				qr.IsCorrect = &correct
			}
			if fullDisclosure {
				qr.SelectedOptionIDs = unmarshalOptionIDs(answer.SelectedOptionIDs)
				qr.NumericAnswer = answer.NumericAnswer
				qr.AnswerText = answer.AnswerText
				qr.PointsAwarded = answer.PointsAwarded
				qr.GraderNote = answer.GraderNote
			}
		}

		if fullDisclosure {
			qr.Text = q.Text
			for _, opt := range q.Options {
				qr.Options = append(qr.Options, ResultOption{
					ID:    opt.ID,
					Text:  opt.Text,
					Order: opt.Order,
				})
			}
			qr.CorrectOptionIDs = q.CorrectOptionIDs()
			if expected, ok := numericKeys[q.ID]; ok {
				qr.ExpectedNumeric = &expected
			}
			qr.Explanation = q.Explanation
		}

		view.Questions = append(view.Questions, qr)
	}

	return view
}
