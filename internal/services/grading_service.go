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

type gradingService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	events    NotificationEventService
}

func NewGradingService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, events NotificationEventService) GradingService {
	return &gradingService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		events:    events,
	}
}

// ===== AUTO GRADING =====

// AutoGradeAttempt scores every objectively gradable answer of a submitted
// attempt. Text answers are left for manual grading; the attempt's running
// grade reflects only what has been graded so far.
func (s *gradingService) AutoGradeAttempt(ctx context.Context, attemptID uint) (*AttemptGradingResult, error) {
	s.logger.Info("Auto-grading attempt", "attempt_id", attemptID)

	attempt, err := s.repo.Attempt().GetByID(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt.Status != models.AttemptSubmitted {
		return nil, ErrAttemptNotActive
	}

	questions, err := s.repo.Question().GetByTest(ctx, attempt.TestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	numericKeys, err := s.repo.Question().GetNumericKeysByTest(ctx, attempt.TestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get numeric keys: %w", err)
	}

	byID := questionsByID(questions)
	result := &AttemptGradingResult{
		AttemptID:   attemptID,
		TotalPoints: totalTestPoints(questions),
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		answers, err := txRepo.Answer().GetByAttempt(ctx, attemptID)
		if err != nil {
			return fmt.Errorf("failed to get answers: %w", err)
		}

		now := time.Now().UTC()
		for _, answer := range answers {
			question, ok := byID[answer.QuestionID]
			if !ok {
				continue
			}

			points, correct, gradable := scoreObjectiveAnswer(question, numericKeys, answer)
			if !gradable {
				continue
			}

			if err := txRepo.Answer().UpdateGrade(ctx, nil, repositories.AnswerGrade{
				ID:     answer.ID,
				Points: points,
			}); err != nil {
				return fmt.Errorf("failed to grade answer %d: %w", answer.ID, err)
			}

			isCorrect := correct
			result.Answers = append(result.Answers, GradingResult{
				AnswerID:      answer.ID,
				QuestionID:    answer.QuestionID,
				PointsAwarded: points,
				MaxPoints:     question.Points,
				IsCorrect:     &isCorrect,
				GradedAt:      now,
			})
		}

		earned, err := s.recomputeAttemptGrade(ctx, txRepo, attemptID)
		if err != nil {
			return err
		}
		result.GradedPoints = earned

		complete, err := txRepo.Answer().AreAllAnswersGraded(ctx, attemptID)
		if err != nil {
			return fmt.Errorf("failed to check grading completeness: %w", err)
		}
		result.GradingComplete = complete
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Attempt auto-graded",
		"attempt_id", attemptID,
		"graded_points", result.GradedPoints,
		"grading_complete", result.GradingComplete)

	return result, nil
}

// ===== MANUAL GRADING =====

func (s *gradingService) GradeAnswer(ctx context.Context, answerID uint, req *GradeAnswerRequest, grader *models.Member) (*GradingResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if !grader.IsAdmin() {
		return nil, NewPermissionError(grader.ID, answerID, "answer", "grade", "insufficient role permissions")
	}

	answer, err := s.repo.Answer().GetByID(ctx, answerID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAnswerNotFound
		}
		return nil, fmt.Errorf("failed to get answer: %w", err)
	}

	attempt, err := s.repo.Attempt().GetByID(ctx, answer.AttemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt.Status != models.AttemptSubmitted {
		return nil, ErrAttemptNotActive
	}

	question, err := s.repo.Question().GetByID(ctx, answer.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	// Awarded points stay within the question's worth
	points := req.Points
	if points > question.Points {
		points = question.Points
	}
	if points < 0 {
		points = 0
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Answer().UpdateGrade(ctx, nil, repositories.AnswerGrade{
			ID:       answerID,
			Points:   points,
			Note:     req.Note,
			GraderID: grader.ID,
		}); err != nil {
			return fmt.Errorf("failed to update grade: %w", err)
		}

		if _, err := s.recomputeAttemptGrade(ctx, txRepo, answer.AttemptID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	answer.PointsAwarded = &points
	s.events.NotifyAnswerGraded(ctx, answer, grader.ID)

	s.logger.Info("Answer graded",
		"answer_id", answerID,
		"attempt_id", answer.AttemptID,
		"points", points,
		"grader_id", grader.ID)

	graderID := grader.ID
	return &GradingResult{
		AnswerID:      answerID,
		QuestionID:    answer.QuestionID,
		PointsAwarded: points,
		MaxPoints:     question.Points,
		GradedAt:      time.Now().UTC(),
		GradedBy:      &graderID,
	}, nil
}

// ===== STATISTICS =====

func (s *gradingService) GetGradingStats(ctx context.Context, attemptID uint, userID string, isAdmin bool) (*repositories.GradingStats, error) {
	if !isAdmin {
		return nil, NewPermissionError(userID, attemptID, "attempt", "view_grading_stats", "insufficient permissions")
	}

	stats, err := s.repo.Answer().GetGradingStats(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to get grading stats: %w", err)
	}
	return stats, nil
}

// ===== HELPERS =====

// recomputeAttemptGrade sums the awarded points over graded answers and
// stores the running total on the attempt.
func (s *gradingService) recomputeAttemptGrade(ctx context.Context, txRepo repositories.Repository, attemptID uint) (float64, error) {
	answers, err := txRepo.Answer().GetByAttempt(ctx, attemptID)
	if err != nil {
		return 0, fmt.Errorf("failed to load answers for grade recompute: %w", err)
	}

	var earned float64
	for _, answer := range answers {
		if answer.PointsAwarded != nil {
			earned += *answer.PointsAwarded
		}
	}

	if err := txRepo.Attempt().UpdateGrade(ctx, nil, attemptID, earned); err != nil {
		return 0, fmt.Errorf("failed to update attempt grade: %w", err)
	}
	return earned, nil
}
