package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/models"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/repositories"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/validator"
)

type attemptService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	events    NotificationEventService
	grading   GradingService
}

func NewAttemptService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, events NotificationEventService, grading GradingService) AttemptService {
	return &attemptService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		events:    events,
		grading:   grading,
	}
}

// ===== CORE ATTEMPT OPERATIONS =====

func (s *attemptService) Start(ctx context.Context, req *StartAttemptRequest, member *models.Member) (*AttemptResponse, error) {
	s.logger.Info("Starting test attempt",
		"test_id", req.TestID,
		"member_id", member.ID)

	if err := s.validator.Struct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	test, err := s.repo.Test().GetByIDWithQuestions(ctx, req.TestID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	now := time.Now().UTC()

	// The client derives the same verdict for display, but the server's
	// check is the one that counts.
	if !IsTestAvailable(test, now) {
		return nil, ErrTestNotAvailable
	}

	if err := s.checkPasswordGate(test, req.Password, member); err != nil {
		return nil, err
	}

	var attempt *models.Attempt
	var resumed bool

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		// An in-progress attempt wins over creating a new one; starting is
		// idempotent for the member. The row lock serializes racing starts
		// from two tabs.
		active, err := txRepo.Attempt().GetActiveAttemptForUpdate(ctx, nil, req.TestID, member.ID)
		if err != nil && !repositories.IsNotFoundError(err) {
			return fmt.Errorf("failed to check active attempt: %w", err)
		}
		if active != nil {
			attempt = active
			resumed = true
			return nil
		}

		if test.MaxAttempts != nil {
			count, err := txRepo.Attempt().GetAttemptCount(ctx, req.TestID, member.ID)
			if err != nil {
				return fmt.Errorf("failed to count attempts: %w", err)
			}
			if count >= int64(*test.MaxAttempts) {
				return ErrMaxAttemptsReached
			}
		}

		attempt = &models.Attempt{
			TestID:            req.TestID,
			MemberID:          member.ID,
			Status:            models.AttemptInProgress,
			StartedAt:         now,
			ClientFingerprint: req.ClientFingerprint,
			IPAddress:         req.IPAddress,
			UserAgent:         req.UserAgent,
		}

		if err := txRepo.Attempt().Create(ctx, nil, attempt); err != nil {
			return fmt.Errorf("failed to create attempt: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.NotifyAttemptStarted(ctx, attempt, resumed)

	s.logger.Info("Test attempt started",
		"attempt_id", attempt.ID,
		"test_id", req.TestID,
		"member_id", member.ID,
		"resumed", resumed)

	return s.buildAttemptResponse(attempt, test, resumed), nil
}

func (s *attemptService) Submit(ctx context.Context, attemptID uint, memberID string) (*AttemptResponse, error) {
	s.logger.Info("Submitting test attempt",
		"attempt_id", attemptID,
		"member_id", memberID)

	var attempt *models.Attempt
	var answerCount int
	var alreadySubmitted bool

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		locked, err := txRepo.Attempt().GetByIDForUpdate(ctx, nil, attemptID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrAttemptNotFound
			}
			return fmt.Errorf("failed to get attempt: %w", err)
		}

		if locked.MemberID != memberID {
			return NewPermissionError(memberID, attemptID, "attempt", "submit", "not owned by member")
		}

		// A retried submit sees the terminal row and leaves it untouched;
		// SubmittedAt is written exactly once.
		if locked.Status == models.AttemptSubmitted {
			attempt = locked
			alreadySubmitted = true
			return nil
		}

		submittedAt := time.Now().UTC()
		if err := txRepo.Attempt().MarkSubmitted(ctx, nil, attemptID, submittedAt); err != nil {
			return fmt.Errorf("failed to mark attempt submitted: %w", err)
		}

		answers, err := txRepo.Answer().GetByAttempt(ctx, attemptID)
		if err != nil {
			return fmt.Errorf("failed to load answers: %w", err)
		}
		answerCount = len(answers)

		locked.Status = models.AttemptSubmitted
		locked.SubmittedAt = &submittedAt
		attempt = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !alreadySubmitted {
		// Objective questions grade immediately; text answers wait for a
		// human. A grading failure is logged, never returned to the taker.
		if _, err := s.grading.AutoGradeAttempt(context.WithoutCancel(ctx), attemptID); err != nil {
			s.logger.Error("Failed to auto-grade attempt", "attempt_id", attemptID, "error", err)
		}

		s.events.NotifyAttemptSubmitted(ctx, attempt, answerCount)
	}

	s.logger.Info("Test attempt submitted",
		"attempt_id", attemptID,
		"member_id", memberID,
		"already_submitted", alreadySubmitted)

	return &AttemptResponse{Attempt: attempt}, nil
}

func (s *attemptService) SaveAnswer(ctx context.Context, attemptID uint, req *SaveAnswerRequest, memberID string) error {
	if err := s.validator.Struct(req); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		attempt, err := txRepo.Attempt().GetByIDForUpdate(ctx, nil, attemptID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrAttemptNotFound
			}
			return fmt.Errorf("failed to get attempt: %w", err)
		}

		if attempt.MemberID != memberID {
			return NewPermissionError(memberID, attemptID, "attempt", "save_answer", "not owned by member")
		}
		if !attempt.IsActive() {
			return ErrAttemptNotActive
		}

		test, err := txRepo.Test().GetByID(ctx, attempt.TestID)
		if err != nil {
			return fmt.Errorf("failed to get test: %w", err)
		}

		// Answer writes stop at the deadline even though the attempt row
		// stays in progress.
		if !IsTestAvailable(test, time.Now().UTC()) {
			return ErrTestNotAvailable
		}

		question, err := txRepo.Question().GetByID(ctx, req.QuestionID)
		if err != nil || question.TestID != attempt.TestID {
			return ErrQuestionNotFound
		}

		answer, err := buildAnswer(attempt.ID, question, req)
		if err != nil {
			return err
		}

		if err := txRepo.Answer().Upsert(ctx, nil, answer); err != nil {
			return fmt.Errorf("failed to save answer: %w", err)
		}
		return nil
	})
}

// ===== GET OPERATIONS =====

func (s *attemptService) GetByID(ctx context.Context, id uint, userID string, isAdmin bool) (*AttemptResponse, error) {
	attempt, err := s.repo.Attempt().GetByIDWithAnswers(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.MemberID != userID && !isAdmin {
		return nil, NewPermissionError(userID, id, "attempt", "read", "not owner or insufficient permissions")
	}

	test, err := s.repo.Test().GetByIDWithQuestions(ctx, attempt.TestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	return s.buildAttemptResponse(attempt, test, false), nil
}

func (s *attemptService) GetCurrentAttempt(ctx context.Context, testID uint, memberID string) (*AttemptResponse, error) {
	attempt, err := s.repo.Attempt().GetActiveAttempt(ctx, testID, memberID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get current attempt: %w", err)
	}

	test, err := s.repo.Test().GetByIDWithQuestions(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	return s.buildAttemptResponse(attempt, test, true), nil
}

func (s *attemptService) GetAttemptCount(ctx context.Context, testID uint, memberID string) (int, error) {
	count, err := s.repo.Attempt().GetAttemptCount(ctx, testID, memberID)
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return int(count), nil
}

// ===== LIST OPERATIONS =====

func (s *attemptService) List(ctx context.Context, params models.ListAttemptsParams, userID string, isAdmin bool) ([]*models.Attempt, int64, error) {
	if !isAdmin {
		return nil, 0, NewPermissionError(userID, 0, "attempt", "list", "insufficient permissions")
	}

	attempts, total, err := s.repo.Attempt().List(ctx, toAttemptFilters(params))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}
	return attempts, total, nil
}

// ===== HELPERS =====

// checkPasswordGate verifies the test password. Admins skip it only when the
// test opts them out. Wrong password and missing password come back as
// distinct errors so the client can re-prompt.
func (s *attemptService) checkPasswordGate(test *models.Test, password *string, member *models.Member) error {
	if !test.HasPassword() {
		return nil
	}
	if member.IsAdmin() && test.AdminPasswordExempt {
		return nil
	}
	if password == nil || *password == "" {
		return ErrPasswordRequired
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*test.PasswordHash), []byte(*password)); err != nil {
		return ErrPasswordIncorrect
	}
	return nil
}

func (s *attemptService) buildAttemptResponse(attempt *models.Attempt, test *models.Test, resumed bool) *AttemptResponse {
	resp := &AttemptResponse{
		Attempt:   attempt,
		Resumed:   resumed,
		CanSubmit: attempt.IsActive(),
		Deadline:  test.Deadline(),
	}
	if attempt.IsActive() {
		resp.Questions = sanitizeQuestionsForTaking(test.Questions)
	}
	return resp
}

func toAttemptFilters(params models.ListAttemptsParams) repositories.AttemptFilters {
	filters := repositories.AttemptFilters{
		MemberID:  params.MemberID,
		TestID:    params.TestID,
		DateFrom:  params.DateFrom,
		DateTo:    params.DateTo,
		Limit:     params.Size,
		Offset:    params.Page * params.Size,
		SortBy:    params.SortBy,
		SortOrder: params.SortDir,
	}
	if params.Status != "" {
		status := params.Status
		filters.Status = &status
	}
	return filters
}
