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

type testService struct {
	repo              repositories.Repository
	db                *gorm.DB
	logger            *slog.Logger
	validator         *validator.Validator
	businessValidator *validator.BusinessValidator
	events            NotificationEventService
}

func NewTestService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator, events NotificationEventService) TestService {
	return &testService{
		repo:              repo,
		db:                db,
		logger:            logger,
		validator:         v,
		businessValidator: validator.NewBusinessValidator(),
		events:            events,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *testService) Create(ctx context.Context, req *CreateTestRequest, creatorID string) (*TestResponse, error) {
	s.logger.Info("Creating test", "title", req.Title, "creator_id", creatorID)

	if errs := s.businessValidator.ValidateTestCreate(req); len(errs) > 0 {
		return nil, fmt.Errorf("validation failed: %w", errs)
	}

	test := &models.Test{
		Title:               req.Title,
		Description:         req.Description,
		DurationMinutes:     req.DurationMinutes,
		Status:              models.StatusDraft,
		StartAt:             req.StartAt,
		EndAt:               req.EndAt,
		AllowLateUntil:      req.AllowLateUntil,
		MaxAttempts:         req.MaxAttempts,
		RequireFullscreen:   req.RequireFullscreen,
		AdminPasswordExempt: req.AdminPasswordExempt,
		ScoreReleaseMode:    req.ScoreReleaseMode,
		ReleaseScoresAt:     req.ReleaseScoresAt,
		CreatedBy:           creatorID,
	}
	if test.ScoreReleaseMode == "" {
		test.ScoreReleaseMode = models.ReleaseNone
	}

	if req.Password != nil && *req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash test password: %w", err)
		}
		hashStr := string(hash)
		test.PasswordHash = &hashStr
	}

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Test().Create(ctx, nil, test); err != nil {
			return fmt.Errorf("failed to create test: %w", err)
		}

		if len(req.Questions) == 0 {
			return nil
		}

		questions := make([]*models.Question, 0, len(req.Questions))
		for i, qr := range req.Questions {
			question := &models.Question{
				TestID:      test.ID,
				Type:        qr.Type,
				Text:        qr.Text,
				Points:      qr.Points,
				Order:       qr.Order,
				Explanation: qr.Explanation,
			}
			if question.Order == 0 {
				question.Order = i
			}
			for _, or := range qr.Options {
				question.Options = append(question.Options, models.QuestionOption{
					Text:      or.Text,
					Order:     or.Order,
					IsCorrect: or.IsCorrect,
				})
			}
			questions = append(questions, question)
		}

		if err := txRepo.Question().CreateBatch(ctx, nil, questions); err != nil {
			return fmt.Errorf("failed to create questions: %w", err)
		}

		// Numeric keys live apart from the question rows
		for i, qr := range req.Questions {
			if qr.Type == models.Numeric && qr.Expected != nil {
				key := &models.NumericAnswerKey{
					QuestionID: questions[i].ID,
					Expected:   *qr.Expected,
				}
				if err := txRepo.Question().SetNumericKey(ctx, nil, key); err != nil {
					return fmt.Errorf("failed to set numeric key: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Test created", "test_id", test.ID, "creator_id", creatorID)
	return s.GetByIDWithQuestions(ctx, test.ID, creatorID)
}

func (s *testService) GetByID(ctx context.Context, id uint, userID string) (*TestResponse, error) {
	test, err := s.repo.Test().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	return s.buildTestResponse(test, userID), nil
}

func (s *testService) GetByIDWithQuestions(ctx context.Context, id uint, userID string) (*TestResponse, error) {
	test, err := s.repo.Test().GetByIDWithQuestions(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test with questions: %w", err)
	}

	test.QuestionsCount = len(test.Questions)
	for _, q := range test.Questions {
		test.TotalPoints += q.Points
	}

	return s.buildTestResponse(test, userID), nil
}

func (s *testService) Update(ctx context.Context, id uint, req *UpdateTestRequest, userID string) (*TestResponse, error) {
	if errs := s.validator.Struct(req); errs != nil {
		return nil, fmt.Errorf("validation failed: %w", errs)
	}

	test, err := s.repo.Test().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	if test.CreatedBy != userID {
		return nil, NewPermissionError(userID, id, "test", "update", "not owner")
	}

	applyTestUpdate(test, req)

	if req.Password != nil && *req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash test password: %w", err)
		}
		hashStr := string(hash)
		test.PasswordHash = &hashStr
	}

	if err := s.repo.Test().Update(ctx, nil, test); err != nil {
		return nil, fmt.Errorf("failed to update test: %w", err)
	}

	s.logger.Info("Test updated", "test_id", id, "user_id", userID)
	return s.buildTestResponse(test, userID), nil
}

func (s *testService) Delete(ctx context.Context, id uint, userID string) error {
	test, err := s.repo.Test().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrTestNotFound
		}
		return fmt.Errorf("failed to get test: %w", err)
	}

	if test.CreatedBy != userID {
		return NewPermissionError(userID, id, "test", "delete", "not owner")
	}
	if test.Status != models.StatusDraft {
		return NewBusinessRuleError("TEST_NOT_DRAFT", "only draft tests can be deleted", nil)
	}

	if err := s.repo.Test().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete test: %w", err)
	}

	s.logger.Info("Test deleted", "test_id", id, "user_id", userID)
	return nil
}

// ===== LIST =====

// List returns test summaries bucketed per the calling member: scheduled,
// opened, or completed. Drafts never show up for non-creators.
func (s *testService) List(ctx context.Context, params models.ListTestsParams, memberID string) (*TestListResponse, error) {
	filters := repositories.TestFilters{
		Search:    params.Search,
		Limit:     params.Size,
		Offset:    params.Page * params.Size,
		SortBy:    params.SortBy,
		SortOrder: params.SortDir,
	}
	if params.Status != "" {
		status := params.Status
		filters.Status = &status
	} else {
		published := models.StatusPublished
		filters.Status = &published
	}

	tests, total, err := s.repo.Test().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}

	now := time.Now().UTC()
	summaries := make([]*models.TestSummary, 0, len(tests))
	for _, test := range tests {
		attemptsUsed, err := s.repo.Attempt().GetAttemptCount(ctx, test.ID, memberID)
		if err != nil {
			return nil, fmt.Errorf("failed to count attempts for test %d: %w", test.ID, err)
		}
		hasActive, err := s.repo.Attempt().HasActiveAttempt(ctx, test.ID, memberID)
		if err != nil {
			return nil, fmt.Errorf("failed to check active attempt for test %d: %w", test.ID, err)
		}
		questionCount, err := s.repo.Test().CountQuestions(ctx, test.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count questions for test %d: %w", test.ID, err)
		}

		summaries = append(summaries, &models.TestSummary{
			ID:               test.ID,
			Title:            test.Title,
			DurationMinutes:  test.DurationMinutes,
			Status:           test.Status,
			StartAt:          test.StartAt,
			EndAt:            test.EndAt,
			AllowLateUntil:   test.AllowLateUntil,
			MaxAttempts:      test.MaxAttempts,
			HasPassword:      test.HasPassword(),
			QuestionsCount:   int(questionCount),
			Bucket:           BucketFor(test, int(attemptsUsed), now),
			AttemptsUsed:     int(attemptsUsed),
			HasActiveAttempt: hasActive,
		})
	}

	return &TestListResponse{
		Tests: summaries,
		Total: total,
		Page:  params.Page,
		Size:  params.Size,
	}, nil
}

// ===== STATUS MANAGEMENT =====

func (s *testService) ChangeStatus(ctx context.Context, id uint, req *models.ChangeTestStatusRequest, userID string) (*models.TestStatusChangeResponse, error) {
	if errs := s.validator.Struct(req); errs != nil {
		return nil, fmt.Errorf("validation failed: %w", errs)
	}

	test, err := s.repo.Test().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	if test.CreatedBy != userID {
		return nil, NewPermissionError(userID, id, "test", "change_status", "not owner")
	}

	questionCount, err := s.repo.Test().CountQuestions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count questions: %w", err)
	}

	if errs := s.businessValidator.ValidateStatusTransition(test.Status, req.Status, int(questionCount)); len(errs) > 0 {
		return nil, fmt.Errorf("invalid status transition: %w", errs)
	}

	oldStatus := test.Status
	if err := s.repo.Test().UpdateStatus(ctx, nil, id, req.Status); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}

	s.events.NotifyTestStatusChanged(ctx, id, oldStatus, req.Status, userID)

	s.logger.Info("Test status changed",
		"test_id", id,
		"old_status", oldStatus,
		"new_status", req.Status,
		"user_id", userID)

	return &models.TestStatusChangeResponse{
		OldStatus: oldStatus,
		NewStatus: req.Status,
		ChangedAt: time.Now().UTC(),
		ChangedBy: userID,
		Reason:    req.Reason,
	}, nil
}

func (s *testService) Publish(ctx context.Context, id uint, userID string) error {
	_, err := s.ChangeStatus(ctx, id, &models.ChangeTestStatusRequest{Status: models.StatusPublished}, userID)
	return err
}

func (s *testService) Archive(ctx context.Context, id uint, userID string) error {
	_, err := s.ChangeStatus(ctx, id, &models.ChangeTestStatusRequest{Status: models.StatusArchived}, userID)
	return err
}

// ===== STATISTICS =====

func (s *testService) GetStats(ctx context.Context, id uint, userID string) (*models.TestStats, error) {
	test, err := s.repo.Test().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	if test.CreatedBy != userID {
		return nil, NewPermissionError(userID, id, "test", "view_stats", "not owner")
	}

	stats, err := s.repo.Attempt().GetTestAttemptStats(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt stats: %w", err)
	}

	return &models.TestStats{
		TotalAttempts:     stats.TotalAttempts,
		SubmittedAttempts: stats.SubmittedAttempts,
		InProgress:        stats.InProgress,
		AverageScore:      stats.AverageScore,
		AverageTabSwitch:  stats.AverageTabSwitch,
	}, nil
}

// ===== HELPERS =====

func (s *testService) buildTestResponse(test *models.Test, userID string) *TestResponse {
	isOwner := test.CreatedBy == userID
	if !isOwner {
		sanitizeTestForMember(test)
	}
	return &TestResponse{
		Test:       test,
		CanEdit:    isOwner && test.Status == models.StatusDraft,
		CanPublish: isOwner && test.Status == models.StatusDraft,
		CanTake:    IsTestAvailable(test, time.Now().UTC()),
	}
}

// sanitizeTestForMember strips grading material from a test a non-owner is
// looking at.
func sanitizeTestForMember(test *models.Test) {
	for i := range test.Questions {
		test.Questions[i].Explanation = nil
		for j := range test.Questions[i].Options {
			test.Questions[i].Options[j].IsCorrect = false
		}
	}
}

func applyTestUpdate(test *models.Test, req *UpdateTestRequest) {
	if req.Title != nil {
		test.Title = *req.Title
	}
	if req.Description != nil {
		test.Description = req.Description
	}
	if req.DurationMinutes != nil {
		test.DurationMinutes = *req.DurationMinutes
	}
	if req.StartAt != nil {
		test.StartAt = req.StartAt
	}
	if req.EndAt != nil {
		test.EndAt = req.EndAt
	}
	if req.AllowLateUntil != nil {
		test.AllowLateUntil = req.AllowLateUntil
	}
	if req.MaxAttempts != nil {
		test.MaxAttempts = req.MaxAttempts
	}
	if req.ScoreReleaseMode != nil {
		test.ScoreReleaseMode = *req.ScoreReleaseMode
	}
	if req.ReleaseScoresAt != nil {
		test.ReleaseScoresAt = req.ReleaseScoresAt
	}
}
