package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/models"
)

// AttemptRepository covers the attempt lifecycle and its telemetry counters.
type AttemptRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error
	GetByID(ctx context.Context, id uint) (*models.Attempt, error)
	GetByIDWithAnswers(ctx context.Context, id uint) (*models.Attempt, error)
	// GetByIDForUpdate takes a row lock on the attempt. Must run inside a
	// transaction; callers go through Repository.WithTransaction.
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error)
	Update(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error

	// Active attempt lookups
	GetActiveAttempt(ctx context.Context, testID uint, memberID string) (*models.Attempt, error)
	GetActiveAttemptForUpdate(ctx context.Context, tx *gorm.DB, testID uint, memberID string) (*models.Attempt, error)
	HasActiveAttempt(ctx context.Context, testID uint, memberID string) (bool, error)

	// List and count operations
	List(ctx context.Context, filters AttemptFilters) ([]*models.Attempt, int64, error)
	GetByMemberAndTest(ctx context.Context, testID uint, memberID string) ([]*models.Attempt, error)
	GetAttemptCount(ctx context.Context, testID uint, memberID string) (int64, error)

	// State transitions
	MarkSubmitted(ctx context.Context, tx *gorm.DB, id uint, submittedAt time.Time) error
	UpdateGrade(ctx context.Context, tx *gorm.DB, id uint, gradeEarned float64) error

	// RaiseTelemetry reconciles client-reported cumulative counters with the
	// stored ones. Each counter only ever moves up, never down.
	RaiseTelemetry(ctx context.Context, tx *gorm.DB, id uint, totals TelemetryTotals) error

	// Statistics
	GetTestAttemptStats(ctx context.Context, testID uint) (*AttemptStats, error)
}

// AnswerRepository covers per-question answer storage and grading.
type AnswerRepository interface {
	// Upsert creates or replaces the answer for (attempt, question). The
	// unique index on that pair makes repeated saves idempotent.
	Upsert(ctx context.Context, tx *gorm.DB, answer *models.Answer) error
	GetByID(ctx context.Context, id uint) (*models.Answer, error)
	GetByAttempt(ctx context.Context, attemptID uint) ([]*models.Answer, error)
	GetByAttemptAndQuestion(ctx context.Context, attemptID, questionID uint) (*models.Answer, error)

	// Grading
	UpdateGrade(ctx context.Context, tx *gorm.DB, grade AnswerGrade) error
	AreAllAnswersGraded(ctx context.Context, attemptID uint) (bool, error)
	GetGradingStats(ctx context.Context, attemptID uint) (*GradingStats, error)
}

// ProctorEventRepository is an append-only log of proctoring events.
type ProctorEventRepository interface {
	Append(ctx context.Context, tx *gorm.DB, event *models.ProctorEvent) error
	GetByAttempt(ctx context.Context, attemptID uint) ([]*models.ProctorEvent, error)
	CountByAttempt(ctx context.Context, attemptID uint) (int64, error)
}
