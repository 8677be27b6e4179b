package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/cache"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/models"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/repositories"
)

type AttemptPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewAttemptPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Create(attempt).Error; err != nil {
		return fmt.Errorf("failed to create attempt: %w", err)
	}

	cache.InvalidateAttemptCache(ctx, a.cacheManager, attempt.ID, attempt.MemberID, attempt.TestID)
	return nil
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Attempt, error) {
	cacheKey := fmt.Sprintf("id:%d", id)
	var attempt models.Attempt

	err := a.cacheManager.Attempt.CacheOrExecute(ctx, cacheKey, &attempt, cache.AttemptCacheConfig.TTL, func() (interface{}, error) {
		var dbAttempt models.Attempt
		if err := a.db.WithContext(ctx).First(&dbAttempt, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, gorm.ErrRecordNotFound
			}
			return nil, fmt.Errorf("failed to get attempt: %w", err)
		}
		return &dbAttempt, nil
	})
	if err != nil {
		return nil, err
	}

	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByIDWithAnswers(ctx context.Context, id uint) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := a.db.WithContext(ctx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("answers.question_id ASC")
		}).
		First(&attempt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get attempt with answers: %w", err)
	}
	return &attempt, nil
}

// GetByIDForUpdate locks the attempt row for the remainder of the enclosing
// transaction. Concurrent writers to the same attempt serialize here.
func (a *AttemptPostgreSQL) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&attempt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to lock attempt: %w", err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) Update(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Save(attempt).Error; err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}

	cache.InvalidateAttemptCache(ctx, a.cacheManager, attempt.ID, attempt.MemberID, attempt.TestID)
	return nil
}

func (a *AttemptPostgreSQL) GetActiveAttempt(ctx context.Context, testID uint, memberID string) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := a.db.WithContext(ctx).
		Where("test_id = ? AND member_id = ? AND status = ?", testID, memberID, models.AttemptInProgress).
		First(&attempt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get active attempt: %w", err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetActiveAttemptForUpdate(ctx context.Context, tx *gorm.DB, testID uint, memberID string) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("test_id = ? AND member_id = ? AND status = ?", testID, memberID, models.AttemptInProgress).
		First(&attempt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to lock active attempt: %w", err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) HasActiveAttempt(ctx context.Context, testID uint, memberID string) (bool, error) {
	var count int64
	if err := a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("test_id = ? AND member_id = ? AND status = ?", testID, memberID, models.AttemptInProgress).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check active attempt: %w", err)
	}
	return count > 0, nil
}

func (a *AttemptPostgreSQL) List(ctx context.Context, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	var attempts []*models.Attempt
	var total int64

	query := a.db.WithContext(ctx).Model(&models.Attempt{})
	query = a.helpers.ApplyAttemptFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count attempts: %w", err)
	}

	query = a.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Preload("Member").Find(&attempts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}

	return attempts, total, nil
}

func (a *AttemptPostgreSQL) GetByMemberAndTest(ctx context.Context, testID uint, memberID string) ([]*models.Attempt, error) {
	var attempts []*models.Attempt
	if err := a.db.WithContext(ctx).
		Where("test_id = ? AND member_id = ?", testID, memberID).
		Order("started_at DESC").
		Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to get attempts by member and test: %w", err)
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) GetAttemptCount(ctx context.Context, testID uint, memberID string) (int64, error) {
	return a.helpers.CountAttemptsByMember(ctx, testID, memberID)
}

func (a *AttemptPostgreSQL) MarkSubmitted(ctx context.Context, tx *gorm.DB, id uint, submittedAt time.Time) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.AttemptSubmitted,
			"submitted_at": submittedAt,
		}).Error; err != nil {
		return fmt.Errorf("failed to mark attempt submitted: %w", err)
	}

	cache.SafeDelete(ctx, a.cacheManager.Attempt, fmt.Sprintf("id:%d", id), fmt.Sprintf("details:%d", id))
	return nil
}

func (a *AttemptPostgreSQL) UpdateGrade(ctx context.Context, tx *gorm.DB, id uint, gradeEarned float64) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ?", id).
		Update("grade_earned", gradeEarned).Error; err != nil {
		return fmt.Errorf("failed to update attempt grade: %w", err)
	}

	cache.SafeDelete(ctx, a.cacheManager.Attempt, fmt.Sprintf("id:%d", id), fmt.Sprintf("details:%d", id))
	return nil
}

// RaiseTelemetry folds client-reported cumulative counters into the row.
// GREATEST keeps each stored counter monotonic even when reports arrive out
// of order or repeat after a retry.
func (a *AttemptPostgreSQL) RaiseTelemetry(ctx context.Context, tx *gorm.DB, id uint, totals repositories.TelemetryTotals) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"tab_switch_count":      gorm.Expr("GREATEST(tab_switch_count, ?)", totals.TabSwitchCount),
			"time_off_page_seconds": gorm.Expr("GREATEST(time_off_page_seconds, ?)", totals.TimeOffPageSeconds),
		}).Error; err != nil {
		return fmt.Errorf("failed to raise telemetry counters: %w", err)
	}

	cache.SafeDelete(ctx, a.cacheManager.Attempt, fmt.Sprintf("id:%d", id), fmt.Sprintf("details:%d", id))
	return nil
}

func (a *AttemptPostgreSQL) GetTestAttemptStats(ctx context.Context, testID uint) (*repositories.AttemptStats, error) {
	cacheKey := fmt.Sprintf("test:%d:attempts", testID)
	var stats repositories.AttemptStats

	err := a.cacheManager.Stats.CacheOrExecute(ctx, cacheKey, &stats, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		totalAttempts, err := a.helpers.CountAttempts(ctx, testID)
		if err != nil {
			return nil, err
		}

		submitted, err := a.helpers.CountAttemptsByStatus(ctx, testID, models.AttemptSubmitted)
		if err != nil {
			return nil, err
		}

		inProgress, err := a.helpers.CountAttemptsByStatus(ctx, testID, models.AttemptInProgress)
		if err != nil {
			return nil, err
		}

		var avgScore, avgTabSwitch float64
		row := a.db.WithContext(ctx).
			Model(&models.Attempt{}).
			Where("test_id = ? AND status = ?", testID, models.AttemptSubmitted).
			Select("COALESCE(AVG(grade_earned), 0), COALESCE(AVG(tab_switch_count), 0)").
			Row()
		if err := row.Scan(&avgScore, &avgTabSwitch); err != nil {
			return nil, fmt.Errorf("failed to aggregate attempt stats: %w", err)
		}

		return &repositories.AttemptStats{
			TotalAttempts:     int(totalAttempts),
			SubmittedAttempts: int(submitted),
			InProgress:        int(inProgress),
			AverageScore:      avgScore,
			AverageTabSwitch:  avgTabSwitch,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (a *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

// ===== ANSWER REPOSITORY IMPLEMENTATION =====

// AnswerPostgreSQL implements the AnswerRepository interface
type AnswerPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

// NewAnswerPostgreSQL creates a new answer repository instance
func NewAnswerPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AnswerRepository {
	return &AnswerPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// Upsert creates or replaces the answer for (attempt, question). Saving the
// same question twice keeps a single row; the newer payload wins.
func (ar *AnswerPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, answer *models.Answer) error {
	existing, err := ar.GetByAttemptAndQuestion(ctx, answer.AttemptID, answer.QuestionID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check existing answer: %w", err)
	}

	db := ar.getDB(tx)
	if existing != nil {
		answer.ID = existing.ID
		answer.CreatedAt = existing.CreatedAt
		if err := db.WithContext(ctx).Save(answer).Error; err != nil {
			return fmt.Errorf("failed to update answer: %w", err)
		}
	} else {
		if err := db.WithContext(ctx).Create(answer).Error; err != nil {
			return fmt.Errorf("failed to create answer: %w", err)
		}
	}

	ar.invalidateAnswerCaches(ctx, answer.AttemptID, answer.QuestionID, answer.ID)
	return nil
}

func (ar *AnswerPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Answer, error) {
	cacheKey := fmt.Sprintf("answer:id:%d", id)
	var answer models.Answer

	err := ar.cacheManager.Fast.CacheOrExecute(ctx, cacheKey, &answer, cache.FastCacheConfig.TTL, func() (interface{}, error) {
		var dbAnswer models.Answer
		if err := ar.db.WithContext(ctx).First(&dbAnswer, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, gorm.ErrRecordNotFound
			}
			return nil, fmt.Errorf("failed to get answer: %w", err)
		}
		return &dbAnswer, nil
	})
	if err != nil {
		return nil, err
	}

	return &answer, nil
}

func (ar *AnswerPostgreSQL) GetByAttempt(ctx context.Context, attemptID uint) ([]*models.Answer, error) {
	var answers []*models.Answer
	if err := ar.db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("question_id ASC").
		Find(&answers).Error; err != nil {
		return nil, fmt.Errorf("failed to get answers by attempt: %w", err)
	}
	return answers, nil
}

func (ar *AnswerPostgreSQL) GetByAttemptAndQuestion(ctx context.Context, attemptID, questionID uint) (*models.Answer, error) {
	var answer models.Answer
	if err := ar.db.WithContext(ctx).
		Where("attempt_id = ? AND question_id = ?", attemptID, questionID).
		First(&answer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get answer: %w", err)
	}
	return &answer, nil
}

// UpdateGrade records a manual grade for an answer
func (ar *AnswerPostgreSQL) UpdateGrade(ctx context.Context, tx *gorm.DB, grade repositories.AnswerGrade) error {
	db := ar.getDB(tx)
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"points_awarded": grade.Points,
		"graded_at":      &now,
	}
	// Auto-graded answers keep a NULL grader
	if grade.GraderID != "" {
		updates["graded_by"] = grade.GraderID
	}
	if grade.Note != nil {
		updates["grader_note"] = *grade.Note
	}

	if err := db.WithContext(ctx).
		Model(&models.Answer{}).
		Where("id = ?", grade.ID).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update grade: %w", err)
	}

	cache.SafeDelete(ctx, ar.cacheManager.Fast, fmt.Sprintf("answer:id:%d", grade.ID))
	return nil
}

func (ar *AnswerPostgreSQL) AreAllAnswersGraded(ctx context.Context, attemptID uint) (bool, error) {
	var allGraded bool
	err := ar.db.WithContext(ctx).
		Model(&models.Answer{}).
		Select("COALESCE(bool_and(graded_at IS NOT NULL), true)").
		Where("attempt_id = ?", attemptID).
		Scan(&allGraded).Error
	if err != nil {
		return false, fmt.Errorf("failed to check if all answers are graded: %w", err)
	}
	return allGraded, nil
}

func (ar *AnswerPostgreSQL) GetGradingStats(ctx context.Context, attemptID uint) (*repositories.GradingStats, error) {
	stats := &repositories.GradingStats{}

	var total, graded int64
	if err := ar.db.WithContext(ctx).
		Model(&models.Answer{}).
		Where("attempt_id = ?", attemptID).
		Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count answers: %w", err)
	}

	if err := ar.db.WithContext(ctx).
		Model(&models.Answer{}).
		Where("attempt_id = ? AND graded_at IS NOT NULL", attemptID).
		Count(&graded).Error; err != nil {
		return nil, fmt.Errorf("failed to count graded answers: %w", err)
	}

	stats.TotalAnswers = int(total)
	stats.GradedAnswers = int(graded)
	stats.PendingAnswers = int(total - graded)
	return stats, nil
}

func (ar *AnswerPostgreSQL) invalidateAnswerCaches(ctx context.Context, attemptID, questionID, answerID uint) {
	cache.SafeDelete(ctx, ar.cacheManager.Fast,
		fmt.Sprintf("answer:id:%d", answerID),
		fmt.Sprintf("attempt:%d:answers", attemptID),
		fmt.Sprintf("attempt:%d:question:%d", attemptID, questionID),
	)
	cache.SafeDelete(ctx, ar.cacheManager.Attempt,
		fmt.Sprintf("id:%d", attemptID),
		fmt.Sprintf("details:%d", attemptID),
	)
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (ar *AnswerPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return ar.db
}

// ===== PROCTOR EVENT REPOSITORY IMPLEMENTATION =====

// ProctorEventPostgreSQL implements the append-only proctor event log. Events
// are never updated or deleted once written.
type ProctorEventPostgreSQL struct {
	db *gorm.DB
}

func NewProctorEventPostgreSQL(db *gorm.DB) repositories.ProctorEventRepository {
	return &ProctorEventPostgreSQL{db: db}
}

func (p *ProctorEventPostgreSQL) Append(ctx context.Context, tx *gorm.DB, event *models.ProctorEvent) error {
	db := p.getDB(tx)
	if err := db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to append proctor event: %w", err)
	}
	return nil
}

func (p *ProctorEventPostgreSQL) GetByAttempt(ctx context.Context, attemptID uint) ([]*models.ProctorEvent, error) {
	var events []*models.ProctorEvent
	if err := p.db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("occurred_at ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to get proctor events: %w", err)
	}
	return events, nil
}

func (p *ProctorEventPostgreSQL) CountByAttempt(ctx context.Context, attemptID uint) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Model(&models.ProctorEvent{}).
		Where("attempt_id = ?", attemptID).
		Count(&count).Error
	return count, err
}

func (p *ProctorEventPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return p.db
}
