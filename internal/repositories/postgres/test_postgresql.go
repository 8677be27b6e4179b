package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/cache"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/models"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/repositories"
)

type TestPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewTestPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.TestRepository {
	return &TestPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (t *TestPostgreSQL) Create(ctx context.Context, tx *gorm.DB, test *models.Test) error {
	db := t.getDB(tx)
	if err := db.WithContext(ctx).Create(test).Error; err != nil {
		return fmt.Errorf("failed to create test: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, t.cacheManager.Test, "list:*")
	return nil
}

func (t *TestPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Test, error) {
	cacheKey := fmt.Sprintf("id:%d", id)
	var test models.Test

	err := t.cacheManager.Test.CacheOrExecute(ctx, cacheKey, &test, cache.TestCacheConfig.TTL, func() (interface{}, error) {
		var dbTest models.Test
		if err := t.db.WithContext(ctx).First(&dbTest, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, gorm.ErrRecordNotFound
			}
			return nil, fmt.Errorf("failed to get test: %w", err)
		}
		return &dbTest, nil
	})
	if err != nil {
		return nil, err
	}

	return &test, nil
}

// GetByIDWithQuestions loads the full test definition. Questions and options
// come back in authored order so graders and takers see a stable layout.
func (t *TestPostgreSQL) GetByIDWithQuestions(ctx context.Context, id uint) (*models.Test, error) {
	cacheKey := fmt.Sprintf("details:%d", id)
	var test models.Test

	err := t.cacheManager.Test.CacheOrExecute(ctx, cacheKey, &test, cache.TestCacheConfig.TTL, func() (interface{}, error) {
		var dbTest models.Test
		if err := t.db.WithContext(ctx).
			Preload("Questions", func(db *gorm.DB) *gorm.DB {
				return db.Order("questions.\"order\" ASC, questions.id ASC")
			}).
			Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
				return db.Order("question_options.\"order\" ASC, question_options.id ASC")
			}).
			First(&dbTest, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, gorm.ErrRecordNotFound
			}
			return nil, fmt.Errorf("failed to get test with questions: %w", err)
		}
		return &dbTest, nil
	})
	if err != nil {
		return nil, err
	}

	return &test, nil
}

func (t *TestPostgreSQL) Update(ctx context.Context, tx *gorm.DB, test *models.Test) error {
	db := t.getDB(tx)
	if err := db.WithContext(ctx).Save(test).Error; err != nil {
		return fmt.Errorf("failed to update test: %w", err)
	}

	cache.InvalidateTestCache(ctx, t.cacheManager, test.ID)
	return nil
}

func (t *TestPostgreSQL) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.TestStatus) error {
	db := t.getDB(tx)
	if err := db.WithContext(ctx).
		Model(&models.Test{}).
		Where("id = ?", id).
		Update("status", status).Error; err != nil {
		return fmt.Errorf("failed to update test status: %w", err)
	}

	cache.InvalidateTestCache(ctx, t.cacheManager, id)
	return nil
}

func (t *TestPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := t.getDB(tx)
	if err := db.WithContext(ctx).Delete(&models.Test{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete test: %w", err)
	}

	cache.InvalidateTestCache(ctx, t.cacheManager, id)
	return nil
}

func (t *TestPostgreSQL) List(ctx context.Context, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	var tests []*models.Test
	var total int64

	query := t.db.WithContext(ctx).Model(&models.Test{})
	query = t.helpers.ApplyTestFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tests: %w", err)
	}

	query = t.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Find(&tests).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list tests: %w", err)
	}

	return tests, total, nil
}

func (t *TestPostgreSQL) GetByCreator(ctx context.Context, creatorID string, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	filters.CreatedBy = &creatorID
	return t.List(ctx, filters)
}

func (t *TestPostgreSQL) ExistsByID(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := t.db.WithContext(ctx).
		Model(&models.Test{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check test existence: %w", err)
	}
	return count > 0, nil
}

func (t *TestPostgreSQL) CountQuestions(ctx context.Context, testID uint) (int64, error) {
	var count int64
	err := t.db.WithContext(ctx).
		Model(&models.Question{}).
		Where("test_id = ?", testID).
		Count(&count).Error
	return count, err
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (t *TestPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return t.db
}

// ===== QUESTION REPOSITORY IMPLEMENTATION =====

type QuestionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewQuestionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (q *QuestionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	var question models.Question
	if err := q.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_options.\"order\" ASC, question_options.id ASC")
		}).
		First(&question, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return &question, nil
}

func (q *QuestionPostgreSQL) GetByTest(ctx context.Context, testID uint) ([]*models.Question, error) {
	var questions []*models.Question
	if err := q.db.WithContext(ctx).
		Where("test_id = ?", testID).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_options.\"order\" ASC, question_options.id ASC")
		}).
		Order("\"order\" ASC, id ASC").
		Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to get questions by test: %w", err)
	}
	return questions, nil
}

func (q *QuestionPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error {
	if len(questions) == 0 {
		return nil
	}

	db := q.getDB(tx)
	if err := db.WithContext(ctx).CreateInBatches(questions, 100).Error; err != nil {
		return fmt.Errorf("failed to create questions batch: %w", err)
	}

	cache.InvalidateTestCache(ctx, q.cacheManager, questions[0].TestID)
	return nil
}

func (q *QuestionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	db := q.getDB(tx)
	if err := db.WithContext(ctx).Save(question).Error; err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}

	cache.InvalidateTestCache(ctx, q.cacheManager, question.TestID)
	return nil
}

func (q *QuestionPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	question, err := q.GetByID(ctx, id)
	if err != nil {
		return err
	}

	db := q.getDB(tx)
	if err := db.WithContext(ctx).Delete(&models.Question{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}

	cache.InvalidateTestCache(ctx, q.cacheManager, question.TestID)
	return nil
}

func (q *QuestionPostgreSQL) GetNumericKey(ctx context.Context, questionID uint) (*models.NumericAnswerKey, error) {
	var key models.NumericAnswerKey
	if err := q.db.WithContext(ctx).
		Where("question_id = ?", questionID).
		First(&key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get numeric answer key: %w", err)
	}
	return &key, nil
}

func (q *QuestionPostgreSQL) GetNumericKeysByTest(ctx context.Context, testID uint) (map[uint]float64, error) {
	var keys []models.NumericAnswerKey
	if err := q.db.WithContext(ctx).
		Joins("JOIN questions ON questions.id = numeric_answer_keys.question_id").
		Where("questions.test_id = ?", testID).
		Find(&keys).Error; err != nil {
		return nil, fmt.Errorf("failed to get numeric answer keys: %w", err)
	}

	expected := make(map[uint]float64, len(keys))
	for _, key := range keys {
		expected[key.QuestionID] = key.Expected
	}
	return expected, nil
}

func (q *QuestionPostgreSQL) SetNumericKey(ctx context.Context, tx *gorm.DB, key *models.NumericAnswerKey) error {
	db := q.getDB(tx)
	if err := db.WithContext(ctx).Save(key).Error; err != nil {
		return fmt.Errorf("failed to set numeric answer key: %w", err)
	}
	return nil
}

func (q *QuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return q.db
}
