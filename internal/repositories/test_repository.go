package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/models"
)

// TestRepository covers CRUD and status management for tests.
type TestRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, test *models.Test) error
	GetByID(ctx context.Context, id uint) (*models.Test, error)
	// GetByIDWithQuestions loads the test together with its questions and
	// options in a single consistent snapshot, ordered by question order.
	GetByIDWithQuestions(ctx context.Context, id uint) (*models.Test, error)
	Update(ctx context.Context, tx *gorm.DB, test *models.Test) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.TestStatus) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// List and search operations
	List(ctx context.Context, filters TestFilters) ([]*models.Test, int64, error)
	GetByCreator(ctx context.Context, creatorID string, filters TestFilters) ([]*models.Test, int64, error)

	// Validation and checks
	ExistsByID(ctx context.Context, id uint) (bool, error)
	CountQuestions(ctx context.Context, testID uint) (int64, error)
}

// QuestionRepository covers question and answer-key access for a test.
type QuestionRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Question, error)
	// GetByTest returns the test's questions with options, ordered by the
	// authored question order.
	GetByTest(ctx context.Context, testID uint) ([]*models.Question, error)
	CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error
	Update(ctx context.Context, tx *gorm.DB, question *models.Question) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// Numeric answer keys are stored apart from the question so they never
	// leak through question serialization.
	GetNumericKey(ctx context.Context, questionID uint) (*models.NumericAnswerKey, error)
	GetNumericKeysByTest(ctx context.Context, testID uint) (map[uint]float64, error)
	SetNumericKey(ctx context.Context, tx *gorm.DB, key *models.NumericAnswerKey) error
}
