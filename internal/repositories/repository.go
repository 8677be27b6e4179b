package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Repository aggregates all sub-repositories behind one handle so services
// can run multi-table operations through WithTransaction.
type Repository interface {
	// Test domain
	Test() TestRepository
	Question() QuestionRepository

	// Attempt domain
	Attempt() AttemptRepository
	Answer() AnswerRepository
	ProctorEvent() ProctorEventRepository

	// Member domain
	Member() MemberRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// IsNotFoundError reports whether err is the storage layer's not-found error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with database connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
