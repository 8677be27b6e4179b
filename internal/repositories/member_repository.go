package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/models"
)

// MemberRepository is a thin read-mostly view of members. Identity lives in
// an external service; we only keep the projection needed for display and
// role checks.
type MemberRepository interface {
	GetByID(ctx context.Context, id string) (*models.Member, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.Member, error)
	ExistsByID(ctx context.Context, id string) (bool, error)

	// Upsert refreshes the local projection from token claims on login.
	Upsert(ctx context.Context, tx *gorm.DB, member *models.Member) error
}
