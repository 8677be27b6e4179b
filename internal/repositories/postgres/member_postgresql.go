package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/cache"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/models"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/repositories"
)

// MemberPostgreSQL stores the local member projection. The identity provider
// owns the canonical record; rows here are refreshed from token claims.
type MemberPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewMemberPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.MemberRepository {
	return &MemberPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (m *MemberPostgreSQL) GetByID(ctx context.Context, id string) (*models.Member, error) {
	cacheKey := fmt.Sprintf("id:%s", id)
	var member models.Member

	err := m.cacheManager.Member.CacheOrExecute(ctx, cacheKey, &member, cache.FastCacheConfig.TTL, func() (interface{}, error) {
		var dbMember models.Member
		if err := m.db.WithContext(ctx).First(&dbMember, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, gorm.ErrRecordNotFound
			}
			return nil, fmt.Errorf("failed to get member: %w", err)
		}
		return &dbMember, nil
	})
	if err != nil {
		return nil, err
	}

	return &member, nil
}

func (m *MemberPostgreSQL) GetByIDs(ctx context.Context, ids []string) ([]*models.Member, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var members []*models.Member
	if err := m.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	return members, nil
}

func (m *MemberPostgreSQL) ExistsByID(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := m.db.WithContext(ctx).
		Model(&models.Member{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check member existence: %w", err)
	}
	return count > 0, nil
}

func (m *MemberPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, member *models.Member) error {
	db := m.getDB(tx)
	if err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"full_name", "email", "role", "updated_at"}),
		}).
		Create(member).Error; err != nil {
		return fmt.Errorf("failed to upsert member: %w", err)
	}

	cache.SafeDelete(ctx, m.cacheManager.Member, fmt.Sprintf("id:%s", member.ID))
	return nil
}

func (m *MemberPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return m.db
}
