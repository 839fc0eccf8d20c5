package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/types"
)

type SceneRepo interface {
	ReplaceForMedia(ctx context.Context, tx *gorm.DB, mediaID uuid.UUID, scenes []*types.Scene) error
	ListByMedia(ctx context.Context, tx *gorm.DB, mediaID uuid.UUID) ([]*types.Scene, error)
	CountByMedia(ctx context.Context, tx *gorm.DB, mediaID uuid.UUID) (int64, error)
}

type sceneRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSceneRepo(db *gorm.DB, baseLog *logger.Logger) SceneRepo {
	return &sceneRepo{db: db, log: baseLog.With("repo", "SceneRepo")}
}

func (r *sceneRepo) ReplaceForMedia(ctx context.Context, tx *gorm.DB, mediaID uuid.UUID, scenes []*types.Scene) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if mediaID == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Unscoped().Where("media_id = ?", mediaID).Delete(&types.Scene{}).Error; err != nil {
			return err
		}
		if len(scenes) == 0 {
			return nil
		}
		return txx.Create(&scenes).Error
	})
}

func (r *sceneRepo) ListByMedia(ctx context.Context, tx *gorm.DB, mediaID uuid.UUID) ([]*types.Scene, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Scene
	if mediaID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("media_id = ?", mediaID).
		Order("scene_index ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sceneRepo) CountByMedia(ctx context.Context, tx *gorm.DB, mediaID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if mediaID == uuid.Nil {
		return 0, nil
	}
	var n int64
	if err := transaction.WithContext(ctx).
		Model(&types.Scene{}).
		Where("media_id = ?", mediaID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
