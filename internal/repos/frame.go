package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/types"
)

type FrameRepo interface {
	ReplaceForMedia(ctx context.Context, tx *gorm.DB, mediaID uuid.UUID, frames []*types.Frame) error
	ListByMedia(ctx context.Context, tx *gorm.DB, mediaID uuid.UUID) ([]*types.Frame, error)
	CountByMedia(ctx context.Context, tx *gorm.DB, mediaID uuid.UUID) (int64, error)
}

type frameRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFrameRepo(db *gorm.DB, baseLog *logger.Logger) FrameRepo {
	return &frameRepo{db: db, log: baseLog.With("repo", "FrameRepo")}
}

// ReplaceForMedia swaps the media's frame set atomically so a re-run never
// leaves a partial mix of old and new descriptions.
func (r *frameRepo) ReplaceForMedia(ctx context.Context, tx *gorm.DB, mediaID uuid.UUID, frames []*types.Frame) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if mediaID == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Unscoped().Where("media_id = ?", mediaID).Delete(&types.Frame{}).Error; err != nil {
			return err
		}
		if len(frames) == 0 {
			return nil
		}
		return txx.Create(&frames).Error
	})
}

func (r *frameRepo) ListByMedia(ctx context.Context, tx *gorm.DB, mediaID uuid.UUID) ([]*types.Frame, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Frame
	if mediaID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("media_id = ?", mediaID).
		Order("t ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *frameRepo) CountByMedia(ctx context.Context, tx *gorm.DB, mediaID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if mediaID == uuid.Nil {
		return 0, nil
	}
	var n int64
	if err := transaction.WithContext(ctx).
		Model(&types.Frame{}).
		Where("media_id = ?", mediaID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
