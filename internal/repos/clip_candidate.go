package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/types"
)

type ClipCandidateRepo interface {
	ReplaceForMedia(ctx context.Context, tx *gorm.DB, mediaID uuid.UUID, candidates []*types.ClipCandidate) error
	ListByMedia(ctx context.Context, tx *gorm.DB, mediaID uuid.UUID) ([]*types.ClipCandidate, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ClipCandidate, error)
}

type clipCandidateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewClipCandidateRepo(db *gorm.DB, baseLog *logger.Logger) ClipCandidateRepo {
	return &clipCandidateRepo{db: db, log: baseLog.With("repo", "ClipCandidateRepo")}
}

func (r *clipCandidateRepo) ReplaceForMedia(ctx context.Context, tx *gorm.DB, mediaID uuid.UUID, candidates []*types.ClipCandidate) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if mediaID == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Unscoped().Where("media_id = ?", mediaID).Delete(&types.ClipCandidate{}).Error; err != nil {
			return err
		}
		if len(candidates) == 0 {
			return nil
		}
		return txx.Create(&candidates).Error
	})
}

func (r *clipCandidateRepo) ListByMedia(ctx context.Context, tx *gorm.DB, mediaID uuid.UUID) ([]*types.ClipCandidate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ClipCandidate
	if mediaID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("media_id = ?", mediaID).
		Order("score DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *clipCandidateRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ClipCandidate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var c types.ClipCandidate
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == uuid.Nil {
		return nil, nil
	}
	return &c, nil
}
