package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/types"
)

type MediaRepo interface {
	Create(ctx context.Context, tx *gorm.DB, media []*types.Media) ([]*types.Media, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Media, error)
	List(ctx context.Context, tx *gorm.DB, status string, limit, offset int) ([]*types.Media, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsIfStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, expectStatus []string, updates map[string]interface{}) (bool, error)
	SoftDelete(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
}

type mediaRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMediaRepo(db *gorm.DB, baseLog *logger.Logger) MediaRepo {
	return &mediaRepo{db: db, log: baseLog.With("repo", "MediaRepo")}
}

func (r *mediaRepo) Create(ctx context.Context, tx *gorm.DB, media []*types.Media) ([]*types.Media, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(media) == 0 {
		return []*types.Media{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&media).Error; err != nil {
		return nil, err
	}
	return media, nil
}

func (r *mediaRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Media, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var m types.Media
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *mediaRepo) List(ctx context.Context, tx *gorm.DB, status string, limit, offset int) ([]*types.Media, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := transaction.WithContext(ctx).Model(&types.Media{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []*types.Media
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *mediaRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.Media{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateFieldsIfStatus performs a conditional write: the update commits only
// when the row's current status is one of expectStatus. Returns false when the
// guard did not match, so concurrent writers observe the conflict instead of
// clobbering each other.
func (r *mediaRepo) UpdateFieldsIfStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, expectStatus []string, updates map[string]interface{}) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(expectStatus) == 0 {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	res := transaction.WithContext(ctx).
		Model(&types.Media{}).
		Where("id = ? AND status IN ?", id, expectStatus).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *mediaRepo) SoftDelete(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	ok, err := r.UpdateFieldsIfStatus(ctx, tx, id,
		[]string{types.MediaStatusRegistered, types.MediaStatusProbing, types.MediaStatusReady, types.MediaStatusFailed},
		map[string]interface{}{"status": types.MediaStatusDeleted})
	if err != nil || !ok {
		return ok, err
	}
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Where("id = ?", id).Delete(&types.Media{}).Error; err != nil {
		return false, err
	}
	return true, nil
}
