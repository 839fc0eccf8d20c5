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

type RenderRepo interface {
	Create(ctx context.Context, tx *gorm.DB, renders []*types.Render) ([]*types.Render, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Render, error)
	ListByPlan(ctx context.Context, tx *gorm.DB, planID uuid.UUID) ([]*types.Render, error)
	ActiveByPlanAndRatio(ctx context.Context, tx *gorm.DB, planID uuid.UUID, aspectRatio string) (*types.Render, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsIfStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, expectStatus []string, updates map[string]interface{}) (bool, error)
}

type renderRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRenderRepo(db *gorm.DB, baseLog *logger.Logger) RenderRepo {
	return &renderRepo{db: db, log: baseLog.With("repo", "RenderRepo")}
}

func (r *renderRepo) Create(ctx context.Context, tx *gorm.DB, renders []*types.Render) ([]*types.Render, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(renders) == 0 {
		return []*types.Render{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&renders).Error; err != nil {
		return nil, err
	}
	return renders, nil
}

func (r *renderRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Render, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var rec types.Render
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *renderRepo) ListByPlan(ctx context.Context, tx *gorm.DB, planID uuid.UUID) ([]*types.Render, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Render
	if planID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("plan_id = ?", planID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ActiveByPlanAndRatio returns the queued/running/completed render for one
// (plan, ratio) pair, if any. Failed and cancelled rows are ignored so they
// never block a fresh render of the same ratio.
func (r *renderRepo) ActiveByPlanAndRatio(ctx context.Context, tx *gorm.DB, planID uuid.UUID, aspectRatio string) (*types.Render, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if planID == uuid.Nil || aspectRatio == "" {
		return nil, nil
	}
	var rec types.Render
	err := transaction.WithContext(ctx).
		Where("plan_id = ? AND aspect_ratio = ? AND status IN ?", planID, aspectRatio,
			[]string{types.RenderStatusQueued, types.RenderStatusRunning, types.RenderStatusCompleted}).
		Order("created_at DESC").
		Limit(1).
		Find(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ID == uuid.Nil {
		return nil, nil
	}
	return &rec, nil
}

func (r *renderRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Render{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *renderRepo) UpdateFieldsIfStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, expectStatus []string, updates map[string]interface{}) (bool, error) {
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
		Model(&types.Render{}).
		Where("id = ? AND status IN ?", id, expectStatus).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
