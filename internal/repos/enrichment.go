package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/types"
)

// Transcript, silence map and scene cuts are keyed uniquely per media, so the
// writers here upsert on media_id. A re-run of the producing job overwrites
// the artefact in place instead of duplicating it.

type TranscriptRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, t *types.Transcript) error
	GetByMedia(ctx context.Context, tx *gorm.DB, mediaID uuid.UUID) (*types.Transcript, error)
}

type transcriptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTranscriptRepo(db *gorm.DB, baseLog *logger.Logger) TranscriptRepo {
	return &transcriptRepo{db: db, log: baseLog.With("repo", "TranscriptRepo")}
}

func (r *transcriptRepo) Upsert(ctx context.Context, tx *gorm.DB, t *types.Transcript) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if t == nil || t.MediaID == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "media_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"segments", "language", "provider"}),
		}).
		Create(t).Error
}

func (r *transcriptRepo) GetByMedia(ctx context.Context, tx *gorm.DB, mediaID uuid.UUID) (*types.Transcript, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if mediaID == uuid.Nil {
		return nil, nil
	}
	var t types.Transcript
	err := transaction.WithContext(ctx).Where("media_id = ?", mediaID).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type SilenceMapRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, s *types.SilenceMap) error
	GetByMedia(ctx context.Context, tx *gorm.DB, mediaID uuid.UUID) (*types.SilenceMap, error)
}

type silenceMapRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSilenceMapRepo(db *gorm.DB, baseLog *logger.Logger) SilenceMapRepo {
	return &silenceMapRepo{db: db, log: baseLog.With("repo", "SilenceMapRepo")}
}

func (r *silenceMapRepo) Upsert(ctx context.Context, tx *gorm.DB, s *types.SilenceMap) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if s == nil || s.MediaID == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "media_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"intervals"}),
		}).
		Create(s).Error
}

func (r *silenceMapRepo) GetByMedia(ctx context.Context, tx *gorm.DB, mediaID uuid.UUID) (*types.SilenceMap, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if mediaID == uuid.Nil {
		return nil, nil
	}
	var s types.SilenceMap
	err := transaction.WithContext(ctx).Where("media_id = ?", mediaID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

type SceneCutsRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, c *types.SceneCuts) error
	GetByMedia(ctx context.Context, tx *gorm.DB, mediaID uuid.UUID) (*types.SceneCuts, error)
}

type sceneCutsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSceneCutsRepo(db *gorm.DB, baseLog *logger.Logger) SceneCutsRepo {
	return &sceneCutsRepo{db: db, log: baseLog.With("repo", "SceneCutsRepo")}
}

func (r *sceneCutsRepo) Upsert(ctx context.Context, tx *gorm.DB, c *types.SceneCuts) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if c == nil || c.MediaID == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "media_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"cuts", "provider"}),
		}).
		Create(c).Error
}

func (r *sceneCutsRepo) GetByMedia(ctx context.Context, tx *gorm.DB, mediaID uuid.UUID) (*types.SceneCuts, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if mediaID == uuid.Nil {
		return nil, nil
	}
	var c types.SceneCuts
	err := transaction.WithContext(ctx).Where("media_id = ?", mediaID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
