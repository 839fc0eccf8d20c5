package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/repos"
	"github.com/yungbote/storycut-backend/internal/types"
)

// EnqueuerConfig fixes the retry budget per job type at enqueue time.
type EnqueuerConfig struct {
	MaxAttemptsDefault   int
	MaxAttemptsPlanStory int
}

// Enqueuer creates job_run rows. Enqueueing the same (media, type) twice while
// the first is still queued or running returns the existing row instead of a
// duplicate.
type Enqueuer interface {
	Enqueue(ctx context.Context, tx *gorm.DB, mediaID uuid.UUID, jobType string, payload map[string]any) (*types.JobRun, error)
}

type enqueuer struct {
	log  *logger.Logger
	repo repos.JobRunRepo
	cfg  EnqueuerConfig
}

func NewEnqueuer(log *logger.Logger, repo repos.JobRunRepo, cfg EnqueuerConfig) Enqueuer {
	if cfg.MaxAttemptsDefault <= 0 {
		cfg.MaxAttemptsDefault = 3
	}
	if cfg.MaxAttemptsPlanStory <= 0 {
		cfg.MaxAttemptsPlanStory = 2
	}
	return &enqueuer{log: log.With("service", "Enqueuer"), repo: repo, cfg: cfg}
}

func (e *enqueuer) Enqueue(ctx context.Context, tx *gorm.DB, mediaID uuid.UUID, jobType string, payload map[string]any) (*types.JobRun, error) {
	if mediaID == uuid.Nil {
		return nil, fmt.Errorf("enqueue %s: media_id is nil", jobType)
	}
	existing, err := e.repo.ActiveByMediaAndType(ctx, tx, mediaID, jobType)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		e.log.Info("Reusing active job", "job_type", jobType, "media_id", mediaID, "job_id", existing.ID)
		return existing, nil
	}

	if payload == nil {
		payload = map[string]any{}
	}
	if _, ok := payload["media_id"]; !ok {
		payload["media_id"] = mediaID.String()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: marshal payload: %w", jobType, err)
	}

	maxAttempts := e.cfg.MaxAttemptsDefault
	if jobType == types.JobTypePlanStory {
		maxAttempts = e.cfg.MaxAttemptsPlanStory
	}
	job := &types.JobRun{
		ID:          uuid.New(),
		MediaID:     mediaID,
		JobType:     jobType,
		Status:      types.JobStatusQueued,
		Attempt:     1,
		MaxAttempts: maxAttempts,
		Payload:     datatypes.JSON(raw),
	}
	if _, err := e.repo.Create(ctx, tx, []*types.JobRun{job}); err != nil {
		return nil, err
	}
	e.log.Info("Enqueued job", "job_type", jobType, "media_id", mediaID, "job_id", job.ID)
	return job, nil
}
