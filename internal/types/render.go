package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RenderStatusQueued    = "queued"
	RenderStatusRunning   = "running"
	RenderStatusCompleted = "completed"
	RenderStatusFailed    = "failed"
	RenderStatusCancelled = "cancelled"
)

// Render is one output of a plan in one aspect ratio. OutputURI is readable
// only once Status is completed. A failed row never blocks a fresh render of
// the same (plan_id, aspect_ratio).
type Render struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"render_id"`
	MediaID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"media_id"`
	PlanID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"plan_id"`
	AspectRatio     string         `gorm:"column:aspect_ratio;not null" json:"aspect_ratio"`
	Status          string         `gorm:"column:status;not null;index" json:"status"`
	OutputURI       string         `gorm:"column:output_uri" json:"output_uri,omitempty"`
	Error           string         `gorm:"column:error" json:"error,omitempty"`
	ErrorCode       string         `gorm:"column:error_code" json:"error_code,omitempty"`
	DurationSeconds float64        `gorm:"column:duration_seconds" json:"duration_seconds,omitempty"`
	Captions        bool           `gorm:"column:captions" json:"captions"`
	NormaliseAudio  bool           `gorm:"column:normalise_audio" json:"normalise_audio"`
	StartedAt       *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt      *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Render) TableName() string { return "render" }

func (r *Render) Terminal() bool {
	switch r.Status {
	case RenderStatusCompleted, RenderStatusFailed, RenderStatusCancelled:
		return true
	default:
		return false
	}
}
