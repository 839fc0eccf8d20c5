package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ClipCandidate is a scored window the heuristic selector proposes.
// clip_min_s <= End-Start <= clip_max_s, fully inside [0, duration].
type ClipCandidate struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	MediaID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"media_id"`
	Start     float64        `gorm:"column:start_seconds;not null" json:"start"`
	End       float64        `gorm:"column:end_seconds;not null" json:"end"`
	Score     float64        `gorm:"column:score;not null" json:"score"`
	Features  datatypes.JSON `gorm:"column:features;type:jsonb" json:"features,omitempty"`
	HookText  string         `gorm:"column:hook_text" json:"hook_text,omitempty"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ClipCandidate) TableName() string { return "clip_candidate" }
