package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SilenceInterval is a half-open [start, end) span of detected silence.
type SilenceInterval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// SilenceMap is the single per-media silence artefact. Intervals are pairwise
// disjoint, sorted, each at least min_silence_s long.
type SilenceMap struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	MediaID   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"media_id"`
	Intervals datatypes.JSON `gorm:"column:intervals;type:jsonb" json:"intervals"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (SilenceMap) TableName() string { return "silence_map" }

// SceneCuts holds the strictly increasing cut timestamps in (0, duration).
// An empty list means one scene covering the whole timeline.
type SceneCuts struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	MediaID   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"media_id"`
	Cuts      datatypes.JSON `gorm:"column:cuts;type:jsonb" json:"cuts"`
	Provider  string         `gorm:"column:provider" json:"provider,omitempty"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (SceneCuts) TableName() string { return "scene_cuts" }

// Frame is one sampled-and-described frame; T is unique per media.
type Frame struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	MediaID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_frame_media_t,unique" json:"media_id"`
	T           float64        `gorm:"column:t;not null;index:idx_frame_media_t,unique" json:"t"`
	Description string         `gorm:"column:description;type:text" json:"description"`
	Confidence  *float64       `gorm:"column:confidence" json:"confidence,omitempty"`
	ImageURI    string         `gorm:"column:image_uri" json:"image_uri,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Frame) TableName() string { return "frame" }

// Scene is a derived [start, end) interval; per media, scenes are adjacent and
// cover the whole timeline with no gaps.
type Scene struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	MediaID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"media_id"`
	Index       int            `gorm:"column:scene_index;not null" json:"index"`
	Start       float64        `gorm:"column:start_seconds;not null" json:"start"`
	End         float64        `gorm:"column:end_seconds;not null" json:"end"`
	Description string         `gorm:"column:description;type:text" json:"description,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Scene) TableName() string { return "scene" }
