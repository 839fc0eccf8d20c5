package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MediaStatusRegistered = "registered"
	MediaStatusProbing    = "probing"
	MediaStatusReady      = "ready"
	MediaStatusFailed     = "failed"
	MediaStatusDeleted    = "deleted"
)

// Media is one source video. Technical metadata is populated by the probe job;
// status=ready implies every probed field is set and Duration > 0.
type Media struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"media_id"`
	SourceURI   string         `gorm:"column:source_uri;not null" json:"source_uri"`
	Title       string         `gorm:"column:title" json:"title,omitempty"`
	Description string         `gorm:"column:description" json:"description,omitempty"`
	Status      string         `gorm:"column:status;not null;index" json:"status"`

	Duration    float64 `gorm:"column:duration_seconds" json:"duration,omitempty"`
	FPS         float64 `gorm:"column:fps" json:"fps,omitempty"`
	Width       int     `gorm:"column:width" json:"width,omitempty"`
	Height      int     `gorm:"column:height" json:"height,omitempty"`
	HasAudio    bool    `gorm:"column:has_audio" json:"has_audio"`
	VideoCodec  string  `gorm:"column:video_codec" json:"video_codec,omitempty"`
	AudioCodec  string  `gorm:"column:audio_codec" json:"audio_codec,omitempty"`
	BitrateKbps int     `gorm:"column:bitrate_kbps" json:"bitrate,omitempty"`
	AspectRatio string  `gorm:"column:aspect_ratio" json:"aspect_ratio,omitempty"`

	AudioURI string `gorm:"column:audio_uri" json:"audio_uri,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Media) TableName() string { return "media" }
