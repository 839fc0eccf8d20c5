package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TranscriptWord is a word-level timing inside a segment.
type TranscriptWord struct {
	Word        string  `json:"word"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Probability float64 `json:"probability,omitempty"`
}

// TranscriptSegment is one spoken span. Segments are sorted, non-overlapping
// and entirely inside [0, media duration].
type TranscriptSegment struct {
	Start      float64          `json:"start"`
	End        float64          `json:"end"`
	Text       string           `json:"text"`
	Confidence *float64         `json:"confidence,omitempty"`
	Words      []TranscriptWord `json:"words,omitempty"`
}

// Transcript is the single per-media transcription artefact.
type Transcript struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	MediaID   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"media_id"`
	Segments  datatypes.JSON `gorm:"column:segments;type:jsonb" json:"segments"`
	Language  string         `gorm:"column:language" json:"language,omitempty"`
	Provider  string         `gorm:"column:provider" json:"provider,omitempty"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Transcript) TableName() string { return "transcript" }
