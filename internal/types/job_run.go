package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

const (
	JobTypeProbe          = "probe"
	JobTypeTranscribe     = "transcribe"
	JobTypeDetectSilence  = "detect_silence"
	JobTypeDetectScenes   = "detect_scenes"
	JobTypeDescribeFrames = "describe_frames"
	JobTypeIndexScenes    = "index_scenes"
	JobTypeSelectClips    = "select_clips"
	JobTypePlanHeuristic  = "plan_heuristic"
	JobTypePlanStory      = "plan_story"
	JobTypeApplyPlan      = "apply_plan"
)

// EnrichmentJobTypes are the kinds callers may request via the enrich endpoint.
var EnrichmentJobTypes = []string{
	JobTypeTranscribe,
	JobTypeDetectSilence,
	JobTypeDetectScenes,
	JobTypeDescribeFrames,
	JobTypeIndexScenes,
	JobTypeSelectClips,
}

// JobRun is one unit of asynchronous work. Status moves monotonically through
// queued -> running -> {completed, failed, cancelled}; a failed run is
// superseded by a fresh queued row with attempt+1, never mutated after
// terminal.
type JobRun struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"job_id"`
	MediaID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"media_id"`
	JobType     string         `gorm:"column:job_type;not null;index" json:"job_type"`
	Status      string         `gorm:"column:status;not null;index" json:"status"`
	Stage       string         `gorm:"column:stage" json:"stage,omitempty"`
	Progress    int            `gorm:"column:progress;not null;default:0" json:"progress"`
	Attempt     int            `gorm:"column:attempt;not null;default:1" json:"attempt"`
	MaxAttempts int            `gorm:"column:max_attempts;not null;default:3" json:"max_attempts"`
	Payload     datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload,omitempty"`
	Result      datatypes.JSON `gorm:"column:result;type:jsonb" json:"result,omitempty"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	ErrorCode   string         `gorm:"column:error_code;index" json:"error_code,omitempty"`
	NotBefore   *time.Time     `gorm:"column:not_before;index" json:"not_before,omitempty"`
	LockedAt    *time.Time     `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	HeartbeatAt *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	StartedAt   *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt  *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"enqueued_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (JobRun) TableName() string { return "job_run" }

func (j *JobRun) Terminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}
