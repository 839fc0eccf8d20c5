package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PlanStatusDraft     = "draft"
	PlanStatusValidated = "validated"
	PlanStatusRendering = "rendering"
	PlanStatusRendered  = "rendered"
	PlanStatusRejected  = "rejected"
)

const (
	PlanModeHeuristic = "heuristic"
	PlanModeStory     = "story"
)

const (
	SegmentKeep       = "keep"
	SegmentSkip       = "skip"
	SegmentTransition = "transition"
)

// StoryArc holds the three narrative anchor timestamps on the source timeline.
type StoryArc struct {
	HookT       float64 `json:"hook_t"`
	ClimaxT     float64 `json:"climax_t"`
	ResolutionT float64 `json:"resolution_t"`
}

// EDLSegment is one entry of an edit decision list. Only keep segments
// contribute frames to the output; skip and transition ranges are omitted.
type EDLSegment struct {
	Start              float64 `json:"start"`
	End                float64 `json:"end"`
	Kind               string  `json:"kind"`
	TransitionKind     string  `json:"transition_kind,omitempty"`
	TransitionDuration float64 `json:"transition_duration,omitempty"`
	Reason             string  `json:"reason,omitempty"`
}

type KeyMoment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Importance string  `json:"importance,omitempty"`
	Role       string  `json:"role,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

type Transition struct {
	From   float64 `json:"from"`
	To     float64 `json:"to"`
	Kind   string  `json:"kind,omitempty"`
	Reason string  `json:"reason,omitempty"`
}

type Recommendation struct {
	Message   string   `json:"message"`
	Timestamp *float64 `json:"timestamp,omitempty"`
	Priority  string   `json:"priority,omitempty"`
}

// PlanDocument is the planner output shape that passes through validation.
// It is the only place raw model JSON is ever decoded into.
type PlanDocument struct {
	StoryArc        StoryArc         `json:"story_arc"`
	KeyMoments      []KeyMoment      `json:"key_moments,omitempty"`
	EDL             []EDLSegment     `json:"edl"`
	Transitions     []Transition     `json:"transitions,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
}

// Plan is a validated edit plan stored by the registry. A validated plan can
// be rendered any number of times; each render pass creates fresh Render rows.
type Plan struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"plan_id"`
	MediaID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"media_id"`
	Mode             string         `gorm:"column:mode;not null" json:"mode"`
	Status           string         `gorm:"column:status;not null;index" json:"status"`
	StoryPrompt      string         `gorm:"column:story_prompt;type:text" json:"story_prompt,omitempty"`
	DesiredLengthPct float64        `gorm:"column:desired_length_pct" json:"desired_length_pct,omitempty"`
	Document         datatypes.JSON `gorm:"column:document;type:jsonb" json:"document"`
	Warnings         datatypes.JSON `gorm:"column:warnings;type:jsonb" json:"warnings,omitempty"`
	TotalKeepSeconds float64        `gorm:"column:total_keep_seconds" json:"total_keep_seconds"`
	ModelName        string         `gorm:"column:model_name" json:"model_name,omitempty"`
	TokenUsage       datatypes.JSON `gorm:"column:token_usage;type:jsonb" json:"token_usage,omitempty"`
	CreatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Plan) TableName() string { return "plan" }
