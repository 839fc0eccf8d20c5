package services

import (
	"fmt"
	"strings"

	"github.com/yungbote/storycut-backend/internal/logger"
)

// StoryRequest is the caller-supplied narrative brief.
type StoryRequest struct {
	StoryPrompt      string   `json:"story_prompt"`
	Summary          string   `json:"summary,omitempty"`
	TargetAudience   string   `json:"target_audience,omitempty"`
	Tone             string   `json:"tone,omitempty"`
	KeyMessage       string   `json:"key_message,omitempty"`
	StylePreferences []string `json:"style_preferences,omitempty"`
	DesiredLengthPct float64  `json:"desired_length_pct"`
	KeyMomentHints   []float64 `json:"key_moment_hints,omitempty"`
}

// PromptBuilder assembles the fixed planner envelope. Deterministic: the same
// compressed context and request always produce byte-identical prompts.
type PromptBuilder interface {
	BuildSystem(duration float64, req StoryRequest, tolerancePct float64) string
	BuildUser(ctx CompressedContext, req StoryRequest) string
	Schema() map[string]any
}

type promptBuilder struct {
	log *logger.Logger
}

func NewPromptBuilder(log *logger.Logger) PromptBuilder {
	return &promptBuilder{log: log.With("service", "PromptBuilder")}
}

func (p *promptBuilder) BuildSystem(duration float64, req StoryRequest, tolerancePct float64) string {
	target := req.DesiredLengthPct * duration
	tolerance := target * tolerancePct / 100
	var b strings.Builder
	b.WriteString("You are a professional video editor producing an edit decision list.\n")
	b.WriteString("Hard requirements:\n")
	b.WriteString("- Return a single JSON object matching the provided schema. No prose outside the JSON.\n")
	fmt.Fprintf(&b, "- Every timestamp must lie in [0, %.3f] seconds of the source timeline.\n", duration)
	fmt.Fprintf(&b, "- The total duration of keep segments must be %.3f seconds, within a tolerance of %.3f seconds.\n", target, tolerance)
	b.WriteString("- Keep segments must not overlap and must be ordered by start time.\n")
	b.WriteString("- story_arc anchors (hook_t < climax_t < resolution_t) must fall inside keep segments.\n")
	return b.String()
}

func (p *promptBuilder) BuildUser(ctx CompressedContext, req StoryRequest) string {
	var b strings.Builder

	b.WriteString("## Context\n")
	fmt.Fprintf(&b, "%s\n\n", ctx.ContextSummary)

	if len(ctx.Scenes) > 0 {
		b.WriteString("### Scenes\n")
		for _, s := range ctx.Scenes {
			fmt.Fprintf(&b, "- [%.3f-%.3f] %s\n", s.Start, s.End, s.Description)
		}
		b.WriteString("\n")
	}

	if len(ctx.Frames) > 0 {
		b.WriteString("### Frames\n")
		for _, f := range ctx.Frames {
			fmt.Fprintf(&b, "- t=%.3f: %s\n", f.T, f.Description)
		}
		b.WriteString("\n")
	}

	if len(ctx.Segments) > 0 {
		b.WriteString("### Transcript\n")
		for _, seg := range ctx.Segments {
			fmt.Fprintf(&b, "- [%.3f-%.3f] %s\n", seg.Start, seg.End, seg.Text)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Story requirements\n")
	fmt.Fprintf(&b, "story_prompt: %s\n", req.StoryPrompt)
	if req.Summary != "" {
		fmt.Fprintf(&b, "summary: %s\n", req.Summary)
	}
	if req.TargetAudience != "" {
		fmt.Fprintf(&b, "target_audience: %s\n", req.TargetAudience)
	}
	if req.Tone != "" {
		fmt.Fprintf(&b, "tone: %s\n", req.Tone)
	}
	if req.KeyMessage != "" {
		fmt.Fprintf(&b, "key_message: %s\n", req.KeyMessage)
	}
	if len(req.StylePreferences) > 0 {
		fmt.Fprintf(&b, "style_preferences: %s\n", strings.Join(req.StylePreferences, ", "))
	}
	fmt.Fprintf(&b, "desired_length: %.1f%% of the source duration\n", req.DesiredLengthPct*100)

	return b.String()
}

// Schema mirrors the planner JSON contract exactly; the validator drops
// anything superfluous the model sneaks in anyway.
func (p *promptBuilder) Schema() map[string]any {
	seconds := map[string]any{"type": "number"}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"story_arc": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"hook_t":       seconds,
					"climax_t":     seconds,
					"resolution_t": seconds,
				},
				"required":             []string{"hook_t", "climax_t", "resolution_t"},
				"additionalProperties": false,
			},
			"key_moments": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"start":      seconds,
						"end":        seconds,
						"importance": map[string]any{"type": "string", "enum": []string{"high", "medium", "low"}},
						"role":       map[string]any{"type": "string", "enum": []string{"hook", "build", "climax", "resolution"}},
						"reason":     map[string]any{"type": "string"},
					},
					"required":             []string{"start", "end", "importance", "role", "reason"},
					"additionalProperties": false,
				},
			},
			"edl": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"start":               seconds,
						"end":                 seconds,
						"kind":                map[string]any{"type": "string", "enum": []string{"keep", "skip", "transition"}},
						"transition_kind":     map[string]any{"type": "string", "enum": []string{"fade", "cut", "xfade"}},
						"transition_duration": seconds,
						"reason":              map[string]any{"type": "string"},
					},
					"required":             []string{"start", "end", "kind"},
					"additionalProperties": false,
				},
			},
			"transitions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"from":   seconds,
						"to":     seconds,
						"kind":   map[string]any{"type": "string"},
						"reason": map[string]any{"type": "string"},
					},
					"required":             []string{"from", "to", "kind", "reason"},
					"additionalProperties": false,
				},
			},
			"recommendations": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"message":   map[string]any{"type": "string"},
						"timestamp": seconds,
						"priority":  map[string]any{"type": "string", "enum": []string{"high", "medium", "low"}},
					},
					"required":             []string{"message", "priority"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"story_arc", "edl"},
		"additionalProperties": false,
	}
}
