package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yungbote/storycut-backend/internal/apperr"
	"github.com/yungbote/storycut-backend/internal/clients/openai"
	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/types"
)

// PlannerOutput is the raw model plan plus accounting; only the validator is
// allowed to consume the document.
type PlannerOutput struct {
	Document  types.PlanDocument
	ModelName string
	Usage     openai.Usage
}

type StoryPlannerConfig struct {
	Temperature float64
}

// StoryPlanner sends the prompt envelope to the external model and parses its
// structured response. It never retries on its own: parse failures surface as
// InvalidPlan and the orchestrator's retry policy decides.
type StoryPlanner interface {
	Plan(ctx context.Context, duration float64, compressed CompressedContext, req StoryRequest, tolerancePct float64) (*PlannerOutput, error)
}

type storyPlanner struct {
	log     *logger.Logger
	client  openai.Client
	prompts PromptBuilder
	cfg     StoryPlannerConfig
}

func NewStoryPlanner(log *logger.Logger, client openai.Client, prompts PromptBuilder, cfg StoryPlannerConfig) StoryPlanner {
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.3
	}
	return &storyPlanner{
		log:     log.With("service", "StoryPlanner"),
		client:  client,
		prompts: prompts,
		cfg:     cfg,
	}
}

func (p *storyPlanner) Plan(ctx context.Context, duration float64, compressed CompressedContext, req StoryRequest, tolerancePct float64) (*PlannerOutput, error) {
	if req.StoryPrompt == "" {
		return nil, apperr.New(apperr.CodeInvalidRequest, fmt.Errorf("story_prompt required"))
	}

	system := p.prompts.BuildSystem(duration, req, tolerancePct)
	user := p.prompts.BuildUser(compressed, req)

	obj, usage, err := p.client.GenerateJSON(ctx, system, user, "edit_plan", p.prompts.Schema(), p.cfg.Temperature)
	if err != nil {
		return nil, apperr.New(apperr.CodeExternalModelError, fmt.Errorf("planner model call: %w", err))
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, apperr.New(apperr.CodeInvalidPlan, fmt.Errorf("re-encode model output: %w", err))
	}
	var doc types.PlanDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperr.New(apperr.CodeInvalidPlan, fmt.Errorf("model output does not match plan shape: %w", err))
	}

	p.log.Info("Planner produced document",
		"edl_segments", len(doc.EDL),
		"key_moments", len(doc.KeyMoments),
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
	)

	return &PlannerOutput{
		Document:  doc,
		ModelName: p.client.Model(),
		Usage:     usage,
	}, nil
}
