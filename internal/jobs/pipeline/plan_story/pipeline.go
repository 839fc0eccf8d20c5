package plan_story

import (
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/storycut-backend/internal/apperr"
	jobrt "github.com/yungbote/storycut-backend/internal/jobs/runtime"
	"github.com/yungbote/storycut-backend/internal/services"
	"github.com/yungbote/storycut-backend/internal/types"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	mediaID, ok := jc.PayloadUUID("media_id")
	if !ok || mediaID == uuid.Nil {
		jc.Fail("validate", apperr.Newf(apperr.CodeInvalidRequest, "missing media_id"))
		return nil
	}
	planID, ok := jc.PayloadUUID("plan_id")
	if !ok || planID == uuid.Nil {
		jc.Fail("validate", apperr.Newf(apperr.CodeInvalidRequest, "missing plan_id"))
		return nil
	}
	plan, err := p.plans.GetByID(jc.Ctx, nil, planID)
	if err != nil {
		return err
	}
	if plan == nil {
		jc.Fail("validate", apperr.Newf(apperr.CodeNotFound, "plan %s not found", planID))
		return nil
	}
	req, err := p.decodeRequest(jc, plan)
	if err != nil {
		p.reject(jc, planID, err)
		jc.Fail("validate", err)
		return nil
	}

	media, err := p.media.GetByID(jc.Ctx, nil, mediaID)
	if err != nil {
		return err
	}
	if media == nil || media.Status == types.MediaStatusDeleted {
		jc.Fail("validate", apperr.Newf(apperr.CodeNotFound, "media %s not found", mediaID))
		return nil
	}
	if media.Status != types.MediaStatusReady {
		return jobrt.ErrPreconditionNotMet
	}

	// Enrichment outputs are all optional inputs: wait for any in-flight run,
	// then plan with whatever landed. Missing transcript or scenes narrows the
	// signal but does not block.
	for _, dep := range []string{types.JobTypeTranscribe, types.JobTypeDescribeFrames, types.JobTypeIndexScenes} {
		if err := jobrt.AwaitUpstreamSoft(jc, mediaID, dep); err != nil {
			return err
		}
	}

	jc.Progress("load", 10)
	segments, err := p.loadSegments(jc, mediaID)
	if err != nil {
		return err
	}
	frames, err := p.frames.ListByMedia(jc.Ctx, nil, mediaID)
	if err != nil {
		return err
	}
	scenes, err := p.scenes.ListByMedia(jc.Ctx, nil, mediaID)
	if err != nil {
		return err
	}
	if len(segments) == 0 && len(frames) == 0 && len(scenes) == 0 {
		cause := apperr.Newf(apperr.CodeInsufficientSignal, "media %s has no transcript, frames or scenes to plan from", mediaID)
		p.reject(jc, planID, cause)
		jc.Fail("load", cause)
		return nil
	}

	jc.Progress("compress", 25)
	compressed := p.compressor.Compress(media.Duration, frames, scenes, segments, req.KeyMomentHints)

	if jc.Cancelled() {
		return jobrt.ErrCancelled
	}

	jc.Progress("plan", 40)
	out, err := p.planner.Plan(jc.Ctx, media.Duration, compressed, req, p.cfg.PlanCoverageTolerancePct)
	if err != nil {
		p.reject(jc, planID, err)
		return err
	}

	jc.Progress("validate", 75)
	res, err := p.validator.Validate(out.Document, media.Duration, plan.DesiredLengthPct)
	if err != nil {
		p.reject(jc, planID, err)
		return err
	}

	docRaw, err := json.Marshal(res.Document)
	if err != nil {
		return err
	}
	warnRaw, _ := json.Marshal(res.Warnings)
	usageRaw, _ := json.Marshal(out.Usage)
	if err := p.plans.UpdateFields(jc.Ctx, nil, planID, map[string]interface{}{
		"status":             types.PlanStatusValidated,
		"document":           datatypes.JSON(docRaw),
		"warnings":           datatypes.JSON(warnRaw),
		"total_keep_seconds": res.TotalKeep,
		"model_name":         out.ModelName,
		"token_usage":        datatypes.JSON(usageRaw),
	}); err != nil {
		return err
	}

	jc.Succeed("done", map[string]any{
		"media_id":           mediaID.String(),
		"plan_id":            planID.String(),
		"total_keep_seconds": res.TotalKeep,
		"warnings":           len(res.Warnings),
		"model":              out.ModelName,
		"input_tokens":       out.Usage.InputTokens,
		"output_tokens":      out.Usage.OutputTokens,
	})
	return nil
}

// decodeRequest rebuilds the narrative brief from the payload, falling back to
// the fields stored on the plan row.
func (p *Pipeline) decodeRequest(jc *jobrt.Context, plan *types.Plan) (services.StoryRequest, error) {
	var req services.StoryRequest
	if v, ok := jc.Payload()["request"]; ok && v != nil {
		raw, err := json.Marshal(v)
		if err != nil {
			return req, apperr.New(apperr.CodeInvalidRequest, err)
		}
		if err := json.Unmarshal(raw, &req); err != nil {
			return req, apperr.New(apperr.CodeInvalidRequest, err)
		}
	}
	if req.StoryPrompt == "" {
		req.StoryPrompt = plan.StoryPrompt
	}
	if req.DesiredLengthPct == 0 {
		req.DesiredLengthPct = plan.DesiredLengthPct
	}
	if req.StoryPrompt == "" {
		return req, apperr.Newf(apperr.CodeInvalidRequest, "story_prompt is empty")
	}
	return req, nil
}

func (p *Pipeline) loadSegments(jc *jobrt.Context, mediaID uuid.UUID) ([]types.TranscriptSegment, error) {
	row, err := p.transcripts.GetByMedia(jc.Ctx, nil, mediaID)
	if err != nil {
		return nil, err
	}
	var segments []types.TranscriptSegment
	if row != nil && len(row.Segments) > 0 {
		if err := json.Unmarshal(row.Segments, &segments); err != nil {
			return nil, err
		}
	}
	return segments, nil
}

func (p *Pipeline) reject(jc *jobrt.Context, planID uuid.UUID, cause error) {
	warnRaw, _ := json.Marshal([]string{cause.Error()})
	if err := p.plans.UpdateFields(jc.Ctx, nil, planID, map[string]interface{}{
		"status":   types.PlanStatusRejected,
		"warnings": datatypes.JSON(warnRaw),
	}); err != nil {
		p.log.Error("Failed to mark plan rejected", "plan_id", planID, "error", err)
	}
}
