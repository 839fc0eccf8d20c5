package plan_heuristic

import (
	"encoding/json"
	"fmt"

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

	window, err := p.resolveWindow(jc, mediaID)
	if err != nil {
		p.reject(jc, planID, err)
		return err
	}

	// Silence map and transcript words sharpen the cut list when present.
	// They are soft inputs: wait only for in-flight enrichment, then plan
	// with whatever landed.
	var silenceIvs []types.SilenceInterval
	var words []types.TranscriptWord
	if window.RemoveSilence {
		for _, dep := range []string{types.JobTypeDetectSilence, types.JobTypeTranscribe} {
			if err := jobrt.AwaitUpstreamSoft(jc, mediaID, dep); err != nil {
				return err
			}
		}
		if row, err := p.silences.GetByMedia(jc.Ctx, nil, mediaID); err != nil {
			return err
		} else if row != nil && len(row.Intervals) > 0 {
			if err := json.Unmarshal(row.Intervals, &silenceIvs); err != nil {
				return err
			}
		}
		if words, err = p.loadWords(jc, mediaID); err != nil {
			return err
		}
	}

	jc.Progress("plan", 40)
	doc, err := p.planner.Plan(media.Duration, window, silenceIvs, words)
	if err != nil {
		p.reject(jc, planID, err)
		return err
	}

	jc.Progress("validate", 70)
	res, err := p.validator.Validate(doc, media.Duration, plan.DesiredLengthPct)
	if err != nil {
		p.reject(jc, planID, err)
		return err
	}

	docRaw, err := json.Marshal(res.Document)
	if err != nil {
		return err
	}
	warnRaw, _ := json.Marshal(res.Warnings)
	if err := p.plans.UpdateFields(jc.Ctx, nil, planID, map[string]interface{}{
		"status":             types.PlanStatusValidated,
		"document":           datatypes.JSON(docRaw),
		"warnings":           datatypes.JSON(warnRaw),
		"total_keep_seconds": res.TotalKeep,
	}); err != nil {
		return err
	}

	jc.Succeed("done", map[string]any{
		"media_id":           mediaID.String(),
		"plan_id":            planID.String(),
		"total_keep_seconds": res.TotalKeep,
		"warnings":           len(res.Warnings),
	})
	return nil
}

// resolveWindow materialises the requested source window, either from a stored
// clip candidate or from explicit start/end bounds.
func (p *Pipeline) resolveWindow(jc *jobrt.Context, mediaID uuid.UUID) (services.HeuristicWindow, error) {
	removeSilence := jc.PayloadBool("remove_silence")
	if clipID, ok := jc.PayloadUUID("clip_id"); ok && clipID != uuid.Nil {
		clip, err := p.candidates.GetByID(jc.Ctx, nil, clipID)
		if err != nil {
			return services.HeuristicWindow{}, err
		}
		if clip == nil || clip.MediaID != mediaID {
			return services.HeuristicWindow{}, apperr.Newf(apperr.CodeNotFound, "clip %s not found for media %s", clipID, mediaID)
		}
		reason := fmt.Sprintf("clip candidate (score %.0f)", clip.Score)
		if clip.HookText != "" {
			reason = fmt.Sprintf("%s: %q", reason, clip.HookText)
		}
		return services.HeuristicWindow{
			Start:         clip.Start,
			End:           clip.End,
			RemoveSilence: removeSilence,
			Reason:        reason,
		}, nil
	}
	start, okStart := jc.PayloadFloat("start")
	end, okEnd := jc.PayloadFloat("end")
	if !okStart || !okEnd {
		return services.HeuristicWindow{}, apperr.Newf(apperr.CodeInvalidRequest, "need clip_id or start+end")
	}
	return services.HeuristicWindow{
		Start:         start,
		End:           end,
		RemoveSilence: removeSilence,
		Reason:        "selected window",
	}, nil
}

func (p *Pipeline) loadWords(jc *jobrt.Context, mediaID uuid.UUID) ([]types.TranscriptWord, error) {
	row, err := p.transcripts.GetByMedia(jc.Ctx, nil, mediaID)
	if err != nil {
		return nil, err
	}
	if row == nil || len(row.Segments) == 0 {
		return nil, nil
	}
	var segments []types.TranscriptSegment
	if err := json.Unmarshal(row.Segments, &segments); err != nil {
		return nil, err
	}
	var words []types.TranscriptWord
	for _, seg := range segments {
		words = append(words, seg.Words...)
	}
	return words, nil
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
