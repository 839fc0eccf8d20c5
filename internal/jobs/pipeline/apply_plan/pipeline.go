package apply_plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/storycut-backend/internal/app"
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
	switch plan.Status {
	case types.PlanStatusValidated, types.PlanStatusRendering, types.PlanStatusRendered:
	default:
		jc.Fail("validate", apperr.Newf(apperr.CodeInvalidRequest, "plan %s is %s, not renderable", planID, plan.Status))
		return nil
	}
	media, err := p.media.GetByID(jc.Ctx, nil, mediaID)
	if err != nil {
		return err
	}
	if media == nil || media.Status != types.MediaStatusReady {
		jc.Fail("validate", apperr.Newf(apperr.CodeNotFound, "media %s not ready", mediaID))
		return nil
	}

	var doc types.PlanDocument
	if err := json.Unmarshal(plan.Document, &doc); err != nil {
		jc.Fail("validate", apperr.New(apperr.CodeInvalidPlan, err))
		return nil
	}

	ratios := p.payloadRatios(jc)
	captions := jc.PayloadBool("captions")
	normalise := jc.PayloadBool("normalise_audio")

	var transcript []types.TranscriptSegment
	if captions {
		if row, err := p.transcripts.GetByMedia(jc.Ctx, nil, mediaID); err != nil {
			return err
		} else if row != nil && len(row.Segments) > 0 {
			if err := json.Unmarshal(row.Segments, &transcript); err != nil {
				return err
			}
		}
	}

	_ = p.plans.UpdateFields(jc.Ctx, nil, planID, map[string]interface{}{
		"status": types.PlanStatusRendering,
	})

	// One render row per requested ratio; a completed row from a previous
	// attempt is reused as-is, which makes retries resume where they stopped.
	targets := make([]*types.Render, 0, len(ratios))
	skipped := 0
	for _, ratio := range ratios {
		active, err := p.renders.ActiveByPlanAndRatio(jc.Ctx, nil, planID, ratio)
		if err != nil {
			return err
		}
		if active != nil && active.Status == types.RenderStatusCompleted {
			skipped++
			continue
		}
		if active != nil {
			targets = append(targets, active)
			continue
		}
		row := &types.Render{
			ID:             uuid.New(),
			MediaID:        mediaID,
			PlanID:         planID,
			AspectRatio:    ratio,
			Status:         types.RenderStatusQueued,
			Captions:       captions,
			NormaliseAudio: normalise,
		}
		if _, err := p.renders.Create(jc.Ctx, nil, []*types.Render{row}); err != nil {
			return err
		}
		targets = append(targets, row)
	}

	jc.Progress("render", 10)
	// Soft deadline scaled to the plan's keep duration, shared by all ratios.
	renderCtx, cancelDeadline := context.WithTimeout(jc.Ctx,
		app.SoftDeadline(p.cfg.RenderDeadlineFactor, plan.TotalKeepSeconds))
	defer cancelDeadline()

	var mu sync.Mutex
	var failures []error
	cancelled := false
	completed := 0

	g, gctx := errgroup.WithContext(renderCtx)
	for _, target := range targets {
		target := target
		g.Go(func() error {
			err := p.renderOne(jc, gctx, media, &doc, transcript, target)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				completed++
			case errors.Is(err, services.ErrRenderCancelled):
				cancelled = true
			default:
				failures = append(failures, fmt.Errorf("render %s: %w", target.AspectRatio, err))
			}
			jc.Progress("render", 10+85*(completed+skipped)/len(ratios))
			return nil
		})
	}
	_ = g.Wait()

	allDone := completed+skipped == len(ratios)
	planStatus := types.PlanStatusValidated
	if allDone {
		planStatus = types.PlanStatusRendered
	}
	_ = p.plans.UpdateFields(jc.Ctx, nil, planID, map[string]interface{}{
		"status": planStatus,
	})

	switch {
	case cancelled:
		return jobrt.ErrCancelled
	case len(failures) > 0:
		return errors.Join(failures...)
	default:
		jc.Succeed("done", map[string]any{
			"media_id": mediaID.String(),
			"plan_id":  planID.String(),
			"renders":  completed,
			"reused":   skipped,
			"ratios":   ratios,
		})
		return nil
	}
}

func (p *Pipeline) renderOne(jc *jobrt.Context, ctx context.Context, media *types.Media, doc *types.PlanDocument, transcript []types.TranscriptSegment, row *types.Render) error {
	now := time.Now()
	_ = p.renders.UpdateFields(ctx, nil, row.ID, map[string]interface{}{
		"status":     types.RenderStatusRunning,
		"started_at": now,
	})

	fail := func(err error) error {
		finished := time.Now()
		_ = p.renders.UpdateFields(ctx, nil, row.ID, map[string]interface{}{
			"status":      types.RenderStatusFailed,
			"error":       err.Error(),
			"error_code":  apperr.CodeOf(err),
			"finished_at": finished,
		})
		return err
	}

	dir, cleanup, err := p.tools.WorkDir(row.ID.String())
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	outPath := filepath.Join(dir, "output.mp4")
	res, err := p.renderer.Render(ctx, media.SourceURI, *doc, services.RenderOptions{
		AspectRatio:    row.AspectRatio,
		Captions:       row.Captions,
		NormaliseAudio: row.NormaliseAudio,
		SourceFPS:      media.FPS,
		SourceHasAudio: media.HasAudio,
		Transcript:     transcript,
		WorkDir:        dir,
		OutputPath:     outPath,
		CancelCheck: func(context.Context) bool {
			return jc.Cancelled()
		},
	})
	if errors.Is(err, services.ErrRenderCancelled) {
		finished := time.Now()
		_ = p.renders.UpdateFields(ctx, nil, row.ID, map[string]interface{}{
			"status":      types.RenderStatusCancelled,
			"finished_at": finished,
		})
		return err
	}
	if err != nil {
		return fail(err)
	}

	key := services.RenderKey(row.PlanID, row.AspectRatio)
	if err := p.bucket.UploadFromPath(ctx, key, res.OutputPath); err != nil {
		return fail(apperr.New(apperr.CodeOutputWriteError, err))
	}
	duration, err := p.probe.OutputDuration(ctx, res.OutputPath)
	if err != nil {
		p.log.Warn("Output duration probe failed", "render_id", row.ID, "error", err)
	}

	finished := time.Now()
	return p.renders.UpdateFields(ctx, nil, row.ID, map[string]interface{}{
		"status":           types.RenderStatusCompleted,
		"output_uri":       p.bucket.GetPublicURL(key),
		"duration_seconds": duration,
		"finished_at":      finished,
	})
}

func (p *Pipeline) payloadRatios(jc *jobrt.Context) []string {
	raw, ok := jc.Payload()["aspect_ratios"]
	if !ok || raw == nil {
		return []string{"16:9"}
	}
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return []string{"16:9"}
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(list))
	for _, v := range list {
		s := fmt.Sprint(v)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return []string{"16:9"}
	}
	return out
}
