package select_clips

import (
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/storycut-backend/internal/apperr"
	jobrt "github.com/yungbote/storycut-backend/internal/jobs/runtime"
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

	// Candidates already scored satisfy the job.
	if existing, err := p.candidates.ListByMedia(jc.Ctx, nil, mediaID); err != nil {
		return err
	} else if len(existing) > 0 {
		jc.Succeed("done", map[string]any{
			"media_id":   mediaID.String(),
			"candidates": len(existing),
			"reused":     true,
		})
		return nil
	}

	if err := jobrt.AwaitUpstream(jc, mediaID, types.JobTypeTranscribe); err != nil {
		return err
	}
	if err := jobrt.AwaitUpstream(jc, mediaID, types.JobTypeDetectSilence); err != nil {
		return err
	}

	jc.Progress("load", 20)
	transcript, err := p.transcripts.GetByMedia(jc.Ctx, nil, mediaID)
	if err != nil {
		return err
	}
	var segments []types.TranscriptSegment
	if transcript != nil && len(transcript.Segments) > 0 {
		if err := json.Unmarshal(transcript.Segments, &segments); err != nil {
			return err
		}
	}
	var silenceIvs []types.SilenceInterval
	if silenceRow, err := p.silences.GetByMedia(jc.Ctx, nil, mediaID); err != nil {
		return err
	} else if silenceRow != nil && len(silenceRow.Intervals) > 0 {
		if err := json.Unmarshal(silenceRow.Intervals, &silenceIvs); err != nil {
			return err
		}
	}
	// Scene cuts sharpen scoring but are not required.
	var cuts []float64
	if cutsRow, err := p.cuts.GetByMedia(jc.Ctx, nil, mediaID); err != nil {
		return err
	} else if cutsRow != nil && len(cutsRow.Cuts) > 0 {
		if err := json.Unmarshal(cutsRow.Cuts, &cuts); err != nil {
			return err
		}
	}

	jc.Progress("select", 60)
	windows := p.selector.Select(media.Duration, segments, silenceIvs, cuts)
	rows := make([]*types.ClipCandidate, 0, len(windows))
	for _, w := range windows {
		var features datatypes.JSON
		if len(w.Features) > 0 {
			if raw, err := json.Marshal(w.Features); err == nil {
				features = datatypes.JSON(raw)
			}
		}
		rows = append(rows, &types.ClipCandidate{
			ID:       uuid.New(),
			MediaID:  mediaID,
			Start:    w.Start,
			End:      w.End,
			Score:    w.Score,
			Features: features,
			HookText: w.HookText,
		})
	}
	if err := p.candidates.ReplaceForMedia(jc.Ctx, nil, mediaID, rows); err != nil {
		return err
	}

	jc.Succeed("done", map[string]any{
		"media_id":   mediaID.String(),
		"candidates": len(rows),
	})
	return nil
}
