package index_scenes

import (
	"encoding/json"

	"github.com/google/uuid"

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

	// Scenes already indexed satisfy the job.
	if n, err := p.scenes.CountByMedia(jc.Ctx, nil, mediaID); err != nil {
		return err
	} else if n > 0 {
		jc.Succeed("done", map[string]any{
			"media_id": mediaID.String(),
			"scenes":   n,
			"reused":   true,
		})
		return nil
	}

	if err := jobrt.AwaitUpstream(jc, mediaID, types.JobTypeDetectScenes); err != nil {
		return err
	}
	if err := jobrt.AwaitUpstream(jc, mediaID, types.JobTypeDescribeFrames); err != nil {
		return err
	}

	jc.Progress("load", 20)
	cutsRow, err := p.cuts.GetByMedia(jc.Ctx, nil, mediaID)
	if err != nil {
		return err
	}
	if cutsRow == nil {
		return jobrt.ErrPreconditionNotMet
	}
	var cuts []float64
	if err := json.Unmarshal(cutsRow.Cuts, &cuts); err != nil {
		return err
	}
	frames, err := p.frames.ListByMedia(jc.Ctx, nil, mediaID)
	if err != nil {
		return err
	}

	jc.Progress("index", 50)
	indexed := p.indexer.Index(media.Duration, cuts, frames)
	rows := make([]*types.Scene, 0, len(indexed))
	for _, sc := range indexed {
		rows = append(rows, &types.Scene{
			ID:          uuid.New(),
			MediaID:     mediaID,
			Index:       sc.Index,
			Start:       sc.Start,
			End:         sc.End,
			Description: sc.Description,
		})
	}
	if err := p.scenes.ReplaceForMedia(jc.Ctx, nil, mediaID, rows); err != nil {
		return err
	}

	jc.Succeed("done", map[string]any{
		"media_id": mediaID.String(),
		"scenes":   len(rows),
	})
	return nil
}
