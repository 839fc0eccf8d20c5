package detect_scenes

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/storycut-backend/internal/app"
	"github.com/yungbote/storycut-backend/internal/apperr"
	jobrt "github.com/yungbote/storycut-backend/internal/jobs/runtime"
	"github.com/yungbote/storycut-backend/internal/types"
)

const sceneThreshold = 0.35

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

	// Cuts already on record satisfy the job.
	if existing, err := p.cuts.GetByMedia(jc.Ctx, nil, mediaID); err != nil {
		return err
	} else if existing != nil {
		var prior []float64
		_ = json.Unmarshal(existing.Cuts, &prior)
		jc.Succeed("done", map[string]any{
			"media_id": mediaID.String(),
			"cuts":     len(prior),
			"provider": existing.Provider,
			"reused":   true,
		})
		return nil
	}

	jc.Progress("detect", 20)
	// Soft deadline scaled to the source runtime.
	ctx, cancelDeadline := context.WithTimeout(jc.Ctx,
		app.SoftDeadline(p.cfg.SceneDetectDeadlineFactor, media.Duration))
	defer cancelDeadline()
	provider := "ffmpeg"
	var cuts []float64
	if p.cfg.SceneDetectProvider == "gcp" && p.videoIntel != nil && strings.HasPrefix(media.SourceURI, "gs://") {
		provider = "gcp"
		cuts, err = p.videoIntel.DetectShotChanges(ctx, media.SourceURI)
	} else {
		cuts, err = p.tools.DetectSceneCuts(ctx, media.SourceURI, sceneThreshold)
	}
	if err != nil {
		return err
	}
	if jc.Cancelled() {
		return jobrt.ErrCancelled
	}

	jc.Progress("store", 80)
	if cuts == nil {
		cuts = []float64{}
	}
	raw, err := json.Marshal(cuts)
	if err != nil {
		return err
	}
	if err := p.cuts.Upsert(jc.Ctx, nil, &types.SceneCuts{
		ID:       uuid.New(),
		MediaID:  mediaID,
		Cuts:     datatypes.JSON(raw),
		Provider: provider,
	}); err != nil {
		return err
	}

	jc.Succeed("done", map[string]any{
		"media_id": mediaID.String(),
		"cuts":     len(cuts),
		"provider": provider,
	})
	return nil
}
