package probe

import (
	"path/filepath"

	"github.com/google/uuid"

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
	media, err := p.media.GetByID(jc.Ctx, nil, mediaID)
	if err != nil {
		return err
	}
	if media == nil || media.Status == types.MediaStatusDeleted {
		jc.Fail("validate", apperr.Newf(apperr.CodeNotFound, "media %s not found", mediaID))
		return nil
	}

	// Status writes are guarded so a concurrent delete wins: a deleted row
	// never comes back as probing or ready.
	moved, err := p.media.UpdateFieldsIfStatus(jc.Ctx, nil, mediaID,
		[]string{types.MediaStatusRegistered, types.MediaStatusProbing, types.MediaStatusFailed, types.MediaStatusReady},
		map[string]interface{}{"status": types.MediaStatusProbing})
	if err != nil {
		return err
	}
	if !moved {
		jc.Fail("validate", apperr.Newf(apperr.CodeNotFound, "media %s was deleted before probing", mediaID))
		return nil
	}

	jc.Progress("probe", 10)
	res, err := p.probe.Probe(jc.Ctx, media.SourceURI)
	if err != nil {
		_, _ = p.media.UpdateFieldsIfStatus(jc.Ctx, nil, mediaID,
			[]string{types.MediaStatusProbing},
			map[string]interface{}{"status": types.MediaStatusFailed})
		return err
	}

	jc.Progress("thumbnails", 60)
	thumbs := p.extractThumbnails(jc, media.SourceURI, res.Duration)

	ok, err = p.media.UpdateFieldsIfStatus(jc.Ctx, nil, mediaID,
		[]string{types.MediaStatusProbing},
		map[string]interface{}{
			"status":           types.MediaStatusReady,
			"duration_seconds": res.Duration,
			"fps":              res.FPS,
			"width":            res.Width,
			"height":           res.Height,
			"has_audio":        res.HasAudio,
			"video_codec":      res.VideoCodec,
			"audio_codec":      res.AudioCodec,
			"bitrate_kbps":     res.BitrateKbps,
			"aspect_ratio":     res.AspectRatio,
		})
	if err != nil {
		return err
	}
	if !ok {
		jc.Fail("store", apperr.Newf(apperr.CodeNotFound, "media %s was deleted during probe", mediaID))
		return nil
	}

	jc.Succeed("done", map[string]any{
		"media_id":     mediaID.String(),
		"duration":     res.Duration,
		"fps":          res.FPS,
		"width":        res.Width,
		"height":       res.Height,
		"has_audio":    res.HasAudio,
		"aspect_ratio": res.AspectRatio,
		"thumbnails":   thumbs,
	})
	return nil
}

// extractThumbnails is best-effort: a thumbnail failure never fails the probe.
func (p *Pipeline) extractThumbnails(jc *jobrt.Context, sourceURI string, duration float64) int {
	if p.cfg.ThumbCount <= 0 || duration <= 0 {
		return 0
	}
	dir, cleanup, err := p.tools.WorkDir(jc.Job.ID.String())
	if err != nil {
		p.log.Warn("Thumbnail workdir failed", "error", err)
		return 0
	}
	defer cleanup()
	paths, err := p.tools.ExtractThumbnails(jc.Ctx, sourceURI, dir, duration, p.cfg.ThumbCount, 480)
	if err != nil {
		p.log.Warn("Thumbnail extraction failed", "error", err)
		return 0
	}
	uploaded := 0
	for i, path := range paths {
		key := services.ThumbKey(jc.Job.MediaID, i)
		if err := p.bucket.UploadFromPath(jc.Ctx, key, path); err != nil {
			p.log.Warn("Thumbnail upload failed", "path", filepath.Base(path), "error", err)
			continue
		}
		uploaded++
	}
	return uploaded
}
