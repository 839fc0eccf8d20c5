package detect_silence

import (
	"encoding/json"
	"path/filepath"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/storycut-backend/internal/apperr"
	jobrt "github.com/yungbote/storycut-backend/internal/jobs/runtime"
	"github.com/yungbote/storycut-backend/internal/services"
	"github.com/yungbote/storycut-backend/internal/types"
)

const noiseFloorDB = -40

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

	// A silence map already on record satisfies the job.
	if existing, err := p.silences.GetByMedia(jc.Ctx, nil, mediaID); err != nil {
		return err
	} else if existing != nil {
		var intervals []types.SilenceInterval
		_ = json.Unmarshal(existing.Intervals, &intervals)
		jc.Succeed("done", map[string]any{
			"media_id":  mediaID.String(),
			"intervals": len(intervals),
			"reused":    true,
		})
		return nil
	}

	// No audio track: the whole timeline is silent by definition.
	if !media.HasAudio {
		intervals := []types.SilenceInterval{{Start: 0, End: media.Duration}}
		if err := p.store(jc, mediaID, intervals); err != nil {
			return err
		}
		jc.Succeed("done", map[string]any{
			"media_id":  mediaID.String(),
			"intervals": 1,
			"skipped":   apperr.CodeNoAudioTrack,
		})
		return nil
	}

	dir, cleanup, err := p.tools.WorkDir(jc.Job.ID.String())
	if err != nil {
		return err
	}
	defer cleanup()

	jc.Progress("audio", 10)
	audioPath := filepath.Join(dir, "audio.wav")
	if media.AudioURI != "" {
		if err := p.bucket.DownloadToPath(jc.Ctx, services.AudioKey(mediaID), audioPath); err != nil {
			return apperr.New(apperr.CodeBlobStoreUnavailable, err)
		}
	} else {
		if audioPath, err = p.tools.ExtractAudio(jc.Ctx, media.SourceURI, audioPath); err != nil {
			return err
		}
	}
	if jc.Cancelled() {
		return jobrt.ErrCancelled
	}

	jc.Progress("detect", 50)
	intervals, err := p.tools.DetectSilence(jc.Ctx, audioPath, p.cfg.MinSilenceS, noiseFloorDB)
	if err != nil {
		return err
	}

	jc.Progress("store", 90)
	if err := p.store(jc, mediaID, intervals); err != nil {
		return err
	}
	jc.Succeed("done", map[string]any{
		"media_id":  mediaID.String(),
		"intervals": len(intervals),
	})
	return nil
}

func (p *Pipeline) store(jc *jobrt.Context, mediaID uuid.UUID, intervals []types.SilenceInterval) error {
	if intervals == nil {
		intervals = []types.SilenceInterval{}
	}
	raw, err := json.Marshal(intervals)
	if err != nil {
		return err
	}
	return p.silences.Upsert(jc.Ctx, nil, &types.SilenceMap{
		ID:        uuid.New(),
		MediaID:   mediaID,
		Intervals: datatypes.JSON(raw),
	})
}
