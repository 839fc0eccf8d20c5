package transcribe

import (
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/google/uuid"
	"gorm.io/datatypes"

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

	// A transcript already on record satisfies the job; a re-run reuses it.
	if existing, err := p.transcripts.GetByMedia(jc.Ctx, nil, mediaID); err != nil {
		return err
	} else if existing != nil {
		var segments []types.TranscriptSegment
		_ = json.Unmarshal(existing.Segments, &segments)
		jc.Succeed("done", map[string]any{
			"media_id": mediaID.String(),
			"segments": len(segments),
			"language": existing.Language,
			"provider": existing.Provider,
			"reused":   true,
		})
		return nil
	}

	// A silent source yields an empty transcript, not a failure: downstream
	// planners treat it as absence of speech.
	if !media.HasAudio {
		if err := p.storeTranscript(jc, mediaID, []types.TranscriptSegment{}, ""); err != nil {
			return err
		}
		jc.Succeed("done", map[string]any{
			"media_id": mediaID.String(),
			"segments": 0,
			"skipped":  apperr.CodeNoAudioTrack,
		})
		return nil
	}

	dir, cleanup, err := p.tools.WorkDir(jc.Job.ID.String())
	if err != nil {
		return err
	}
	defer cleanup()

	// Soft deadline: the whole extract-and-transcribe pass gets a few
	// multiples of the source runtime before it is abandoned.
	ctx, cancelDeadline := context.WithTimeout(jc.Ctx,
		app.SoftDeadline(p.cfg.TranscribeDeadlineFactor, media.Duration))
	defer cancelDeadline()

	// Audio already extracted by a sibling job is reused from the bucket.
	audioKey := services.AudioKey(mediaID)
	if media.AudioURI == "" {
		jc.Progress("extract_audio", 10)
		audioPath, err := p.tools.ExtractAudio(ctx, media.SourceURI, filepath.Join(dir, "audio.wav"))
		if err != nil {
			return err
		}
		if jc.Cancelled() {
			return jobrt.ErrCancelled
		}

		jc.Progress("upload_audio", 30)
		if err := p.bucket.UploadFromPath(ctx, audioKey, audioPath); err != nil {
			return apperr.New(apperr.CodeBlobStoreUnavailable, err)
		}
		_ = p.media.UpdateFields(jc.Ctx, nil, mediaID, map[string]interface{}{
			"audio_uri": p.bucket.GCSURI(audioKey),
		})
	}

	jc.Progress("transcribe", 50)
	segments, language, err := p.transcriber.Transcribe(ctx, p.bucket.GCSURI(audioKey))
	if err != nil {
		return err
	}
	if jc.Cancelled() {
		return jobrt.ErrCancelled
	}

	jc.Progress("store", 90)
	if err := p.storeTranscript(jc, mediaID, segments, language); err != nil {
		return err
	}
	jc.Succeed("done", map[string]any{
		"media_id": mediaID.String(),
		"segments": len(segments),
		"language": language,
		"provider": p.transcriber.Provider(),
	})
	return nil
}

func (p *Pipeline) storeTranscript(jc *jobrt.Context, mediaID uuid.UUID, segments []types.TranscriptSegment, language string) error {
	if segments == nil {
		segments = []types.TranscriptSegment{}
	}
	raw, err := json.Marshal(segments)
	if err != nil {
		return err
	}
	return p.transcripts.Upsert(jc.Ctx, nil, &types.Transcript{
		ID:       uuid.New(),
		MediaID:  mediaID,
		Segments: datatypes.JSON(raw),
		Language: language,
		Provider: p.transcriber.Provider(),
	})
}
