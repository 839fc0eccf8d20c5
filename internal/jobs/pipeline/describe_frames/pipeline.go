package describe_frames

import (
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/yungbote/storycut-backend/internal/apperr"
	jobrt "github.com/yungbote/storycut-backend/internal/jobs/runtime"
	"github.com/yungbote/storycut-backend/internal/services"
	"github.com/yungbote/storycut-backend/internal/types"
)

const frameWidth = 640

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

	// Frames already described satisfy the job; sampling and model calls are
	// too expensive to repeat for a re-run.
	if n, err := p.frames.CountByMedia(jc.Ctx, nil, mediaID); err != nil {
		return err
	} else if n > 0 {
		jc.Succeed("done", map[string]any{
			"media_id": mediaID.String(),
			"frames":   n,
			"reused":   true,
		})
		return nil
	}

	dir, cleanup, err := p.tools.WorkDir(jc.Job.ID.String())
	if err != nil {
		return err
	}
	defer cleanup()

	jc.Progress("sample", 5)
	sampled, err := p.tools.SampleFrames(jc.Ctx, media.SourceURI, dir, p.cfg.FrameSampleS, frameWidth)
	if err != nil {
		return err
	}
	if len(sampled) == 0 {
		jc.Fail("sample", apperr.Newf(apperr.CodeInsufficientSignal, "no frames sampled from %s", media.SourceURI))
		return nil
	}

	limit := int64(p.cfg.ModelConcurrencyLimit)
	if limit <= 0 {
		limit = 1
	}
	sem := semaphore.NewWeighted(limit)
	rows := make([]*types.Frame, len(sampled))
	done := 0

	// Describe in batches the size of the concurrency limit, polling the
	// cancel flag between batches so a long video can be stopped mid-way.
	for lo := 0; lo < len(sampled); lo += int(limit) {
		if jc.Cancelled() {
			return jobrt.ErrCancelled
		}
		hi := lo + int(limit)
		if hi > len(sampled) {
			hi = len(sampled)
		}
		g, gctx := errgroup.WithContext(jc.Ctx)
		for i := lo; i < hi; i++ {
			i := i
			frame := sampled[i]
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			g.Go(func() error {
				defer sem.Release(1)
				desc, conf, err := p.describer.Describe(gctx, frame.Path)
				if err != nil {
					return err
				}
				row := &types.Frame{
					ID:          uuid.New(),
					MediaID:     mediaID,
					T:           frame.T,
					Description: desc,
				}
				if conf > 0 {
					row.Confidence = &conf
				}
				key := services.FrameKey(mediaID, frame.T)
				if upErr := p.bucket.UploadFromPath(gctx, key, frame.Path); upErr == nil {
					row.ImageURI = p.bucket.GetPublicURL(key)
				} else {
					p.log.Warn("Frame upload failed", "t", frame.T, "error", upErr)
				}
				rows[i] = row
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		done = hi
		jc.Progress("describe", 5+int(90*float64(done)/float64(len(sampled))))
	}

	if err := p.frames.ReplaceForMedia(jc.Ctx, nil, mediaID, rows); err != nil {
		return err
	}
	jc.Succeed("done", map[string]any{
		"media_id": mediaID.String(),
		"frames":   len(rows),
		"provider": p.describer.Provider(),
	})
	return nil
}
