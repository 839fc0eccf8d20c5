package runtime

import (
	"github.com/google/uuid"

	"github.com/yungbote/storycut-backend/internal/apperr"
	"github.com/yungbote/storycut-backend/internal/types"
)

// AwaitUpstream resolves a dependency on another job type for the same media.
// It returns nil when the latest run completed, ErrPreconditionNotMet while
// the dependency is still pending or will be retried, and an InsufficientSignal
// error once the dependency can never complete.
func AwaitUpstream(jc *Context, mediaID uuid.UUID, jobType string) error {
	latest, err := jc.Repo.LatestByMediaAndType(jc.Ctx, nil, mediaID, jobType)
	if err != nil {
		return err
	}
	if latest == nil {
		return ErrPreconditionNotMet
	}
	switch latest.Status {
	case types.JobStatusCompleted:
		return nil
	case types.JobStatusFailed:
		// A failed upstream with retries left will be superseded; wait for it.
		if latest.Attempt < latest.MaxAttempts && apperr.Retryable(apperr.Newf(latest.ErrorCode, "%s", latest.Error)) {
			return ErrPreconditionNotMet
		}
		return apperr.Newf(apperr.CodeInsufficientSignal, "upstream %s failed terminally: %s", jobType, latest.Error)
	case types.JobStatusCancelled:
		return apperr.Newf(apperr.CodeInsufficientSignal, "upstream %s was cancelled", jobType)
	default:
		return ErrPreconditionNotMet
	}
}

// AwaitUpstreamSoft is AwaitUpstream for optional inputs. It blocks (returns
// ErrPreconditionNotMet) only while a run of the job type is in flight or due
// for a retry. A dependency that was never enqueued, or that settled without
// completing, resolves to nil so the caller proceeds with what it has.
func AwaitUpstreamSoft(jc *Context, mediaID uuid.UUID, jobType string) error {
	latest, err := jc.Repo.LatestByMediaAndType(jc.Ctx, nil, mediaID, jobType)
	if err != nil {
		return err
	}
	if latest == nil {
		return nil
	}
	switch latest.Status {
	case types.JobStatusQueued, types.JobStatusRunning:
		return ErrPreconditionNotMet
	case types.JobStatusFailed:
		if latest.Attempt < latest.MaxAttempts && apperr.Retryable(apperr.Newf(latest.ErrorCode, "%s", latest.Error)) {
			return ErrPreconditionNotMet
		}
		return nil
	default:
		return nil
	}
}
