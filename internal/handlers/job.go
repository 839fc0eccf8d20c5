package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/storycut-backend/internal/apperr"
	"github.com/yungbote/storycut-backend/internal/clients/redis"
	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/repos"
	"github.com/yungbote/storycut-backend/internal/types"
)

type JobHandler struct {
	log     *logger.Logger
	jobs    repos.JobRunRepo
	cancels redis.CancelBus
}

func NewJobHandler(log *logger.Logger, jobs repos.JobRunRepo, cancels redis.CancelBus) *JobHandler {
	return &JobHandler{
		log:     log.With("handler", "JobHandler"),
		jobs:    jobs,
		cancels: cancels,
	}
}

// GET /api/jobs/:id
func (h *JobHandler) Get(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apperr.CodeInvalidRequest, err)
		return
	}
	job, err := h.jobs.GetByID(c.Request.Context(), nil, jobID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if job == nil {
		RespondAppError(c, apperr.Newf(apperr.CodeNotFound, "job %s not found", jobID))
		return
	}
	RespondOK(c, gin.H{"job": job})
}

// POST /api/jobs/:id/cancel
// A queued job flips to cancelled immediately. A running job gets the flag
// raised and ends cancelled at the handler's next safe point. Terminal jobs
// are left untouched.
func (h *JobHandler) Cancel(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apperr.CodeInvalidRequest, err)
		return
	}
	job, err := h.jobs.GetByID(c.Request.Context(), nil, jobID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if job == nil {
		RespondAppError(c, apperr.Newf(apperr.CodeNotFound, "job %s not found", jobID))
		return
	}
	if job.Terminal() {
		RespondOK(c, gin.H{"job": job, "cancelled": false})
		return
	}

	flipped, err := h.jobs.UpdateFieldsIfStatus(c.Request.Context(), nil, jobID,
		[]string{types.JobStatusQueued},
		map[string]interface{}{"status": types.JobStatusCancelled})
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if !flipped {
		// Running: raise the flag and let the worker finish cooperatively.
		if err := h.cancels.RequestCancel(c.Request.Context(), jobID); err != nil {
			RespondAppError(c, err)
			return
		}
	}
	job, _ = h.jobs.GetByID(c.Request.Context(), nil, jobID)
	RespondAccepted(c, gin.H{"job": job, "cancelled": true})
}
