package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/storycut-backend/internal/apperr"
	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/repos"
	"github.com/yungbote/storycut-backend/internal/services"
	"github.com/yungbote/storycut-backend/internal/types"
)

type MediaHandler struct {
	log         *logger.Logger
	media       repos.MediaRepo
	jobs        repos.JobRunRepo
	transcripts repos.TranscriptRepo
	scenes      repos.SceneRepo
	clips       repos.ClipCandidateRepo
	enqueuer    services.Enqueuer
	bucket      services.BucketService
}

func NewMediaHandler(
	log *logger.Logger,
	media repos.MediaRepo,
	jobs repos.JobRunRepo,
	transcripts repos.TranscriptRepo,
	scenes repos.SceneRepo,
	clips repos.ClipCandidateRepo,
	enqueuer services.Enqueuer,
	bucket services.BucketService,
) *MediaHandler {
	return &MediaHandler{
		log:         log.With("handler", "MediaHandler"),
		media:       media,
		jobs:        jobs,
		transcripts: transcripts,
		scenes:      scenes,
		clips:       clips,
		enqueuer:    enqueuer,
		bucket:      bucket,
	}
}

type registerMediaRequest struct {
	SourceURI   string `json:"source_uri" binding:"required"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// POST /api/media
// Registration is synchronous; probing runs as a job and flips the media to
// ready once metadata lands.
func (h *MediaHandler) Register(c *gin.Context) {
	var req registerMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apperr.CodeInvalidRequest, err)
		return
	}
	if strings.TrimSpace(req.SourceURI) == "" {
		RespondAppError(c, apperr.Newf(apperr.CodeInvalidRequest, "source_uri is empty"))
		return
	}

	media := &types.Media{
		ID:          uuid.New(),
		SourceURI:   strings.TrimSpace(req.SourceURI),
		Title:       req.Title,
		Description: req.Description,
		Status:      types.MediaStatusRegistered,
	}
	if _, err := h.media.Create(c.Request.Context(), nil, []*types.Media{media}); err != nil {
		RespondAppError(c, err)
		return
	}
	job, err := h.enqueuer.Enqueue(c.Request.Context(), nil, media.ID, types.JobTypeProbe, nil)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondAccepted(c, gin.H{"media": media, "probe_job": job})
}

// GET /api/media/:id
func (h *MediaHandler) Get(c *gin.Context) {
	mediaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apperr.CodeInvalidRequest, err)
		return
	}
	media, err := h.media.GetByID(c.Request.Context(), nil, mediaID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if media == nil || media.Status == types.MediaStatusDeleted {
		RespondAppError(c, apperr.Newf(apperr.CodeNotFound, "media %s not found", mediaID))
		return
	}
	RespondOK(c, gin.H{"media": media})
}

// GET /api/media?status=&limit=&offset=
func (h *MediaHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	list, err := h.media.List(c.Request.Context(), nil, c.Query("status"), limit, offset)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"media": list, "count": len(list)})
}

type enrichRequest struct {
	Kinds []string `json:"kinds"`
}

// POST /api/media/:id/enrich
// Enqueues the requested enrichment kinds (all of them when the body names
// none). Enqueueing is idempotent per (media, job type).
func (h *MediaHandler) Enrich(c *gin.Context) {
	mediaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apperr.CodeInvalidRequest, err)
		return
	}
	media, err := h.media.GetByID(c.Request.Context(), nil, mediaID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if media == nil || media.Status == types.MediaStatusDeleted {
		RespondAppError(c, apperr.Newf(apperr.CodeNotFound, "media %s not found", mediaID))
		return
	}

	var req enrichRequest
	_ = c.ShouldBindJSON(&req)
	requested := req.Kinds
	if len(requested) == 0 {
		requested = types.EnrichmentJobTypes
	}
	known := map[string]bool{}
	for _, t := range types.EnrichmentJobTypes {
		known[t] = true
	}

	enqueued := make([]*types.JobRun, 0, len(requested))
	for _, jobType := range requested {
		if !known[jobType] {
			RespondAppError(c, apperr.Newf(apperr.CodeInvalidRequest, "unknown enrichment kind %q", jobType))
			return
		}
		job, err := h.enqueuer.Enqueue(c.Request.Context(), nil, mediaID, jobType, nil)
		if err != nil {
			RespondAppError(c, err)
			return
		}
		enqueued = append(enqueued, job)
	}
	RespondAccepted(c, gin.H{"jobs": enqueued})
}

// GET /api/media/:id/jobs
func (h *MediaHandler) Jobs(c *gin.Context) {
	mediaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apperr.CodeInvalidRequest, err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	list, err := h.jobs.ListByMedia(c.Request.Context(), nil, mediaID, limit)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"jobs": list, "count": len(list)})
}

// GET /api/media/:id/transcript
func (h *MediaHandler) Transcript(c *gin.Context) {
	mediaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apperr.CodeInvalidRequest, err)
		return
	}
	row, err := h.transcripts.GetByMedia(c.Request.Context(), nil, mediaID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if row == nil {
		RespondAppError(c, apperr.Newf(apperr.CodeNotFound, "no transcript for media %s", mediaID))
		return
	}
	RespondOK(c, gin.H{"transcript": row})
}

// GET /api/media/:id/scenes
func (h *MediaHandler) Scenes(c *gin.Context) {
	mediaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apperr.CodeInvalidRequest, err)
		return
	}
	list, err := h.scenes.ListByMedia(c.Request.Context(), nil, mediaID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if len(list) == 0 {
		RespondAppError(c, apperr.Newf(apperr.CodeNotFound, "no scenes for media %s", mediaID))
		return
	}
	RespondOK(c, gin.H{"scenes": list, "count": len(list)})
}

// GET /api/media/:id/candidates
func (h *MediaHandler) Candidates(c *gin.Context) {
	mediaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apperr.CodeInvalidRequest, err)
		return
	}
	list, err := h.clips.ListByMedia(c.Request.Context(), nil, mediaID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"candidates": list, "count": len(list)})
}

// DELETE /api/media/:id
// Marks the registry row deleted and clears derived blobs. Original uploads
// are kept for audit; renders stay readable under their plan.
func (h *MediaHandler) Delete(c *gin.Context) {
	mediaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apperr.CodeInvalidRequest, err)
		return
	}
	deleted, err := h.media.SoftDelete(c.Request.Context(), nil, mediaID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if !deleted {
		RespondAppError(c, apperr.Newf(apperr.CodeNotFound, "media %s not found", mediaID))
		return
	}
	if err := h.bucket.DeletePrefix(c.Request.Context(), "derived/"+mediaID.String()+"/"); err != nil {
		h.log.Warn("Derived blob cleanup failed", "media_id", mediaID, "error", err)
	}
	RespondOK(c, gin.H{"deleted": true, "media_id": mediaID})
}
