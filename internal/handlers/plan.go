package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/storycut-backend/internal/apperr"
	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/repos"
	"github.com/yungbote/storycut-backend/internal/services"
	"github.com/yungbote/storycut-backend/internal/types"
)

type PlanHandler struct {
	log      *logger.Logger
	media    repos.MediaRepo
	plans    repos.PlanRepo
	renders  repos.RenderRepo
	enqueuer services.Enqueuer
}

func NewPlanHandler(
	log *logger.Logger,
	media repos.MediaRepo,
	plans repos.PlanRepo,
	renders repos.RenderRepo,
	enqueuer services.Enqueuer,
) *PlanHandler {
	return &PlanHandler{
		log:      log.With("handler", "PlanHandler"),
		media:    media,
		plans:    plans,
		renders:  renders,
		enqueuer: enqueuer,
	}
}

type heuristicPlanRequest struct {
	ClipID           string   `json:"clip_id"`
	Start            *float64 `json:"start"`
	End              *float64 `json:"end"`
	RemoveSilence    bool     `json:"remove_silence"`
	DesiredLengthPct float64  `json:"desired_length_pct"`
}

// POST /api/media/:id/plans/heuristic
// Creates a draft plan row and the job that fills and validates it. Media the
// prober has not sized yet is rejected here, before any row is written.
func (h *PlanHandler) CreateHeuristic(c *gin.Context) {
	media, ok := h.resolveMedia(c)
	if !ok {
		return
	}
	if media.Status != types.MediaStatusReady {
		RespondAppError(c, apperr.Newf(apperr.CodeInvalidRequest, "media %s is %s, not ready", media.ID, media.Status))
		return
	}
	if media.Duration <= 0 {
		RespondAppError(c, apperr.Newf(apperr.CodeEmptySource, "media %s has no playable duration", media.ID))
		return
	}
	var req heuristicPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apperr.CodeInvalidRequest, err)
		return
	}
	payload := map[string]any{
		"remove_silence": req.RemoveSilence,
	}
	switch {
	case req.ClipID != "":
		clipID, err := uuid.Parse(req.ClipID)
		if err != nil {
			RespondAppError(c, apperr.Newf(apperr.CodeInvalidRequest, "invalid clip_id %q", req.ClipID))
			return
		}
		payload["clip_id"] = clipID.String()
	case req.Start != nil && req.End != nil:
		payload["start"] = *req.Start
		payload["end"] = *req.End
	default:
		RespondAppError(c, apperr.Newf(apperr.CodeInvalidRequest, "need clip_id or start+end"))
		return
	}

	plan := &types.Plan{
		ID:               uuid.New(),
		MediaID:          media.ID,
		Mode:             types.PlanModeHeuristic,
		Status:           types.PlanStatusDraft,
		DesiredLengthPct: req.DesiredLengthPct,
	}
	if _, err := h.plans.Create(c.Request.Context(), nil, []*types.Plan{plan}); err != nil {
		RespondAppError(c, err)
		return
	}
	payload["plan_id"] = plan.ID.String()
	job, err := h.enqueuer.Enqueue(c.Request.Context(), nil, media.ID, types.JobTypePlanHeuristic, payload)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondAccepted(c, gin.H{"plan": plan, "job": job})
}

type storyPlanRequest struct {
	StoryPrompt      string    `json:"story_prompt" binding:"required"`
	Summary          string    `json:"summary"`
	TargetAudience   string    `json:"target_audience"`
	Tone             string    `json:"tone"`
	KeyMessage       string    `json:"key_message"`
	StylePreferences []string  `json:"style_preferences"`
	DesiredLengthPct float64   `json:"desired_length_pct"`
	KeyMomentHints   []float64 `json:"key_moment_hints"`
}

// POST /api/media/:id/plans/story
func (h *PlanHandler) CreateStory(c *gin.Context) {
	media, ok := h.resolveMedia(c)
	if !ok {
		return
	}
	var req storyPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apperr.CodeInvalidRequest, err)
		return
	}

	plan := &types.Plan{
		ID:               uuid.New(),
		MediaID:          media.ID,
		Mode:             types.PlanModeStory,
		Status:           types.PlanStatusDraft,
		StoryPrompt:      req.StoryPrompt,
		DesiredLengthPct: req.DesiredLengthPct,
	}
	if _, err := h.plans.Create(c.Request.Context(), nil, []*types.Plan{plan}); err != nil {
		RespondAppError(c, err)
		return
	}
	payload := map[string]any{
		"plan_id": plan.ID.String(),
		"request": services.StoryRequest{
			StoryPrompt:      req.StoryPrompt,
			Summary:          req.Summary,
			TargetAudience:   req.TargetAudience,
			Tone:             req.Tone,
			KeyMessage:       req.KeyMessage,
			StylePreferences: req.StylePreferences,
			DesiredLengthPct: req.DesiredLengthPct,
			KeyMomentHints:   req.KeyMomentHints,
		},
	}
	job, err := h.enqueuer.Enqueue(c.Request.Context(), nil, media.ID, types.JobTypePlanStory, payload)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondAccepted(c, gin.H{"plan": plan, "job": job})
}

// GET /api/plans/:id
func (h *PlanHandler) Get(c *gin.Context) {
	plan, ok := h.resolvePlan(c)
	if !ok {
		return
	}
	RespondOK(c, gin.H{"plan": plan})
}

// GET /api/media/:id/plans
func (h *PlanHandler) ListByMedia(c *gin.Context) {
	mediaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apperr.CodeInvalidRequest, err)
		return
	}
	list, err := h.plans.ListByMedia(c.Request.Context(), nil, mediaID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"plans": list, "count": len(list)})
}

type renderPlanRequest struct {
	AspectRatios   []string `json:"aspect_ratios"`
	Captions       bool     `json:"captions"`
	NormaliseAudio bool     `json:"normalise_audio"`
}

// POST /api/plans/:id/render
func (h *PlanHandler) Render(c *gin.Context) {
	plan, ok := h.resolvePlan(c)
	if !ok {
		return
	}
	switch plan.Status {
	case types.PlanStatusValidated, types.PlanStatusRendered, types.PlanStatusRendering:
	default:
		RespondAppError(c, apperr.Newf(apperr.CodeInvalidPlan, "plan %s is %s, not renderable", plan.ID, plan.Status))
		return
	}
	var req renderPlanRequest
	_ = c.ShouldBindJSON(&req)
	if len(req.AspectRatios) == 0 {
		req.AspectRatios = []string{"16:9"}
	}
	ratios := make([]any, 0, len(req.AspectRatios))
	for _, r := range req.AspectRatios {
		ratios = append(ratios, r)
	}
	job, err := h.enqueuer.Enqueue(c.Request.Context(), nil, plan.MediaID, types.JobTypeApplyPlan, map[string]any{
		"plan_id":         plan.ID.String(),
		"aspect_ratios":   ratios,
		"captions":        req.Captions,
		"normalise_audio": req.NormaliseAudio,
	})
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondAccepted(c, gin.H{"plan_id": plan.ID, "job": job})
}

// GET /api/plans/:id/renders
func (h *PlanHandler) ListRenders(c *gin.Context) {
	plan, ok := h.resolvePlan(c)
	if !ok {
		return
	}
	list, err := h.renders.ListByPlan(c.Request.Context(), nil, plan.ID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"renders": list, "count": len(list)})
}

func (h *PlanHandler) resolveMedia(c *gin.Context) (*types.Media, bool) {
	mediaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apperr.CodeInvalidRequest, err)
		return nil, false
	}
	media, err := h.media.GetByID(c.Request.Context(), nil, mediaID)
	if err != nil {
		RespondAppError(c, err)
		return nil, false
	}
	if media == nil || media.Status == types.MediaStatusDeleted {
		RespondAppError(c, apperr.Newf(apperr.CodeNotFound, "media %s not found", mediaID))
		return nil, false
	}
	return media, true
}

func (h *PlanHandler) resolvePlan(c *gin.Context) (*types.Plan, bool) {
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apperr.CodeInvalidRequest, err)
		return nil, false
	}
	plan, err := h.plans.GetByID(c.Request.Context(), nil, planID)
	if err != nil {
		RespondAppError(c, err)
		return nil, false
	}
	if plan == nil {
		RespondAppError(c, apperr.Newf(apperr.CodeNotFound, "plan %s not found", planID))
		return nil, false
	}
	return plan, true
}
