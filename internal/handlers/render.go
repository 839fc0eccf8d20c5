package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/storycut-backend/internal/apperr"
	"github.com/yungbote/storycut-backend/internal/repos"
)

type RenderHandler struct {
	renders repos.RenderRepo
}

func NewRenderHandler(renders repos.RenderRepo) *RenderHandler {
	return &RenderHandler{renders: renders}
}

// GET /api/renders/:id
func (h *RenderHandler) Get(c *gin.Context) {
	renderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apperr.CodeInvalidRequest, err)
		return
	}
	render, err := h.renders.GetByID(c.Request.Context(), nil, renderID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if render == nil {
		RespondAppError(c, apperr.Newf(apperr.CodeNotFound, "render %s not found", renderID))
		return
	}
	RespondOK(c, gin.H{"render": render})
}
