package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/storycut-backend/internal/apperr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAppError maps taxonomy codes onto HTTP statuses so callers see the
// same code in the envelope as in job and render rows.
func RespondAppError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeInvalidRequest, apperr.CodeEmptySource, apperr.CodeUnrecognisedFormat:
		status = http.StatusBadRequest
	case apperr.CodeConflict:
		status = http.StatusConflict
	case apperr.CodeInvalidPlan, apperr.CodeUnrenderablePlan, apperr.CodeInsufficientSignal:
		status = http.StatusUnprocessableEntity
	}
	RespondError(c, status, code, err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondAccepted(c *gin.Context, payload any) {
	c.JSON(http.StatusAccepted, payload)
}
