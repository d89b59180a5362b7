package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/agreement-orchestrator/internal/platform/apierr"
)

type APIError struct {
	Message       string `json:"message"`
	Code          string `json:"code,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
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
			Message:       msg,
			Code:          code,
			CorrelationID: correlationID(c),
		},
	})
}

// RespondAPIError writes err using its status and code when it is an
// *apierr.Error, and as a 500 otherwise.
func RespondAPIError(c *gin.Context, err error) {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		status := ae.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		RespondError(c, status, ae.Code, ae.Err)
		return
	}
	RespondError(c, http.StatusInternalServerError, apierr.CodeInternal, err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondJSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

func correlationID(c *gin.Context) string {
	if v, ok := c.Get("correlation_id"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
