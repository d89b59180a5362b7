package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/agreement-orchestrator/internal/http/response"
	"github.com/yungbote/agreement-orchestrator/internal/platform/apierr"
)

// FailureProgrammer is implemented by the downstream simulator.
type FailureProgrammer interface {
	ProgramDispatchFailures(n int)
	ProgramCancelFailures(n int)
}

type TestControlHandler struct {
	target FailureProgrammer
}

func NewTestControlHandler(target FailureProgrammer) *TestControlHandler {
	return &TestControlHandler{target: target}
}

type failureCountRequest struct {
	Count *int `json:"count"`
}

func bindCount(c *gin.Context) (int, bool) {
	var body failureCountRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return 0, false
	}
	if body.Count == nil || *body.Count < 0 {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest,
			errors.New("count must be a non-negative integer"))
		return 0, false
	}
	return *body.Count, true
}

// POST /api/test/dispatch-failures
func (h *TestControlHandler) ProgramDispatchFailures(c *gin.Context) {
	n, ok := bindCount(c)
	if !ok {
		return
	}
	h.target.ProgramDispatchFailures(n)
	response.RespondOK(c, gin.H{"dispatchFailures": n})
}

// POST /api/test/cancel-failures
func (h *TestControlHandler) ProgramCancelFailures(c *gin.Context) {
	n, ok := bindCount(c)
	if !ok {
		return
	}
	h.target.ProgramCancelFailures(n)
	response.RespondOK(c, gin.H{"cancelFailures": n})
}
