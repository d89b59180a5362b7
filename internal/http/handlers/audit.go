package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/agreement-orchestrator/internal/audit"
	"github.com/yungbote/agreement-orchestrator/internal/http/response"
)

type AuditHandler struct {
	sink *audit.Sink
}

func NewAuditHandler(sink *audit.Sink) *AuditHandler {
	return &AuditHandler{sink: sink}
}

// GET /api/audit?correlationId=
func (h *AuditHandler) ListEvents(c *gin.Context) {
	var events []audit.Event
	if id := strings.TrimSpace(c.Query("correlationId")); id != "" {
		events = h.sink.ForCorrelation(id)
	} else {
		events = h.sink.Snapshot()
	}
	if events == nil {
		events = []audit.Event{}
	}
	response.RespondOK(c, gin.H{"events": events})
}
