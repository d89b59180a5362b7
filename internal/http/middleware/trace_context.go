package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/agreement-orchestrator/internal/platform/ctxutil"
)

const (
	HeaderCorrelationID = "X-Correlation-Id"
	HeaderRequestID     = "X-Request-Id"
	HeaderTraceID       = "X-Trace-Id"
)

// AttachTraceContext threads correlation, request and trace ids through the
// request context and echoes them on the response. Missing ids are generated.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		corrID := strings.TrimSpace(c.GetHeader(HeaderCorrelationID))
		if corrID == "" {
			corrID = uuid.NewString()
		}
		reqID := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		traceID := ""
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		}

		ctx := ctxutil.WithTraceData(c.Request.Context(), &ctxutil.TraceData{
			TraceID:       traceID,
			RequestID:     reqID,
			CorrelationID: corrID,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Set("correlation_id", corrID)
		c.Set("request_id", reqID)
		c.Writer.Header().Set(HeaderCorrelationID, corrID)
		c.Writer.Header().Set(HeaderRequestID, reqID)
		if traceID != "" {
			c.Writer.Header().Set(HeaderTraceID, traceID)
		}
		c.Next()
	}
}
