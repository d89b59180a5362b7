package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/agreement-orchestrator/internal/http/handlers"
	httpMW "github.com/yungbote/agreement-orchestrator/internal/http/middleware"
	"github.com/yungbote/agreement-orchestrator/internal/observability"
	"github.com/yungbote/agreement-orchestrator/internal/platform/logger"
)

type RouterConfig struct {
	Log             *logger.Logger
	Metrics         *observability.Metrics
	ServiceName     string
	CORSOrigins     []string
	MaxRequestBytes int64

	AgreementHandler   *httpH.AgreementHandler
	AuditHandler       *httpH.AuditHandler
	HealthHandler      *httpH.HealthHandler
	TestControlHandler *httpH.TestControlHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "agreement-orchestrator"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	r.Use(httpMW.LimitBody(cfg.MaxRequestBytes))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	{
		if cfg.AgreementHandler != nil {
			api.POST("/agreements", cfg.AgreementHandler.CreateAgreement)
		}
		if cfg.AuditHandler != nil {
			api.GET("/audit", cfg.AuditHandler.ListEvents)
		}
		// Test controls are only mounted when enabled in config.
		if cfg.TestControlHandler != nil {
			api.POST("/test/dispatch-failures", cfg.TestControlHandler.ProgramDispatchFailures)
			api.POST("/test/cancel-failures", cfg.TestControlHandler.ProgramCancelFailures)
		}
	}

	return r
}
