package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/agreement-orchestrator/internal/config"
	apphttp "github.com/yungbote/agreement-orchestrator/internal/http"
	"github.com/yungbote/agreement-orchestrator/internal/platform/logger"
)

func wireRouter(log *logger.Logger, cfg *config.Config, services Services, h Handlers) *gin.Engine {
	log.Info("Wiring router...")
	return apphttp.NewRouter(apphttp.RouterConfig{
		Log:                log,
		Metrics:            services.Metrics,
		ServiceName:        cfg.Tracing.ServiceName,
		CORSOrigins:        cfg.HTTP.CORSOrigins,
		MaxRequestBytes:    cfg.HTTP.MaxRequestBytes,
		AgreementHandler:   h.Agreement,
		AuditHandler:       h.Audit,
		HealthHandler:      h.Health,
		TestControlHandler: h.TestControl,
	})
}
