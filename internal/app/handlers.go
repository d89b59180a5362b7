package app

import (
	"github.com/yungbote/agreement-orchestrator/internal/config"
	"github.com/yungbote/agreement-orchestrator/internal/http/handlers"
)

type Handlers struct {
	Agreement   *handlers.AgreementHandler
	Audit       *handlers.AuditHandler
	Health      *handlers.HealthHandler
	TestControl *handlers.TestControlHandler
}

func wireHandlers(cfg *config.Config, services Services) Handlers {
	h := Handlers{
		Agreement: handlers.NewAgreementHandler(services.Engine),
		Audit:     handlers.NewAuditHandler(services.Audit),
		Health:    handlers.NewHealthHandler(),
	}
	if cfg.EnableTestControls {
		h.TestControl = handlers.NewTestControlHandler(services.Downstream)
	}
	return h
}
