package app

import (
	"fmt"

	"github.com/yungbote/agreement-orchestrator/internal/audit"
	"github.com/yungbote/agreement-orchestrator/internal/config"
	"github.com/yungbote/agreement-orchestrator/internal/downstream"
	"github.com/yungbote/agreement-orchestrator/internal/idempotency"
	"github.com/yungbote/agreement-orchestrator/internal/notification"
	"github.com/yungbote/agreement-orchestrator/internal/observability"
	"github.com/yungbote/agreement-orchestrator/internal/platform/logger"
	"github.com/yungbote/agreement-orchestrator/internal/retry"
	"github.com/yungbote/agreement-orchestrator/internal/saga"
)

type Services struct {
	Store      *idempotency.Store
	Audit      *audit.Sink
	Downstream *downstream.Simulator
	Notifier   saga.Notifier
	Engine     *saga.Engine
	// Metrics is nil when metrics are disabled.
	Metrics *observability.Metrics
}

func wireServices(log *logger.Logger, cfg *config.Config, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}

	var notifier saga.Notifier
	if clients.Redis != nil {
		notifier = notification.NewRedisNotifier(log, clients.Redis, cfg.Redis.Channel)
	} else {
		notifier = notification.NewLogNotifier(log)
	}

	store := idempotency.NewStore()
	sink := audit.NewSink(log)
	sim := downstream.NewSimulator(clients.DB, log)

	engine, err := saga.NewEngine(log, sim, notifier, store, sink, sagaConfig(cfg), saga.WithMetrics(metrics))
	if err != nil {
		return Services{}, fmt.Errorf("init saga engine: %w", err)
	}

	return Services{
		Store:      store,
		Audit:      sink,
		Downstream: sim,
		Notifier:   notifier,
		Engine:     engine,
		Metrics:    metrics,
	}, nil
}

func sagaConfig(cfg *config.Config) saga.Config {
	return saga.Config{
		Dispatch: retry.Policy{
			MaxAttempts:  cfg.Dispatch.MaxAttempts,
			InitialDelay: cfg.Dispatch.InitialDelay.Duration,
			Factor:       cfg.Dispatch.Factor,
			Jitter:       cfg.Dispatch.Jitter,
		},
		LetterTimeout: cfg.Letter.Timeout.Duration,
	}
}
