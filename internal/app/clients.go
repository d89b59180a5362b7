package app

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/agreement-orchestrator/internal/config"
	"github.com/yungbote/agreement-orchestrator/internal/data/db"
	"github.com/yungbote/agreement-orchestrator/internal/notification"
	"github.com/yungbote/agreement-orchestrator/internal/platform/logger"
)

type Clients struct {
	DB *gorm.DB
	// Redis is nil when no redis address is configured.
	Redis *goredis.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg *config.Config) (Clients, error) {
	log.Info("Wiring clients...")
	gdb, err := db.Open(db.Config{
		Driver:   cfg.Downstream.Driver,
		DSN:      cfg.Downstream.DSN,
		LogLevel: cfg.Downstream.LogLevel,
	}, log)
	if err != nil {
		return Clients{}, fmt.Errorf("init downstream db: %w", err)
	}
	if err := db.AutoMigrateAll(gdb); err != nil {
		closeDB(gdb)
		return Clients{}, fmt.Errorf("downstream automigrate: %w", err)
	}

	out := Clients{DB: gdb}
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		rdb, err := notification.DialRedis(ctx, notification.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			closeDB(gdb)
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		out.Redis = rdb
	}
	return out, nil
}

func (c Clients) Close() {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	closeDB(c.DB)
}

func closeDB(gdb *gorm.DB) {
	if gdb == nil {
		return
	}
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
