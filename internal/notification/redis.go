// Package notification delivers welcome letters for newly sent agreements.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/agreement-orchestrator/internal/platform/ctxutil"
	"github.com/yungbote/agreement-orchestrator/internal/platform/logger"
)

const DefaultChannel = "agreement.welcome-letters"

// WelcomeLetter is the message published for the mail worker.
type WelcomeLetter struct {
	AgreementID   string    `json:"agreementId"`
	Recipient     string    `json:"recipient"`
	CorrelationID string    `json:"correlationId,omitempty"`
	RequestedAt   time.Time `json:"requestedAt"`
}

// Publisher is the slice of the redis client the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// RedisNotifier publishes welcome letters on a redis channel.
type RedisNotifier struct {
	log     *logger.Logger
	pub     Publisher
	channel string
	now     func() time.Time
}

func NewRedisNotifier(log *logger.Logger, pub Publisher, channel string) *RedisNotifier {
	if log == nil {
		log = logger.NewNop()
	}
	if strings.TrimSpace(channel) == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{
		log:     log.With("service", "RedisNotifier"),
		pub:     pub,
		channel: channel,
		now:     time.Now,
	}
}

// DialRedis connects and pings. The caller owns the returned client.
func DialRedis(ctx context.Context, cfg RedisConfig) (*goredis.Client, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (n *RedisNotifier) SendWelcomeLetter(ctx context.Context, agreementID, recipient string) bool {
	if n == nil || n.pub == nil {
		return false
	}
	raw, err := json.Marshal(WelcomeLetter{
		AgreementID:   agreementID,
		Recipient:     recipient,
		CorrelationID: ctxutil.CorrelationID(ctx),
		RequestedAt:   n.now().UTC(),
	})
	if err != nil {
		n.log.Warn("welcome letter encode failed", "agreement_id", agreementID, "error", err)
		return false
	}
	receivers, err := n.pub.Publish(ctx, n.channel, raw).Result()
	if err != nil {
		n.log.Warn("welcome letter publish failed", "agreement_id", agreementID, "channel", n.channel, "error", err)
		return false
	}
	n.log.Debug("welcome letter published", "agreement_id", agreementID, "channel", n.channel, "receivers", receivers)
	return true
}

// LogNotifier only logs the letter. It is used when no redis is configured.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.NewNop()
	}
	return &LogNotifier{log: log.With("service", "LogNotifier")}
}

func (n *LogNotifier) SendWelcomeLetter(ctx context.Context, agreementID, recipient string) bool {
	n.log.Info("welcome letter", "agreement_id", agreementID, "recipient", recipient)
	return true
}
