package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/agreement-orchestrator/internal/platform/envutil"
)

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	s := strings.TrimSpace(node.Value)
	if s == "" || s == "null" || s == "~" {
		d.Duration = 0
		return nil
	}
	if dd, err := time.ParseDuration(s); err == nil {
		d.Duration = dd
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("duration must be a string like \"5s\" or an int nanoseconds: %q", s)
	}
	d.Duration = time.Duration(n)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

func Default() *Config {
	return &Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: Duration{5 * time.Second},
			ReadTimeout:       Duration{30 * time.Second},
			WriteTimeout:      Duration{60 * time.Second},
			IdleTimeout:       Duration{2 * time.Minute},
			ShutdownTimeout:   Duration{15 * time.Second},
			MaxRequestBytes:   1 << 20,
			CORSOrigins:       []string{"http://localhost:3000"},
		},
		Dispatch: DispatchConfig{
			MaxAttempts:  3,
			InitialDelay: Duration{200 * time.Millisecond},
			Factor:       2.0,
			Jitter:       true,
		},
		Letter: LetterConfig{Timeout: Duration{5 * time.Second}},
		Downstream: DownstreamConfig{
			Driver:   "sqlite",
			DSN:      "file::memory:",
			LogLevel: "warn",
		},
		Redis: RedisConfig{Channel: "agreement.welcome-letters"},
		Tracing: TracingConfig{
			ServiceName: "agreement-orchestrator",
			SampleRatio: 0.1,
		},
	}
}

// Load reads the YAML file named by AGREEMENT_CONFIG_PATH (or
// ./config/config.yaml when present) over the defaults, then applies
// environment overrides and validates the result.
func Load() (*Config, error) {
	cfg := Default()

	cfgPath := strings.TrimSpace(os.Getenv("AGREEMENT_CONFIG_PATH"))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, "config", "config.yaml")
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
			}
		}
	}
	if cfgPath != "" {
		b, err := os.ReadFile(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Env = envutil.String("LOG_MODE", cfg.Env)
	cfg.HTTP.Addr = envutil.String("HTTP_ADDR", cfg.HTTP.Addr)

	cfg.Dispatch.MaxAttempts = envutil.Int("DISPATCH_MAX_ATTEMPTS", cfg.Dispatch.MaxAttempts)
	cfg.Dispatch.InitialDelay.Duration = envutil.Duration("DISPATCH_INITIAL_DELAY", cfg.Dispatch.InitialDelay.Duration)
	cfg.Dispatch.Factor = envutil.Float("DISPATCH_FACTOR", cfg.Dispatch.Factor)
	cfg.Dispatch.Jitter = envutil.Bool("DISPATCH_JITTER", cfg.Dispatch.Jitter)

	cfg.Downstream.Driver = envutil.String("DOWNSTREAM_DRIVER", cfg.Downstream.Driver)
	cfg.Downstream.DSN = envutil.String("DOWNSTREAM_DSN", cfg.Downstream.DSN)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Channel = envutil.String("REDIS_CHANNEL", cfg.Redis.Channel)

	cfg.Tracing.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.Headers = envutil.String("OTEL_EXPORTER_OTLP_HEADERS", cfg.Tracing.Headers)
	cfg.Tracing.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Tracing.Insecure)
	cfg.Tracing.SampleRatio = envutil.Float("OTEL_SAMPLER_RATIO", cfg.Tracing.SampleRatio)

	cfg.Metrics.Enabled = envutil.Bool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.EnableTestControls = envutil.Bool("ENABLE_TEST_CONTROLS", cfg.EnableTestControls)
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Env) == "" {
		c.Env = "development"
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return errors.New("http.addr is required")
	}
	if c.HTTP.MaxRequestBytes <= 0 {
		c.HTTP.MaxRequestBytes = 1 << 20
	}
	if c.Dispatch.MaxAttempts < 1 {
		return fmt.Errorf("dispatch.max_attempts must be at least 1, got %d", c.Dispatch.MaxAttempts)
	}
	if c.Dispatch.InitialDelay.Duration < 0 {
		return errors.New("dispatch.initial_delay must not be negative")
	}
	if c.Dispatch.Factor <= 0 {
		return fmt.Errorf("dispatch.factor must be positive, got %g", c.Dispatch.Factor)
	}
	switch strings.ToLower(strings.TrimSpace(c.Downstream.Driver)) {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("downstream.driver must be sqlite or postgres, got %q", c.Downstream.Driver)
	}
	return nil
}
