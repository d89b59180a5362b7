package config

import "time"

// Duration reads "200ms" style strings or integer nanoseconds from YAML.
type Duration struct {
	time.Duration
}

type HTTPConfig struct {
	Addr              string   `yaml:"addr"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout"`
	ReadTimeout       Duration `yaml:"read_timeout"`
	WriteTimeout      Duration `yaml:"write_timeout"`
	IdleTimeout       Duration `yaml:"idle_timeout"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout"`
	MaxRequestBytes   int64    `yaml:"max_request_bytes"`
	CORSOrigins       []string `yaml:"cors_origins"`
}

// DispatchConfig is the retry policy of the critical SENT transition.
type DispatchConfig struct {
	MaxAttempts  int      `yaml:"max_attempts"`
	InitialDelay Duration `yaml:"initial_delay"`
	Factor       float64  `yaml:"factor"`
	Jitter       bool     `yaml:"jitter"`
}

type LetterConfig struct {
	Timeout Duration `yaml:"timeout"`
}

type DownstreamConfig struct {
	// Driver is sqlite or postgres.
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	LogLevel string `yaml:"log_level"`
}

// RedisConfig enables the redis welcome-letter channel when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`
	Headers     string  `yaml:"headers"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	Env        string           `yaml:"env"`
	Version    string           `yaml:"version"`
	HTTP       HTTPConfig       `yaml:"http"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	Letter     LetterConfig     `yaml:"letter"`
	Downstream DownstreamConfig `yaml:"downstream"`
	Redis      RedisConfig      `yaml:"redis"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Metrics    MetricsConfig    `yaml:"metrics"`

	// EnableTestControls exposes POST /api/test/dispatch-failures.
	EnableTestControls bool `yaml:"enable_test_controls"`
}
