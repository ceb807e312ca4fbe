package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the publishing orchestrator
type Config struct {
	// Server configuration
	HTTPPort   int    `env:"DAPUB_HTTP_PORT" envDefault:"8080"`
	GRPCPort   int    `env:"DAPUB_GRPC_PORT" envDefault:"9090"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	EnableCORS bool   `env:"DAPUB_ENABLE_CORS" envDefault:"false"`

	// InstanceID scopes the persisted snapshot when several instances share a store
	InstanceID string `env:"DAPUB_INSTANCE_ID" envDefault:"default"`

	Redis     RedisConfig
	State     StateConfig
	Events    EventsConfig
	Publisher PublisherConfig
	Staging   StagingConfig
	Run       RunConfig
	Workers   WorkerConfig
	Timeouts  TimeoutConfig
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// StateConfig selects where the job snapshot is persisted
type StateConfig struct {
	Backend    string        `env:"STATE_BACKEND" envDefault:"sqlite"`
	SQLitePath string        `env:"SQLITE_PATH" envDefault:"data/dapub.db"`
	RedisTTL   time.Duration `env:"STATE_REDIS_TTL" envDefault:"168h"`
}

// EventsConfig selects the progress event bus
type EventsConfig struct {
	Backend string `env:"EVENTS_BACKEND" envDefault:"memory"`
	Topic   string `env:"EVENTS_TOPIC" envDefault:"run.events"`
	MaxLen  int64  `env:"EVENTS_STREAM_MAXLEN" envDefault:"10000"`
}

// PublisherConfig holds the content platform settings
type PublisherConfig struct {
	Provider    string        `env:"PUBLISHER_PROVIDER" envDefault:"log"`
	Endpoint    string        `env:"WEBHOOK_URL"`
	Token       string        `env:"WEBHOOK_TOKEN"`
	Timeout     time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"60s"`
	RetryCount  int           `env:"WEBHOOK_RETRY_COUNT" envDefault:"0"`
	DryRunDelay time.Duration `env:"PUBLISHER_DRY_RUN_DELAY" envDefault:"0s"`
}

// StagingConfig holds S3-compatible attachment staging settings.
// Staging is disabled when Bucket is empty.
type StagingConfig struct {
	Endpoint  string `env:"S3_ENDPOINT"`
	Region    string `env:"S3_REGION"`
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`
	UseSSL    bool   `env:"S3_USE_SSL" envDefault:"true"`
	Bucket    string `env:"S3_BUCKET"`
	PublicURL string `env:"S3_PUBLIC_URL"`
	Prefix    string `env:"S3_PREFIX" envDefault:"dapub"`
}

// RunConfig holds run loop settings
type RunConfig struct {
	TickInterval time.Duration `env:"RUN_TICK_INTERVAL" envDefault:"1s"`
}

// WorkerConfig holds sink dispatcher and health monitor configuration
type WorkerConfig struct {
	SinkQueueSize       int           `env:"SINK_QUEUE_SIZE" envDefault:"256"`
	SinkDeliveryTimeout time.Duration `env:"SINK_DELIVERY_TIMEOUT" envDefault:"5s"`
	HealthCheckInterval time.Duration `env:"HEALTH_CHECK_INTERVAL" envDefault:"30s"`
	StallThreshold      time.Duration `env:"HEALTH_STALL_THRESHOLD" envDefault:"15m"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables. A .env file in the
// working directory, or the one named by DAPUB_ENV_FILE, is loaded first
// without overriding variables already set.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func loadDotEnv() error {
	path := os.Getenv("DAPUB_ENV_FILE")
	if path == "" {
		path = ".env"
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}
	if c.InstanceID == "" {
		return fmt.Errorf("instance id is required")
	}

	switch c.State.Backend {
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for the redis state backend")
		}
	case "sqlite":
		if c.State.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for the sqlite state backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported state backend: %s (must be redis, sqlite or memory)", c.State.Backend)
	}

	switch c.Events.Backend {
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for the redis events backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported events backend: %s (must be redis or memory)", c.Events.Backend)
	}

	switch c.Publisher.Provider {
	case "webhook":
		if c.Publisher.Endpoint == "" {
			return fmt.Errorf("webhook URL is required for the webhook publisher")
		}
	case "log":
	default:
		return fmt.Errorf("unsupported publisher provider: %s (must be webhook or log)", c.Publisher.Provider)
	}

	if c.Staging.Bucket != "" && c.Staging.PublicURL == "" {
		return fmt.Errorf("S3 public URL is required when attachment staging is enabled")
	}

	if c.Run.TickInterval <= 0 {
		return fmt.Errorf("run tick interval must be positive")
	}
	if c.Workers.SinkQueueSize < 1 {
		return fmt.Errorf("sink queue size must be at least 1")
	}
	if c.Workers.HealthCheckInterval <= 0 {
		return fmt.Errorf("health check interval must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// UsesRedis reports whether any backend needs a Redis connection
func (c *Config) UsesRedis() bool {
	return c.State.Backend == "redis" || c.Events.Backend == "redis"
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
