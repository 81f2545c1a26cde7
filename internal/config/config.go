package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Port      int    `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	StoreDriver  string        `env:"STORE_DRIVER" envDefault:"postgres"` // postgres or memory
	DatabaseURL  string        `env:"DATABASE_URL"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`

	JWTSecret string `env:"JWT_SECRET"`
	JWKSURL   string `env:"JWKS_URL"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	AnalyticsCacheTTL        time.Duration `env:"ANALYTICS_CACHE_TTL" envDefault:"5m"`
	AnalyticsRefreshInterval time.Duration `env:"ANALYTICS_REFRESH_INTERVAL" envDefault:"5m"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT" envDefault:"localhost:9000"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY" envDefault:"minioadmin"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY" envDefault:"minioadmin"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	ExportBucket   string `env:"EXPORT_BUCKET" envDefault:"order-exports"`

	OrderNumberPrefix  string `env:"ORDER_NUMBER_PREFIX" envDefault:"ORD-"`
	SequenceMaxRetries int    `env:"SEQUENCE_MAX_RETRIES" envDefault:"3"`

	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	// Per-user requests per minute for export and demo data; 0 disables the limit.
	ExpensiveRateLimit int `env:"EXPENSIVE_RATE_LIMIT" envDefault:"10"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	switch cfg.StoreDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errDatabaseURLRequired
		}
	case "memory":
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownStoreDriver, cfg.StoreDriver)
	}
	return cfg, nil
}
