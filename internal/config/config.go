package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v10"
	_ "github.com/joho/godotenv/autoload"
)

const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	HTTPPort           int      `env:"PORT" envDefault:"8080"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	DBHost     string `env:"BLUEPRINT_DB_HOST" envDefault:"localhost"`
	DBPort     int    `env:"BLUEPRINT_DB_PORT" envDefault:"5432"`
	DBUser     string `env:"BLUEPRINT_DB_USERNAME" envDefault:"postgres"`
	DBPassword string `env:"BLUEPRINT_DB_PASSWORD" envDefault:"postgres"`
	DBName     string `env:"BLUEPRINT_DB_DATABASE" envDefault:"storefront"`
	DBSchema   string `env:"BLUEPRINT_DB_SCHEMA" envDefault:"public"`

	// Pending order store
	StoreBackend        string `env:"STORE_BACKEND" envDefault:"redis"`
	RedisAddr           string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword       string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB             int    `env:"REDIS_DB" envDefault:"0"`
	PendingOrderTTLMins int    `env:"PENDING_ORDER_TTL_MINUTES" envDefault:"60"`

	// Empty means orders are committed by this service's own order backend.
	OrderAPIURL string `env:"ORDER_API_URL" envDefault:""`

	PaylinkCheckoutURL string `env:"PAYLINK_CHECKOUT_URL" envDefault:"http://localhost:9101/pay"`
	FastPayCheckoutURL string `env:"FASTPAY_CHECKOUT_URL" envDefault:"http://localhost:9102/pay"`
	FastPayBaseURL     string `env:"FASTPAY_BASE_URL" envDefault:"http://localhost:9102"`
	ReturnURL          string `env:"CHECKOUT_RETURN_URL" envDefault:"http://localhost:3000/checkout/return"`

	StatusQueryTimeoutSecs int `env:"STATUS_QUERY_TIMEOUT_SECONDS" envDefault:"10"`
	CommitTimeoutSecs      int `env:"COMMIT_TIMEOUT_SECONDS" envDefault:"15"`

	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Empty disables event publishing.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"checkout.reconciled"`

	ReconcileIntervalSecs int `env:"RECONCILE_INTERVAL_SECONDS" envDefault:"60"`
	ReconcileGraceMins    int `env:"RECONCILE_GRACE_MINUTES" envDefault:"5"`
	ReconcileBatchSize    int `env:"RECONCILE_BATCH_SIZE" envDefault:"50"`

	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.StoreBackend != StoreRedis && c.StoreBackend != StoreMemory {
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreRedis, StoreMemory, c.StoreBackend)
	}
	if c.PendingOrderTTLMins <= 0 {
		return fmt.Errorf("PENDING_ORDER_TTL_MINUTES must be positive")
	}
	if c.StatusQueryTimeoutSecs <= 0 || c.CommitTimeoutSecs <= 0 {
		return fmt.Errorf("status query and commit timeouts must be positive")
	}
	if c.ReconcileIntervalSecs <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL_SECONDS must be positive, got %d", c.ReconcileIntervalSecs)
	}
	if c.ReconcileGraceMins < 0 {
		return fmt.Errorf("RECONCILE_GRACE_MINUTES must not be negative, got %d", c.ReconcileGraceMins)
	}
	if c.ReconcileBatchSize <= 0 {
		return fmt.Errorf("RECONCILE_BATCH_SIZE must be positive, got %d", c.ReconcileBatchSize)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	urls := map[string]string{
		"PAYLINK_CHECKOUT_URL": c.PaylinkCheckoutURL,
		"FASTPAY_CHECKOUT_URL": c.FastPayCheckoutURL,
		"FASTPAY_BASE_URL":     c.FastPayBaseURL,
		"CHECKOUT_RETURN_URL":  c.ReturnURL,
	}
	if c.OrderAPIURL != "" {
		urls["ORDER_API_URL"] = c.OrderAPIURL
	}
	for name, raw := range urls {
		if raw == "" {
			return fmt.Errorf("%s is required", name)
		}
		if _, err := url.ParseRequestURI(raw); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, raw, err)
		}
	}
	return nil
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSchema,
	)
}

func (c *Config) PendingOrderTTL() time.Duration {
	return time.Duration(c.PendingOrderTTLMins) * time.Minute
}

func (c *Config) StatusQueryTimeout() time.Duration {
	return time.Duration(c.StatusQueryTimeoutSecs) * time.Second
}

func (c *Config) CommitTimeout() time.Duration {
	return time.Duration(c.CommitTimeoutSecs) * time.Second
}

func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalSecs) * time.Second
}

func (c *Config) ReconcileGrace() time.Duration {
	return time.Duration(c.ReconcileGraceMins) * time.Minute
}
