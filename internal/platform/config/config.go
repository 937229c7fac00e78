package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	platformstrings "nidapi/pkg/platform/strings"
)

// Config is the full runtime configuration, built once in main.
type Config struct {
	Server    Server
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
	Billing   BillingConfig
	Admin     AdminConfig
	LogLevel  slog.Level
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// DatabaseConfig selects Postgres stores when URL is set; in-memory otherwise.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig enables the Redis rate-limit buckets when URL is set.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables the usage publisher when Brokers is non-empty.
type KafkaConfig struct {
	Brokers    []string
	UsageTopic string
}

type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
}

type BillingConfig struct {
	// TokenCost is charged per successful extraction.
	TokenCost int64
}

type AdminConfig struct {
	// TokenHash is a bcrypt hash of the operator token. Empty disables /admin.
	TokenHash string
}

const (
	DefaultAddr              = ":8080"
	DefaultRequestsPerWindow = 1000
	DefaultWindow            = time.Hour
	DefaultTokenCost         = 1
	DefaultUsageTopic        = "nid.usage"
)

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (*Config, error) {
	var errs []error

	cfg := &Config{
		Server: Server{
			Addr:            envOr("NID_ADDR", DefaultAddr),
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		},
		Kafka: KafkaConfig{
			Brokers:    platformstrings.SplitList(os.Getenv("KAFKA_BROKERS")),
			UsageTopic: envOr("KAFKA_USAGE_TOPIC", DefaultUsageTopic),
		},
		Admin: AdminConfig{
			TokenHash: os.Getenv("ADMIN_TOKEN_HASH"),
		},
	}

	var err error
	if cfg.RateLimit.RequestsPerWindow, err = envInt("RATE_LIMIT_REQUESTS", DefaultRequestsPerWindow); err != nil {
		errs = append(errs, err)
	}
	if cfg.RateLimit.Window, err = envDuration("RATE_LIMIT_WINDOW", DefaultWindow); err != nil {
		errs = append(errs, err)
	}
	cost, err := envInt("TOKEN_COST", DefaultTokenCost)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Billing.TokenCost = int64(cost)

	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(raw)); err != nil {
			errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.RateLimit.RequestsPerWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	if c.Billing.TokenCost <= 0 {
		errs = append(errs, errors.New("TOKEN_COST must be positive"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.UsageTopic == "" {
		errs = append(errs, errors.New("KAFKA_USAGE_TOPIC is required when KAFKA_BROKERS is set"))
	}
	return errors.Join(errs...)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
