// Package config defines service configuration and its layered loading.
//
// Conventions:
//   - New(ctx) returns a Config populated with defaults.
//   - Load(ctx) layers a YAML file and COURTSIDE_* environment variables on top.
//   - Validate reports problems wrapped in ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StoreDynamoDB = "dynamodb"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Store selects the session store backend: memory, sqlite or dynamodb.
	Store              string `koanf:"store"`
	SQLiteDSN          string `koanf:"sqlite_dsn"`
	DynamoRegion       string `koanf:"dynamo_region"`
	DynamoEndpoint     string `koanf:"dynamo_endpoint"`
	DynamoTablePrefix  string `koanf:"dynamo_table_prefix"`
	MaxListLimit       int    `koanf:"max_list_limit"`
	MaxLeaderboardSize int    `koanf:"max_leaderboard_limit"`

	// Rating model.
	KFactor     float64 `koanf:"k_factor"`
	RatingFloor int     `koanf:"rating_floor"`
	DefaultElo  int     `koanf:"default_elo"`

	// Global skill level bounds.
	SkillMin float64 `koanf:"skill_min"`
	SkillMax float64 `koanf:"skill_max"`

	// MaxAttempts bounds retries on store conflict/unavailable.
	MaxAttempts      int `koanf:"max_attempts"`
	RetryBackoffMS   int `koanf:"retry_backoff_ms"`
	OperationTimeout int `koanf:"operation_timeout_ms"`

	// Notification pipeline.
	NotifyQueueSize int    `koanf:"notify_queue_size"`
	NotifyWorkers   int    `koanf:"notify_workers"`
	DedupeSize      int    `koanf:"dedupe_size"`
	AMQPURL         string `koanf:"amqp_url"`
	AMQPExchange    string `koanf:"amqp_exchange"`

	// Identity.
	JWTSecret string `koanf:"jwt_secret"`
	JWTIssuer string `koanf:"jwt_issuer"`

	// CORSOrigins is a comma separated list of allowed origins.
	CORSOrigins string `koanf:"cors_origins"`
}

// New creates a Config with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		Store:              StoreMemory,
		SQLiteDSN:          "file:courtside.db?_pragma=journal_mode(WAL)",
		DynamoRegion:       "us-east-1",
		DynamoTablePrefix:  "courtside_",
		MaxListLimit:       100,
		MaxLeaderboardSize: 100,
		KFactor:            32,
		RatingFloor:        100,
		DefaultElo:         1200,
		SkillMin:           1.0,
		SkillMax:           7.0,
		MaxAttempts:        8,
		RetryBackoffMS:     5,
		OperationTimeout:   2000,
		NotifyQueueSize:    10_000,
		NotifyWorkers:      runtime.NumCPU(),
		DedupeSize:         50_000,
		AMQPExchange:       "courtside.events",
		CORSOrigins:        "*",
	}
}

// RetryBackoff returns the base retry delay.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMS) * time.Millisecond
}

// Timeout returns the per-operation deadline applied by the HTTP layer.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.OperationTimeout) * time.Millisecond
}

// Origins splits CORSOrigins.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Store != StoreMemory && c.Store != StoreSQLite && c.Store != StoreDynamoDB:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	case c.KFactor <= 0:
		return fmt.Errorf("%w: k_factor must be positive", ErrInvalidConfig)
	case c.RatingFloor < 0 || c.DefaultElo < c.RatingFloor:
		return fmt.Errorf("%w: default_elo must be at or above rating_floor", ErrInvalidConfig)
	case c.SkillMin > c.SkillMax:
		return fmt.Errorf("%w: skill_min above skill_max", ErrInvalidConfig)
	case c.MaxAttempts < 1:
		return fmt.Errorf("%w: max_attempts must be at least 1", ErrInvalidConfig)
	case c.NotifyQueueSize < 1 || c.NotifyWorkers < 1:
		return fmt.Errorf("%w: notify queue and workers must be positive", ErrInvalidConfig)
	case c.MaxListLimit < 1:
		return fmt.Errorf("%w: max_list_limit must be positive", ErrInvalidConfig)
	}
	return nil
}
