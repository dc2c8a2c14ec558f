// Package config loads application configuration from environment variables
// with sensible defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/clearcrew/fieldops/internal/logger"
)

// Config holds all configuration for the fieldops services
type Config struct {
	// DatabasePath is the SQLite database file path
	DatabasePath string
	// RedisURL is the connection URL for Redis (events, sweep lock)
	RedisURL string
	// NotificationsEnabled controls whether domain events are published
	NotificationsEnabled bool
	// APIPort is the port the API server listens on
	APIPort string
	// AutogenDisabled turns the periodic sweep off entirely
	AutogenDisabled bool
	// TestMode also disables the sweep, so test environments never generate
	// background jobs
	TestMode bool
	// AutogenInterval is the sweep cadence as configured: zero when unset,
	// negative when unparseable. The scheduler applies its default and floor.
	AutogenInterval time.Duration
	// AutogenCron optionally replaces the fixed interval with a standard
	// 5-field cron expression
	AutogenCron string
	// Logging configuration
	Logging *logger.Config
}

// SweepEnabled reports whether the periodic sweep should run
func (c *Config) SweepEnabled() bool {
	return !c.AutogenDisabled && !c.TestMode
}

// LoadConfig loads configuration from environment variables with sensible
// defaults.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		DatabasePath:         getEnv("DATABASE_PATH", "fieldops.db"),
		RedisURL:             getEnv("REDIS_URL", "redis://localhost:6379"),
		NotificationsEnabled: getEnvAsBool("NOTIFICATIONS_ENABLED", true),
		APIPort:              getEnv("API_PORT", "8080"),
		AutogenDisabled:      getEnvAsBool("RECURRING_AUTOGEN_DISABLED", false),
		TestMode:             getEnvAsBool("FIELDOPS_TEST_MODE", false),
		AutogenInterval:      loadAutogenInterval(),
		AutogenCron:          getEnv("RECURRING_AUTOGEN_CRON", ""),
		Logging:              loadLoggingConfig(),
	}

	if cfg.DatabasePath == "" {
		return nil, fmt.Errorf("DATABASE_PATH cannot be empty")
	}
	if cfg.RedisURL == "" && cfg.NotificationsEnabled {
		return nil, fmt.Errorf("REDIS_URL cannot be empty when notifications are enabled")
	}
	if cfg.APIPort == "" {
		return nil, fmt.Errorf("API_PORT cannot be empty")
	}

	if err := cfg.Logging.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	return cfg, nil
}

// loadAutogenInterval reads RECURRING_AUTOGEN_INTERVAL_MS and passes the
// value through verbatim: zero means unset, negative means unparseable. The
// scheduler substitutes its default for both, with a warning, since config
// loading runs before the logger is set up.
func loadAutogenInterval() time.Duration {
	valueStr := os.Getenv("RECURRING_AUTOGEN_INTERVAL_MS")
	if valueStr == "" {
		return 0
	}
	ms, err := strconv.Atoi(valueStr)
	if err != nil {
		return -time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration retrieves an environment variable as a duration or returns a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// loadLoggingConfig loads logging configuration from environment variables
func loadLoggingConfig() *logger.Config {
	cfg := logger.DefaultConfig()

	if level := getEnv("LOG_LEVEL", ""); level != "" {
		cfg.Level = logger.LogLevel(level)
	}
	if format := getEnv("LOG_FORMAT", ""); format != "" {
		cfg.Format = logger.LogFormat(format)
	}

	// Tier 1: Console
	cfg.Console.Enabled = getEnvAsBool("LOG_CONSOLE_ENABLED", true)
	cfg.Console.Color = getEnvAsBool("LOG_COLOR", true)
	cfg.Console.BufferSize = getEnvAsInt("LOG_CONSOLE_BUFFER_SIZE", 65536)
	cfg.Console.FlushInterval = getEnvAsDuration("LOG_CONSOLE_FLUSH_INTERVAL", 100*time.Millisecond)

	// Tier 2: File
	cfg.File.Enabled = getEnvAsBool("LOG_FILE_ENABLED", false)
	cfg.File.Path = getEnv("LOG_FILE_PATH", "/var/log/fieldops/fieldops.log")
	cfg.File.MaxSizeMB = getEnvAsInt("LOG_FILE_MAX_SIZE_MB", 100)
	cfg.File.MaxBackups = getEnvAsInt("LOG_FILE_MAX_BACKUPS", 5)
	cfg.File.MaxAgeDays = getEnvAsInt("LOG_FILE_MAX_AGE_DAYS", 30)
	cfg.File.Compress = getEnvAsBool("LOG_FILE_COMPRESS", true)
	cfg.File.BufferSize = getEnvAsInt("LOG_FILE_BUFFER_SIZE", 10000)
	cfg.File.BatchSize = getEnvAsInt("LOG_FILE_BATCH_SIZE", 100)
	cfg.File.BatchInterval = getEnvAsDuration("LOG_FILE_BATCH_INTERVAL", 100*time.Millisecond)

	return cfg
}
