// Package config loads process configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ServerConfig describes the HTTP listen address.
type ServerConfig struct {
	Host string
	Port int
}

// Addr returns host:port for net/http.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig describes the Postgres connection. An empty DSN selects the
// in-memory store for local development.
type DatabaseConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // seconds
}

// LoggingConfig controls log level and format.
type LoggingConfig struct {
	Level  string
	Format string
}

// RedisConfig enables the optional task read cache when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	TTL      int // seconds
}

// ReminderConfig controls the overdue-task sweeper.
type ReminderConfig struct {
	Schedule string
}

// RateLimitConfig bounds per-client request rates.
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// Config is the explicit configuration object handed to the application at
// construction. There is no package-level registry.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Logging      LoggingConfig
	Redis        RedisConfig
	Reminder     ReminderConfig
	RateLimit    RateLimitConfig
	CORSOrigins  []string
	AuditLogPath string
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: envString("SERVER_HOST", "0.0.0.0"),
			Port: envInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			DSN:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envInt("DATABASE_CONN_MAX_LIFETIME", 300),
		},
		Logging: LoggingConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "text"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			TTL:      envInt("REDIS_CACHE_TTL", 60),
		},
		Reminder: ReminderConfig{
			Schedule: envString("REMINDER_SCHEDULE", "@hourly"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envInt("RATE_LIMIT_RPS", 50),
			Burst:             envInt("RATE_LIMIT_BURST", 100),
		},
		CORSOrigins:  splitList(envString("CORS_ALLOWED_ORIGINS", "*")),
		AuditLogPath: os.Getenv("AUDIT_LOG_PATH"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database pool sizes must not be negative")
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive, got %d", c.RateLimit.RequestsPerSecond)
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be positive, got %d", c.RateLimit.Burst)
	}
	if strings.TrimSpace(c.Reminder.Schedule) == "" {
		return fmt.Errorf("REMINDER_SCHEDULE must not be empty")
	}
	return nil
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
