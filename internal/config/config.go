package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds the application configuration.
type Config struct {
	ServerPort         int
	DatabasePath       string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	JWTSecret          string
	AppEnv             string
	AuditRetentionDays int
	AuditSweepSchedule string
}

// Load loads configuration from a .env file (if present) and the
// environment, with sensible defaults for local development.
func Load() (*Config, error) {
	// A missing .env file is fine; the environment still applies.
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	retentionDays, err := strconv.Atoi(getEnv("AUDIT_RETENTION_DAYS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUDIT_RETENTION_DAYS: %w", err)
	}

	sweepSchedule := getEnv("AUDIT_SWEEP_SCHEDULE", "0 3 * * *")
	if _, err := cron.ParseStandard(sweepSchedule); err != nil {
		return nil, fmt.Errorf("invalid AUDIT_SWEEP_SCHEDULE: %w", err)
	}

	return &Config{
		ServerPort:         port,
		DatabasePath:       getEnv("DATABASE_PATH", "./userhub.db"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            redisDB,
		JWTSecret:          getEnv("JWT_SECRET", ""),
		AppEnv:             getEnv("APP_ENV", "development"),
		AuditRetentionDays: retentionDays,
		AuditSweepSchedule: sweepSchedule,
	}, nil
}

// IsDevelopment reports whether the app runs in development mode, which
// controls error-detail disclosure in responses.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
