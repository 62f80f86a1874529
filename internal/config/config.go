// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/reminders.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // Europe/Vienna without system zoneinfo
)

// --------------------------------------------------------------------------
// Table names — single source of truth, matches internal/db/schema.sql
// --------------------------------------------------------------------------

const (
	ComponentsTable = "maintenance_components"
	PropertiesTable = "properties"
	IntervalsTable  = "maintenance_intervals"
	ProfilesTable   = "profiles"
)

// DefaultTimezone defines the calendar day for sweeps and risk scores.
const DefaultTimezone = "Europe/Vienna"

// --------------------------------------------------------------------------
// Config struct — populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Sweep trigger
	CronSecret    string
	SweepSchedule string // cron expression; empty = external trigger only
	Timezone      string
	AppURL        string

	// Email
	EmailFrom    string
	ResendAPIKey string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPUseTLS   bool

	// Sent-marker ledger
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NotifyDedupe  bool

	// Push
	AMQPURL   string
	PushQueue string

	// Cache / observability
	CacheEnabled    bool
	MetricsEnabled  bool
	ListenerEnabled bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", envOr("SUPABASE_DB_URL", ""))
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL or SUPABASE_DB_URL must be set")
	}

	loc, err := LoadLocation()
	if err != nil {
		return nil, err
	}
	tz := loc.String()

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 1),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 5),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8080)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		CronSecret:    envOr("CRON_SECRET", ""),
		SweepSchedule: envOr("SWEEP_SCHEDULE", ""),
		Timezone:      tz,
		AppURL:        strings.TrimRight(envOr("APP_URL", "https://immowaechter.at"), "/"),

		EmailFrom:    envOr("EMAIL_FROM", "ImmoWächter <erinnerung@immowaechter.at>"),
		ResendAPIKey: envOr("RESEND_API_KEY", ""),
		SMTPHost:     envOr("SMTP_HOST", ""),
		SMTPPort:     envInt("SMTP_PORT", 587),
		SMTPUsername: envOr("SMTP_USERNAME", ""),
		SMTPPassword: envOr("SMTP_PASSWORD", ""),
		SMTPUseTLS:   envBool("SMTP_TLS", false),

		RedisAddr:     envOr("REDIS_ADDR", ""),
		RedisPassword: envOr("REDIS_PASSWORD", ""),
		RedisDB:       envInt("REDIS_DB", 0),
		NotifyDedupe:  envBool("NOTIFY_DEDUPE", false),

		AMQPURL:   envOr("AMQP_URL", ""),
		PushQueue: envOr("PUSH_QUEUE", "maintenance.reminders"),

		CacheEnabled:    envBool("CACHE_ENABLED", true),
		MetricsEnabled:  envBool("METRICS_ENABLED", true),
		ListenerEnabled: envBool("LISTENER_ENABLED", true),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// LoadLocation resolves TIMEZONE on its own, for commands that need "today"
// without a database.
func LoadLocation() (*time.Location, error) {
	tz := envOr("TIMEZONE", DefaultTimezone)
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}
	return loc, nil
}

// Location returns the time zone that defines "today" for sweeps.
// Load has already validated the name.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DedupeEnabled reports whether the sent-marker ledger should be wired.
func (c *Config) DedupeEnabled() bool {
	return c.NotifyDedupe && c.RedisAddr != ""
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
