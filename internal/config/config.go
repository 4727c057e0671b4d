// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Payment provider
	WebhookSecret  string // shared secret for webhook HMAC verification
	CheckoutSecret string // secret for client checkout confirmations (defaults to WebhookSecret)
	SiteID         string // deployment scope tag matched against event metadata

	// Reconciliation sweep
	SweepInterval time.Duration // how often to scan for unreconciled orders
	SweepMaxAge   time.Duration // orders older than this without a webhook are flagged

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint, tracing disabled when empty

	// Security
	AdminSecret  string // X-Admin-Secret header value for admin routes
	RateLimitRPM int
}

// Defaults
const (
	DefaultPort          = "8080"
	DefaultEnv           = "development"
	DefaultLogLevel      = "info"
	DefaultRateLimitRPM  = 120
	DefaultSweepInterval = 10 * time.Minute
	DefaultSweepMaxAge   = time.Hour
)

// Load reads configuration from environment variables.
// It loads a .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", DefaultPort),
		Env:            getEnv("ENV", DefaultEnv),
		LogLevel:       getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:    os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		WebhookSecret:  os.Getenv("WEBHOOK_SECRET"),
		CheckoutSecret: os.Getenv("CHECKOUT_SECRET"),
		SiteID:         os.Getenv("SITE_ID"),
		SweepInterval:  getEnvDuration("SWEEP_INTERVAL", DefaultSweepInterval),
		SweepMaxAge:    getEnvDuration("SWEEP_MAX_AGE", DefaultSweepMaxAge),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		AdminSecret:    os.Getenv("ADMIN_SECRET"),
		RateLimitRPM:   getEnvInt("RATE_LIMIT_RPM", DefaultRateLimitRPM),
	}

	// The checkout path shares the provider secret unless overridden.
	if cfg.CheckoutSecret == "" {
		cfg.CheckoutSecret = cfg.WebhookSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.WebhookSecret == "" {
		return fmt.Errorf("WEBHOOK_SECRET is required")
	}
	if c.SiteID == "" {
		return fmt.Errorf("SITE_ID is required")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
