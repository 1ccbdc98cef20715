// Package config loads the pipeline's environment-variable configuration
// into a typed struct tree.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full set of environment variables the pipeline
// recognises (spec.md §6 "Environment / configuration").
type Config struct {
	ProjectID string `env:"PROJECT_ID" envDefault:"navigo-fleet"`
	Region    string `env:"REGION" envDefault:"us-central1"`

	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`

	Database Database
	Bus      Bus
	Twilio   Twilio

	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`

	ConfidenceThreshold float64       `env:"CONFIDENCE_THRESHOLD" envDefault:"0.85"`
	DuplicateWindow     time.Duration `env:"DUPLICATE_WINDOW_SECONDS" envDefault:"30s"`
}

// Database holds connection-pool settings for pkg/store.
type Database struct {
	URL             string        `env:"DATABASE_URL,required"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	ConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"15m"`
}

// Bus holds poll/visibility tuning for pkg/bus.
type Bus struct {
	PollInterval      time.Duration `env:"BUS_POLL_INTERVAL" envDefault:"1s"`
	PollJitter        time.Duration `env:"BUS_POLL_JITTER" envDefault:"500ms"`
	VisibilityTimeout time.Duration `env:"BUS_VISIBILITY_TIMEOUT" envDefault:"45s"`
	WorkerCount       int           `env:"BUS_WORKER_COUNT" envDefault:"5"`
}

// Twilio holds telephony provider credentials for pkg/telephony.
type Twilio struct {
	AccountSID    string `env:"TWILIO_ACCOUNT_SID"`
	AuthToken     string `env:"TWILIO_AUTH_TOKEN"`
	FromNumber    string `env:"TWILIO_FROM_NUMBER"`
	WebhookBaseURL string `env:"TWILIO_WEBHOOK_BASE_URL"`
}

// Load reads a local .env file if present (ignored if missing, mirroring
// cmd/tarsy/main.go's godotenv bootstrap) and parses the environment into
// a Config.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Enabled reports whether Twilio credentials are present. Stages that
// place calls treat a disabled Twilio config as a no-op rather than an
// error, mirroring pkg/slack.Service's nil-safe pattern.
func (t Twilio) Enabled() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.FromNumber != ""
}
