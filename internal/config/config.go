package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const minPollInterval = 50 * time.Millisecond

type Config struct {
	AppEnv string `env:"APP_ENV" default:"development"`
	Port   string `env:"PORT" default:"8000"`

	ClassifierURL     string        `env:"CLASSIFIER_URL"`
	ClassifierTimeout time.Duration `env:"CLASSIFIER_TIMEOUT" default:"10s"`
	MaxImageBytes     int64         `env:"MAX_IMAGE_BYTES" default:"5242880"` // 5 MiB of data URL

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	EnableHSTS     bool     `env:"ENABLE_HSTS" default:"false"`

	RedisURL                 string `env:"REDIS_URL"`
	RateLimitPerMin          int    `env:"RATE_LIMIT_PER_MIN" default:"240"`
	RateLimitBurstMultiplier int    `env:"RATE_LIMIT_BURST_MULTIPLIER" default:"2"`

	FrameDir     string        `env:"FRAME_DIR"`
	PollInterval time.Duration `env:"POLL_INTERVAL" default:"500ms"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"json"`
}

// Load reads configuration from the environment, after applying an optional .env file.
func Load() (*Config, error) {
	cfg, err := LoadEnv()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadEnv reads the environment without validating it. Callers that override
// fields, such as from command-line flags, call Validate afterwards.
func LoadEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, &env.Options{SliceSep: ","}); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return &cfg, nil
}

// PollerEnabled reports whether the server should run its own frame poller.
func (c *Config) PollerEnabled() bool {
	return c.FrameDir != "" && c.ClassifierURL != ""
}

// Validate checks field ranges and the CLASSIFIER_URL/FRAME_DIR pairing.
func (c *Config) Validate() error {
	if c.ClassifierURL != "" {
		u, err := url.Parse(c.ClassifierURL)
		if err != nil {
			return fmt.Errorf("CLASSIFIER_URL is invalid: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("CLASSIFIER_URL must use http or https, got %q", u.Scheme)
		}
	}
	if c.FrameDir != "" && c.ClassifierURL == "" {
		return errors.New("CLASSIFIER_URL is required when FRAME_DIR is set")
	}

	if c.ClassifierTimeout <= 0 {
		return errors.New("CLASSIFIER_TIMEOUT must be positive")
	}
	if c.MaxImageBytes <= 0 {
		return errors.New("MAX_IMAGE_BYTES must be positive")
	}
	if c.RateLimitPerMin <= 0 {
		return errors.New("RATE_LIMIT_PER_MIN must be positive")
	}
	if c.RateLimitBurstMultiplier < 1 {
		return errors.New("RATE_LIMIT_BURST_MULTIPLIER must be at least 1")
	}
	if c.PollInterval < minPollInterval {
		return fmt.Errorf("POLL_INTERVAL must be at least %s", minPollInterval)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text; got %q", c.LogFormat)
	}

	return nil
}
