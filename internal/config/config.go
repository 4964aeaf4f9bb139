// Package config loads the wallpaper-scraper configuration from defaults,
// config files, .env files, the environment and command line flags.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/GaseousIce/wallpaper-scraper/internal/domain/download"
	apperrors "github.com/GaseousIce/wallpaper-scraper/pkg/errors"
)

// ServiceName names the binary in logs, config file names and env prefixes
const ServiceName = "wallpaper-scraper"

// Config holds all configuration for one run
type Config struct {
	Source      string   `koanf:"source"`
	Query       string   `koanf:"query"`
	Queries     []string `koanf:"queries"`
	Limit       int      `koanf:"limit"`
	OutputDir   string   `koanf:"output_dir"`
	Category    string   `koanf:"category"`
	Orientation string   `koanf:"orientation"`
	Resolution  string   `koanf:"resolution"`
	Force       bool     `koanf:"force"`
	Verbose     bool     `koanf:"verbose"`

	// RateLimit is the minimum number of seconds between two requests to
	// the same provider.
	RateLimit     float64 `koanf:"rate_limit"`
	MaxConcurrent int     `koanf:"max_concurrent"`
	MaxInFlight   int     `koanf:"max_in_flight"`

	MaxAttempts int           `koanf:"max_attempts"`
	BackoffBase time.Duration `koanf:"backoff_base"`
	BackoffMax  time.Duration `koanf:"backoff_max"`
	Timeout     time.Duration `koanf:"timeout"`
	RunTimeout  time.Duration `koanf:"run_timeout"`
	GracePeriod time.Duration `koanf:"grace_period"`
	UserAgent   string        `koanf:"user_agent"`

	APIKeys        map[string]string        `koanf:"api_keys"`
	Endpoints      map[string]string        `koanf:"endpoints"`
	ProviderLimits map[string]ProviderLimit `koanf:"provider_limits"`

	Log    LogConfig    `koanf:"log"`
	Events EventsConfig `koanf:"events"`
	Mirror MirrorConfig `koanf:"mirror"`
}

// ProviderLimit overrides the global limits for one provider
type ProviderLimit struct {
	RateLimit   *float64 `koanf:"rate_limit"`
	MaxInFlight int      `koanf:"max_in_flight"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level       string `koanf:"level"`  // debug, info, warn, error
	Format      string `koanf:"format"` // json, console
	Environment string `koanf:"environment"`
}

// EventsConfig selects the optional task event sink
type EventsConfig struct {
	Driver     string      `koanf:"driver"` // none, nats, kafka
	BufferSize int         `koanf:"buffer_size"`
	NATS       NATSConfig  `koanf:"nats"`
	Kafka      KafkaConfig `koanf:"kafka"`
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	URL           string        `koanf:"url"`
	ClientID      string        `koanf:"client_id"`
	Stream        string        `koanf:"stream"`
	MaxReconnect  int           `koanf:"max_reconnect"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
	MaxAge        time.Duration `koanf:"max_age"`
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers  []string `koanf:"brokers"`
	Topic    string   `koanf:"topic"`
	ClientID string   `koanf:"client_id"`
}

// MirrorConfig configures the post-run object store copy
type MirrorConfig struct {
	S3 S3Config `koanf:"s3"`
}

// S3Config holds S3/MinIO configuration
type S3Config struct {
	Bucket       string `koanf:"bucket"`
	Prefix       string `koanf:"prefix"`
	Region       string `koanf:"region"`
	Endpoint     string `koanf:"endpoint"`
	UsePathStyle bool   `koanf:"use_path_style"`
}

// Enabled reports whether a bucket was configured
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Event drivers
const (
	EventsNone  = "none"
	EventsNATS  = "nats"
	EventsKafka = "kafka"
)

// Orientation settings. Any searches every orientation.
const (
	OrientationLandscape = "landscape"
	OrientationAny       = "any"
)

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Source:        string(download.ProviderWallhaven),
		Limit:         10,
		OutputDir:     "./wallpapers",
		Orientation:   OrientationLandscape,
		RateLimit:     1.0,
		MaxConcurrent: 3,
		MaxInFlight:   3,
		MaxAttempts:   download.DefaultMaxAttempts,
		BackoffBase:   time.Second,
		BackoffMax:    30 * time.Second,
		Timeout:       60 * time.Second,
		GracePeriod:   5 * time.Second,
		UserAgent:     "wallpaper-scraper/1.0",
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			Environment: "production",
		},
		Events: EventsConfig{
			Driver:     EventsNone,
			BufferSize: 256,
			NATS: NATSConfig{
				URL:           "nats://localhost:4222",
				ClientID:      ServiceName,
				Stream:        "WALLPAPER_EVENTS",
				MaxReconnect:  5,
				ReconnectWait: 2 * time.Second,
				MaxAge:        7 * 24 * time.Hour,
			},
			Kafka: KafkaConfig{
				Brokers:  []string{"localhost:9092"},
				Topic:    "wallpaper-events",
				ClientID: ServiceName,
			},
		},
		Mirror: MirrorConfig{
			S3: S3Config{
				Region: "us-east-1",
			},
		},
	}
}

// Validate checks every option and normalizes derived values
func (c *Config) Validate() error {
	if _, err := download.ParseSource(c.Source); err != nil {
		return err
	}
	if c.Limit < 1 {
		return apperrors.Config(fmt.Sprintf("limit must be positive, got %d", c.Limit))
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return apperrors.Config("output directory is required")
	}
	if c.RateLimit < 0 {
		return apperrors.RateLimitConfig("", fmt.Sprintf("rate limit must not be negative, got %g", c.RateLimit))
	}
	if c.MaxConcurrent < 1 {
		return apperrors.Config(fmt.Sprintf("max concurrent must be at least 1, got %d", c.MaxConcurrent))
	}
	if c.MaxInFlight < 1 {
		return apperrors.RateLimitConfig("", fmt.Sprintf("max in-flight must be at least 1, got %d", c.MaxInFlight))
	}
	if c.MaxAttempts < 1 {
		return apperrors.Config(fmt.Sprintf("max attempts must be at least 1, got %d", c.MaxAttempts))
	}
	if c.BackoffBase < 0 || c.BackoffMax < 0 {
		return apperrors.Config("backoff durations must not be negative")
	}
	if c.Timeout < 0 || c.RunTimeout < 0 || c.GracePeriod < 0 {
		return apperrors.Config("timeouts must not be negative")
	}

	for name, limit := range c.ProviderLimits {
		if _, err := download.ParseProvider(name); err != nil {
			return err
		}
		if limit.RateLimit != nil && *limit.RateLimit < 0 {
			return apperrors.RateLimitConfig(name, fmt.Sprintf("rate limit must not be negative, got %g", *limit.RateLimit))
		}
		if limit.MaxInFlight < 0 {
			return apperrors.RateLimitConfig(name, fmt.Sprintf("max in-flight must not be negative, got %d", limit.MaxInFlight))
		}
	}
	for _, m := range []map[string]string{c.APIKeys, c.Endpoints} {
		for name := range m {
			if _, err := download.ParseProvider(name); err != nil {
				return err
			}
		}
	}

	for _, q := range c.SearchQueries() {
		if err := q.Validate(); err != nil {
			return err
		}
	}

	if !slices.Contains([]string{"", EventsNone, EventsNATS, EventsKafka}, c.Events.Driver) {
		return apperrors.Config(fmt.Sprintf("unknown events driver %q", c.Events.Driver))
	}
	if c.Events.Driver == EventsKafka && len(c.Events.Kafka.Brokers) == 0 {
		return apperrors.Config("kafka events need at least one broker")
	}
	if !slices.Contains([]string{"json", "console"}, c.Log.Format) {
		return apperrors.Config(fmt.Sprintf("unknown log format %q", c.Log.Format))
	}

	if c.Verbose {
		c.Log.Level = "debug"
	}
	return nil
}
