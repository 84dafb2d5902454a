// Package config provides configuration loading for tierd.
//
// Configuration is loaded from a YAML file with environment variable
// overrides. Validation is fail-fast: a malformed value aborts loading
// rather than being silently replaced at runtime.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/tierd/internal/tier"
)

// ErrInvalidConfig marks configuration that fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete tierd configuration.
type Config struct {
	Engine    EngineConfig    `koanf:"engine"`
	Digest    DigestConfig    `koanf:"digest"`
	Cost      CostConfig      `koanf:"cost"`
	Stats     StatsConfig     `koanf:"stats"`
	Store     StoreConfig     `koanf:"store"`
	Server    ServerConfig    `koanf:"server"`
	Events    EventsConfig    `koanf:"events"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// EngineConfig selects the retrieval mode and its confidence thresholds.
type EngineConfig struct {
	Mode string `koanf:"mode"` // traditional, tiered-only, or hybrid
	// MinConfidence is the hybrid-mode floor below which every tier is loaded.
	MinConfidence float64 `koanf:"min_confidence"`
	// AnalyticalDeep is the confidence above which analytical queries skip
	// the summary tier.
	AnalyticalDeep float64 `koanf:"analytical_deep"`
}

// DigestConfig bounds the generated compression tiers.
type DigestConfig struct {
	Tier0MaxChars int `koanf:"tier0_max_chars"`
	Tier1MaxChars int `koanf:"tier1_max_chars"`
}

// CostConfig converts retrieved bytes into token and dollar estimates.
type CostConfig struct {
	TokensPerByte float64 `koanf:"tokens_per_byte"`
	USDPerToken   float64 `koanf:"usd_per_token"`
}

// StatsConfig holds query-statistics history and persistence settings.
type StatsConfig struct {
	HistoryCapacity int           `koanf:"history_capacity"`
	FlushEvery      int           `koanf:"flush_every"`
	FlushInterval   time.Duration `koanf:"flush_interval"`
	Path            string        `koanf:"path"`
}

// StoreConfig locates the on-disk tier tree. CacheEntries enables an
// in-process read cache in front of it; zero leaves reads uncached.
type StoreConfig struct {
	Root         string        `koanf:"root"`
	CacheEntries int           `koanf:"cache_entries"`
	CacheTTL     time.Duration `koanf:"cache_ttl"`
}

// ServerConfig holds HTTP server configuration. An empty AuthToken
// leaves the API open.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	AuthToken       string        `koanf:"auth_token"`
	RateLimitRPS    float64       `koanf:"rate_limit_rps"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// EventsConfig holds the optional NATS query-event publisher settings.
type EventsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// TelemetryConfig holds OpenTelemetry export configuration.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	Protocol    string `koanf:"protocol"` // grpc or http
	Insecure    bool   `koanf:"insecure"`
	ServiceName string `koanf:"service_name"`
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json or console
}

// Validate checks the configuration after defaults have been applied.
// Every failure wraps ErrInvalidConfig so callers can distinguish
// malformed configuration from I/O errors.
func (c *Config) Validate() error {
	if _, err := tier.ParseMode(c.Engine.Mode); err != nil {
		return fmt.Errorf("%w: engine.mode %q", ErrInvalidConfig, c.Engine.Mode)
	}
	if c.Engine.MinConfidence < 0 || c.Engine.MinConfidence > 1 {
		return fmt.Errorf("%w: engine.min_confidence must be in [0,1], got %v", ErrInvalidConfig, c.Engine.MinConfidence)
	}
	if c.Engine.AnalyticalDeep < 0 || c.Engine.AnalyticalDeep > 1 {
		return fmt.Errorf("%w: engine.analytical_deep must be in [0,1], got %v", ErrInvalidConfig, c.Engine.AnalyticalDeep)
	}

	if c.Digest.Tier0MaxChars <= 0 {
		return fmt.Errorf("%w: digest.tier0_max_chars must be positive, got %d", ErrInvalidConfig, c.Digest.Tier0MaxChars)
	}
	if c.Digest.Tier1MaxChars <= 0 {
		return fmt.Errorf("%w: digest.tier1_max_chars must be positive, got %d", ErrInvalidConfig, c.Digest.Tier1MaxChars)
	}

	if c.Cost.TokensPerByte <= 0 {
		return fmt.Errorf("%w: cost.tokens_per_byte must be positive, got %v", ErrInvalidConfig, c.Cost.TokensPerByte)
	}
	if c.Cost.USDPerToken < 0 {
		return fmt.Errorf("%w: cost.usd_per_token must not be negative, got %v", ErrInvalidConfig, c.Cost.USDPerToken)
	}

	if c.Stats.HistoryCapacity < 0 {
		return fmt.Errorf("%w: stats.history_capacity must not be negative, got %d", ErrInvalidConfig, c.Stats.HistoryCapacity)
	}
	if c.Stats.FlushEvery < 0 {
		return fmt.Errorf("%w: stats.flush_every must not be negative, got %d", ErrInvalidConfig, c.Stats.FlushEvery)
	}
	if c.Stats.FlushInterval < 0 {
		return fmt.Errorf("%w: stats.flush_interval must not be negative, got %v", ErrInvalidConfig, c.Stats.FlushInterval)
	}

	if c.Store.Root == "" {
		return fmt.Errorf("%w: store.root is required", ErrInvalidConfig)
	}
	if c.Store.CacheEntries < 0 {
		return fmt.Errorf("%w: store.cache_entries must not be negative, got %d", ErrInvalidConfig, c.Store.CacheEntries)
	}
	if c.Store.CacheEntries > 0 && c.Store.CacheTTL <= 0 {
		return fmt.Errorf("%w: store.cache_ttl must be positive when the cache is enabled, got %v", ErrInvalidConfig, c.Store.CacheTTL)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port must be in [1,65535], got %d", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("%w: server.rate_limit_rps must not be negative, got %v", ErrInvalidConfig, c.Server.RateLimitRPS)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: server.shutdown_timeout must be positive, got %v", ErrInvalidConfig, c.Server.ShutdownTimeout)
	}

	if c.Events.Enabled && c.Events.URL == "" {
		return fmt.Errorf("%w: events.url is required when events.enabled is true", ErrInvalidConfig)
	}

	switch c.Telemetry.Protocol {
	case "grpc", "http":
	default:
		return fmt.Errorf("%w: telemetry.protocol must be grpc or http, got %q", ErrInvalidConfig, c.Telemetry.Protocol)
	}
	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return fmt.Errorf("%w: telemetry.service_name is required when telemetry.enabled is true", ErrInvalidConfig)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level must be one of debug, info, warn, error, got %q", ErrInvalidConfig, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: logging.format must be json or console, got %q", ErrInvalidConfig, c.Logging.Format)
	}

	return nil
}

// Mode returns the parsed retrieval mode. Call after Validate.
func (c *Config) Mode() tier.Mode {
	m, err := tier.ParseMode(c.Engine.Mode)
	if err != nil {
		return tier.ModeHybrid
	}
	return m
}

// Policy returns the tier selection thresholds.
func (c *Config) Policy() tier.Policy {
	return tier.Policy{
		MinConfidence:  c.Engine.MinConfidence,
		AnalyticalDeep: c.Engine.AnalyticalDeep,
	}
}
