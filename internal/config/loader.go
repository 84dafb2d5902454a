package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// envPrefix namespaces tierd environment overrides so unrelated
	// variables never leak into the configuration.
	envPrefix = "TIERD_"
)

// LoadWithFile loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (TIERD_SERVER_PORT, TIERD_ENGINE_MODE, etc.)
//  2. YAML config file
//  3. Hardcoded defaults
//
// The configPath parameter specifies the YAML file to load. If empty, the
// default path ~/.config/tierd/config.yaml is used. A missing file is not
// an error; defaults and environment variables still apply.
//
// # Security Considerations
//
// Group- or world-writable configuration files are rejected: the daemon
// reloads configuration on change, so a file writable by other users would
// let them reconfigure a running service. Files larger than 1MB are
// rejected to bound memory use. Symlinks are resolved before validation.
//
// # Environment Variable Mapping
//
// Variables carry the TIERD_ prefix, then section and field separated by
// the first underscore:
//
//	TIERD_SERVER_PORT            -> server.port
//	TIERD_ENGINE_MIN_CONFIDENCE  -> engine.min_confidence
//	TIERD_STATS_FLUSH_INTERVAL   -> stats.flush_interval
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	if configPath == "" {
		configPath = filepath.Join(home, ".config", "tierd", "config.yaml")
	}

	configPath, err = resolveConfigPath(configPath)
	if err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	// Load from YAML file if it exists
	if _, err := os.Stat(configPath); err == nil {
		// Open once and validate through the file descriptor to avoid a
		// TOCTOU race between stat and read.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}

		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Override with environment variables.
	// Strip the prefix, then split on the first underscore: the head is
	// the section, the tail keeps its underscores as the field name.
	//
	// Examples:
	//   TIERD_SERVER_PORT           -> server.port
	//   TIERD_DIGEST_TIER0_MAX_CHARS -> digest.tier0_max_chars
	//   TIERD_SERVER_RATE_LIMIT_RPS -> server.rate_limit_rps
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)

		if len(parts) == 1 {
			return lower
		}

		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg, home)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// EnsureConfigDir creates the tierd config directory if it doesn't exist.
// The directory is created with 0700 permissions (owner only).
func EnsureConfigDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(home, ".config", "tierd")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}

	return nil
}

// resolveConfigPath normalizes the path and resolves symlinks so file
// property checks apply to the real target.
func resolveConfigPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	// If symlink evaluation fails the path may simply not exist yet;
	// continue with the absolute path.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolvedPath = absPath
	}

	return resolvedPath, nil
}

// validateConfigFileProperties checks file permissions and size.
// Takes FileInfo from an already-opened file descriptor to avoid a TOCTOU
// race.
func validateConfigFileProperties(info os.FileInfo) error {
	// Reject group/world-writable files. Skip on Windows (different
	// permission model).
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm&0o022 != 0 {
			return fmt.Errorf("insecure config file permissions: %v (must not be group or world writable)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config, home string) {
	// Engine defaults
	if cfg.Engine.Mode == "" {
		cfg.Engine.Mode = "hybrid"
	}
	if cfg.Engine.MinConfidence == 0 {
		cfg.Engine.MinConfidence = 0.6
	}
	if cfg.Engine.AnalyticalDeep == 0 {
		cfg.Engine.AnalyticalDeep = 0.7
	}

	// Digest defaults
	if cfg.Digest.Tier0MaxChars == 0 {
		cfg.Digest.Tier0MaxChars = 100
	}
	if cfg.Digest.Tier1MaxChars == 0 {
		cfg.Digest.Tier1MaxChars = 500
	}

	// Cost defaults
	if cfg.Cost.TokensPerByte == 0 {
		cfg.Cost.TokensPerByte = 0.25
	}
	if cfg.Cost.USDPerToken == 0 {
		cfg.Cost.USDPerToken = 0.000001
	}

	// Store defaults (before stats, whose path derives from the root)
	if cfg.Store.Root == "" {
		cfg.Store.Root = filepath.Join(home, ".config", "tierd", "corpus")
	}
	if cfg.Store.CacheTTL == 0 {
		cfg.Store.CacheTTL = 5 * time.Minute
	}

	// Stats defaults
	if cfg.Stats.HistoryCapacity == 0 {
		cfg.Stats.HistoryCapacity = 50
	}
	if cfg.Stats.FlushEvery == 0 {
		cfg.Stats.FlushEvery = 10
	}
	if cfg.Stats.FlushInterval == 0 {
		cfg.Stats.FlushInterval = time.Minute
	}
	if cfg.Stats.Path == "" {
		cfg.Stats.Path = filepath.Join(cfg.Store.Root, "stats", "stats.json")
	}

	// Server defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9090
	}
	if cfg.Server.RateLimitRPS == 0 {
		cfg.Server.RateLimitRPS = 20
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	// Events defaults
	if cfg.Events.URL == "" {
		cfg.Events.URL = "nats://127.0.0.1:4222"
	}
	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "tierd"
	}

	// Telemetry defaults
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "tierd"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
