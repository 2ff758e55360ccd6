package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// Config holds all configuration for the kernelbox daemons and CLI.
type Config struct {
	Port     int    // resource daemon listen port
	RootDir  string // served root inside the sandbox
	LogLevel string

	// CLI / host-side defaults
	Image             string // sandbox image ("" = built-in default)
	ExecuteTimeoutSec int    // per-execution timeout in seconds
	MaxSessions       int    // session registry cap
	IdleTimeoutSec    int    // rolling idle timeout before a session is reaped
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:     8900,
		RootDir:  envOrDefault("KERNELBOX_ROOT_DIR", "/app"),
		LogLevel: envOrDefault("KERNELBOX_LOG_LEVEL", "info"),

		Image:             os.Getenv("KERNELBOX_IMAGE"),
		ExecuteTimeoutSec: envOrDefaultInt("KERNELBOX_EXECUTE_TIMEOUT_SEC", 120),
		MaxSessions:       envOrDefaultInt("KERNELBOX_MAX_SESSIONS", 16),
		IdleTimeoutSec:    envOrDefaultInt("KERNELBOX_IDLE_TIMEOUT_SEC", 300),
	}

	if portStr := os.Getenv("KERNELBOX_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid KERNELBOX_PORT %q: %w", portStr, err)
		}
		cfg.Port = port
	}

	return cfg, nil
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
