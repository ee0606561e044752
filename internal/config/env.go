// -------------------------------------------------------------------------------
// Environment Configuration - Variable-Only Startup
//
// Author: Alex Freidah
//
// Builds a Config from process environment variables when no YAML file is
// supplied. Variable names match the ones the desktop build reads, so an
// existing .env keeps working. Malformed values log a warning and fall back
// to the default rather than aborting startup.
// -------------------------------------------------------------------------------

package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
)

// Environment variable names.
const (
	EnvPrimaryURL     = "DATABASE_URL_LOCAL"
	EnvSecondaryURL   = "DATABASE_URL_CLOUD"
	EnvServerHost     = "SERVER_HOST"
	EnvServerPort     = "SERVER_PORT"
	EnvEnableSync     = "ENABLE_CLOUD_SYNC"
	EnvSyncInterval   = "CLOUD_SYNC_INTERVAL"
	EnvLogLevel       = "LOG_LEVEL"
	EnvAuthToken      = "RECORDS_AUTH_TOKEN"
	EnvMetricsEnabled = "METRICS_ENABLED"
)

// FromEnv builds and validates a Config from environment variables.
func FromEnv() (*Config, error) {
	host := stringEnv(EnvServerHost, "127.0.0.1")
	port := intEnv(EnvServerPort, 8080)

	cfg := Config{
		Server: ServerConfig{
			ListenAddr: net.JoinHostPort(host, strconv.Itoa(port)),
		},
		Auth: AuthConfig{
			Token: os.Getenv(EnvAuthToken),
		},
		Database: DatabasesConfig{
			Primary:   DatabaseConfig{URL: os.Getenv(EnvPrimaryURL)},
			Secondary: DatabaseConfig{URL: os.Getenv(EnvSecondaryURL)},
		},
		Sync: SyncConfig{
			Disabled:             !boolEnv(EnvEnableSync, true),
			ProbeIntervalSeconds: intEnv(EnvSyncInterval, 300),
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: boolEnv(EnvMetricsEnabled, false)},
		},
		Log: LogConfig{
			Level: strings.ToLower(stringEnv(EnvLogLevel, "info")),
		},
	}

	if err := cfg.SetDefaultsAndValidate(); err != nil {
		return nil, fmt.Errorf("invalid environment config: %w", err)
	}
	return &cfg, nil
}

func stringEnv(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

func intEnv(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		slog.Warn("Invalid environment value, using fallback", "name", name, "value", raw, "fallback", fallback)
		return fallback
	}
	return value
}

func boolEnv(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		slog.Warn("Invalid environment value, using fallback", "name", name, "value", raw, "fallback", fallback)
		return fallback
	}
	return value
}
