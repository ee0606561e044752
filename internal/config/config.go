// -------------------------------------------------------------------------------
// Configuration - Records Service Settings
//
// Author: Alex Freidah
//
// Configuration types and loader for the records service. Supports environment
// variable expansion in YAML values using ${VAR} syntax, or a pure environment
// mode that reads the variables the desktop build has always used. Validates
// required fields before returning to catch misconfiguration early.
// -------------------------------------------------------------------------------

package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// -------------------------------------------------------------------------
// CONFIGURATION TYPES
// -------------------------------------------------------------------------

// Config holds the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabasesConfig `yaml:"database"`
	Sync      SyncConfig      `yaml:"sync"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
	Archive   ArchiveConfig   `yaml:"archive"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	ListenAddr           string        `yaml:"listen_addr"`            // default: 127.0.0.1:8080
	SlowRequestThreshold time.Duration `yaml:"slow_request_threshold"` // Requests slower than this log a warning (default: 1s)
	ShutdownTimeout      time.Duration `yaml:"shutdown_timeout"`       // Grace period for in-flight requests (default: 30s)
	MirrorTimeout        time.Duration `yaml:"mirror_timeout"`         // Deadline for one mirrored write (default: 10s)
}

// AuthConfig holds the optional shared token required for mutating requests.
type AuthConfig struct {
	Token string `yaml:"token"`
}

// DatabasesConfig groups the primary (local) and secondary (cloud) stores.
type DatabasesConfig struct {
	Primary   DatabaseConfig `yaml:"primary"`
	Secondary DatabaseConfig `yaml:"secondary"`
}

// DatabaseConfig holds connection settings for one store. URL accepts
// postgres:// DSNs or a SQLite path (sqlite://, file: or a bare path).
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`     // Max pool connections (primary: 20, secondary: 10)
	MaxIdleConns    int           `yaml:"max_idle_conns"`     // Min idle connections kept (primary: 2, secondary: 1)
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`  // Max connection age (default: 30m)
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"` // Idle connection reaping (default: 300s)
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`    // Deadline for the initial ping (default: 5s)
}

// Configured reports whether a connection URL is present.
func (d DatabaseConfig) Configured() bool {
	return strings.TrimSpace(d.URL) != ""
}

// Redacted returns the URL with any password masked, safe for log lines.
func (d DatabaseConfig) Redacted() string {
	u, err := url.Parse(d.URL)
	if err != nil || u.User == nil {
		return d.URL
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

// SyncConfig controls the secondary store: health probing, mirroring and
// on-demand reconciliation.
type SyncConfig struct {
	Disabled             bool          `yaml:"disabled"`               // Turns off probing, mirroring and sync entirely
	ProbeIntervalSeconds int           `yaml:"probe_interval_seconds"` // Health probe period (default: 300)
	ProbeTimeout         time.Duration `yaml:"probe_timeout"`          // Deadline for one probe or reconnect (default: 5s)
	ReconnectLogEvery    int           `yaml:"reconnect_log_every"`    // Reminder cadence for failed reconnect streaks (default: 12)
}

// ProbeInterval returns the probe period as a duration.
func (s SyncConfig) ProbeInterval() time.Duration {
	return time.Duration(s.ProbeIntervalSeconds) * time.Second
}

// RateLimitConfig holds per-IP rate limiting settings. Disabled by default.
type RateLimitConfig struct {
	Enabled        bool    `yaml:"enabled"`
	RequestsPerSec float64 `yaml:"requests_per_sec"` // Token refill rate (default: 100)
	Burst          int     `yaml:"burst"`            // Max burst size (default: 200)
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sample_rate"`
	Insecure   bool    `yaml:"insecure"` // Use insecure connection (no TLS)
}

// LogConfig selects the slog handler installed by the CLI.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error (default: info)
	Format string `yaml:"format"` // text or json (default: text)
}

// ArchiveConfig holds the optional S3-compatible destination for sync reports.
type ArchiveConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`          // S3-compatible endpoint URL
	Region          string `yaml:"region"`            // AWS region or equivalent (default: us-east-1)
	Bucket          string `yaml:"bucket"`            // Target bucket name
	Prefix          string `yaml:"prefix"`            // Key prefix (default: sync-reports)
	AccessKeyID     string `yaml:"access_key_id"`     // AWS access key ID
	SecretAccessKey string `yaml:"secret_access_key"` // AWS secret access key
	ForcePathStyle  bool   `yaml:"force_path_style"`  // Use path-style URLs
}

// -------------------------------------------------------------------------
// CONFIGURATION LOADER
// -------------------------------------------------------------------------

// LoadConfig reads and parses the configuration file with environment variable
// expansion. An empty path builds the configuration from the environment
// instead. Returns an error if the file cannot be read, parsed, or validated.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return FromEnv()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// --- Expand environment variables ---
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.SetDefaultsAndValidate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// -------------------------------------------------------------------------
// VALIDATION
// -------------------------------------------------------------------------

// SetDefaultsAndValidate applies default values for optional fields and checks
// that all required configuration values are present.
func (c *Config) SetDefaultsAndValidate() error {
	var errors []string

	// --- Server defaults ---
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = "127.0.0.1:8080"
	}
	if c.Server.SlowRequestThreshold == 0 {
		c.Server.SlowRequestThreshold = time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Server.MirrorTimeout == 0 {
		c.Server.MirrorTimeout = 10 * time.Second
	}
	if c.Server.MirrorTimeout < 0 {
		errors = append(errors, "server.mirror_timeout must be positive")
	}

	// --- Database validation ---
	if !c.Database.Primary.Configured() {
		errors = append(errors, "database.primary.url is required")
	}

	// --- Database defaults ---
	applyPoolDefaults(&c.Database.Primary, 20, 2)
	applyPoolDefaults(&c.Database.Secondary, 10, 1)

	// --- Sync defaults ---
	if c.Sync.ProbeIntervalSeconds == 0 {
		c.Sync.ProbeIntervalSeconds = 300
	}
	if c.Sync.ProbeTimeout == 0 {
		c.Sync.ProbeTimeout = 5 * time.Second
	}
	if c.Sync.ReconnectLogEvery == 0 {
		c.Sync.ReconnectLogEvery = 12
	}

	// --- Sync validation ---
	if c.Sync.ProbeIntervalSeconds < 0 {
		errors = append(errors, "sync.probe_interval_seconds must be positive")
	}
	if c.Sync.ProbeTimeout < 0 {
		errors = append(errors, "sync.probe_timeout must be positive")
	}
	if c.Sync.ReconnectLogEvery < 0 {
		errors = append(errors, "sync.reconnect_log_every must be positive")
	}

	// --- Rate limit defaults ---
	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSec == 0 {
			c.RateLimit.RequestsPerSec = 100
		}
		if c.RateLimit.Burst == 0 {
			c.RateLimit.Burst = 200
		}
		if c.RateLimit.RequestsPerSec <= 0 {
			errors = append(errors, "rate_limit.requests_per_sec must be positive")
		}
		if c.RateLimit.Burst <= 0 {
			errors = append(errors, "rate_limit.burst must be positive")
		}
	}

	// --- Telemetry defaults ---
	if c.Telemetry.Metrics.Path == "" {
		c.Telemetry.Metrics.Path = "/metrics"
	}
	if c.Telemetry.Tracing.SampleRate == 0 && c.Telemetry.Tracing.Enabled {
		c.Telemetry.Tracing.SampleRate = 1.0
	}

	// --- Validate tracing config ---
	if c.Telemetry.Tracing.Enabled && c.Telemetry.Tracing.Endpoint == "" {
		errors = append(errors, "telemetry.tracing.endpoint is required when tracing is enabled")
	}

	// --- Log defaults ---
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("log.level %q must be one of debug, info, warn, error", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errors = append(errors, "log.format must be 'text' or 'json'")
	}

	// --- Archive defaults ---
	if c.Archive.Enabled {
		if c.Archive.Region == "" {
			c.Archive.Region = "us-east-1"
		}
		if c.Archive.Prefix == "" {
			c.Archive.Prefix = "sync-reports"
		}
		if c.Archive.Bucket == "" {
			errors = append(errors, "archive.bucket is required when archive is enabled")
		}
		if c.Archive.AccessKeyID == "" || c.Archive.SecretAccessKey == "" {
			errors = append(errors, "archive.access_key_id and archive.secret_access_key are required when archive is enabled")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}
	return nil
}

// applyPoolDefaults fills unset pool settings for one store.
func applyPoolDefaults(d *DatabaseConfig, maxOpen, maxIdle int) {
	if d.MaxOpenConns == 0 {
		d.MaxOpenConns = maxOpen
	}
	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = maxIdle
	}
	if d.ConnMaxLifetime == 0 {
		d.ConnMaxLifetime = 30 * time.Minute
	}
	if d.ConnMaxIdleTime == 0 {
		d.ConnMaxIdleTime = 300 * time.Second
	}
	if d.ConnectTimeout == 0 {
		d.ConnectTimeout = 5 * time.Second
	}
}
