// Package config loads CLI and daemon settings from .lexsync/config.yaml,
// with LEXSYNC_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/escritoriolabs/lexsync/internal/connectivity"
)

// Config holds all user-tunable settings.
type Config struct {
	// ServerURL is the base URL of the CRM API.
	ServerURL string `mapstructure:"server_url" yaml:"server_url"`

	// WebSocketURL is the live-update endpoint. Empty disables the
	// live channel.
	WebSocketURL string `mapstructure:"websocket_url" yaml:"websocket_url"`

	// DBPath is the local SQLite database location.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// SpoolDir is the outbox directory other processes drop actions in.
	SpoolDir string `mapstructure:"spool_dir" yaml:"spool_dir"`

	// QuotaBytes caps local cache storage. Zero means unlimited.
	QuotaBytes int64 `mapstructure:"quota_bytes" yaml:"quota_bytes"`

	// RequestTimeout bounds each API request.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`

	// ProbeInterval is how often reachability is checked.
	ProbeInterval time.Duration `mapstructure:"probe_interval" yaml:"probe_interval"`

	// FlushInterval is how often the daemon attempts a drain.
	FlushInterval time.Duration `mapstructure:"flush_interval" yaml:"flush_interval"`

	// QuotaInterval is how often storage usage is published.
	QuotaInterval time.Duration `mapstructure:"quota_interval" yaml:"quota_interval"`

	// DashboardPort is the local dashboard feed port.
	DashboardPort int `mapstructure:"dashboard_port" yaml:"dashboard_port"`

	// Backoff controls live-channel reconnect delays.
	Backoff Backoff `mapstructure:"backoff" yaml:"backoff"`

	// Log controls daemon log rotation.
	Log Log `mapstructure:"log" yaml:"log"`
}

// Backoff mirrors connectivity.Policy in configuration form.
type Backoff struct {
	Initial time.Duration `mapstructure:"initial" yaml:"initial"`
	Max     time.Duration `mapstructure:"max" yaml:"max"`
	Factor  float64       `mapstructure:"factor" yaml:"factor"`
	Jitter  float64       `mapstructure:"jitter" yaml:"jitter"`
}

// Policy converts the configured backoff to a connectivity.Policy.
func (b Backoff) Policy() connectivity.Policy {
	return connectivity.Policy{
		Initial: b.Initial,
		Max:     b.Max,
		Factor:  b.Factor,
		Jitter:  b.Jitter,
	}
}

// Log holds daemon log rotation settings (lumberjack).
type Log struct {
	// File is the daemon log path. Empty logs to stderr.
	File string `mapstructure:"file" yaml:"file"`

	// MaxSizeMB rotates the log when it exceeds this size.
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is how many rotated files to keep.
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`

	// MaxAgeDays removes rotated files older than this.
	MaxAgeDays int `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// Dir returns the settings directory: a project-local .lexsync if present
// or creatable, otherwise ~/.lexsync.
func Dir() (string, error) {
	if cwd, err := os.Getwd(); err == nil {
		localDir := filepath.Join(cwd, ".lexsync")
		if stat, err := os.Stat(localDir); (err == nil && stat.IsDir()) || os.IsNotExist(err) {
			return localDir, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".lexsync"), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	dir, _ := Dir()
	return &Config{
		ServerURL:      "http://localhost:3000",
		DBPath:         filepath.Join(dir, "lexsync.db"),
		SpoolDir:       filepath.Join(dir, "outbox"),
		RequestTimeout: 10 * time.Second,
		ProbeInterval:  15 * time.Second,
		FlushInterval:  30 * time.Second,
		QuotaInterval:  time.Minute,
		DashboardPort:  7135,
		Backoff: Backoff{
			Initial: time.Second,
			Max:     30 * time.Second,
			Factor:  2,
			Jitter:  0.2,
		},
		Log: Log{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads config.yaml from the settings directory, applying environment
// overrides (LEXSYNC_SERVER_URL and so on). A missing file is not an error;
// defaults apply.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(dir)
}

// LoadFrom reads config.yaml from an explicit directory.
func LoadFrom(dir string) (*Config, error) {
	defaults := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetDefault("server_url", defaults.ServerURL)
	v.SetDefault("websocket_url", defaults.WebSocketURL)
	v.SetDefault("db_path", filepath.Join(dir, "lexsync.db"))
	v.SetDefault("spool_dir", filepath.Join(dir, "outbox"))
	v.SetDefault("quota_bytes", defaults.QuotaBytes)
	v.SetDefault("request_timeout", defaults.RequestTimeout)
	v.SetDefault("probe_interval", defaults.ProbeInterval)
	v.SetDefault("flush_interval", defaults.FlushInterval)
	v.SetDefault("quota_interval", defaults.QuotaInterval)
	v.SetDefault("dashboard_port", defaults.DashboardPort)
	v.SetDefault("backoff.initial", defaults.Backoff.Initial)
	v.SetDefault("backoff.max", defaults.Backoff.Max)
	v.SetDefault("backoff.factor", defaults.Backoff.Factor)
	v.SetDefault("backoff.jitter", defaults.Backoff.Jitter)
	v.SetDefault("log.file", defaults.Log.File)
	v.SetDefault("log.max_size_mb", defaults.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", defaults.Log.MaxBackups)
	v.SetDefault("log.max_age_days", defaults.Log.MaxAgeDays)

	v.SetEnvPrefix("LEXSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded configuration for values that would fail
// later in confusing ways.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path cannot be empty")
	}
	if c.QuotaBytes < 0 {
		return fmt.Errorf("quota_bytes cannot be negative")
	}
	if c.RequestTimeout < 0 || c.ProbeInterval < 0 || c.FlushInterval < 0 {
		return fmt.Errorf("intervals cannot be negative")
	}
	if c.Backoff.Jitter < 0 || c.Backoff.Jitter > 1 {
		return fmt.Errorf("backoff.jitter must be in [0, 1]")
	}
	return nil
}
