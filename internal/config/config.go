package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	// HTTP server configuration
	Server ServerConfig `toml:"server"`

	// External data provider configuration
	Provider ProviderConfig `toml:"provider"`

	// Snapshot cache configuration
	Snapshot SnapshotConfig `toml:"snapshot"`

	// Redis backend configuration
	Redis RedisConfig `toml:"redis"`

	// SQLite backend configuration
	Storage StorageConfig `toml:"storage"`

	// Report configuration
	Report ReportConfig `toml:"report"`

	// Logging configuration
	Log LogConfig `toml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port           int    `toml:"port" env:"GCG_SERVER_PORT"`
	RequestTimeout string `toml:"request_timeout" env:"GCG_SERVER_REQUEST_TIMEOUT"` // e.g. "60s"
}

// ProviderConfig contains data provider client settings.
type ProviderConfig struct {
	BaseURL         string  `toml:"base_url" env:"GCG_PROVIDER_BASE_URL"`
	RateLimitPerSec float64 `toml:"rate_limit_per_sec" env:"GCG_PROVIDER_RATE_LIMIT"`
	Timeout         string  `toml:"timeout" env:"GCG_PROVIDER_TIMEOUT"`
	UserAgent       string  `toml:"user_agent" env:"GCG_PROVIDER_USER_AGENT"`
}

// SnapshotConfig contains snapshot store settings.
type SnapshotConfig struct {
	Backend   string `toml:"backend" env:"GCG_SNAPSHOT_BACKEND"` // memory, redis or sqlite
	KeyPrefix string `toml:"key_prefix" env:"GCG_SNAPSHOT_KEY_PREFIX"`
	CardTTL   string `toml:"card_ttl" env:"GCG_SNAPSHOT_CARD_TTL"` // e.g. "720h"
}

// RedisConfig contains redis connection settings.
type RedisConfig struct {
	Addr     string `toml:"addr" env:"GCG_REDIS_ADDR"`
	Password string `toml:"password" env:"GCG_REDIS_PASSWORD"`
	DB       int    `toml:"db" env:"GCG_REDIS_DB"`
}

// StorageConfig contains SQLite settings.
type StorageConfig struct {
	Path              string `toml:"path" env:"GCG_STORAGE_PATH"`
	RetentionInterval string `toml:"retention_interval" env:"GCG_STORAGE_RETENTION_INTERVAL"` // Expired entry sweep
}

// ReportConfig contains report generation settings.
type ReportConfig struct {
	ReplayLimit  int      `toml:"replay_limit" env:"GCG_REPORT_REPLAY_LIMIT"` // 0 = all
	StatusRecall string   `toml:"status_recall" env:"GCG_REPORT_STATUS_RECALL"`
	Renderer     string   `toml:"renderer" env:"GCG_REPORT_RENDERER"` // html or png
	Tips         []string `toml:"tips"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Mode string `toml:"mode" env:"GCG_LOG_MODE"` // dev or prod
}

// DefaultTips are shown with the status message while a report is fetched.
var DefaultTips = []string{
	"Win rates are based on card proficiency and use counts reported by the game.",
	"Some game modes only increase use counts after a win, not proficiency.",
	"Matches played with cards you do not own are not recorded, so total rounds may be low.",
	"If your data looks stale, return to the game's title screen and log in again.",
	"Some event matches increase proficiency without increasing use counts.",
	"The most important thing is not the win rate, it's having fun.",
	"When your data changed since the last query only the changes are sent; otherwise you get the full card charts.",
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			RequestTimeout: "60s",
		},
		Provider: ProviderConfig{
			BaseURL:         "https://api-takumi-record.mihoyo.com/game_record/app/genshin/api",
			RateLimitPerSec: 1,
			Timeout:         "30s",
			UserAgent:       "GCG-Companion/1.0",
		},
		Snapshot: SnapshotConfig{
			Backend:   "sqlite",
			KeyPrefix: "gcg",
			CardTTL:   "720h",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Storage: StorageConfig{
			Path:              "",
			RetentionInterval: "1h",
		},
		Report: ReportConfig{
			ReplayLimit:  0,
			StatusRecall: "60s",
			Renderer:     "html",
			Tips:         append([]string(nil), DefaultTips...),
		},
		Log: LogConfig{
			Mode: "dev",
		},
	}
}

// Dir returns the application directory, creating it if needed.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	dir := filepath.Join(homeDir, ".gcg-companion")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	return dir, nil
}

// Path returns the path to the configuration file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load loads the configuration from the default location.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile loads the configuration from path, falling back to defaults
// when the file doesn't exist, and applies environment overrides.
func LoadFile(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if config.Storage.Path == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		config.Storage.Path = filepath.Join(dir, "snapshots.db")
	}

	return config, nil
}

// Save saves the configuration to path.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	durations := map[string]string{
		"server request timeout":     c.Server.RequestTimeout,
		"provider timeout":           c.Provider.Timeout,
		"snapshot card TTL":          c.Snapshot.CardTTL,
		"storage retention interval": c.Storage.RetentionInterval,
		"report status recall":       c.Report.StatusRecall,
	}
	for name, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
	}

	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider base URL is required")
	}
	if c.Provider.RateLimitPerSec <= 0 {
		return fmt.Errorf("provider rate limit must be positive: %v", c.Provider.RateLimitPerSec)
	}

	switch c.Snapshot.Backend {
	case "memory", "sqlite":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown snapshot backend %q", c.Snapshot.Backend)
	}

	switch c.Report.Renderer {
	case "html", "png":
	default:
		return fmt.Errorf("unknown renderer %q", c.Report.Renderer)
	}

	if c.Report.ReplayLimit < 0 {
		return fmt.Errorf("replay limit cannot be negative: %d", c.Report.ReplayLimit)
	}

	return nil
}

// GetRequestTimeout returns the HTTP request timeout as a duration.
func (c *Config) GetRequestTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Server.RequestTimeout)
}

// GetProviderTimeout returns the provider timeout as a duration.
func (c *Config) GetProviderTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Provider.Timeout)
}

// GetCardTTL returns the card snapshot TTL as a duration.
func (c *Config) GetCardTTL() (time.Duration, error) {
	return time.ParseDuration(c.Snapshot.CardTTL)
}

// GetRetentionInterval returns the expired entry sweep interval as a duration.
func (c *Config) GetRetentionInterval() (time.Duration, error) {
	return time.ParseDuration(c.Storage.RetentionInterval)
}

// GetStatusRecall returns how long transient status messages stay visible.
func (c *Config) GetStatusRecall() (time.Duration, error) {
	return time.ParseDuration(c.Report.StatusRecall)
}
