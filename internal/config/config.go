// Package config loads application configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Search    SearchConfig    `mapstructure:"search"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Download  DownloadConfig  `mapstructure:"download"`
}

// DownloadConfig holds download hand-off settings.
type DownloadConfig struct {
	// WatchDir is the blackhole directory grabbed releases are written to.
	WatchDir string `mapstructure:"watch_dir"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SearchConfig holds search orchestration settings.
type SearchConfig struct {
	// TimeoutSeconds is the per-indexer search timeout.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// Concurrency bounds the number of indexers queried in parallel.
	Concurrency int `mapstructure:"concurrency"`
	// RequestDelayMs is the fixed delay between sequential season/episode
	// searches issued by the cascading strategy.
	RequestDelayMs int `mapstructure:"request_delay_ms"`
	// SeasonPackThreshold is the missing/total ratio at or above which a
	// season pack search is attempted first.
	SeasonPackThreshold float64 `mapstructure:"season_pack_threshold"`
	// BackoffThreshold is the consecutive failure count after which scheduled
	// collection skips an item.
	BackoffThreshold int `mapstructure:"backoff_threshold"`
}

// SchedulerConfig holds monitoring scheduler settings.
type SchedulerConfig struct {
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
	StartupGraceSeconds int `mapstructure:"startup_grace_seconds"`

	MissingMoviesIntervalHours   int  `mapstructure:"missing_movies_interval_hours"`
	MissingMoviesEnabled         bool `mapstructure:"missing_movies_enabled"`
	MissingEpisodesIntervalHours int  `mapstructure:"missing_episodes_interval_hours"`
	MissingEpisodesEnabled       bool `mapstructure:"missing_episodes_enabled"`
	UpgradeIntervalHours         int  `mapstructure:"upgrade_interval_hours"`
	UpgradeEnabled               bool `mapstructure:"upgrade_enabled"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8989,
		},
		Database: DatabaseConfig{
			Path: "./data/fetcharr.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Search: SearchConfig{
			TimeoutSeconds:      30,
			Concurrency:         8,
			RequestDelayMs:      500,
			SeasonPackThreshold: 0.5,
			BackoffThreshold:    5,
		},
		Download: DownloadConfig{
			WatchDir: "./data/watch",
		},
		Scheduler: SchedulerConfig{
			PollIntervalSeconds:          30,
			StartupGraceSeconds:          300,
			MissingMoviesIntervalHours:   12,
			MissingMoviesEnabled:         true,
			MissingEpisodesIntervalHours: 12,
			MissingEpisodesEnabled:       true,
			UpgradeIntervalHours:         24,
			UpgradeEnabled:               true,
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.fetcharr")
	}

	v.SetEnvPrefix("FETCHARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults + env vars
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()

	v.SetDefault("server.host", def.Server.Host)
	v.SetDefault("server.port", def.Server.Port)

	v.SetDefault("database.path", def.Database.Path)

	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.path", "")

	v.SetDefault("search.timeout_seconds", def.Search.TimeoutSeconds)
	v.SetDefault("search.concurrency", def.Search.Concurrency)
	v.SetDefault("search.request_delay_ms", def.Search.RequestDelayMs)
	v.SetDefault("search.season_pack_threshold", def.Search.SeasonPackThreshold)
	v.SetDefault("search.backoff_threshold", def.Search.BackoffThreshold)

	v.SetDefault("download.watch_dir", def.Download.WatchDir)

	v.SetDefault("scheduler.poll_interval_seconds", def.Scheduler.PollIntervalSeconds)
	v.SetDefault("scheduler.startup_grace_seconds", def.Scheduler.StartupGraceSeconds)
	v.SetDefault("scheduler.missing_movies_interval_hours", def.Scheduler.MissingMoviesIntervalHours)
	v.SetDefault("scheduler.missing_movies_enabled", def.Scheduler.MissingMoviesEnabled)
	v.SetDefault("scheduler.missing_episodes_interval_hours", def.Scheduler.MissingEpisodesIntervalHours)
	v.SetDefault("scheduler.missing_episodes_enabled", def.Scheduler.MissingEpisodesEnabled)
	v.SetDefault("scheduler.upgrade_interval_hours", def.Scheduler.UpgradeIntervalHours)
	v.SetDefault("scheduler.upgrade_enabled", def.Scheduler.UpgradeEnabled)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Timeout returns the per-indexer search timeout as a duration.
func (c *SearchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RequestDelay returns the inter-request delay as a duration.
func (c *SearchConfig) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMs) * time.Millisecond
}

// PollInterval returns the scheduler poll interval as a duration.
func (c *SchedulerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// StartupGrace returns the startup grace period as a duration.
func (c *SchedulerConfig) StartupGrace() time.Duration {
	return time.Duration(c.StartupGraceSeconds) * time.Second
}
