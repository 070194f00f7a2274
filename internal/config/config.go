// Package config provides configuration management for seriarr using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultQueueCapacity      = 256
	defaultBatchSize          = 20
	defaultPullTimeout        = 250 * time.Millisecond
	defaultDrainTimeout       = 30 * time.Second
	defaultSimilarity         = 0.75
	defaultNetworkWorkers     = 32
	defaultDiskFactor         = 1.5
	defaultGeneralFactor      = 1.2
	defaultMinFileSize        = 10 * 1024 * 1024 // 10MB, skips samples and stubs
	defaultHTTPTimeout        = 15 * time.Second
	defaultRetryAttempts      = 3
	defaultRetryDelay         = 2 * time.Second
	defaultRateLimitPerSecond = 4
	defaultCacheTTL           = 7 * 24 * time.Hour
)

// defaultExtensions is the extension allow-list applied when none is configured.
var defaultExtensions = []string{
	".mkv", ".mp4", ".avi", ".mov", ".wmv", ".m4v", ".ts", ".webm",
}

// Config holds all configuration for the application.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Library  LibraryConfig  `mapstructure:"library"`
	Scanner  ScannerConfig  `mapstructure:"scanner"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Grouping GroupingConfig `mapstructure:"grouping"`
	Metadata MetadataConfig `mapstructure:"metadata"`
	Database DatabaseConfig `mapstructure:"database"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// LibraryConfig holds the source and target layout of the media library.
type LibraryConfig struct {
	Root      string `mapstructure:"root"`       // directory to scan
	TargetDir string `mapstructure:"target_dir"` // organized layout destination
	DryRun    bool   `mapstructure:"dry_run"`
}

// ScannerConfig holds directory scanning configuration.
type ScannerConfig struct {
	Extensions []string `mapstructure:"extensions"`
	// MinFileSize filters out files below this size (samples, stubs).
	// Supports human-readable values like "10MB" or raw byte counts.
	MinFileSize ByteSize `mapstructure:"min_file_size"`
}

// ExecutorConfig holds worker pool sizing.
type ExecutorConfig struct {
	// NetworkWorkers is the fixed size of the network/API pool.
	// Clamped to [8, 64]; sized well above core count to absorb latency.
	NetworkWorkers int `mapstructure:"network_workers"`
	// DiskFactor scales physical core count for the disk-scan pool.
	DiskFactor float64 `mapstructure:"disk_factor"`
	// GeneralFactor scales physical core count for the general pool.
	GeneralFactor float64 `mapstructure:"general_factor"`
}

// QueueConfig holds processing queue configuration.
type QueueConfig struct {
	Capacity     int           `mapstructure:"capacity"`
	BatchSize    int           `mapstructure:"batch_size"`
	PullTimeout  time.Duration `mapstructure:"pull_timeout"`
	DrainTimeout time.Duration `mapstructure:"drain_timeout"`
}

// GroupingConfig holds similarity grouping configuration.
type GroupingConfig struct {
	// SimilarityThreshold is the minimum clean-name similarity ratio (0-1)
	// for two files to share a group.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
}

// MetadataConfig holds series metadata lookup configuration.
type MetadataConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key" masq:"secret"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	RatePerSecond  int           `mapstructure:"rate_per_second"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	DisableLookups bool          `mapstructure:"disable_lookups"`
}

// DatabaseConfig holds the metadata cache database configuration.
type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	LogLevel string `mapstructure:"log_level"` // silent, error, warn, info
}

// ScheduleConfig holds scheduled rescan configuration.
type ScheduleConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cron    string `mapstructure:"cron"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration and are
// prefixed with SERIARR_, using underscores for nesting.
// Example: SERIARR_QUEUE_CAPACITY=512.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/seriarr")
		v.AddConfigPath("$HOME/.seriarr")
	}

	v.SetEnvPrefix("SERIARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - defaults and env vars apply
	}

	// The text-unmarshaller hook lets ByteSize fields accept values
	// like "50MB" from files and environment variables.
	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)))
	if err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file.
func SetDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Library defaults
	v.SetDefault("library.root", "")
	v.SetDefault("library.target_dir", "")
	v.SetDefault("library.dry_run", false)

	// Scanner defaults
	v.SetDefault("scanner.extensions", defaultExtensions)
	v.SetDefault("scanner.min_file_size", defaultMinFileSize)

	// Executor defaults
	v.SetDefault("executor.network_workers", defaultNetworkWorkers)
	v.SetDefault("executor.disk_factor", defaultDiskFactor)
	v.SetDefault("executor.general_factor", defaultGeneralFactor)

	// Queue defaults
	v.SetDefault("queue.capacity", defaultQueueCapacity)
	v.SetDefault("queue.batch_size", defaultBatchSize)
	v.SetDefault("queue.pull_timeout", defaultPullTimeout)
	v.SetDefault("queue.drain_timeout", defaultDrainTimeout)

	// Grouping defaults
	v.SetDefault("grouping.similarity_threshold", defaultSimilarity)

	// Metadata defaults
	v.SetDefault("metadata.base_url", "https://api.tvmaze.com")
	v.SetDefault("metadata.api_key", "")
	v.SetDefault("metadata.http_timeout", defaultHTTPTimeout)
	v.SetDefault("metadata.retry_attempts", defaultRetryAttempts)
	v.SetDefault("metadata.retry_delay", defaultRetryDelay)
	v.SetDefault("metadata.rate_per_second", defaultRateLimitPerSecond)
	v.SetDefault("metadata.cache_ttl", defaultCacheTTL)
	v.SetDefault("metadata.disable_lookups", false)

	// Database defaults
	v.SetDefault("database.dsn", "seriarr.db")
	v.SetDefault("database.log_level", "warn")

	// Schedule defaults
	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.cron", "0 3 * * *") // daily at 3 AM
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if len(c.Scanner.Extensions) == 0 {
		return fmt.Errorf("scanner.extensions must not be empty")
	}
	for _, ext := range c.Scanner.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("scanner.extensions entries must start with a dot: %q", ext)
		}
	}

	if c.Grouping.SimilarityThreshold < 0 || c.Grouping.SimilarityThreshold > 1 {
		return fmt.Errorf("grouping.similarity_threshold must be between 0 and 1")
	}

	if c.Queue.Capacity < 1 {
		return fmt.Errorf("queue.capacity must be at least 1")
	}
	if c.Queue.BatchSize < 1 {
		return fmt.Errorf("queue.batch_size must be at least 1")
	}
	if c.Queue.PullTimeout <= 0 {
		return fmt.Errorf("queue.pull_timeout must be positive")
	}
	if c.Queue.DrainTimeout <= 0 {
		return fmt.Errorf("queue.drain_timeout must be positive")
	}

	if c.Executor.DiskFactor <= 0 || c.Executor.GeneralFactor <= 0 {
		return fmt.Errorf("executor pool factors must be positive")
	}

	if !c.Metadata.DisableLookups && c.Metadata.BaseURL == "" {
		return fmt.Errorf("metadata.base_url is required unless lookups are disabled")
	}

	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	return nil
}
