package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 256, cfg.Queue.Capacity)
	assert.Equal(t, 20, cfg.Queue.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Queue.PullTimeout)
	assert.Equal(t, 30*time.Second, cfg.Queue.DrainTimeout)
	assert.InDelta(t, 0.75, cfg.Grouping.SimilarityThreshold, 0.0001)
	assert.Equal(t, 32, cfg.Executor.NetworkWorkers)
	assert.Contains(t, cfg.Scanner.Extensions, ".mkv")
	assert.Equal(t, int64(10*1024*1024), cfg.Scanner.MinFileSize.Bytes())
	assert.Equal(t, "https://api.tvmaze.com", cfg.Metadata.BaseURL)
	assert.Equal(t, "seriarr.db", cfg.Database.DSN)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
logging:
  level: debug
  format: text
queue:
  capacity: 64
  batch_size: 5
grouping:
  similarity_threshold: 0.8
scanner:
  min_file_size: 50MB
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 64, cfg.Queue.Capacity)
	assert.Equal(t, 5, cfg.Queue.BatchSize)
	assert.InDelta(t, 0.8, cfg.Grouping.SimilarityThreshold, 0.0001)
	assert.Equal(t, int64(50*1024*1024), cfg.Scanner.MinFileSize.Bytes())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SERIARR_QUEUE_CAPACITY", "512")
	t.Setenv("SERIARR_LOGGING_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 512, cfg.Queue.Capacity)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		v := viper.New()
		SetDefaults(v)
		var cfg Config
		require.NoError(t, v.Unmarshal(&cfg))
		return &cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "threshold out of range",
			mutate:  func(c *Config) { c.Grouping.SimilarityThreshold = 1.5 },
			wantErr: "similarity_threshold",
		},
		{
			name:    "zero capacity",
			mutate:  func(c *Config) { c.Queue.Capacity = 0 },
			wantErr: "queue.capacity",
		},
		{
			name:    "extension without dot",
			mutate:  func(c *Config) { c.Scanner.Extensions = []string{"mkv"} },
			wantErr: "scanner.extensions",
		},
		{
			name:    "negative disk factor",
			mutate:  func(c *Config) { c.Executor.DiskFactor = -1 },
			wantErr: "pool factors",
		},
		{
			name:    "empty dsn",
			mutate:  func(c *Config) { c.Database.DSN = "" },
			wantErr: "database.dsn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestParseByteSize(t *testing.T) {
	got, err := ParseByteSize("25MB")
	require.NoError(t, err)
	assert.Equal(t, int64(25*1024*1024), got.Bytes())

	_, err = ParseByteSize("lots")
	assert.Error(t, err)
}
