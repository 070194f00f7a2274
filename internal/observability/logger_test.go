package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seriarr/seriarr/internal/config"
)

func TestNewLoggerWithWriter(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.LoggingConfig
		level  slog.Level
		logged bool
	}{
		{
			name:   "info logged at info level",
			cfg:    config.LoggingConfig{Level: "info", Format: "json"},
			level:  slog.LevelInfo,
			logged: true,
		},
		{
			name:   "debug suppressed at info level",
			cfg:    config.LoggingConfig{Level: "info", Format: "json"},
			level:  slog.LevelDebug,
			logged: false,
		},
		{
			name:   "text format",
			cfg:    config.LoggingConfig{Level: "debug", Format: "text"},
			level:  slog.LevelDebug,
			logged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter(tt.cfg, &buf)
			logger.Log(t.Context(), tt.level, "hello")
			if tt.logged {
				assert.Contains(t, buf.String(), "hello")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestLoggerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	cfg := config.MetadataConfig{BaseURL: "https://api.example.com", APIKey: "super-secret-key"}
	logger.Info("metadata config loaded", slog.Any("config", cfg))

	out := buf.String()
	assert.NotContains(t, out, "super-secret-key")
	assert.Contains(t, out, "api.example.com")
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	WithComponent(logger, "scanner").Info("scan complete", slog.Int("files", 3))

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "scan complete", entry["msg"])
	assert.Equal(t, "scanner", entry["component"])
	assert.EqualValues(t, 3, entry["files"])
}
