package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/checkgrabber/internal/logger"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, logger.ParseLevel(in), in)
	}
}

func TestNewJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(&buf, "warn", true)
	log.Info("dropped")
	log.Warn("kept", "component", "test")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "test", line["component"])
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", logger.Truncate("short", 20))
	assert.Equal(t, "c1A2b3C4d5e6f7g8h...", logger.Truncate("c1A2b3C4d5e6f7g8h9i0j1", 20))
	assert.Equal(t, "Чек у...", logger.Truncate("Чек уже активирован", 8))
	assert.Equal(t, "...", logger.Truncate("abcdef", 2))
}
