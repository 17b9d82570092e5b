// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/AdeilsonR/puppeteer-themis/internal/config"
)

// setupTestLogger initializes the global logger against an in-memory buffer.
func setupTestLogger(t *testing.T, cfg config.LoggerConfig) *bytes.Buffer {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)
	buf := &bytes.Buffer{}
	Initialize(cfg, zapcore.AddSync(buf))
	return buf
}

func TestInitialize(t *testing.T) {
	t.Run("should colorize console levels", func(t *testing.T) {
		buf := setupTestLogger(t, config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "themis",
			Colors:      config.ColorConfig{Info: "green"},
		})
		GetLogger().Info("portal ready")

		out := buf.String()
		assert.Contains(t, out, "portal ready")
		assert.Contains(t, out, colorMap["green"]+"INFO"+colorReset)
		assert.Contains(t, out, "themis.")
	})

	t.Run("should emit json with structured fields", func(t *testing.T) {
		buf := setupTestLogger(t, config.LoggerConfig{Level: "info", Format: "json", ServiceName: "themis"})
		GetLogger().Warn("slow login", zap.String("step", "submit"))

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "themis", entry["logger"])
		assert.Equal(t, "slow login", entry["msg"])
		assert.Equal(t, "submit", entry["step"])
	})

	t.Run("should honor the configured level", func(t *testing.T) {
		buf := setupTestLogger(t, config.LoggerConfig{Level: "warn", Format: "json"})
		GetLogger().Info("hidden")
		assert.Empty(t, buf.String())
	})

	t.Run("should fall back to info on an invalid level", func(t *testing.T) {
		buf := setupTestLogger(t, config.LoggerConfig{Level: "loud", Format: "json"})
		GetLogger().Debug("hidden")
		GetLogger().Info("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("should write to a rotated log file", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "themis.log")
		setupTestLogger(t, config.LoggerConfig{Level: "debug", Format: "console", LogFile: logFile, MaxSize: 1})
		GetLogger().Error("captured in file")
		Sync()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "captured in file")
		assert.True(t, strings.HasPrefix(strings.TrimSpace(string(content)), "{"), "file output should be JSON")
	})

	t.Run("should only initialize once", func(t *testing.T) {
		buf := setupTestLogger(t, config.LoggerConfig{Level: "info", Format: "json", ServiceName: "first"})
		Initialize(config.LoggerConfig{Level: "debug", ServiceName: "second"}, zapcore.AddSync(&bytes.Buffer{}))

		GetLogger().Info("hello")
		assert.Contains(t, buf.String(), "first")
		assert.NotContains(t, buf.String(), "second")
	})
}

func TestGetLogger(t *testing.T) {
	t.Run("should return a fallback before initialization", func(t *testing.T) {
		ResetForTest()
		assert.NotNil(t, GetLogger())
	})

	t.Run("should return the stored logger after initialization", func(t *testing.T) {
		setupTestLogger(t, config.LoggerConfig{Level: "info"})
		assert.Same(t, globalLogger.Load(), GetLogger())
	})
}
