package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/krisalay/query-cache/config"
)

func TestNewWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.log")

	logger, level, err := New(config.Log{
		Level:  "info",
		Format: "json",
		File:   config.FileLog{Filename: path},
	})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("visible", zap.String("capability", "users"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"visible"`)
	assert.Contains(t, string(data), `"capability":"users"`)
	assert.NotContains(t, string(data), "hidden")

	level.SetLevel(zapcore.DebugLevel)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewRejectsBadInput(t *testing.T) {
	_, _, err := New(config.Log{Level: "loud"})
	assert.Error(t, err)

	_, _, err = New(config.Log{Level: "info", File: config.FileLog{Filename: t.TempDir()}})
	assert.Error(t, err)
}
