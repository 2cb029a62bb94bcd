package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "client.log")

	logger, err := NewLogger(LogSection{Level: "warn", Format: "json", File: path})
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	logger.Warn("server unreachable")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "server unreachable")
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	_, err := NewLogger(LogSection{Level: "chatty"})
	assert.Error(t, err)
}
