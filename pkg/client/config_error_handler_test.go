package client

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func brokenConfig(t *testing.T) *ConfigError {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ui]\nshow_timestamps = maybe\n"), 0644))

	_, err := LoadClientConfig(path)
	var configErr *ConfigError
	require.ErrorAs(t, err, &configErr)
	return configErr
}

func press(t *testing.T, h *ConfigErrorHandler, key string) tea.Cmd {
	t.Helper()
	_, cmd := h.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
	return cmd
}

func TestConfigErrorHandlerReset(t *testing.T) {
	configErr := brokenConfig(t)
	h := NewConfigErrorHandler(configErr)

	assert.Contains(t, h.View(), "Configuration file error")

	assert.Nil(t, press(t, h, "r"))
	assert.Contains(t, h.View(), "Back up")

	cmd := press(t, h, "n")
	require.NotNil(t, cmd)
	_, quit := h.Update(cmd())
	require.NotNil(t, quit)

	reset, err := h.Reset()
	assert.True(t, reset)
	assert.NoError(t, err)

	cfg, err := LoadClientConfig(configErr.Path)
	require.NoError(t, err)
	assert.Equal(t, DefaultTOMLConfig(), cfg)
}

func TestConfigErrorHandlerQuit(t *testing.T) {
	h := NewConfigErrorHandler(brokenConfig(t))

	cmd := press(t, h, "q")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	reset, err := h.Reset()
	assert.False(t, reset)
	assert.NoError(t, err)
}

func TestHandleConfigErrorIgnoresOtherErrors(t *testing.T) {
	var out bytes.Buffer
	assert.False(t, HandleConfigError(errors.New("boom"), &out))
	assert.Empty(t, out.String())
}
