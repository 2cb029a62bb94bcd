package modal

import (
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keys(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestHelpModalCloses(t *testing.T) {
	m := NewHelpModal([]string{"/join <channel>  Join a channel"}, [][2]string{{"Ctrl+C", "Quit"}})

	assert.Contains(t, m.Render(80, 24), "/join <channel>")

	handled, next, _ := m.HandleKey(keys("x"))
	assert.True(t, handled)
	assert.NotNil(t, next)

	handled, next, _ = m.HandleKey(tea.KeyMsg{Type: tea.KeyEsc})
	assert.True(t, handled)
	assert.Nil(t, next)
}

func TestNicknameSetupValidates(t *testing.T) {
	var confirmed string
	m := NewNicknameSetupModal("", func(name string) tea.Cmd {
		confirmed = name
		return nil
	}, nil)

	m.HandleKey(keys("Al"))
	_, next, _ := m.HandleKey(tea.KeyMsg{Type: tea.KeyEnter})
	assert.NotNil(t, next, "too short a nickname keeps the modal open")
	assert.NotEmpty(t, m.Error())
	assert.Empty(t, confirmed)

	m.HandleKey(keys("ice"))
	assert.Empty(t, m.Error(), "typing clears the error")
	assert.Equal(t, "Alice", m.Value())

	_, next, _ = m.HandleKey(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, next)
	assert.Equal(t, "Alice", confirmed)
}

func TestNicknameSetupRejectsDigits(t *testing.T) {
	m := NewNicknameSetupModal("R2D2", nil, nil)

	_, next, _ := m.HandleKey(tea.KeyMsg{Type: tea.KeyEnter})

	assert.NotNil(t, next)
	assert.NotEmpty(t, m.Error())
	assert.Contains(t, m.Render(80, 24), m.Error())
}

func TestNicknameSetupCancel(t *testing.T) {
	cancelled := false
	m := NewNicknameSetupModal("Alice", nil, func() tea.Cmd {
		cancelled = true
		return nil
	})

	_, next, _ := m.HandleKey(tea.KeyMsg{Type: tea.KeyEsc})

	assert.Nil(t, next)
	assert.True(t, cancelled)
}

func TestConfigErrorModalShowsFailingLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ui]\nshow_timestamps = maybe\n[log]\n"), 0644))

	m := NewConfigErrorModal(path, "invalid value", 2, nil, nil)
	view := m.Render(100, 30)

	assert.Contains(t, view, "show_timestamps = maybe")
	assert.Contains(t, view, "← here")
}

func TestConfigErrorModalResetFlow(t *testing.T) {
	var backups []bool
	m := NewConfigErrorModal("/nonexistent/config.toml", "broken", 0,
		func(backup bool) tea.Cmd {
			backups = append(backups, backup)
			return nil
		}, nil)

	_, next, _ := m.HandleKey(keys("r"))
	require.NotNil(t, next)
	assert.Contains(t, m.Render(100, 30), "Back up")

	// c cancels back to the error view
	_, next, _ = m.HandleKey(keys("c"))
	require.NotNil(t, next)
	assert.Contains(t, m.Render(100, 30), "Configuration file error")

	m.HandleKey(keys("r"))
	_, next, _ = m.HandleKey(keys("y"))
	assert.Nil(t, next)
	assert.Equal(t, []bool{true}, backups)
}

func TestConfigErrorModalQuit(t *testing.T) {
	quit := false
	m := NewConfigErrorModal("config.toml", "broken", 0, nil, func() tea.Cmd {
		quit = true
		return nil
	})

	_, next, _ := m.HandleKey(keys("q"))

	assert.Nil(t, next)
	assert.True(t, quit)
}
