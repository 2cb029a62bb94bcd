package modal

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// contextLines is how many lines around a parse error are shown
const contextLines = 2

// ConfigErrorModal explains a broken config file and offers to reset it
type ConfigErrorModal struct {
	configPath   string
	errorMessage string
	lineNumber   int // 0 when the error has no position
	fileLines    []string
	confirming   bool // asking whether to back up before resetting
	onReset      func(backup bool) tea.Cmd
	onQuit       func() tea.Cmd
}

// NewConfigErrorModal creates the modal, reading the file for line context
func NewConfigErrorModal(configPath, errorMessage string, lineNumber int, onReset func(backup bool) tea.Cmd, onQuit func() tea.Cmd) *ConfigErrorModal {
	m := &ConfigErrorModal{
		configPath:   configPath,
		errorMessage: errorMessage,
		lineNumber:   lineNumber,
		onReset:      onReset,
		onQuit:       onQuit,
	}
	if lineNumber > 0 {
		if data, err := os.ReadFile(configPath); err == nil {
			m.fileLines = strings.Split(string(data), "\n")
		}
	}
	return m
}

func (m *ConfigErrorModal) Type() ModalType {
	return ModalConfigError
}

func (m *ConfigErrorModal) HandleKey(msg tea.KeyMsg) (bool, Modal, tea.Cmd) {
	key := strings.ToLower(msg.String())

	if m.confirming {
		switch key {
		case "y", "n":
			var cmd tea.Cmd
			if m.onReset != nil {
				cmd = m.onReset(key == "y")
			}
			return true, nil, cmd
		case "esc", "c":
			m.confirming = false
		}
		return true, m, nil
	}

	switch key {
	case "r":
		m.confirming = true
	case "q", "esc":
		var cmd tea.Cmd
		if m.onQuit != nil {
			cmd = m.onQuit()
		}
		return true, nil, cmd
	}
	return true, m, nil
}

func (m *ConfigErrorModal) Render(width, height int) string {
	box := frameStyle.Padding(1, 3).Width(70)
	center := lipgloss.NewStyle().Align(lipgloss.Center)

	if m.confirming {
		content := lipgloss.JoinVertical(
			lipgloss.Center,
			titleStyle.Render("Back up the current config?"),
			mutedStyle.Render(fmt.Sprintf("Backup: %s.backup-%s", m.configPath, time.Now().Format("2006-01-02"))),
			"",
			mutedStyle.Render("[Y] Back up, then reset  [N] Just reset  [C] Cancel"),
		)
		return place(width, height, box.Render(center.Render(content)))
	}

	parts := []string{
		errorStyle.Render("Configuration file error"),
		mutedStyle.Render("File: " + m.configPath),
		"",
		lipgloss.NewStyle().Foreground(errorColor).Width(62).Render(m.errorMessage),
	}
	if snippet := m.snippet(); snippet != "" {
		parts = append(parts, "", snippet)
	}
	parts = append(parts, "", mutedStyle.Render("[R] Reset to defaults  [Q] Quit"))

	return place(width, height, box.Render(lipgloss.JoinVertical(lipgloss.Left, parts...)))
}

// snippet renders the failing line with a little context around it
func (m *ConfigErrorModal) snippet() string {
	if m.lineNumber <= 0 || len(m.fileLines) == 0 {
		return ""
	}

	numStyle := lipgloss.NewStyle().Foreground(mutedColor)
	badStyle := lipgloss.NewStyle().Foreground(errorColor).Bold(true)

	start := max(1, m.lineNumber-contextLines)
	end := min(len(m.fileLines), m.lineNumber+contextLines)

	var lines []string
	for n := start; n <= end; n++ {
		text := m.fileLines[n-1]
		if len(text) > 56 {
			text = text[:53] + "..."
		}
		prefix := numStyle.Render(fmt.Sprintf("%3d│ ", n))
		if n == m.lineNumber {
			lines = append(lines, prefix+badStyle.Render(text)+" ← here")
			continue
		}
		lines = append(lines, prefix+text)
	}
	return strings.Join(lines, "\n")
}
