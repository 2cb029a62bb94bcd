package modal

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// HelpModal lists the slash commands and keyboard shortcuts
type HelpModal struct {
	commands  []string
	shortcuts [][2]string // key, description
}

// NewHelpModal creates a help modal from pre-rendered command lines
func NewHelpModal(commands []string, shortcuts [][2]string) *HelpModal {
	return &HelpModal{commands: commands, shortcuts: shortcuts}
}

func (m *HelpModal) Type() ModalType {
	return ModalHelp
}

// HandleKey closes on esc, enter or ?, and swallows everything else
func (m *HelpModal) HandleKey(msg tea.KeyMsg) (bool, Modal, tea.Cmd) {
	switch msg.String() {
	case "esc", "enter", "?":
		return true, nil, nil
	default:
		return true, m, nil
	}
}

func (m *HelpModal) Render(width, height int) string {
	keyStyle := lipgloss.NewStyle().Foreground(accentColor).Width(14)
	descStyle := lipgloss.NewStyle().Foreground(textColor)

	shortcuts := make([]string, 0, len(m.shortcuts))
	for _, sc := range m.shortcuts {
		shortcuts = append(shortcuts, keyStyle.Render(sc[0])+" "+descStyle.Render(sc[1]))
	}

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Render("Commands"),
		descStyle.Render(strings.Join(m.commands, "\n")),
		"",
		titleStyle.Render("Keys"),
		strings.Join(shortcuts, "\n"),
		"",
		mutedStyle.Italic(true).Render("[Esc] Close"),
	)

	return place(width, height, frameStyle.Render(content))
}
