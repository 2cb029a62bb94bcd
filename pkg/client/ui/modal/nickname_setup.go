package modal

import (
	"fmt"

	"github.com/aeolun/neighborchat/pkg/protocol"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// MaxNicknameLength caps what can be typed into the nickname field
const MaxNicknameLength = 20

// NicknameSetupModal asks for a nickname before the first message is sent
type NicknameSetupModal struct {
	input        textinput.Model
	errorMessage string
	onConfirm    func(nickname string) tea.Cmd
	onCancel     func() tea.Cmd
}

// NewNicknameSetupModal creates a nickname prompt prefilled with initial
func NewNicknameSetupModal(initial string, onConfirm func(string) tea.Cmd, onCancel func() tea.Cmd) *NicknameSetupModal {
	input := textinput.New()
	input.Placeholder = "Your name"
	input.CharLimit = MaxNicknameLength
	input.Width = 40
	input.SetValue(initial)
	input.Focus()

	return &NicknameSetupModal{
		input:     input,
		onConfirm: onConfirm,
		onCancel:  onCancel,
	}
}

func (m *NicknameSetupModal) Type() ModalType {
	return ModalNicknameSetup
}

// Value returns the text typed so far
func (m *NicknameSetupModal) Value() string {
	return m.input.Value()
}

// Error returns the current validation message
func (m *NicknameSetupModal) Error() string {
	return m.errorMessage
}

func (m *NicknameSetupModal) HandleKey(msg tea.KeyMsg) (bool, Modal, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		nickname, err := protocol.ValidateNickname(m.input.Value())
		if err != nil {
			m.errorMessage = err.Error()
			return true, m, nil
		}
		var cmd tea.Cmd
		if m.onConfirm != nil {
			cmd = m.onConfirm(nickname)
		}
		return true, nil, cmd

	case tea.KeyEsc:
		var cmd tea.Cmd
		if m.onCancel != nil {
			cmd = m.onCancel()
		}
		return true, nil, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.errorMessage = ""
	return true, m, cmd
}

func (m *NicknameSetupModal) Render(width, height int) string {
	inputStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accentColor).
		Padding(0, 1).
		Width(44)

	helper := lipgloss.JoinVertical(
		lipgloss.Left,
		lipgloss.NewStyle().Foreground(textColor).Render("At least 3 characters, starting with a letter. Letters and spaces only."),
		mutedStyle.Render(fmt.Sprintf("Characters: %d/%d", len([]rune(m.input.Value())), MaxNicknameLength)),
	)

	var errLine string
	if m.errorMessage != "" {
		errLine = errorStyle.Render("⚠ " + m.errorMessage)
	}

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Render("Choose a nickname"),
		inputStyle.Render(m.input.View()),
		"",
		helper,
		errLine,
		"",
		mutedStyle.Render("[Enter] Confirm  [Esc] Cancel"),
	)

	return place(width, height, frameStyle.Render(content))
}
