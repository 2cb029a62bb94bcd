// Package modal holds the overlay dialogs of the terminal client
package modal

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ModalType identifies a modal
type ModalType int

const (
	ModalNone ModalType = iota
	ModalHelp
	ModalNicknameSetup
	ModalConfigError
)

// Modal is an overlay that takes over keyboard input while shown
type Modal interface {
	Type() ModalType

	// HandleKey processes a key. It returns whether the key was consumed,
	// the modal to show next (nil closes it) and an optional command.
	HandleKey(msg tea.KeyMsg) (bool, Modal, tea.Cmd)

	Render(width, height int) string
}

var (
	primaryColor = lipgloss.Color("205")
	accentColor  = lipgloss.Color("170")
	errorColor   = lipgloss.Color("196")
	mutedColor   = lipgloss.Color("240")
	textColor    = lipgloss.Color("252")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	mutedStyle = lipgloss.NewStyle().Foreground(mutedColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(1, 2)
)

// place centers a rendered modal on the screen
func place(width, height int, content string) string {
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}
