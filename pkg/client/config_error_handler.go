package client

import (
	"errors"
	"fmt"
	"io"

	"github.com/aeolun/neighborchat/pkg/client/ui/modal"
	tea "github.com/charmbracelet/bubbletea"
)

// ConfigErrorHandler is a small bubbletea program that shows a broken
// config file and lets the user reset it
type ConfigErrorHandler struct {
	modal      modal.Modal
	configPath string
	width      int
	height     int

	reset    bool  // config was replaced with defaults
	resetErr error // reset was attempted and failed
}

// NewConfigErrorHandler creates a handler for a config load failure
func NewConfigErrorHandler(err *ConfigError) *ConfigErrorHandler {
	h := &ConfigErrorHandler{
		configPath: err.Path,
		width:      80,
		height:     24,
	}
	h.modal = modal.NewConfigErrorModal(err.Path, err.Message, err.LineNumber, h.handleReset, h.handleQuit)
	return h
}

func (h *ConfigErrorHandler) Init() tea.Cmd {
	return nil
}

func (h *ConfigErrorHandler) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h.width = msg.Width
		h.height = msg.Height
		return h, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return h, tea.Quit
		}
		_, next, cmd := h.modal.HandleKey(msg)
		if next != nil {
			h.modal = next
		}
		return h, cmd

	case resetDoneMsg:
		h.reset = msg.err == nil
		h.resetErr = msg.err
		return h, tea.Quit
	}

	return h, nil
}

func (h *ConfigErrorHandler) View() string {
	return h.modal.Render(h.width, h.height)
}

// Reset reports whether the config was reset to defaults, and the error if
// the attempt failed
func (h *ConfigErrorHandler) Reset() (bool, error) {
	return h.reset, h.resetErr
}

func (h *ConfigErrorHandler) handleReset(backup bool) tea.Cmd {
	path := h.configPath
	return func() tea.Msg {
		return resetDoneMsg{err: ResetConfigToDefault(path, backup)}
	}
}

func (h *ConfigErrorHandler) handleQuit() tea.Cmd {
	return tea.Quit
}

type resetDoneMsg struct{ err error }

// HandleConfigError shows the config error screen when err is a *ConfigError
// and reports the outcome to out. It returns false for any other error so
// the caller can fall back to its usual handling.
func HandleConfigError(err error, out io.Writer) bool {
	var configErr *ConfigError
	if !errors.As(err, &configErr) {
		return false
	}

	handler := NewConfigErrorHandler(configErr)
	if _, runErr := tea.NewProgram(handler).Run(); runErr != nil {
		fmt.Fprintf(out, "Config error: %v\n", configErr)
		return true
	}

	switch reset, resetErr := handler.Reset(); {
	case resetErr != nil:
		fmt.Fprintf(out, "✗ Failed to reset config: %v\n", resetErr)
	case reset:
		fmt.Fprintln(out, "✓ Configuration reset to defaults, restart the client to continue")
	}
	return true
}
