package ui

import (
	"errors"
	"fmt"

	"github.com/aeolun/neighborchat/pkg/client"
	"github.com/aeolun/neighborchat/pkg/client/commands"
	"github.com/aeolun/neighborchat/pkg/client/ui/modal"
	"github.com/aeolun/neighborchat/pkg/protocol"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Shortcuts lists the keys shown in the help modal
var Shortcuts = [][2]string{
	{"Enter", "Send message or command"},
	{"PgUp/PgDn", "Scroll messages"},
	{"Esc", "Dismiss error"},
	{"?", "Help (on an empty line)"},
	{"Ctrl+C", "Quit"},
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refreshMessages(true)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		m.handleEvent(msg.event)
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		return m, nil

	case sendResultMsg:
		if msg.err != nil {
			if errors.Is(msg.err, client.ErrNotConnected) {
				m.errText = "Not connected, message not sent"
			} else {
				m.errText = fmt.Sprintf("Send failed: %v", msg.err)
			}
		}
		return m, nil

	case nicknameSetMsg:
		m.setNickname(msg.nickname)
		if m.pending != nil {
			inv := *m.pending
			m.pending = nil
			cmd := m.execute(inv)
			return m, cmd
		}
		return m, nil

	case nicknameAbortMsg:
		m.pending = nil
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		m.refreshMessages(false)
		return m, tickCmd()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	if m.modal != nil {
		_, next, cmd := m.modal.HandleKey(msg)
		m.modal = next
		return m, cmd
	}

	switch msg.String() {
	case "enter":
		return m.submit()
	case "esc":
		m.errText = ""
		return m, nil
	case "pgup", "pgdown", "ctrl+u", "ctrl+d":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case "?":
		if m.input.Value() == "" {
			m.modal = modal.NewHelpModal(commands.HelpLines(), Shortcuts)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleEvent(ev client.Event) {
	switch ev.Kind {
	case client.EventMessage:
		if ev.Channel == m.state.ActiveChannel() {
			m.refreshMessages(true)
		}
	case client.EventActiveChannel:
		m.status = "Joined " + ev.Text
		m.refreshMessages(true)
	case client.EventStatus:
		m.status = ev.Text
	case client.EventServerError:
		m.errText = ev.Text
	case client.EventConnectionState:
		if ev.State == client.StateConnected {
			m.status = "Connected"
		}
	}
}

// submit parses the input line and runs it
func (m Model) submit() (tea.Model, tea.Cmd) {
	inv, err := commands.Parse(m.input.Value())
	if err != nil {
		if !errors.Is(err, commands.ErrEmptyInput) {
			m.errText = err.Error()
		}
		return m, nil
	}
	m.input.Reset()
	m.errText = ""

	switch inv.Action {
	case commands.ActionHelp:
		m.modal = modal.NewHelpModal(commands.HelpLines(), Shortcuts)
		return m, nil
	case commands.ActionQuit:
		return m, tea.Quit
	case commands.ActionNickname:
		nickname, err := protocol.ValidateNickname(inv.Target)
		if err != nil {
			m.errText = err.Error()
			return m, nil
		}
		m.setNickname(nickname)
		return m, nil
	case commands.ActionSay, commands.ActionReply, commands.ActionDirect:
		if m.builder.Nickname() == "" {
			m.pending = &inv
			m.modal = modal.NewNicknameSetupModal("",
				func(nickname string) tea.Cmd {
					return func() tea.Msg { return nicknameSetMsg{nickname: nickname} }
				},
				func() tea.Cmd {
					return func() tea.Msg { return nicknameAbortMsg{} }
				},
			)
			return m, nil
		}
	}

	cmd := m.execute(inv)
	return m, cmd
}

// execute turns an invocation into an outbound packet
func (m *Model) execute(inv commands.Invocation) tea.Cmd {
	switch inv.Action {
	case commands.ActionJoin:
		return m.sendCmd(m.builder.JoinChannel(inv.Target))
	case commands.ActionList:
		return m.sendCmd(m.builder.ListChannels())
	case commands.ActionTopic:
		if m.state.ActiveChannel() == "" {
			m.errText = "Join a channel first (/join <channel>)"
			return nil
		}
		return m.sendCmd(m.builder.SetTopic(inv.Text))
	case commands.ActionSay:
		if m.state.ActiveChannel() == "" {
			m.errText = "Join a channel first (/join <channel>)"
			return nil
		}
		return m.sendCmd(m.builder.Chat(inv.Text))
	case commands.ActionReply:
		latest, ok := m.latestMessage()
		if !ok {
			m.errText = "Nothing to reply to"
			return nil
		}
		return m.sendCmd(m.builder.Reply(latest.ID, inv.Text))
	case commands.ActionDirect:
		return m.sendCmd(m.builder.Direct(inv.Target, inv.Text))
	}
	return nil
}

func (m *Model) setNickname(nickname string) {
	m.builder.SetNickname(nickname)
	m.status = "You are now " + nickname
	if m.opts.OnNickname != nil {
		m.opts.OnNickname(nickname)
	}
}

func (m Model) latestMessage() (protocol.ChatMessage, bool) {
	msgs := m.store.Messages(m.state.ActiveChannel())
	if len(msgs) == 0 {
		return protocol.ChatMessage{}, false
	}
	return msgs[len(msgs)-1], true
}
