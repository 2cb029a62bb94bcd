package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/76creates/stickers/flexbox"
	"github.com/aeolun/neighborchat/pkg/client"
	"github.com/aeolun/neighborchat/pkg/protocol"
	"github.com/charmbracelet/lipgloss"
)

// Rows taken by everything except the body panes
const chromeHeight = 5 // header(1) + input box(3) + footer(1)

// layout sizes the viewport and input to the window
func (m *Model) layout() {
	bodyHeight := max(m.height-chromeHeight, 3)
	// message pane gets 3/4 of the width, minus border and padding
	m.viewport.Width = max(m.width*3/4-4, 10)
	m.viewport.Height = max(bodyHeight-2, 1)
	m.input.Width = max(m.width-6, 10)
}

// refreshMessages re-renders the active channel into the viewport
func (m *Model) refreshMessages(toBottom bool) {
	m.viewport.SetContent(m.renderMessages())
	if toBottom {
		m.viewport.GotoBottom()
	}
}

// View renders the chat screen
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	if m.modal != nil {
		return m.modal.Render(m.width, m.height)
	}

	body := flexbox.NewHorizontal(m.width, max(m.height-chromeHeight, 3))

	channelCol := body.NewColumn().AddCells(
		flexbox.NewCell(1, 1).
			SetStyle(ChannelPaneStyle).
			SetContent(m.renderChannelPane()),
	)
	messageCol := body.NewColumn().AddCells(
		flexbox.NewCell(3, 1).
			SetStyle(MessagePaneStyle).
			SetContent(m.viewport.View()),
	)
	body.AddColumns([]*flexbox.Column{channelCol, messageCol})

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(),
		body.Render(),
		InputFocusedStyle.Width(max(m.width-2, 10)).Render(m.input.View()),
		m.renderFooter(),
	)
}

func (m Model) renderHeader() string {
	var conn string
	switch m.state.ConnectionState() {
	case client.StateConnected:
		conn = SuccessStyle.Render("●")
	case client.StateConnecting:
		conn = m.spinner.View()
	default:
		conn = ErrorStyle.Render("○")
	}

	parts := []string{conn, HeaderStyle.Render("NeighborChat")}
	if m.opts.ServerAddr != "" {
		parts = append(parts, MessageMetaStyle.Render(m.opts.ServerAddr))
	}
	if ch := m.state.ActiveChannel(); ch != "" {
		parts = append(parts, ActiveChannelStyle.Render("#"+ch))
		if topic := m.state.Topic(); topic != "" {
			parts = append(parts, TopicStyle.Render(topic))
		}
	}
	if nick := m.builder.Nickname(); nick != "" {
		parts = append(parts, MessageMetaStyle.Render("as "+nick))
	}

	return lipgloss.NewStyle().MaxWidth(m.width).Render(strings.Join(parts, " "))
}

func (m Model) renderChannelPane() string {
	lines := []string{ChannelTitleStyle.Render("Channels"), ""}

	channels := m.state.Channels()
	if len(channels) == 0 {
		lines = append(lines, MessageMetaStyle.Render("none yet, try /list"))
	}
	active := m.state.ActiveChannel()
	for _, ch := range channels {
		if ch == active {
			lines = append(lines, ActiveChannelStyle.Render("▶ #"+ch))
			continue
		}
		lines = append(lines, ChannelItemStyle.Render("  #"+ch))
	}

	return strings.Join(lines, "\n")
}

// renderMessages renders the active channel's messages, grouped per author
func (m Model) renderMessages() string {
	active := m.state.ActiveChannel()
	if active == "" {
		return MessageMetaStyle.Render("Join a channel with /join <name>, or /help for commands.")
	}

	msgs := m.store.Messages(active)
	if len(msgs) == 0 {
		return MessageMetaStyle.Render("No messages in #" + active + " yet.")
	}

	own := m.builder.Nickname()
	width := max(m.viewport.Width, 10)
	var b strings.Builder

	for i, dm := range client.GroupMessages(msgs) {
		if dm.ShowUser {
			if i > 0 {
				b.WriteString("\n")
			}
			author := MessageAuthorStyle
			if dm.User == own {
				author = MessageOwnAuthorStyle
			}
			header := author.Render(dm.User)
			if dm.DirectMessageTo != nil {
				header += DirectMessageStyle.Render(" → " + *dm.DirectMessageTo + " (direct)")
			}
			b.WriteString(header + "\n")
		}

		content := dm.Message
		if dm.InReplyTo != nil {
			content = MessageMetaStyle.Render("↪ "+m.replySnippet(msgs, dm.InReplyTo.String())) + "\n" + content
		}
		b.WriteString(MessageContentStyle.Width(width).Render(content))

		if dm.ShowTime && m.opts.ShowTimestamps {
			b.WriteString(" " + MessageTimeStyle.Render(m.formatTimestamp(dm.Sent)))
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// replySnippet shows who and what a reply refers to
func (m Model) replySnippet(msgs []protocol.ChatMessage, id string) string {
	for _, msg := range msgs {
		if msg.ID.String() != id {
			continue
		}
		text := []rune(msg.Message)
		if len(text) > 40 {
			text = append(text[:37], []rune("...")...)
		}
		return fmt.Sprintf("%s: %s", msg.User, string(text))
	}
	return "earlier message"
}

func (m Model) formatTimestamp(sent int64) string {
	if m.opts.TimestampFormat == "relative" {
		return client.FormatRelativeTime(time.UnixMilli(sent))
	}
	return client.FormatTime(sent, m.opts.Location)
}

func (m Model) renderFooter() string {
	switch {
	case m.errText != "":
		return RenderError(m.errText)
	case m.state.Notification() != "":
		return RenderWarning(m.state.Notification())
	case m.status != "":
		return StatusStyle.Render(m.status)
	}
	return strings.Join([]string{
		RenderShortcut("Enter", "send"),
		RenderShortcut("/help", "commands"),
		RenderShortcut("Ctrl+C", "quit"),
	}, "  ")
}
