package ui

import (
	"context"
	"time"

	"github.com/aeolun/neighborchat/pkg/client"
	"github.com/aeolun/neighborchat/pkg/client/commands"
	"github.com/aeolun/neighborchat/pkg/client/ui/modal"
	"github.com/aeolun/neighborchat/pkg/protocol"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	// eventBuffer is the chat state subscription buffer
	eventBuffer = 256

	defaultSendTimeout = 5 * time.Second

	// refreshInterval re-renders relative timestamps
	refreshInterval = 30 * time.Second
)

// Sender enqueues packets for the server; *client.Supervisor implements it
type Sender interface {
	Send(ctx context.Context, p protocol.Packet) error
}

// Options tune the chat screen
type Options struct {
	ShowTimestamps  bool
	TimestampFormat string // "absolute" or "relative"
	Location        *time.Location
	SendTimeout     time.Duration
	ServerAddr      string
	OnNickname      func(nickname string) // called after the nickname changes
}

// Model is the bubbletea model of the chat screen
type Model struct {
	state   *client.ChatState
	store   *client.MessageStore
	sender  Sender
	builder *protocol.PacketBuilder
	opts    Options

	events      <-chan client.Event
	unsubscribe func()

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	modal    modal.Modal

	width  int
	height int

	status  string
	errText string
	pending *commands.Invocation // held while the nickname prompt is open
}

// Messages used inside the update loop
type (
	eventMsg         struct{ event client.Event }
	eventsClosedMsg  struct{}
	sendResultMsg    struct{ err error }
	nicknameSetMsg   struct{ nickname string }
	nicknameAbortMsg struct{}
	tickMsg          time.Time
)

// NewModel creates the chat screen. It subscribes to state right away so no
// event published before the program starts is lost; call Close when done.
func NewModel(state *client.ChatState, store *client.MessageStore, sender Sender, builder *protocol.PacketBuilder, opts Options) Model {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	input := textinput.New()
	input.Placeholder = "Type a message or /help"
	input.CharLimit = 4096
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	events, unsubscribe := state.Subscribe(eventBuffer)

	return Model{
		state:       state,
		store:       store,
		sender:      sender,
		builder:     builder,
		opts:        opts,
		events:      events,
		unsubscribe: unsubscribe,
		input:       input,
		viewport:    viewport.New(0, 0),
		spinner:     sp,
	}
}

// Init starts listening for chat state events
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForEvent(m.events),
		textinput.Blink,
		m.spinner.Tick,
		tickCmd(),
	)
}

// Close stops the chat state subscription
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Modal returns the open modal, or nil
func (m Model) Modal() modal.Modal {
	return m.modal
}

// waitForEvent turns the next chat state event into a tea message
func waitForEvent(events <-chan client.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{event: ev}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// sendCmd enqueues a packet off the update loop
func (m Model) sendCmd(p protocol.Packet) tea.Cmd {
	sender, timeout := m.sender, m.opts.SendTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return sendResultMsg{err: sender.Send(ctx, p)}
	}
}
