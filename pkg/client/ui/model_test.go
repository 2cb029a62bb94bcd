package ui

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/aeolun/neighborchat/pkg/client"
	"github.com/aeolun/neighborchat/pkg/client/ui/modal"
	"github.com/aeolun/neighborchat/pkg/protocol"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []protocol.Packet
	err  error
}

func (f *fakeSender) Send(ctx context.Context, p protocol.Packet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, p)
	return nil
}

func (f *fakeSender) packets() []protocol.Packet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Packet(nil), f.sent...)
}

type harness struct {
	model      Model
	state      *client.ChatState
	store      *client.MessageStore
	dispatcher *client.Dispatcher
	sender     *fakeSender
	nicknames  []string
}

func newHarness(t *testing.T, nickname string) *harness {
	t.Helper()

	h := &harness{
		state:  client.NewChatState(),
		store:  client.NewMessageStore(),
		sender: &fakeSender{},
	}
	h.dispatcher = client.NewDispatcher(h.state, h.store)
	h.model = NewModel(h.state, h.store, h.sender, protocol.NewPacketBuilder(nickname), Options{
		ShowTimestamps: true,
		OnNickname:     func(n string) { h.nicknames = append(h.nicknames, n) },
	})
	t.Cleanup(h.model.Close)

	h.update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return h
}

func (h *harness) update(msg tea.Msg) tea.Cmd {
	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	return cmd
}

// typeLine sets the input and presses enter, running the resulting command
func (h *harness) typeLine(line string) tea.Msg {
	h.model.input.SetValue(line)
	return h.run(h.update(tea.KeyMsg{Type: tea.KeyEnter}))
}

// run executes cmd and feeds the model's own messages back into it
func (h *harness) run(cmd tea.Cmd) tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	switch msg.(type) {
	case sendResultMsg, nicknameAbortMsg:
		h.update(msg)
	case nicknameSetMsg:
		h.run(h.update(msg))
	}
	return msg
}

func (h *harness) join(channel string) {
	h.dispatcher.Dispatch(protocol.StatusPacket{Status: protocol.JoinedChannelStatus(channel)})
}

func TestJoinCommandSendsJoinPacket(t *testing.T) {
	h := newHarness(t, "Alice")

	h.typeLine("/join general")

	require.Len(t, h.sender.packets(), 1)
	assert.Equal(t, protocol.JoinChannelPacket{Channel: "general"}, h.sender.packets()[0])
	assert.Empty(t, h.model.input.Value())
}

func TestListCommandSendsRequest(t *testing.T) {
	h := newHarness(t, "Alice")

	h.typeLine("/list")

	require.Len(t, h.sender.packets(), 1)
	list, ok := h.sender.packets()[0].(protocol.ListChannelsPacket)
	require.True(t, ok)
	assert.True(t, list.IsRequest())
}

func TestSayRequiresChannel(t *testing.T) {
	h := newHarness(t, "Alice")

	h.typeLine("hello")

	assert.Empty(t, h.sender.packets())
	assert.Contains(t, h.model.errText, "Join a channel first")
}

func TestSaySendsChat(t *testing.T) {
	h := newHarness(t, "Alice")
	h.join("general")

	h.typeLine("hello there")

	require.Len(t, h.sender.packets(), 1)
	msg, ok := h.sender.packets()[0].(protocol.ChatMessage)
	require.True(t, ok)
	assert.Equal(t, "hello there", msg.Message)
	assert.Equal(t, "Alice", msg.User)
	assert.Nil(t, msg.DirectMessageTo)
}

func TestDirectMessage(t *testing.T) {
	h := newHarness(t, "Alice")

	h.typeLine("/dm Bob psst")

	require.Len(t, h.sender.packets(), 1)
	msg := h.sender.packets()[0].(protocol.ChatMessage)
	require.NotNil(t, msg.DirectMessageTo)
	assert.Equal(t, "Bob", *msg.DirectMessageTo)
	assert.Equal(t, "psst", msg.Message)
}

func TestReplyTargetsLatestMessage(t *testing.T) {
	h := newHarness(t, "Alice")
	h.join("general")

	h.typeLine("/reply me too")
	assert.Equal(t, "Nothing to reply to", h.model.errText)
	assert.Empty(t, h.sender.packets())

	first := protocol.ChatMessage{ID: uuid.New(), User: "Bob", Message: "first", Sent: 1}
	latest := protocol.ChatMessage{ID: uuid.New(), User: "Carol", Message: "second", Sent: 2}
	h.dispatcher.Dispatch(first)
	h.dispatcher.Dispatch(latest)

	h.typeLine("/reply me too")

	require.Len(t, h.sender.packets(), 1)
	msg := h.sender.packets()[0].(protocol.ChatMessage)
	require.NotNil(t, msg.InReplyTo)
	assert.Equal(t, latest.ID, *msg.InReplyTo)
}

func TestNicknamePromptBeforeFirstMessage(t *testing.T) {
	h := newHarness(t, "")
	h.join("general")

	h.typeLine("hi all")

	require.NotNil(t, h.model.Modal())
	assert.Equal(t, modal.ModalNicknameSetup, h.model.Modal().Type())
	assert.Empty(t, h.sender.packets())

	h.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("Alice")})
	h.run(h.update(tea.KeyMsg{Type: tea.KeyEnter}))

	assert.Nil(t, h.model.Modal())
	assert.Nil(t, h.model.pending)
	assert.Equal(t, []string{"Alice"}, h.nicknames)
	assert.Equal(t, "Alice", h.model.builder.Nickname())

	require.Len(t, h.sender.packets(), 1)
	msg := h.sender.packets()[0].(protocol.ChatMessage)
	assert.Equal(t, "hi all", msg.Message)
	assert.Equal(t, "Alice", msg.User)
}

func TestNicknamePromptCancelDropsMessage(t *testing.T) {
	h := newHarness(t, "")
	h.join("general")

	h.typeLine("hi all")
	require.NotNil(t, h.model.Modal())

	h.run(h.update(tea.KeyMsg{Type: tea.KeyEsc}))

	assert.Nil(t, h.model.Modal())
	assert.Nil(t, h.model.pending)
	assert.Empty(t, h.sender.packets())
}

func TestNickCommand(t *testing.T) {
	h := newHarness(t, "Alice")

	h.typeLine("/nick Bo")
	assert.NotEmpty(t, h.model.errText)
	assert.Equal(t, "Alice", h.model.builder.Nickname())

	h.typeLine("/nick Bobby")
	assert.Empty(t, h.model.errText)
	assert.Equal(t, "Bobby", h.model.builder.Nickname())
	assert.Equal(t, []string{"Bobby"}, h.nicknames)
}

func TestUnknownCommandShowsError(t *testing.T) {
	h := newHarness(t, "Alice")

	h.typeLine("/frobnicate")

	assert.NotEmpty(t, h.model.errText)
	assert.Empty(t, h.sender.packets())

	h.update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Empty(t, h.model.errText)
}

func TestHelpModal(t *testing.T) {
	h := newHarness(t, "Alice")

	h.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	require.NotNil(t, h.model.Modal())
	assert.Equal(t, modal.ModalHelp, h.model.Modal().Type())
	assert.Contains(t, h.model.View(), "/join")

	h.update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, h.model.Modal())
}

func TestQuitCommand(t *testing.T) {
	h := newHarness(t, "Alice")

	msg := h.typeLine("/quit")

	assert.IsType(t, tea.QuitMsg{}, msg)
}

func TestSendFailureShown(t *testing.T) {
	h := newHarness(t, "Alice")
	h.sender.err = client.ErrNotConnected

	h.typeLine("/list")

	assert.Equal(t, "Not connected, message not sent", h.model.errText)
}

func TestEventsUpdateView(t *testing.T) {
	h := newHarness(t, "Alice")

	h.dispatcher.Dispatch(protocol.ListChannelsPacket{Channels: []string{"general 2", "random 0"}})
	h.join("general")
	h.dispatcher.Dispatch(protocol.ChangeTopicPacket{Topic: "Welcome"})
	h.dispatcher.Dispatch(protocol.ChatMessage{ID: uuid.New(), User: "Bob", Message: "hello from bob", Sent: 1})
	h.dispatcher.Dispatch(protocol.ErrorPacket{Error: "Rate limit exceeded"})

	// drain the subscription the way the program would
	for range 5 {
		h.update(waitForEvent(h.model.events)())
	}

	view := h.model.View()
	assert.Contains(t, view, "#general")
	assert.Contains(t, view, "#random")
	assert.Contains(t, view, "Welcome")
	assert.Contains(t, view, "hello from bob")
	assert.Contains(t, view, "Rate limit exceeded")
}

func TestViewGroupsMessages(t *testing.T) {
	h := newHarness(t, "Alice")
	h.join("general")

	for _, text := range []string{"one", "two", "three"} {
		h.dispatcher.Dispatch(protocol.ChatMessage{ID: uuid.New(), User: "Bob", Message: text, Sent: 1_000})
	}

	rendered := h.model.renderMessages()
	assert.Equal(t, 1, strings.Count(rendered, "Bob"))
	assert.Contains(t, rendered, "three")
}

func TestEventsClosed(t *testing.T) {
	h := newHarness(t, "Alice")
	h.model.Close()

	msg := waitForEvent(h.model.events)()
	assert.IsType(t, eventsClosedMsg{}, msg)
	assert.Nil(t, h.update(msg))
}
