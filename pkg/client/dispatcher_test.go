package client

import (
	"errors"
	"testing"

	"github.com/aeolun/neighborchat/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedDispatcher(sink MessageSink) (*Dispatcher, *ChatState, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	state := NewChatState()
	d := NewDispatcher(state, sink)
	d.SetLogger(zap.New(core))
	return d, state, logs
}

func TestDispatchListChannelsReplacesRegistry(t *testing.T) {
	d, state, _ := newObservedDispatcher(nil)

	d.Dispatch(protocol.ListChannelsPacket{Channels: []string{"a 1", "b 2"}})
	assert.Equal(t, []string{"a", "b"}, state.Channels())

	d.Dispatch(protocol.ListChannelsPacket{Channels: []string{"Book Club 4", "no count"}})
	assert.Equal(t, []string{"Book Club", "no count"}, state.Channels())
	assert.False(t, state.HasChannel("a"))

	// An empty response clears the registry
	d.Dispatch(protocol.ListChannelsPacket{Channels: []string{}})
	assert.Empty(t, state.Channels())
}

func TestDispatchListChannelsRequestIgnored(t *testing.T) {
	d, state, logs := newObservedDispatcher(nil)
	d.Dispatch(protocol.ListChannelsPacket{Channels: []string{"kept 1"}})

	d.Dispatch(protocol.ListChannelsPacket{})
	assert.Equal(t, []string{"kept"}, state.Channels())
	assert.Equal(t, 1, logs.FilterMessage("ignoring channel list request from server").Len())
}

func TestDispatchStatus(t *testing.T) {
	d, state, logs := newObservedDispatcher(nil)
	events, unsubscribe := state.Subscribe(8)
	defer unsubscribe()

	d.Dispatch(protocol.StatusPacket{Status: "You joined the channel  Quiet Room"})
	assert.Equal(t, "Quiet Room", state.ActiveChannel())
	ev := <-events
	assert.Equal(t, EventActiveChannel, ev.Kind)
	assert.Equal(t, "Quiet Room", ev.Text)

	d.Dispatch(protocol.StatusPacket{Status: "Welcome to the server"})
	assert.Equal(t, "Quiet Room", state.ActiveChannel())
	ev = <-events
	assert.Equal(t, EventStatus, ev.Kind)
	assert.Equal(t, "Welcome to the server", ev.Text)
	assert.Equal(t, 1, logs.FilterField(zap.String("status", "Welcome to the server")).Len())
}

func TestDispatchChatUsesActiveChannel(t *testing.T) {
	store := NewMessageStore()
	d, state, _ := newObservedDispatcher(store)
	events, unsubscribe := state.Subscribe(8)
	defer unsubscribe()

	early := testMessage("dave", "anyone?", 1700000000000)
	d.Dispatch(early)
	assert.Equal(t, []protocol.ChatMessage{early}, store.Messages(""))

	d.Dispatch(protocol.StatusPacket{Status: protocol.JoinedChannelStatus("books")})
	late := testMessage("dave", "found it", 1700000005000)
	d.Dispatch(late)
	assert.Equal(t, []protocol.ChatMessage{late}, store.Messages("books"))

	var msgEvents []Event
	for len(events) > 0 {
		if ev := <-events; ev.Kind == EventMessage {
			msgEvents = append(msgEvents, ev)
		}
	}
	require.Len(t, msgEvents, 2)
	assert.Equal(t, "", msgEvents[0].Channel)
	assert.Equal(t, "books", msgEvents[1].Channel)
	assert.Equal(t, late, *msgEvents[1].Message)
}

func TestDispatchChatSinkError(t *testing.T) {
	history := NewMockHistory()
	history.SetAppendError(errors.New("disk full"))
	store := NewMessageStore()
	d, _, logs := newObservedDispatcher(Tee(store, history))

	d.Dispatch(testMessage("erin", "hello", 1700000000000))

	// The in-memory copy is kept even though the archive failed
	assert.Equal(t, 1, store.Len(""))
	assert.Equal(t, 1, logs.FilterMessage("failed to store chat message").Len())
}

func TestDispatchChangeTopic(t *testing.T) {
	d, state, _ := newObservedDispatcher(nil)
	d.Dispatch(protocol.ChangeTopicPacket{Topic: "first"})
	d.Dispatch(protocol.ChangeTopicPacket{Topic: ""})
	assert.Equal(t, "", state.Topic())
	d.Dispatch(protocol.ChangeTopicPacket{Topic: "second"})
	assert.Equal(t, "second", state.Topic())
}

func TestDispatchErrorAndJoinOnlyLog(t *testing.T) {
	d, state, logs := newObservedDispatcher(nil)
	events, unsubscribe := state.Subscribe(8)
	defer unsubscribe()

	d.Dispatch(protocol.ErrorPacket{Error: "going down", ClientShutdown: true})
	d.Dispatch(protocol.JoinChannelPacket{Channel: "odd"})

	ev := <-events
	assert.Equal(t, EventServerError, ev.Kind)
	assert.Equal(t, "going down", ev.Text)
	assert.Len(t, events, 0)

	assert.Equal(t, "", state.ActiveChannel())
	assert.Equal(t, 1, logs.FilterMessage("server error, server requested client shutdown").Len())
	assert.Equal(t, 1, logs.FilterMessage("unexpected join channel packet from server").Len())
}
