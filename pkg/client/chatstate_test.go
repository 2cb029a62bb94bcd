package client

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatStateDefaults(t *testing.T) {
	s := NewChatState()
	assert.Equal(t, StateDisconnected, s.ConnectionState())
	assert.False(t, s.IsOnline())
	assert.Empty(t, s.Channels())
	assert.Empty(t, s.ActiveChannel())
	assert.Empty(t, s.Topic())
	assert.Empty(t, s.Notification())
}

func TestChatStatePublishesTransitionsOnly(t *testing.T) {
	s := NewChatState()
	events, unsubscribe := s.Subscribe(16)
	defer unsubscribe()

	s.setConnectionState(StateDisconnected)
	s.setConnectionState(StateConnecting)
	s.setConnectionState(StateConnecting)
	s.setConnectionState(StateConnected)
	s.setNotification("")
	s.setNotification("offline")
	s.setNotification("offline")

	var got []Event
	for len(events) > 0 {
		got = append(got, <-events)
	}
	require.Len(t, got, 3)
	assert.Equal(t, Event{Kind: EventConnectionState, State: StateConnecting}, got[0])
	assert.Equal(t, Event{Kind: EventConnectionState, State: StateConnected}, got[1])
	assert.Equal(t, Event{Kind: EventNotification, Text: "offline"}, got[2])
}

func TestChatStateSlowSubscriberDoesNotBlock(t *testing.T) {
	s := NewChatState()
	_, unsubscribe := s.Subscribe(1)
	defer unsubscribe()

	for i := 0; i < 10; i++ {
		s.setTopic("t")
	}
	assert.Equal(t, "t", s.Topic())
}

func TestChatStateUnsubscribeClosesChannel(t *testing.T) {
	s := NewChatState()
	events, unsubscribe := s.Subscribe(1)
	unsubscribe()
	unsubscribe()

	_, ok := <-events
	assert.False(t, ok)

	// Publishing after unsubscribe must not panic
	s.setTopic("after")
}

func TestChatStateConcurrentReaders(t *testing.T) {
	s := NewChatState()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s.Channels()
				s.ActiveChannel()
				s.IsOnline()
			}
		}()
	}
	for j := 0; j < 200; j++ {
		s.replaceChannels([]string{"a", "b"})
		s.setActiveChannel("a")
		s.setConnectionState(ConnectionState(j % 3))
	}
	wg.Wait()
	assert.Equal(t, []string{"a", "b"}, s.Channels())
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "unknown", ConnectionState(9).String())
	assert.Equal(t, "message", EventMessage.String())
	assert.Equal(t, "unknown", EventKind(99).String())
}
