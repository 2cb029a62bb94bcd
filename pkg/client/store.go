package client

import (
	"errors"
	"sort"
	"sync"

	"github.com/aeolun/neighborchat/pkg/protocol"
)

// MessageSink receives chat messages filed under a channel
type MessageSink interface {
	Append(channel string, msg protocol.ChatMessage) error
}

// MessageStore keeps the chat history of the running session in memory.
// Sequences are append-only and survive reconnects.
type MessageStore struct {
	mu       sync.RWMutex
	messages map[string][]protocol.ChatMessage
}

// NewMessageStore creates an empty store
func NewMessageStore() *MessageStore {
	return &MessageStore{
		messages: make(map[string][]protocol.ChatMessage),
	}
}

// Append adds a message to the end of a channel's sequence
func (s *MessageStore) Append(channel string, msg protocol.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[channel] = append(s.messages[channel], msg)
	return nil
}

// Messages returns a copy of a channel's messages in arrival order
func (s *MessageStore) Messages(channel string) []protocol.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[channel]
	out := make([]protocol.ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}

// Len returns the number of messages stored for a channel
func (s *MessageStore) Len(channel string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages[channel])
}

// Channels returns the channels that have at least one message
func (s *MessageStore) Channels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.messages))
	for name := range s.messages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type teeSink []MessageSink

// Tee returns a sink that appends to every given sink in order.
// All sinks are tried even if one fails; the errors are joined.
func Tee(sinks ...MessageSink) MessageSink {
	out := make(teeSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (t teeSink) Append(channel string, msg protocol.ChatMessage) error {
	var errs []error
	for _, s := range t {
		if err := s.Append(channel, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
