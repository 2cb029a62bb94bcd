package client

import (
	"sort"
	"sync"

	"github.com/aeolun/neighborchat/pkg/protocol"
	"go.uber.org/zap"
)

// ConnectionState represents the connection status
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// EventKind identifies what changed in the chat state
type EventKind int

const (
	EventConnectionState EventKind = iota
	EventNotification
	EventChannels
	EventActiveChannel
	EventTopic
	EventMessage
	EventStatus
	EventServerError
)

func (k EventKind) String() string {
	switch k {
	case EventConnectionState:
		return "connection_state"
	case EventNotification:
		return "notification"
	case EventChannels:
		return "channels"
	case EventActiveChannel:
		return "active_channel"
	case EventTopic:
		return "topic"
	case EventMessage:
		return "message"
	case EventStatus:
		return "status"
	case EventServerError:
		return "server_error"
	default:
		return "unknown"
	}
}

// Event is published to subscribers whenever the chat state changes
type Event struct {
	Kind     EventKind
	State    ConnectionState       // EventConnectionState
	Text     string                // notification, active channel, topic, status or error text
	Channel  string                // channel a message was filed under
	Channels []string              // EventChannels
	Message  *protocol.ChatMessage // EventMessage
}

// ChatState is the state shared between the connection core and the UI.
// The Supervisor owns the connection state and notification; the Dispatcher
// owns channels, active channel and topic. Everyone else only reads.
type ChatState struct {
	mu           sync.RWMutex
	conn         ConnectionState
	notification string
	channels     map[string]struct{}
	active       string
	topic        string

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int

	logger *zap.Logger
}

// NewChatState creates an empty, disconnected chat state
func NewChatState() *ChatState {
	return &ChatState{
		conn:     StateDisconnected,
		channels: make(map[string]struct{}),
		subs:     make(map[int]chan Event),
		logger:   zap.NewNop(),
	}
}

// SetLogger sets the logger used to report dropped events
func (s *ChatState) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s.logger = logger
}

// ConnectionState returns the current connection state
func (s *ChatState) ConnectionState() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

// IsOnline reports whether a connection is established
func (s *ChatState) IsOnline() bool {
	return s.ConnectionState() == StateConnected
}

// Notification returns the user-visible notification text, empty when none
func (s *ChatState) Notification() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notification
}

// Channels returns the known channel names in sorted order
func (s *ChatState) Channels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channelListLocked()
}

// HasChannel reports whether the registry contains the channel
func (s *ChatState) HasChannel(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.channels[name]
	return ok
}

// ActiveChannel returns the channel new chat messages are filed under
func (s *ChatState) ActiveChannel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Topic returns the topic of the active channel
func (s *ChatState) Topic() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.topic
}

// Subscribe registers a new event subscriber. Events are delivered without
// blocking the publisher; when the buffer is full the event is dropped and
// the subscriber must re-read the state through the getters.
func (s *ChatState) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
	return ch, unsubscribe
}

func (s *ChatState) publish(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.logger.Warn("dropping chat state event for slow subscriber",
				zap.Int("subscriber", id), zap.Stringer("kind", ev.Kind))
		}
	}
}

func (s *ChatState) channelListLocked() []string {
	names := make([]string, 0, len(s.channels))
	for name := range s.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// setConnectionState publishes only actual transitions
func (s *ChatState) setConnectionState(state ConnectionState) {
	s.mu.Lock()
	if s.conn == state {
		s.mu.Unlock()
		return
	}
	s.conn = state
	s.mu.Unlock()

	s.publish(Event{Kind: EventConnectionState, State: state})
}

func (s *ChatState) setNotification(text string) {
	s.mu.Lock()
	if s.notification == text {
		s.mu.Unlock()
		return
	}
	s.notification = text
	s.mu.Unlock()

	s.publish(Event{Kind: EventNotification, Text: text})
}

// replaceChannels swaps the registry for a new set of names
func (s *ChatState) replaceChannels(names []string) {
	s.mu.Lock()
	s.channels = make(map[string]struct{}, len(names))
	for _, name := range names {
		s.channels[name] = struct{}{}
	}
	list := s.channelListLocked()
	s.mu.Unlock()

	s.publish(Event{Kind: EventChannels, Channels: list})
}

func (s *ChatState) setActiveChannel(name string) {
	s.mu.Lock()
	s.active = name
	s.mu.Unlock()

	s.publish(Event{Kind: EventActiveChannel, Text: name})
}

func (s *ChatState) setTopic(topic string) {
	s.mu.Lock()
	s.topic = topic
	s.mu.Unlock()

	s.publish(Event{Kind: EventTopic, Text: topic})
}
