package server

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

var (
	ErrNoChannelName = errors.New("channel name required")
	ErrNoSuchChannel = errors.New("no such channel")
)

// ChannelRegistry holds the channels the server knows about and their topics
type ChannelRegistry struct {
	mu          sync.RWMutex
	topics      map[string]string
	allowCreate bool
}

// NewChannelRegistry seeds a registry with the configured channels
func NewChannelRegistry(seed []SeedChannel, allowCreate bool) *ChannelRegistry {
	r := &ChannelRegistry{
		topics:      make(map[string]string, len(seed)),
		allowCreate: allowCreate,
	}
	for _, ch := range seed {
		r.topics[ch.Name] = ch.Topic
	}
	return r
}

// Join resolves a channel name for joining, creating the channel when
// allowed. It returns the normalized name and current topic.
func (r *ChannelRegistry) Join(name string) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", ErrNoChannelName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	topic, ok := r.topics[name]
	if !ok {
		if !r.allowCreate {
			return "", "", ErrNoSuchChannel
		}
		r.topics[name] = ""
	}
	return name, topic, nil
}

// Topic returns the topic of a channel
func (r *ChannelRegistry) Topic(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	topic, ok := r.topics[name]
	return topic, ok
}

// SetTopic changes the topic of an existing channel
func (r *ChannelRegistry) SetTopic(name, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.topics[name]; !ok {
		return ErrNoSuchChannel
	}
	r.topics[name] = topic
	return nil
}

// Names returns the channel names in sorted order
func (r *ChannelRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.topics))
	for name := range r.topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
