package client

import (
	"sort"
	"sync"

	"github.com/aeolun/neighborchat/pkg/protocol"
)

// MockHistory is an in-memory implementation of HistoryStore for tests
type MockHistory struct {
	mu sync.RWMutex

	config   map[string]string
	messages map[string][]protocol.ChatMessage
	seen     map[string]struct{}
	closed   bool

	// Error injection
	appendErr    error
	getConfigErr error
	setConfigErr error
}

// NewMockHistory creates an empty mock history
func NewMockHistory() *MockHistory {
	return &MockHistory{
		config:   make(map[string]string),
		messages: make(map[string][]protocol.ChatMessage),
		seen:     make(map[string]struct{}),
	}
}

// SetAppendError makes every Append fail with err
func (h *MockHistory) SetAppendError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appendErr = err
}

// SetConfigErrors makes GetConfig and SetConfig fail
func (h *MockHistory) SetConfigErrors(getErr, setErr error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.getConfigErr = getErr
	h.setConfigErr = setErr
}

func (h *MockHistory) Append(channel string, msg protocol.ChatMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.appendErr != nil {
		return h.appendErr
	}
	if _, ok := h.seen[msg.ID.String()]; ok {
		return nil
	}
	h.seen[msg.ID.String()] = struct{}{}
	h.messages[channel] = append(h.messages[channel], msg)
	return nil
}

func (h *MockHistory) Recent(channel string, before int64, limit int) ([]protocol.ChatMessage, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	limit = clampLimit(limit)
	var out []protocol.ChatMessage
	for _, msg := range h.messages[channel] {
		if before <= 0 || msg.Sent <= before {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sent < out[j].Sent })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (h *MockHistory) Channels() ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.messages))
	for name := range h.messages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (h *MockHistory) GetConfig(key string) (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.getConfigErr != nil {
		return "", h.getConfigErr
	}
	return h.config[key], nil
}

func (h *MockHistory) SetConfig(key, value string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.setConfigErr != nil {
		return h.setConfigErr
	}
	h.config[key] = value
	return nil
}

func (h *MockHistory) LastNickname() string {
	nickname, _ := h.GetConfig(configLastNickname)
	return nickname
}

func (h *MockHistory) SetLastNickname(nickname string) error {
	return h.SetConfig(configLastNickname, nickname)
}

func (h *MockHistory) LastServer() string {
	addr, _ := h.GetConfig(configLastServer)
	return addr
}

func (h *MockHistory) SetLastServer(addr string) error {
	return h.SetConfig(configLastServer, addr)
}

func (h *MockHistory) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

// Closed reports whether Close was called
func (h *MockHistory) Closed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}
