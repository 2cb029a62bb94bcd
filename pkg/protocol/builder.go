package protocol

import (
	"errors"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	// MinNicknameLength is the shortest accepted nickname after trimming
	MinNicknameLength = 3
)

var (
	ErrNicknameTooShort = errors.New("name must be at least 3 characters")
	ErrNicknameInvalid  = errors.New("name must start with a letter and contain only letters or spaces")
)

// ValidateNickname checks a display name and returns it trimmed
func ValidateNickname(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len([]rune(name)) < MinNicknameLength {
		return "", ErrNicknameTooShort
	}
	for i, r := range name {
		if i == 0 && !unicode.IsLetter(r) {
			return "", ErrNicknameInvalid
		}
		if !unicode.IsLetter(r) && !unicode.IsSpace(r) {
			return "", ErrNicknameInvalid
		}
	}
	return name, nil
}

// PacketBuilder creates outbound packets on behalf of one user.
// It is safe for concurrent use; the nickname can change at any time.
type PacketBuilder struct {
	mu       sync.RWMutex
	nickname string
	now      func() time.Time
	newID    func() uuid.UUID
}

// NewPacketBuilder creates a builder for the given nickname
func NewPacketBuilder(nickname string) *PacketBuilder {
	return &PacketBuilder{
		nickname: nickname,
		now:      time.Now,
		newID:    uuid.New,
	}
}

// SetClock replaces the time source (used by tests)
func (b *PacketBuilder) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// Nickname returns the current nickname
func (b *PacketBuilder) Nickname() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nickname
}

// SetNickname changes the nickname used for future chat messages
func (b *PacketBuilder) SetNickname(nickname string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nickname = nickname
}

// Chat builds a chat message with a fresh id and the current time
func (b *PacketBuilder) Chat(message string) ChatMessage {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return ChatMessage{
		ID:      b.newID(),
		Message: message,
		User:    b.nickname,
		Sent:    b.now().UnixMilli(),
	}
}

// Reply builds a chat message answering an earlier one
func (b *PacketBuilder) Reply(inReplyTo uuid.UUID, message string) ChatMessage {
	m := b.Chat(message)
	m.InReplyTo = &inReplyTo
	return m
}

// Direct builds a chat message addressed to a single user
func (b *PacketBuilder) Direct(to, message string) ChatMessage {
	m := b.Chat(message)
	m.DirectMessageTo = &to
	return m
}

// ListChannels builds a channel list request
func (b *PacketBuilder) ListChannels() ListChannelsPacket {
	return ListChannelsPacket{}
}

// JoinChannel builds a join request
func (b *PacketBuilder) JoinChannel(channel string) JoinChannelPacket {
	return JoinChannelPacket{Channel: channel}
}

// SetTopic builds a topic change for the current channel
func (b *PacketBuilder) SetTopic(topic string) ChangeTopicPacket {
	return ChangeTopicPacket{Topic: topic}
}
