package client

import (
	"context"

	"github.com/aeolun/neighborchat/pkg/protocol"
)

// PacketConn is one live stream to the server.
// The real Connection implements it; tests substitute in-memory pipes.
type PacketConn interface {
	Send(p protocol.Packet) (int, error)
	Recv() (protocol.Packet, error)
	Close() error
}

// Dialer opens a PacketConn to addr
type Dialer func(ctx context.Context, addr string) (PacketConn, error)

// HistoryStore persists chat messages and client settings across runs.
// The SQLite History implements it; MockHistory is used in tests.
type HistoryStore interface {
	MessageSink

	// Message history
	Recent(channel string, before int64, limit int) ([]protocol.ChatMessage, error)
	Channels() ([]string, error)

	// Configuration
	GetConfig(key string) (string, error)
	SetConfig(key, value string) error

	// Remembered settings
	LastNickname() string
	SetLastNickname(nickname string) error
	LastServer() string
	SetLastServer(addr string) error

	Close() error
}
