package server

import (
	"net"
	"testing"
	"time"

	"github.com/aeolun/neighborchat/pkg/protocol"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testTimeout = 5 * time.Second

// startTestServer starts a server on a loopback port and stops it when the test ends
func startTestServer(t *testing.T, mutate func(*Config), opts ...Option) *Server {
	t.Helper()

	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.MessagesPerSecond = 0
	if mutate != nil {
		mutate(&cfg)
	}

	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	srv := NewServer(cfg, opts...)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Stop() })
	return srv
}

// testClient speaks the line protocol directly over TCP
type testClient struct {
	conn   net.Conn
	reader *protocol.LineReader
}

func dialTestClient(t *testing.T, addr string) *testClient {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, testTimeout)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testClient{conn: conn, reader: protocol.NewLineReader(conn)}
}

func (c *testClient) send(t *testing.T, p protocol.Packet) {
	t.Helper()
	_, err := protocol.WriteLine(c.conn, p)
	require.NoError(t, err)
}

func (c *testClient) sendRaw(t *testing.T, line string) {
	t.Helper()
	_, err := c.conn.Write([]byte(line))
	require.NoError(t, err)
}

func (c *testClient) recv(t *testing.T) protocol.Packet {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(testTimeout)))
	line, err := c.reader.ReadLine()
	require.NoError(t, err)
	p, err := protocol.Decode(line)
	require.NoError(t, err)
	return p
}

// join enters a channel and consumes the status and topic replies
func (c *testClient) join(t *testing.T, channel string) {
	t.Helper()
	c.send(t, protocol.JoinChannelPacket{Channel: channel})
	require.Equal(t, protocol.StatusPacket{Status: protocol.JoinedChannelStatus(channel)}, c.recv(t))
	require.IsType(t, protocol.ChangeTopicPacket{}, c.recv(t))
}

// expectNothingPending verifies no packet is queued ahead of a fresh channel list reply
func (c *testClient) expectNothingPending(t *testing.T) {
	t.Helper()
	c.send(t, protocol.ListChannelsPacket{})
	require.IsType(t, protocol.ListChannelsPacket{}, c.recv(t))
}

func chatFrom(user, message string) protocol.ChatMessage {
	return protocol.ChatMessage{
		ID:      uuid.New(),
		User:    user,
		Message: message,
		Sent:    time.Now().UnixMilli(),
	}
}
