package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aeolun/neighborchat/pkg/protocol"
	"go.uber.org/zap"
)

var (
	// ErrConnectionAborted means the server closed the stream cleanly (zero-byte read)
	ErrConnectionAborted = errors.New("connection aborted by server")

	// ErrEncode wraps packets that could not be encoded; nothing was written
	ErrEncode = errors.New("failed to encode packet")
)

// Connection owns one stream to the server and exposes line-oriented
// send/receive primitives. Recv and Send may be called from two different
// goroutines at the same time; concurrent Sends are serialized.
type Connection struct {
	addr   string
	conn   net.Conn
	reader *protocol.LineReader

	writeMu sync.Mutex
	writer  io.Writer

	// Traffic counters (bytes on the wire)
	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64

	closeOnce sync.Once
	closeErr  error

	logger  *zap.Logger
	metrics *Metrics
}

type connectionOptions struct {
	logger      *zap.Logger
	dialTimeout time.Duration
	throttle    int
	metrics     *Metrics
}

// ConnectionOption configures a Connection
type ConnectionOption func(*connectionOptions)

// WithLogger sets the logger for connection events
func WithLogger(logger *zap.Logger) ConnectionOption {
	return func(o *connectionOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithDialTimeout bounds the connect attempt. Zero (the default) waits as
// long as the operating system does.
func WithDialTimeout(d time.Duration) ConnectionOption {
	return func(o *connectionOptions) {
		o.dialTimeout = d
	}
}

// WithThrottle limits bandwidth in bytes per second in both directions (0 = no throttle).
// Example: WithThrottle(3600) simulates a 28.8kbps dial-up modem
func WithThrottle(bytesPerSec int) ConnectionOption {
	return func(o *connectionOptions) {
		o.throttle = bytesPerSec
	}
}

// WithMetrics records packet and byte counts on m
func WithMetrics(m *Metrics) ConnectionOption {
	return func(o *connectionOptions) {
		o.metrics = m
	}
}

func buildConnectionOptions(opts []ConnectionOption) connectionOptions {
	o := connectionOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Dial opens a connection to addr. Plain "host:port" (or tcp://) dials TCP;
// ws:// and wss:// dial a WebSocket that carries one line per text message.
func Dial(ctx context.Context, addr string, opts ...ConnectionOption) (*Connection, error) {
	o := buildConnectionOptions(opts)

	target, err := parseServerAddress(addr)
	if err != nil {
		return nil, err
	}

	o.logger.Debug("connecting", zap.String("addr", target.display))

	conn, err := target.dial(ctx, o.dialTimeout)
	if err != nil {
		o.logger.Debug("connection failed", zap.String("addr", target.display), zap.Error(err))
		return nil, fmt.Errorf("failed to connect to %s: %w", target.display, err)
	}

	// Disable Nagle's algorithm for immediate sends
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
	}

	o.logger.Info("connected", zap.String("addr", target.display))
	return newConnection(target.display, conn, o), nil
}

// NewConnection wraps an already established stream
func NewConnection(conn net.Conn, opts ...ConnectionOption) *Connection {
	addr := ""
	if remote := conn.RemoteAddr(); remote != nil {
		addr = remote.String()
	}
	return newConnection(addr, conn, buildConnectionOptions(opts))
}

func newConnection(addr string, conn net.Conn, o connectionOptions) *Connection {
	c := &Connection{
		addr:    addr,
		conn:    conn,
		logger:  o.logger,
		metrics: o.metrics,
	}

	// Build reader chain: conn -> throttle (optional) -> counter
	var reader io.Reader = conn
	if o.throttle > 0 {
		reader = newThrottledReader(reader, o.throttle)
	}
	reader = &countingReader{r: reader, counter: &c.bytesReceived}
	c.reader = protocol.NewLineReader(reader)

	// Build writer chain: conn -> throttle (optional) -> counter
	var writer io.Writer = conn
	if o.throttle > 0 {
		writer = newThrottledWriter(writer, o.throttle)
		o.logger.Info("bandwidth throttling enabled",
			zap.Int("bytes_per_sec", o.throttle),
			zap.String("equivalent", FormatBandwidth(o.throttle)))
	}
	c.writer = &countingWriter{w: writer, counter: &c.bytesSent}

	return c
}

// Addr returns the server address
func (c *Connection) Addr() string {
	return c.addr
}

// Send encodes p, frames it with a newline and writes it in one locked write.
// It returns the number of bytes written.
func (c *Connection) Send(p protocol.Packet) (int, error) {
	data, err := protocol.EncodeLine(p)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrEncode, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	n, err := c.writer.Write(data)
	if err != nil {
		return n, fmt.Errorf("write error: %w", err)
	}

	c.metrics.RecordPacketSent(p.Type(), n)
	c.logger.Debug("→ SEND", zap.Stringer("type", p.Type()), zap.Int("bytes", n))
	return n, nil
}

// Recv blocks until one packet has been read. A clean close by the server
// returns ErrConnectionAborted. A line that fails to decode returns a
// *protocol.DecodeError; the connection stays usable after it.
func (c *Connection) Recv() (protocol.Packet, error) {
	for {
		line, err := c.reader.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrConnectionAborted
			}
			return nil, fmt.Errorf("read error: %w", err)
		}

		// Blank lines carry nothing; servers may use them as keepalives
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		p, err := protocol.Decode(line)
		if err != nil {
			c.metrics.RecordDecodeError()
			return nil, err
		}

		c.metrics.RecordPacketReceived(p.Type())
		c.logger.Debug("← RECV", zap.Stringer("type", p.Type()), zap.Int("bytes", len(line)))
		return p, nil
	}
}

// Close closes the underlying stream. Safe to call more than once.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
		c.logger.Debug("connection closed",
			zap.String("addr", c.addr),
			zap.String("sent", FormatBytes(c.BytesSent())),
			zap.String("received", FormatBytes(c.BytesReceived())))
	})
	return c.closeErr
}

// BytesSent returns the total bytes written
func (c *Connection) BytesSent() uint64 {
	return c.bytesSent.Load()
}

// BytesReceived returns the total bytes read
func (c *Connection) BytesReceived() uint64 {
	return c.bytesReceived.Load()
}
