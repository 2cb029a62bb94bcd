package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aeolun/neighborchat/pkg/protocol"
	"go.uber.org/zap"
)

// ShutdownMessage is sent to every client when the server stops
const ShutdownMessage = "Server shutting down"

// Server is a small reference chat server speaking the line protocol over
// TCP and, optionally, WebSocket
type Server struct {
	config    Config
	logger    *zap.Logger
	metrics   *Metrics
	sessions  *SessionManager
	channels  *ChannelRegistry
	startTime time.Time

	listener   net.Listener
	wsListener net.Listener
	httpServer *http.Server

	mu       sync.Mutex // protects stopping and wg.Add
	stopping bool
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus metrics
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// NewServer creates a new server instance
func NewServer(config Config, opts ...Option) *Server {
	s := &Server{
		config:    config,
		logger:    zap.NewNop(),
		shutdown:  make(chan struct{}),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sessions = NewSessionManager(config.MessagesPerSecond, config.MessageBurst, s.metrics)
	s.sessions.writeTimeout = config.WriteTimeout
	s.channels = NewChannelRegistry(config.Channels, config.AllowCreate)
	return s
}

// Start opens the listeners and begins accepting connections
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddr, err)
	}
	s.listener = listener
	s.logger.Info("TCP server listening", zap.String("addr", listener.Addr().String()))

	if s.config.WebSocketAddr != "" {
		if err := s.startWebSocketServer(); err != nil {
			s.listener.Close()
			return fmt.Errorf("failed to start WebSocket server: %w", err)
		}
	}

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Addr returns the TCP listen address, useful when listening on port 0
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// WebSocketAddr returns the WebSocket listen address, or "" when disabled
func (s *Server) WebSocketAddr() string {
	if s.wsListener == nil {
		return ""
	}
	return s.wsListener.Addr().String()
}

// Sessions exposes the session manager
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Stop tells every client to shut down, closes all connections and waits
// for connection goroutines to finish
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	s.mu.Unlock()

	close(s.shutdown)

	var errs []error
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}

	s.sessions.CloseAll(protocol.ErrorPacket{Error: ShutdownMessage, ClientShutdown: true})
	s.wg.Wait()

	s.logger.Info("server stopped")
	return errors.Join(errs...)
}

// track registers a connection goroutine unless the server is stopping
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return false
	}
	s.wg.Add(1)
	return true
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept error", zap.Error(err))
			continue
		}

		if tcpConn, ok := conn.(*net.TCPConn); ok {
			tcpConn.SetNoDelay(true)
		}

		if !s.track() {
			conn.Close()
			return
		}
		go func() {
			defer s.wg.Done()
			s.serveConn(conn, "tcp")
		}()
	}
}

// serveConn runs the message loop for one connection until it closes
func (s *Server) serveConn(conn net.Conn, transport string) {
	sess, err := s.sessions.CreateSession(conn)
	if err != nil {
		conn.Close()
		return
	}
	defer s.sessions.RemoveSession(sess.ID)

	logger := s.logger.With(zap.Uint64("session", sess.ID), zap.String("transport", transport))
	logger.Info("client connected", zap.String("remote", conn.RemoteAddr().String()))

	reader := protocol.NewLineReader(conn)
	for {
		line, err := reader.ReadLine()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				logger.Info("client disconnected")
			case errors.Is(err, net.ErrClosed):
				logger.Debug("connection closed")
			case errors.Is(err, protocol.ErrLineTooLong):
				logger.Warn("line too long, closing connection")
				_ = sess.Send(protocol.ErrorPacket{Error: err.Error(), ClientShutdown: true})
			default:
				logger.Warn("read error", zap.Error(err))
			}
			return
		}
		if len(line) == 0 {
			continue
		}

		p, err := protocol.Decode(line)
		if err != nil {
			s.metrics.recordInvalid()
			logger.Debug("invalid packet", zap.Error(err))
			if err := sess.Send(protocol.ErrorPacket{Error: "invalid packet: " + err.Error()}); err != nil {
				return
			}
			continue
		}
		s.metrics.recordReceived(p.Type())

		if err := s.handlePacket(sess, p); err != nil {
			logger.Debug("handler failed", zap.Stringer("type", p.Type()), zap.Error(err))
			return
		}
	}
}
