package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aeolun/neighborchat/pkg/protocol"
	"go.uber.org/zap"
)

const (
	// DefaultRetryDelay is the fixed pause between connection attempts
	DefaultRetryDelay = 5 * time.Second

	// DefaultQueueSize is the outbox capacity of one connection cycle
	DefaultQueueSize = 100

	// ConnectErrorNotification is shown while the server cannot be reached
	ConnectErrorNotification = "Error connecting to the server"
)

var (
	// ErrNotConnected is returned when sending while no connection cycle is live
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyRunning is returned by a second concurrent Run
	ErrAlreadyRunning = errors.New("supervisor already running")
)

// Supervisor owns the connection lifecycle. It connects, runs one read loop
// and one write loop per connection, and reconnects forever after failures
// until its context is cancelled.
type Supervisor struct {
	addr       string
	state      *ChatState
	dispatcher *Dispatcher

	retryDelay time.Duration
	queueSize  int
	dialer     Dialer
	connOpts   []ConnectionOption
	onConnect  func(addr string)

	logger  *zap.Logger
	metrics *Metrics

	mu      sync.RWMutex
	outbox  *Outbox
	running atomic.Bool
}

// SupervisorOption configures a Supervisor
type SupervisorOption func(*Supervisor)

// WithRetryDelay sets the pause after a failed or lost connection
func WithRetryDelay(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		if d >= 0 {
			s.retryDelay = d
		}
	}
}

// WithQueueSize sets the outbox capacity
func WithQueueSize(n int) SupervisorOption {
	return func(s *Supervisor) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithDialer replaces the network dialer
func WithDialer(d Dialer) SupervisorOption {
	return func(s *Supervisor) {
		s.dialer = d
	}
}

// WithSupervisorLogger sets the logger for lifecycle events
func WithSupervisorLogger(logger *zap.Logger) SupervisorOption {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSupervisorMetrics records lifecycle and traffic metrics on m
func WithSupervisorMetrics(m *Metrics) SupervisorOption {
	return func(s *Supervisor) {
		s.metrics = m
	}
}

// WithConnectionOptions passes options through to Dial
func WithConnectionOptions(opts ...ConnectionOption) SupervisorOption {
	return func(s *Supervisor) {
		s.connOpts = append(s.connOpts, opts...)
	}
}

// WithOnConnect registers a hook run after every successful connect
func WithOnConnect(fn func(addr string)) SupervisorOption {
	return func(s *Supervisor) {
		s.onConnect = fn
	}
}

// NewSupervisor creates a supervisor for addr. Inbound packets go to
// dispatcher; connection state and notifications are written to state.
func NewSupervisor(addr string, state *ChatState, dispatcher *Dispatcher, opts ...SupervisorOption) *Supervisor {
	if dispatcher == nil {
		dispatcher = NewDispatcher(state, nil)
	}

	s := &Supervisor{
		addr:       addr,
		state:      state,
		dispatcher: dispatcher,
		retryDelay: DefaultRetryDelay,
		queueSize:  DefaultQueueSize,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.dialer == nil {
		connOpts := append([]ConnectionOption{WithLogger(s.logger), WithMetrics(s.metrics)}, s.connOpts...)
		s.dialer = func(ctx context.Context, addr string) (PacketConn, error) {
			return Dial(ctx, addr, connOpts...)
		}
	}
	return s
}

// Addr returns the server address
func (s *Supervisor) Addr() string {
	return s.addr
}

// Outbox returns the outbox of the live connection cycle, or nil when offline
func (s *Supervisor) Outbox() *Outbox {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outbox
}

// Send enqueues p on the live connection. It returns ErrNotConnected when
// offline; packets are never buffered across reconnects.
func (s *Supervisor) Send(ctx context.Context, p protocol.Packet) error {
	outbox := s.Outbox()
	if outbox == nil {
		return ErrNotConnected
	}
	return outbox.Send(ctx, p)
}

// Run connects and keeps reconnecting until ctx is cancelled. It always
// returns ctx.Err() after closing the live connection.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)
	defer s.setState(StateDisconnected)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.setState(StateDisconnected)
		s.setState(StateConnecting)
		s.metrics.RecordConnectAttempt()
		s.logger.Info("connecting", zap.String("addr", s.addr))

		conn, err := s.dialer(ctx, s.addr)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.metrics.RecordConnectFailure()
			s.logger.Warn("connection failed, retrying",
				zap.String("addr", s.addr),
				zap.Duration("retry_in", s.retryDelay),
				zap.Error(err))
			s.state.setNotification(ConnectErrorNotification)
			if !s.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}

		s.setState(StateConnected)
		s.state.setNotification("")
		s.logger.Info("connected", zap.String("addr", s.addr))
		if s.onConnect != nil {
			s.onConnect(s.addr)
		}

		s.serve(ctx, conn)

		s.metrics.RecordDisconnect()
		s.setState(StateDisconnected)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Info("disconnected, reconnecting",
			zap.String("addr", s.addr),
			zap.Duration("retry_in", s.retryDelay))
		if !s.sleep(ctx) {
			return ctx.Err()
		}
	}
}

// serve runs one connection cycle and returns once both loops have stopped
// and the connection is closed.
func (s *Supervisor) serve(ctx context.Context, conn PacketConn) {
	outbox := NewOutbox(s.queueSize, s.metrics)

	readDone := make(chan error, 1)
	go func() {
		readDone <- readLoop(conn, s.dispatcher, s.logger)
	}()

	writeCtx, cancelWrite := context.WithCancel(ctx)
	defer cancelWrite()
	writeDone := make(chan error, 1)
	go func() {
		writeDone <- writeLoop(writeCtx, conn, outbox, s.logger)
	}()

	// Queued before the outbox is published so it is always the first packet
	if err := outbox.Send(ctx, protocol.ListChannelsPacket{}); err != nil {
		s.logger.Debug("channel list request not queued", zap.Error(err))
	}
	s.setOutbox(outbox)

	// Whichever loop stops first ends the cycle
	var readErr, writeErr error
	writeStopped := false
	select {
	case readErr = <-readDone:
	case writeErr = <-writeDone:
		writeStopped = true
		// Unblocks the pending read
		conn.Close()
		readErr = <-readDone
	case <-ctx.Done():
		// Unblocks the pending read
		conn.Close()
		readErr = <-readDone
	}

	s.setOutbox(nil)
	outbox.Close()
	cancelWrite()
	if err := conn.Close(); err != nil {
		s.logger.Debug("close failed", zap.Error(err))
	}
	if !writeStopped {
		writeErr = <-writeDone
	}

	if ctx.Err() != nil {
		return
	}
	if writeErr != nil {
		s.logger.Warn("connection lost", zap.String("addr", s.addr), zap.Error(writeErr))
	} else if readErr != nil {
		s.logger.Warn("connection lost", zap.String("addr", s.addr), zap.Error(readErr))
	}
}

func (s *Supervisor) sleep(ctx context.Context) bool {
	if s.retryDelay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(s.retryDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Supervisor) setState(state ConnectionState) {
	s.state.setConnectionState(state)
	s.metrics.RecordConnectionState(state)
}

func (s *Supervisor) setOutbox(outbox *Outbox) {
	s.mu.Lock()
	s.outbox = outbox
	s.mu.Unlock()
}
