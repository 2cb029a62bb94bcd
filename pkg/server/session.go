package server

import (
	"errors"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aeolun/neighborchat/pkg/protocol"
	"golang.org/x/time/rate"
)

// ErrManagerClosed is returned when a session is created during shutdown
var ErrManagerClosed = errors.New("session manager closed")

// DefaultWriteTimeout bounds one packet write so a stalled client cannot
// hold up a broadcast
const DefaultWriteTimeout = 5 * time.Second

// Session represents an active client connection
type Session struct {
	ID      uint64
	conn    net.Conn
	limiter *rate.Limiter // nil when rate limiting is disabled
	metrics *Metrics

	writeTimeout time.Duration

	writeMu sync.Mutex // one line per Write, never interleaved

	mu       sync.RWMutex // protects channel and nickname
	channel  string
	nickname string
}

// Send writes one packet to the client
func (s *Session) Send(p protocol.Packet) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
	}
	if _, err := protocol.WriteLine(s.conn, p); err != nil {
		return err
	}
	s.metrics.recordSent(p.Type())
	return nil
}

// Channel returns the channel the session has joined, or ""
func (s *Session) Channel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channel
}

func (s *Session) setChannel(name string) {
	s.mu.Lock()
	s.channel = name
	s.mu.Unlock()
}

// Nickname returns the user name seen on the session's last chat message
func (s *Session) Nickname() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nickname
}

func (s *Session) setNickname(name string) {
	s.mu.Lock()
	s.nickname = name
	s.mu.Unlock()
}

// allow reports whether the session may send another packet now
func (s *Session) allow() bool {
	return s.limiter == nil || s.limiter.Allow()
}

// RemoteAddr returns the client address
func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}

// SessionManager manages all active sessions
type SessionManager struct {
	sessions map[uint64]*Session
	nextID   uint64
	closed   bool
	mu       sync.RWMutex
	metrics  *Metrics

	limit rate.Limit
	burst int

	writeTimeout time.Duration
}

// NewSessionManager creates a new session manager. A zero perSecond disables
// per-session rate limiting.
func NewSessionManager(perSecond float64, burst int, metrics *Metrics) *SessionManager {
	if burst < 1 {
		burst = 1
	}
	return &SessionManager{
		sessions:     make(map[uint64]*Session),
		nextID:       1,
		metrics:      metrics,
		limit:        rate.Limit(perSecond),
		burst:        burst,
		writeTimeout: DefaultWriteTimeout,
	}
}

// CreateSession registers a new connection
func (sm *SessionManager) CreateSession(conn net.Conn) (*Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.closed {
		return nil, ErrManagerClosed
	}

	sess := &Session{
		ID:           atomic.AddUint64(&sm.nextID, 1) - 1,
		conn:         conn,
		metrics:      sm.metrics,
		writeTimeout: sm.writeTimeout,
	}
	if sm.limit > 0 {
		sess.limiter = rate.NewLimiter(sm.limit, sm.burst)
	}
	sm.sessions[sess.ID] = sess
	sm.metrics.recordSessionCreated()

	return sess, nil
}

// GetSession returns a session by ID
func (sm *SessionManager) GetSession(id uint64) (*Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sess, ok := sm.sessions[id]
	return sess, ok
}

// RemoveSession removes a session and closes the connection
func (sm *SessionManager) RemoveSession(id uint64) {
	sm.mu.Lock()
	sess, ok := sm.sessions[id]
	if !ok {
		sm.mu.Unlock()
		return
	}
	delete(sm.sessions, id)
	sm.mu.Unlock()

	sm.metrics.recordSessionEnded()
	sess.conn.Close()
}

// Count returns the number of active sessions
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// CountInChannel returns how many sessions have joined the channel
func (sm *SessionManager) CountInChannel(channel string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	n := 0
	for _, sess := range sm.sessions {
		if sess.Channel() == channel {
			n++
		}
	}
	return n
}

// inChannel returns a snapshot of the sessions in a channel, ordered by ID
func (sm *SessionManager) inChannel(channel string) []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	var out []*Session
	for _, sess := range sm.sessions {
		if sess.Channel() == channel {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// withNickname returns the sessions whose last chat used the nickname
func (sm *SessionManager) withNickname(nickname string) []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	var out []*Session
	for _, sess := range sm.sessions {
		if sess.Nickname() == nickname {
			out = append(out, sess)
		}
	}
	return out
}

// BroadcastToChannel sends a packet to every session in a channel and
// returns how many received it. Sessions that fail to receive are removed.
func (sm *SessionManager) BroadcastToChannel(channel string, p protocol.Packet) int {
	return sm.sendAll(sm.inChannel(channel), p)
}

func (sm *SessionManager) sendAll(targets []*Session, p protocol.Packet) int {
	sent := 0
	var dead []uint64
	for _, sess := range targets {
		if err := sess.Send(p); err != nil {
			dead = append(dead, sess.ID)
			continue
		}
		sent++
	}

	for _, id := range dead {
		sm.RemoveSession(id)
	}
	sm.metrics.recordFanout(sent)
	return sent
}

// CloseAll sends a final packet to every session, closes their connections
// and refuses new sessions from then on
func (sm *SessionManager) CloseAll(final protocol.Packet) {
	sm.mu.Lock()
	sm.closed = true
	sessions := make([]*Session, 0, len(sm.sessions))
	for _, sess := range sm.sessions {
		sessions = append(sessions, sess)
	}
	sm.mu.Unlock()

	for _, sess := range sessions {
		if final != nil {
			// Best effort, the peer may already be gone
			_ = sess.Send(final)
		}
		sm.RemoveSession(sess.ID)
	}
}
