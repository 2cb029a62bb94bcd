package client

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/aeolun/neighborchat/pkg/protocol"
	"github.com/google/uuid"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

const (
	// MaxRecentMessages caps a single Recent query
	MaxRecentMessages = 50

	configLastNickname = "last_nickname"
	configLastServer   = "last_server"
)

// History archives chat messages and client settings in a local SQLite
// database. It is a convenience archive; losing it loses nothing the
// running session depends on.
type History struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// KnownServer is a server the client connected to successfully before
type KnownServer struct {
	Address       string
	LastSuccessAt time.Time
	ConnectCount  int
}

// OpenHistory opens or creates the history database at path
func OpenHistory(path string, logger *zap.Logger) (*History, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// The client only needs one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := runMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	return &History{db: db, path: path, logger: logger}, nil
}

// Path returns the database file path
func (h *History) Path() string {
	return h.path
}

// Close closes the database
func (h *History) Close() error {
	return h.db.Close()
}

// Append archives a message under channel. Storing the same message id
// twice is a no-op.
func (h *History) Append(channel string, msg protocol.ChatMessage) error {
	var inReplyTo, directTo sql.NullString
	if msg.InReplyTo != nil {
		inReplyTo = sql.NullString{String: msg.InReplyTo.String(), Valid: true}
	}
	if msg.DirectMessageTo != nil {
		directTo = sql.NullString{String: *msg.DirectMessageTo, Valid: true}
	}

	_, err := h.db.Exec(`
		INSERT OR IGNORE INTO messages (id, channel, in_reply_to, user, direct_message_to, message, sent)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.ID.String(), channel, inReplyTo, msg.User, directTo, msg.Message, msg.Sent)
	if err != nil {
		return fmt.Errorf("failed to archive message %s: %w", msg.ID, err)
	}
	return nil
}

// Recent returns up to limit messages of channel sent at or before the
// given epoch milliseconds, oldest first. before <= 0 means now; limit is
// clamped to [1, MaxRecentMessages].
func (h *History) Recent(channel string, before int64, limit int) ([]protocol.ChatMessage, error) {
	return h.recent(channel, before, clampLimit(limit))
}

func (h *History) recent(channel string, before int64, limit int) ([]protocol.ChatMessage, error) {
	if before <= 0 {
		before = math.MaxInt64
	}

	rows, err := h.db.Query(`
		SELECT id, in_reply_to, user, direct_message_to, message, sent
		FROM (
			SELECT id, in_reply_to, user, direct_message_to, message, sent, rowid AS seq
			FROM messages
			WHERE channel = ? AND sent <= ?
			ORDER BY sent DESC, seq DESC
			LIMIT ?
		)
		ORDER BY sent ASC, seq ASC
	`, channel, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var msgs []protocol.ChatMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxRecentMessages {
		return MaxRecentMessages
	}
	return limit
}

func scanMessage(rows *sql.Rows) (protocol.ChatMessage, error) {
	var (
		id, user, message   string
		inReplyTo, directTo sql.NullString
		sent                int64
	)
	if err := rows.Scan(&id, &inReplyTo, &user, &directTo, &message, &sent); err != nil {
		return protocol.ChatMessage{}, fmt.Errorf("failed to scan message: %w", err)
	}

	msg := protocol.ChatMessage{
		User:    user,
		Message: message,
		Sent:    sent,
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return protocol.ChatMessage{}, fmt.Errorf("corrupt message id %q: %w", id, err)
	}
	msg.ID = parsed

	if inReplyTo.Valid {
		parent, err := uuid.Parse(inReplyTo.String)
		if err != nil {
			return protocol.ChatMessage{}, fmt.Errorf("corrupt reply id %q: %w", inReplyTo.String, err)
		}
		msg.InReplyTo = &parent
	}
	if directTo.Valid {
		to := directTo.String
		msg.DirectMessageTo = &to
	}
	return msg, nil
}

// Channels returns the channels with archived messages, sorted by name
func (h *History) Channels() ([]string, error) {
	rows, err := h.db.Query("SELECT DISTINCT channel FROM messages ORDER BY channel")
	if err != nil {
		return nil, fmt.Errorf("failed to list history channels: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Restore loads up to perChannel of the most recent messages of every
// archived channel into store. It is not bound by MaxRecentMessages.
func (h *History) Restore(store *MessageStore, perChannel int) error {
	if perChannel < 1 {
		return nil
	}
	channels, err := h.Channels()
	if err != nil {
		return err
	}
	for _, channel := range channels {
		msgs, err := h.recent(channel, 0, perChannel)
		if err != nil {
			return err
		}
		for _, msg := range msgs {
			store.Append(channel, msg)
		}
	}
	h.logger.Debug("restored history", zap.Int("channels", len(channels)))
	return nil
}

// GetConfig returns a stored setting, empty when unset
func (h *History) GetConfig(key string) (string, error) {
	var value string
	err := h.db.QueryRow("SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetConfig stores a setting
func (h *History) SetConfig(key, value string) error {
	_, err := h.db.Exec(`
		INSERT OR REPLACE INTO config (key, value) VALUES (?, ?)
	`, key, value)
	return err
}

// LastNickname returns the last used nickname
func (h *History) LastNickname() string {
	nickname, _ := h.GetConfig(configLastNickname)
	return nickname
}

// SetLastNickname stores the last used nickname
func (h *History) SetLastNickname(nickname string) error {
	return h.SetConfig(configLastNickname, nickname)
}

// LastServer returns the last server connected to successfully
func (h *History) LastServer() string {
	addr, _ := h.GetConfig(configLastServer)
	return addr
}

// SetLastServer records a successful connection to addr
func (h *History) SetLastServer(addr string) error {
	if err := h.SetConfig(configLastServer, addr); err != nil {
		return err
	}
	_, err := h.db.Exec(`
		INSERT INTO connection_history (server_address, last_success_at, connect_count)
		VALUES (?, ?, 1)
		ON CONFLICT(server_address) DO UPDATE SET
			last_success_at = excluded.last_success_at,
			connect_count = connect_count + 1
	`, addr, time.Now().Unix())
	return err
}

// KnownServers returns previously reached servers, most recent first
func (h *History) KnownServers() ([]KnownServer, error) {
	rows, err := h.db.Query(`
		SELECT server_address, last_success_at, connect_count
		FROM connection_history
		ORDER BY last_success_at DESC, server_address
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list known servers: %w", err)
	}
	defer rows.Close()

	var servers []KnownServer
	for rows.Next() {
		var (
			s  KnownServer
			at int64
		)
		if err := rows.Scan(&s.Address, &at, &s.ConnectCount); err != nil {
			return nil, err
		}
		s.LastSuccessAt = time.Unix(at, 0)
		servers = append(servers, s)
	}
	return servers, rows.Err()
}
