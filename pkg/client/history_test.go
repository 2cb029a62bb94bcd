package client

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/aeolun/neighborchat/pkg/protocol"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestHistory(t *testing.T) *History {
	t.Helper()
	h, err := OpenHistory(filepath.Join(t.TempDir(), "nested", "history.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestHistoryAppendAndRecent(t *testing.T) {
	h := openTestHistory(t)

	parent := uuid.New()
	to := "frank"
	reply := protocol.ChatMessage{
		ID:              uuid.New(),
		InReplyTo:       &parent,
		Message:         "see above",
		User:            "grace",
		DirectMessageTo: &to,
		Sent:            1700000002000,
	}
	plain := testMessage("grace", "hello", 1700000001000)

	require.NoError(t, h.Append("general", reply))
	require.NoError(t, h.Append("general", plain))
	require.NoError(t, h.Append("other", testMessage("x", "elsewhere", 1700000000000)))

	msgs, err := h.Recent("general", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []protocol.ChatMessage{plain, reply}, msgs)
}

func TestHistoryAppendIsIdempotent(t *testing.T) {
	h := openTestHistory(t)
	msg := testMessage("heidi", "once", 1700000000000)

	require.NoError(t, h.Append("general", msg))
	require.NoError(t, h.Append("general", msg))

	msgs, err := h.Recent("general", 0, 50)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestHistoryRecentBeforeAndLimit(t *testing.T) {
	h := openTestHistory(t)
	for i := int64(0); i < 60; i++ {
		require.NoError(t, h.Append("busy", testMessage("ivan", "m", 1700000000000+i*1000)))
	}

	msgs, err := h.Recent("busy", 0, 500)
	require.NoError(t, err)
	require.Len(t, msgs, MaxRecentMessages)
	assert.Equal(t, int64(1700000059000), msgs[len(msgs)-1].Sent)
	assert.Equal(t, int64(1700000010000), msgs[0].Sent)

	msgs, err = h.Recent("busy", 1700000004000, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []int64{1700000002000, 1700000003000, 1700000004000},
		[]int64{msgs[0].Sent, msgs[1].Sent, msgs[2].Sent})

	// A zero limit still returns one message
	msgs, err = h.Recent("busy", 0, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestHistoryChannelsAndRestore(t *testing.T) {
	h := openTestHistory(t)
	require.NoError(t, h.Append("b", testMessage("u", "1", 1700000000000)))
	require.NoError(t, h.Append("a", testMessage("u", "2", 1700000000000)))
	require.NoError(t, h.Append("", testMessage("u", "3", 1700000000000)))

	channels, err := h.Channels()
	require.NoError(t, err)
	assert.Equal(t, []string{"", "a", "b"}, channels)

	store := NewMessageStore()
	require.NoError(t, h.Restore(store, 10))
	assert.Equal(t, 1, store.Len("a"))
	assert.Equal(t, 1, store.Len("b"))
	assert.Equal(t, 1, store.Len(""))
}

func TestHistoryRestoreBeyondRecentCap(t *testing.T) {
	h := openTestHistory(t)
	total := MaxRecentMessages + 30
	for i := range total {
		require.NoError(t, h.Append("busy", testMessage("u", fmt.Sprint(i), 1700000000000+int64(i))))
	}

	page, err := h.Recent("busy", 0, total)
	require.NoError(t, err)
	assert.Len(t, page, MaxRecentMessages)

	store := NewMessageStore()
	require.NoError(t, h.Restore(store, 200))
	assert.Equal(t, total, store.Len("busy"))

	trimmed := NewMessageStore()
	require.NoError(t, h.Restore(trimmed, MaxRecentMessages+5))
	msgs := trimmed.Messages("busy")
	require.Len(t, msgs, MaxRecentMessages+5)
	assert.Equal(t, fmt.Sprint(total-1), msgs[len(msgs)-1].Message)
	assert.Equal(t, fmt.Sprint(total-MaxRecentMessages-5), msgs[0].Message)
}

func TestHistoryConfig(t *testing.T) {
	h := openTestHistory(t)

	assert.Empty(t, h.LastNickname())
	require.NoError(t, h.SetLastNickname("Judy"))
	assert.Equal(t, "Judy", h.LastNickname())

	value, err := h.GetConfig("missing")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, h.SetLastServer("chat.local:10000"))
	require.NoError(t, h.SetLastServer("chat.local:10000"))
	require.NoError(t, h.SetLastServer("other:10000"))
	assert.Equal(t, "other:10000", h.LastServer())

	servers, err := h.KnownServers()
	require.NoError(t, err)
	require.Len(t, servers, 2)
	counts := map[string]int{}
	for _, s := range servers {
		counts[s.Address] = s.ConnectCount
	}
	assert.Equal(t, map[string]int{"chat.local:10000": 2, "other:10000": 1}, counts)
}

func TestHistoryReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	h, err := OpenHistory(path, nil)
	require.NoError(t, err)
	msg := testMessage("kim", "persisted", 1700000000000)
	require.NoError(t, h.Append("general", msg))
	require.NoError(t, h.Close())

	h, err = OpenHistory(path, nil)
	require.NoError(t, err)
	defer h.Close()

	msgs, err := h.Recent("general", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []protocol.ChatMessage{msg}, msgs)
	assert.Equal(t, path, h.Path())
}

func TestMockHistoryMatchesInterface(t *testing.T) {
	var store HistoryStore = NewMockHistory()
	msg := testMessage("leo", "m", 5)
	require.NoError(t, store.Append("c", msg))
	require.NoError(t, store.Append("c", msg))

	msgs, err := store.Recent("c", 0, 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	require.NoError(t, store.Close())
	assert.True(t, store.(*MockHistory).Closed())
}

var _ HistoryStore = (*History)(nil)
