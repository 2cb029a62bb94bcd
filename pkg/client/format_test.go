package client

import (
	"testing"
	"time"

	"github.com/aeolun/neighborchat/pkg/protocol"
	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512B", FormatBytes(512))
	assert.Equal(t, "1.0KB", FormatBytes(1024))
	assert.Equal(t, "1.5MB", FormatBytes(1536*1024))
}

func TestFormatBandwidth(t *testing.T) {
	assert.Equal(t, "28.8k", FormatBandwidth(3600))
	assert.Equal(t, "56k", FormatBandwidth(7000))
	assert.Equal(t, "8.0Mbps", FormatBandwidth(1000000))
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "just now", formatRelativeTime(now.Add(-30*time.Second), now))
	assert.Equal(t, "5m ago", formatRelativeTime(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3h ago", formatRelativeTime(now.Add(-3*time.Hour), now))
	assert.Equal(t, "2d ago", formatRelativeTime(now.Add(-49*time.Hour), now))
}

func TestFormatTime(t *testing.T) {
	sent := time.Date(2024, 5, 1, 9, 7, 59, 0, time.UTC).UnixMilli()
	assert.Equal(t, "09:07", FormatTime(sent, time.UTC))

	tokyo := time.FixedZone("JST", 9*60*60)
	assert.Equal(t, "18:07", FormatTime(sent, tokyo))
}

func TestGroupMessages(t *testing.T) {
	base := time.Date(2024, 5, 1, 9, 7, 0, 0, time.UTC).UnixMilli()
	msgs := []protocol.ChatMessage{
		{User: "ann", Message: "1", Sent: base},
		{User: "ann", Message: "2", Sent: base + 30_000},
		{User: "ann", Message: "3", Sent: base + 59_000},
		{User: "bob", Message: "4", Sent: base + 59_500},
		{User: "bob", Message: "5", Sent: base + 61_000}, // next minute
	}

	got := GroupMessages(msgs)

	type header struct{ user, time bool }
	var headers []header
	for _, m := range got {
		headers = append(headers, header{m.ShowUser, m.ShowTime})
	}
	assert.Equal(t, []header{
		{true, false},
		{false, false},
		{false, true},
		{true, true},
		{true, true},
	}, headers)
	assert.Equal(t, "3", got[2].Message)
}

func TestGroupMessagesEmpty(t *testing.T) {
	assert.Empty(t, GroupMessages(nil))
}
