package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripUserCount(t *testing.T) {
	tests := []struct {
		entry string
		want  string
	}{
		{"General 12", "General"},
		{"My Channel 3", "My Channel"},
		{"General", "General"},
		{"My Channel", "My Channel"},
		{"Room 0", "Room"},
		{"Room -1", "Room -1"},
		{"", ""},
		{" 5", ""},
	}

	for _, tt := range tests {
		t.Run(tt.entry, func(t *testing.T) {
			assert.Equal(t, tt.want, StripUserCount(tt.entry))
		})
	}
}

func TestParseJoinedChannel(t *testing.T) {
	tests := []struct {
		status  string
		want    string
		matched bool
	}{
		{"You joined the channel Pizza", "Pizza", true},
		{"You joined the channel My Channel", "My Channel", true},
		{"You joined the channel   Spaced", "Spaced", true},
		{"You joined the channelPizza", "", false},
		{"You joined the channel ", "", false},
		{"Welcome to the server", "", false},
		{"Alice joined the channel Pizza", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			got, ok := ParseJoinedChannel(tt.status)
			assert.Equal(t, tt.matched, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJoinedChannelStatusMatches(t *testing.T) {
	got, ok := ParseJoinedChannel(JoinedChannelStatus("General"))
	assert.True(t, ok)
	assert.Equal(t, "General", got)
}
