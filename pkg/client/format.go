// ABOUTME: Formatting utilities for client front ends
// ABOUTME: Shared functions for displaying bandwidth, byte counts, times and message groups
package client

import (
	"fmt"
	"time"

	"github.com/aeolun/neighborchat/pkg/protocol"
)

// FormatBytes formats bytes into human-readable form (B, KB, MB, etc.)
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%dB", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatBandwidth converts bytes/sec to modem-equivalent display (14.4k, 56k, etc.)
func FormatBandwidth(bytesPerSec int) string {
	bitsPerSec := bytesPerSec * 8

	switch {
	case bitsPerSec <= 14400:
		return "14.4k"
	case bitsPerSec <= 28800:
		return "28.8k"
	case bitsPerSec <= 33600:
		return "33.6k"
	case bitsPerSec <= 56000:
		return "56k"
	case bitsPerSec <= 128000:
		return "128k"
	case bitsPerSec <= 256000:
		return "256k"
	case bitsPerSec <= 512000:
		return "512k"
	case bitsPerSec <= 1024000:
		return "1Mbps"
	default:
		return fmt.Sprintf("%.1fMbps", float64(bitsPerSec)/1000000)
	}
}

// FormatRelativeTime formats a timestamp relative to now
// Returns strings like "just now", "5m ago", "2h ago", "3d ago"
func FormatRelativeTime(t time.Time) string {
	return formatRelativeTime(t, time.Now())
}

func formatRelativeTime(t, now time.Time) string {
	diff := now.Sub(t)

	if diff < time.Minute {
		return "just now"
	}
	if diff < time.Hour {
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	}
	if diff < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
}

// FormatTime renders a message timestamp as HH:MM in loc
func FormatTime(sentMillis int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(sentMillis).In(loc).Format("15:04")
}

// DisplayMessage is a chat message with its header decisions made
type DisplayMessage struct {
	protocol.ChatMessage
	ShowUser bool // first message of a group
	ShowTime bool // last message of a group
}

// GroupMessages collapses runs of messages by the same user within the same
// minute: only the first of a run shows the user and only the last shows
// the time.
func GroupMessages(msgs []protocol.ChatMessage) []DisplayMessage {
	out := make([]DisplayMessage, 0, len(msgs))
	for i, msg := range msgs {
		dm := DisplayMessage{ChatMessage: msg, ShowUser: true, ShowTime: true}
		if i > 0 {
			prev := &out[i-1]
			if prev.User == msg.User && sameMinute(prev.Sent, msg.Sent) {
				prev.ShowTime = false
				dm.ShowUser = false
			}
		}
		out = append(out, dm)
	}
	return out
}

func sameMinute(a, b int64) bool {
	// Zone offsets are whole minutes, so UTC minute buckets agree with local ones
	return time.UnixMilli(a).Truncate(time.Minute).Equal(time.UnixMilli(b).Truncate(time.Minute))
}
