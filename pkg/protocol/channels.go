package protocol

import (
	"regexp"
	"strconv"
	"strings"
)

// joinedChannelPattern matches the status line the server sends after a
// successful join. It is the only structured signal inside a Status packet.
var joinedChannelPattern = regexp.MustCompile(`^You joined the channel\s+(.+)$`)

// JoinedChannelStatus builds the status line announcing a successful join
func JoinedChannelStatus(channel string) string {
	return "You joined the channel " + channel
}

// ParseJoinedChannel extracts the channel name from a join status line
func ParseJoinedChannel(status string) (string, bool) {
	m := joinedChannelPattern.FindStringSubmatch(status)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// StripUserCount turns a channel list entry such as "My Channel 3" into the
// bare channel name. Only a trailing numeric token is dropped, so an entry
// without a count such as "My Channel" keeps its full name rather than
// losing its last word.
func StripUserCount(entry string) string {
	i := strings.LastIndexByte(entry, ' ')
	if i < 0 {
		return entry
	}
	if _, err := strconv.ParseUint(entry[i+1:], 10, 32); err != nil {
		return entry
	}
	return entry[:i]
}

// ChannelEntry formats a channel list entry the way the server sends it
func ChannelEntry(name string, users int) string {
	return name + " " + strconv.Itoa(users)
}
