package protocol

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"pgregory.net/rapid"
)

const (
	minSentMillis = -62167219200000 // 0000-01-01T00:00:00Z
	maxSentMillis = 253402300799999 // 9999-12-31T23:59:59.999Z
)

func drawUUID(t *rapid.T, label string) uuid.UUID {
	var id uuid.UUID
	copy(id[:], rapid.SliceOfN(rapid.Byte(), 16, 16).Draw(t, label))
	return id
}

func drawOptionalString(t *rapid.T, label string) *string {
	if !rapid.Bool().Draw(t, label+"Present") {
		return nil
	}
	s := rapid.String().Draw(t, label)
	return &s
}

func drawChatMessage(t *rapid.T) ChatMessage {
	m := ChatMessage{
		ID:              drawUUID(t, "id"),
		Message:         rapid.String().Draw(t, "message"),
		User:            rapid.String().Draw(t, "user"),
		DirectMessageTo: drawOptionalString(t, "directMessageTo"),
		Sent:            rapid.Int64Range(minSentMillis, maxSentMillis).Draw(t, "sent"),
	}
	if rapid.Bool().Draw(t, "hasReply") {
		id := drawUUID(t, "inReplyTo")
		m.InReplyTo = &id
	}
	return m
}

// drawChannels never returns nil, since a nil list means "request"
func drawChannels(t *rapid.T) []string {
	channels := rapid.SliceOf(rapid.String()).Draw(t, "channels")
	if channels == nil {
		channels = []string{}
	}
	return channels
}

func drawPacket(t *rapid.T) Packet {
	switch rapid.IntRange(0, 5).Draw(t, "variant") {
	case 0:
		return ErrorPacket{
			Error:          rapid.String().Draw(t, "error"),
			ClientShutdown: rapid.Bool().Draw(t, "clientshutdown"),
		}
	case 1:
		return StatusPacket{Status: rapid.String().Draw(t, "status")}
	case 2:
		return drawChatMessage(t)
	case 3:
		return JoinChannelPacket{Channel: rapid.String().Draw(t, "channel")}
	case 4:
		return ChangeTopicPacket{Topic: rapid.String().Draw(t, "topic")}
	default:
		if rapid.Bool().Draw(t, "isRequest") {
			return ListChannelsPacket{}
		}
		return ListChannelsPacket{Channels: drawChannels(t)}
	}
}

// TestPacketRoundTrip checks decode(encode(p)) == p for every variant
func TestPacketRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		original := drawPacket(t)

		data, err := Encode(original)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}

		decoded, err := Decode(data)
		if err != nil {
			t.Fatalf("decode failed: %v (line %s)", err, data)
		}

		if !reflect.DeepEqual(decoded, original) {
			t.Fatalf("round trip mismatch:\n got  %#v\n want %#v", decoded, original)
		}
	})
}

// TestListChannelsNilVersusEmpty checks the request/response distinction survives encoding
func TestListChannelsNilVersusEmpty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		channels := drawChannels(t)
		original := ListChannelsPacket{Channels: channels}

		data, err := Encode(original)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		decoded, err := Decode(data)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}

		lc := decoded.(ListChannelsPacket)
		if lc.IsRequest() {
			t.Fatalf("response with %d channels decoded as request", len(channels))
		}
	})
}

// TestLineRoundTrip checks that a stream of encoded lines reads back in order
func TestLineRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		packets := rapid.SliceOfN(rapid.Custom(drawPacket), 0, 20).Draw(t, "packets")

		var buf bytes.Buffer
		for _, p := range packets {
			if _, err := WriteLine(&buf, p); err != nil {
				t.Fatalf("write failed: %v", err)
			}
		}

		lr := NewLineReader(&buf)
		for i, want := range packets {
			line, err := lr.ReadLine()
			if err != nil {
				t.Fatalf("read %d failed: %v", i, err)
			}
			got, err := Decode(line)
			if err != nil {
				t.Fatalf("decode %d failed: %v", i, err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("packet %d mismatch: got %#v, want %#v", i, got, want)
			}
		}
		if _, err := lr.ReadLine(); err == nil {
			t.Fatalf("expected EOF after %d packets", len(packets))
		}
	})
}

// TestStripUserCountProperty checks names survive a format/strip cycle
func TestStripUserCountProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.StringMatching(`[A-Za-z][A-Za-z ]{0,20}[A-Za-z]`).Draw(t, "name")
		users := rapid.IntRange(0, 10000).Draw(t, "users")

		if got := StripUserCount(ChannelEntry(name, users)); got != name {
			t.Fatalf("StripUserCount(%q) = %q, want %q", ChannelEntry(name, users), got, name)
		}
	})
}
