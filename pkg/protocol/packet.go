package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PacketType is the integer discriminant carried in the "type" field of every line
type PacketType int

const (
	TypeError        PacketType = -1
	TypeStatus       PacketType = 0
	TypeChat         PacketType = 1
	TypeJoinChannel  PacketType = 2
	TypeChangeTopic  PacketType = 3
	TypeListChannels PacketType = 4
)

// String returns a readable name for the packet type
func (t PacketType) String() string {
	switch t {
	case TypeError:
		return "error"
	case TypeStatus:
		return "status"
	case TypeChat:
		return "chat"
	case TypeJoinChannel:
		return "join_channel"
	case TypeChangeTopic:
		return "change_topic"
	case TypeListChannels:
		return "list_channels"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Packet is one message on the wire. The set of implementations is closed:
// ErrorPacket, StatusPacket, ChatMessage, JoinChannelPacket, ChangeTopicPacket
// and ListChannelsPacket.
type Packet interface {
	Type() PacketType
	isPacket()
}

// ErrorPacket is sent by the server when something went wrong.
// ClientShutdown hints that the server is about to close the socket.
type ErrorPacket struct {
	Error          string `json:"error"`
	ClientShutdown bool   `json:"clientshutdown"`
}

// StatusPacket carries free-form server status text
type StatusPacket struct {
	Status string `json:"status"`
}

// ChatMessage is a single chat line. Sent is milliseconds since the Unix epoch.
type ChatMessage struct {
	ID              uuid.UUID  `json:"id"`
	InReplyTo       *uuid.UUID `json:"inReplyTo,omitempty"`
	Message         string     `json:"message"`
	User            string     `json:"user"`
	DirectMessageTo *string    `json:"directMessageTo,omitempty"`
	Sent            int64      `json:"sent"`
}

// JoinChannelPacket asks the server to move the client into a channel
type JoinChannelPacket struct {
	Channel string `json:"channel"`
}

// ChangeTopicPacket carries the topic of the current channel
type ChangeTopicPacket struct {
	Topic string `json:"topic"`
}

// ListChannelsPacket is a request when Channels is nil and a response otherwise
type ListChannelsPacket struct {
	Channels []string `json:"channels,omitempty"`
}

func (ErrorPacket) Type() PacketType        { return TypeError }
func (StatusPacket) Type() PacketType       { return TypeStatus }
func (ChatMessage) Type() PacketType        { return TypeChat }
func (JoinChannelPacket) Type() PacketType  { return TypeJoinChannel }
func (ChangeTopicPacket) Type() PacketType  { return TypeChangeTopic }
func (ListChannelsPacket) Type() PacketType { return TypeListChannels }

func (ErrorPacket) isPacket()        {}
func (StatusPacket) isPacket()       {}
func (ChatMessage) isPacket()        {}
func (JoinChannelPacket) isPacket()  {}
func (ChangeTopicPacket) isPacket()  {}
func (ListChannelsPacket) isPacket() {}

// IsRequest reports whether the packet is a channel list request rather than a response
func (p ListChannelsPacket) IsRequest() bool {
	return p.Channels == nil
}

// Time returns the sent timestamp as a UTC time
func (m ChatMessage) Time() time.Time {
	return time.UnixMilli(m.Sent).UTC()
}

// IsDirect reports whether the message was addressed to a single user
func (m ChatMessage) IsDirect() bool {
	return m.DirectMessageTo != nil
}

// validTimestamp reports whether ms can be shown as a calendar date
func validTimestamp(ms int64) bool {
	// Guard against overflow inside time.UnixMilli for extreme values
	const maxAbs = int64(1) << 52
	if ms > maxAbs || ms < -maxAbs {
		return false
	}
	year := time.UnixMilli(ms).UTC().Year()
	return year >= 0 && year <= 9999
}

// Encode converts a packet to a JSON object with an injected "type" field.
// The result has no trailing newline, see EncodeLine.
func Encode(p Packet) ([]byte, error) {
	var v any
	switch p := p.(type) {
	case ErrorPacket:
		v = struct {
			Type PacketType `json:"type"`
			ErrorPacket
		}{TypeError, p}
	case StatusPacket:
		v = struct {
			Type PacketType `json:"type"`
			StatusPacket
		}{TypeStatus, p}
	case ChatMessage:
		if !validTimestamp(p.Sent) {
			return nil, fmt.Errorf("%w: %d", ErrInvalidTimestamp, p.Sent)
		}
		v = struct {
			Type PacketType `json:"type"`
			ChatMessage
		}{TypeChat, p}
	case JoinChannelPacket:
		v = struct {
			Type PacketType `json:"type"`
			JoinChannelPacket
		}{TypeJoinChannel, p}
	case ChangeTopicPacket:
		v = struct {
			Type PacketType `json:"type"`
			ChangeTopicPacket
		}{TypeChangeTopic, p}
	case ListChannelsPacket:
		// omitempty would drop an empty, non-nil list, which is a valid response
		if p.Channels != nil {
			v = struct {
				Type     PacketType `json:"type"`
				Channels []string   `json:"channels"`
			}{TypeListChannels, p.Channels}
		} else {
			v = struct {
				Type PacketType `json:"type"`
			}{TypeListChannels}
		}
	case nil:
		return nil, ErrNilPacket
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownPacketType, p)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s packet: %w", p.Type(), err)
	}
	return data, nil
}

// EncodeLine encodes a packet followed by exactly one newline
func EncodeLine(p Packet) ([]byte, error) {
	data, err := Encode(p)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Decode parses one line of JSON (without its newline) into a packet.
// All failures are returned as *DecodeError.
func Decode(line []byte) (Packet, error) {
	line = bytes.TrimSpace(line)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return nil, newDecodeError(line, "", fmt.Errorf("%w: %v", ErrMalformedJSON, err))
	}
	if fields == nil {
		return nil, newDecodeError(line, "", fmt.Errorf("%w: not an object", ErrMalformedJSON))
	}

	d := fieldDecoder{fields: fields}
	t, err := d.int64("type")
	if err != nil {
		return nil, newDecodeError(line, "type", err)
	}

	var p Packet
	switch PacketType(t) {
	case TypeError:
		p, err = d.errorPacket()
	case TypeStatus:
		p, err = d.statusPacket()
	case TypeChat:
		p, err = d.chatMessage()
	case TypeJoinChannel:
		p, err = d.joinChannel()
	case TypeChangeTopic:
		p, err = d.changeTopic()
	case TypeListChannels:
		p, err = d.listChannels()
	default:
		return nil, newDecodeError(line, "type", fmt.Errorf("%w: %d", ErrUnknownPacketType, t))
	}
	if err != nil {
		return nil, newDecodeError(line, d.field, err)
	}
	return p, nil
}

// fieldDecoder pulls named fields out of a decoded JSON object and remembers
// the last field it looked at so errors can name it.
type fieldDecoder struct {
	fields map[string]json.RawMessage
	field  string
}

func (d *fieldDecoder) raw(name string) (json.RawMessage, bool) {
	d.field = name
	raw, ok := d.fields[name]
	if !ok || string(raw) == "null" {
		return nil, false
	}
	return raw, true
}

func (d *fieldDecoder) string(name string) (string, error) {
	raw, ok := d.raw(name)
	if !ok {
		return "", ErrMissingField
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: expected string", ErrInvalidField)
	}
	return s, nil
}

func (d *fieldDecoder) optionalString(name string) (*string, error) {
	if _, ok := d.raw(name); !ok {
		return nil, nil
	}
	s, err := d.string(name)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (d *fieldDecoder) int64(name string) (int64, error) {
	raw, ok := d.raw(name)
	if !ok {
		return 0, ErrMissingField
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("%w: expected integer", ErrInvalidField)
	}
	return n, nil
}

// bool accepts both JSON booleans and the integers 0 and 1
func (d *fieldDecoder) bool(name string) (bool, error) {
	raw, ok := d.raw(name)
	if !ok {
		return false, ErrMissingField
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil && (n == 0 || n == 1) {
		return n == 1, nil
	}
	return false, fmt.Errorf("%w: expected boolean", ErrInvalidField)
}

func (d *fieldDecoder) id(name string) (uuid.UUID, error) {
	s, err := d.string(name)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	return id, nil
}

func (d *fieldDecoder) optionalID(name string) (*uuid.UUID, error) {
	if _, ok := d.raw(name); !ok {
		return nil, nil
	}
	id, err := d.id(name)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (d *fieldDecoder) errorPacket() (Packet, error) {
	msg, err := d.string("error")
	if err != nil {
		return nil, err
	}
	shutdown, err := d.bool("clientshutdown")
	if err != nil {
		return nil, err
	}
	return ErrorPacket{Error: msg, ClientShutdown: shutdown}, nil
}

func (d *fieldDecoder) statusPacket() (Packet, error) {
	status, err := d.string("status")
	if err != nil {
		return nil, err
	}
	return StatusPacket{Status: status}, nil
}

func (d *fieldDecoder) chatMessage() (Packet, error) {
	var (
		m   ChatMessage
		err error
	)
	if m.ID, err = d.id("id"); err != nil {
		return nil, err
	}
	if m.InReplyTo, err = d.optionalID("inReplyTo"); err != nil {
		return nil, err
	}
	if m.Message, err = d.string("message"); err != nil {
		return nil, err
	}
	if m.User, err = d.string("user"); err != nil {
		return nil, err
	}
	if m.DirectMessageTo, err = d.optionalString("directMessageTo"); err != nil {
		return nil, err
	}
	if m.Sent, err = d.int64("sent"); err != nil {
		return nil, err
	}
	if !validTimestamp(m.Sent) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTimestamp, m.Sent)
	}
	return m, nil
}

func (d *fieldDecoder) joinChannel() (Packet, error) {
	channel, err := d.string("channel")
	if err != nil {
		return nil, err
	}
	return JoinChannelPacket{Channel: channel}, nil
}

func (d *fieldDecoder) changeTopic() (Packet, error) {
	topic, err := d.string("topic")
	if err != nil {
		return nil, err
	}
	return ChangeTopicPacket{Topic: topic}, nil
}

func (d *fieldDecoder) listChannels() (Packet, error) {
	raw, ok := d.raw("channels")
	if !ok {
		return ListChannelsPacket{}, nil
	}
	var channels []string
	if err := json.Unmarshal(raw, &channels); err != nil {
		return nil, fmt.Errorf("%w: expected array of strings", ErrInvalidField)
	}
	if channels == nil {
		channels = []string{}
	}
	return ListChannelsPacket{Channels: channels}, nil
}
