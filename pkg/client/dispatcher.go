package client

import (
	"github.com/aeolun/neighborchat/pkg/protocol"
	"go.uber.org/zap"
)

// Dispatcher applies inbound packets to the chat state and the message sink.
// It is only ever called from the read loop, so packets are applied in
// wire order by a single writer.
type Dispatcher struct {
	state  *ChatState
	sink   MessageSink
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher writing into state and filing chat
// messages into sink
func NewDispatcher(state *ChatState, sink MessageSink) *Dispatcher {
	return &Dispatcher{
		state:  state,
		sink:   sink,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for dispatch events
func (d *Dispatcher) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d.logger = logger
}

// Dispatch applies one packet
func (d *Dispatcher) Dispatch(p protocol.Packet) {
	switch pkt := p.(type) {
	case protocol.ListChannelsPacket:
		d.handleListChannels(pkt)
	case protocol.ChangeTopicPacket:
		d.state.setTopic(pkt.Topic)
	case protocol.ChatMessage:
		d.handleChat(pkt)
	case protocol.ErrorPacket:
		d.handleError(pkt)
	case protocol.StatusPacket:
		d.handleStatus(pkt)
	case protocol.JoinChannelPacket:
		// Clients send joins; a server never should
		d.logger.Warn("unexpected join channel packet from server", zap.String("channel", pkt.Channel))
	default:
		d.logger.Warn("unhandled packet", zap.Any("packet", p))
	}
}

func (d *Dispatcher) handleListChannels(pkt protocol.ListChannelsPacket) {
	if pkt.IsRequest() {
		d.logger.Debug("ignoring channel list request from server")
		return
	}

	names := make([]string, 0, len(pkt.Channels))
	for _, entry := range pkt.Channels {
		names = append(names, protocol.StripUserCount(entry))
	}
	d.state.replaceChannels(names)
	d.logger.Debug("channel list updated", zap.Int("channels", len(names)))
}

func (d *Dispatcher) handleChat(msg protocol.ChatMessage) {
	// Messages carry no channel; they belong to whatever channel we are in
	channel := d.state.ActiveChannel()

	if d.sink != nil {
		if err := d.sink.Append(channel, msg); err != nil {
			d.logger.Error("failed to store chat message",
				zap.String("channel", channel),
				zap.Stringer("id", msg.ID),
				zap.Error(err))
		}
	}

	d.state.publish(Event{Kind: EventMessage, Channel: channel, Message: &msg})
}

func (d *Dispatcher) handleError(pkt protocol.ErrorPacket) {
	if pkt.ClientShutdown {
		d.logger.Warn("server error, server requested client shutdown", zap.String("error", pkt.Error))
	} else {
		d.logger.Warn("server error", zap.String("error", pkt.Error))
	}
	d.state.publish(Event{Kind: EventServerError, Text: pkt.Error})
}

func (d *Dispatcher) handleStatus(pkt protocol.StatusPacket) {
	if channel, ok := protocol.ParseJoinedChannel(pkt.Status); ok {
		d.state.setActiveChannel(channel)
		d.logger.Info("joined channel", zap.String("channel", channel))
		return
	}

	d.logger.Info("server status", zap.String("status", pkt.Status))
	d.state.publish(Event{Kind: EventStatus, Text: pkt.Status})
}
