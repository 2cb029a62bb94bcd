package server

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/aeolun/neighborchat/pkg/protocol"
	"go.uber.org/zap"
)

// Errors reported back to clients
const (
	errNotInChannel     = "You are not in a channel"
	errRateLimited      = "Rate limit exceeded, slow down"
	errUnexpectedPacket = "Unexpected packet from client"
	errEmptyMessage     = "Message is empty"
	errNoRecipient      = "No such user"
	errNoUser           = "Message has no user"
)

// handlePacket dispatches a decoded packet. The returned error means the
// session can no longer be written to.
func (s *Server) handlePacket(sess *Session, p protocol.Packet) error {
	if !sess.allow() {
		s.metrics.recordRateLimited()
		return s.sendError(sess, errRateLimited)
	}

	switch p := p.(type) {
	case protocol.ListChannelsPacket:
		return s.handleListChannels(sess, p)
	case protocol.JoinChannelPacket:
		return s.handleJoinChannel(sess, p)
	case protocol.ChatMessage:
		return s.handleChat(sess, p)
	case protocol.ChangeTopicPacket:
		return s.handleChangeTopic(sess, p)
	default:
		// Error and Status only flow from server to client
		return s.sendError(sess, errUnexpectedPacket)
	}
}

func (s *Server) handleListChannels(sess *Session, p protocol.ListChannelsPacket) error {
	if !p.IsRequest() {
		return s.sendError(sess, errUnexpectedPacket)
	}

	names := s.channels.Names()
	entries := make([]string, 0, len(names))
	for _, name := range names {
		entries = append(entries, protocol.ChannelEntry(name, s.sessions.CountInChannel(name)))
	}
	return sess.Send(protocol.ListChannelsPacket{Channels: entries})
}

func (s *Server) handleJoinChannel(sess *Session, p protocol.JoinChannelPacket) error {
	name, topic, err := s.channels.Join(p.Channel)
	if err != nil {
		if errors.Is(err, ErrNoSuchChannel) {
			return s.sendError(sess, fmt.Sprintf("Channel %q does not exist", p.Channel))
		}
		return s.sendError(sess, "Channel name required")
	}

	sess.setChannel(name)
	s.logger.Debug("session joined channel", zap.Uint64("session", sess.ID), zap.String("channel", name))

	if err := sess.Send(protocol.StatusPacket{Status: protocol.JoinedChannelStatus(name)}); err != nil {
		return err
	}
	return sess.Send(protocol.ChangeTopicPacket{Topic: topic})
}

func (s *Server) handleChat(sess *Session, msg protocol.ChatMessage) error {
	channel := sess.Channel()
	if channel == "" {
		return s.sendError(sess, errNotInChannel)
	}
	if msg.Message == "" {
		return s.sendError(sess, errEmptyMessage)
	}
	if limit := s.config.MaxMessageLength; limit > 0 && utf8.RuneCountInString(msg.Message) > limit {
		return s.sendError(sess, fmt.Sprintf("Message too long (max %d characters)", limit))
	}
	msg.User = strings.TrimSpace(msg.User)
	if msg.User == "" {
		return s.sendError(sess, errNoUser)
	}
	sess.setNickname(msg.User)

	if msg.DirectMessageTo != nil {
		return s.deliverDirect(sess, msg)
	}

	s.sessions.BroadcastToChannel(channel, msg)
	return nil
}

// deliverDirect sends a direct message to every session using the target
// nickname, plus an echo to the sender
func (s *Server) deliverDirect(sess *Session, msg protocol.ChatMessage) error {
	targets := s.sessions.withNickname(*msg.DirectMessageTo)
	if len(targets) == 0 {
		return s.sendError(sess, errNoRecipient+": "+*msg.DirectMessageTo)
	}

	echo := true
	for _, t := range targets {
		if t.ID == sess.ID {
			echo = false
		}
	}
	if echo {
		targets = append(targets, sess)
	}
	s.sessions.sendAll(targets, msg)
	return nil
}

func (s *Server) handleChangeTopic(sess *Session, p protocol.ChangeTopicPacket) error {
	channel := sess.Channel()
	if channel == "" {
		return s.sendError(sess, errNotInChannel)
	}
	if err := s.channels.SetTopic(channel, p.Topic); err != nil {
		return s.sendError(sess, err.Error())
	}

	s.sessions.BroadcastToChannel(channel, p)
	return nil
}

func (s *Server) sendError(sess *Session, message string) error {
	return sess.Send(protocol.ErrorPacket{Error: message})
}
