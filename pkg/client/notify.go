package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

const notificationPreviewRunes = 100

// Notifier raises a user-visible alert outside the chat window
type Notifier interface {
	Notify(title, body string) error
}

// DesktopNotifier sends notifications through the operating system
type DesktopNotifier struct {
	IconPath string
}

// Notify implements Notifier
func (n DesktopNotifier) Notify(title, body string) error {
	return beeep.Notify(title, body, n.IconPath)
}

// WatchNotifications raises a notification for every direct message
// addressed to the current nickname and for connection failures. It
// returns when ctx is cancelled. Notification errors are logged only.
func WatchNotifications(ctx context.Context, state *ChatState, notifier Notifier, nickname func() string, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	events, unsubscribe := state.Subscribe(64)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}

			title, body, notify := notificationFor(ev, nickname())
			if !notify {
				continue
			}
			if err := notifier.Notify(title, body); err != nil {
				logger.Debug("failed to send desktop notification", zap.Error(err))
			}
		}
	}
}

func notificationFor(ev Event, me string) (title, body string, ok bool) {
	switch ev.Kind {
	case EventMessage:
		msg := ev.Message
		if msg == nil || !msg.IsDirect() || me == "" {
			return "", "", false
		}
		if *msg.DirectMessageTo != me || msg.User == me {
			return "", "", false
		}
		return fmt.Sprintf("neighborchat - %s", msg.User), truncateRunes(msg.Message, notificationPreviewRunes), true

	case EventNotification:
		if ev.Text != ConnectErrorNotification {
			return "", "", false
		}
		return "neighborchat", ev.Text, true
	}
	return "", "", false
}

func truncateRunes(s string, max int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max-3]) + "..."
}
