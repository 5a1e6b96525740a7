package lark

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/yacht-customization/internal/application/port"
	"github.com/garyjia/yacht-customization/internal/domain/entity"
)

// textSender is the part of Messenger the notifier needs
type textSender interface {
	SendText(ctx context.Context, openID, text string) (string, error)
}

// Notifier delivers workflow notifications as Lark text messages
type Notifier struct {
	sender textSender
	logger *zap.Logger
}

// NewNotifier creates a Lark-backed port.Notifier
func NewNotifier(messenger *Messenger, logger *zap.Logger) *Notifier {
	return &Notifier{
		sender: messenger,
		logger: logger,
	}
}

// Notify sends message to the Lark account of user
func (n *Notifier) Notify(ctx context.Context, user *entity.User, message string) error {
	if user.LarkOpenID == "" {
		return fmt.Errorf("user %s: %w", user.ID, ErrEmptyRecipient)
	}
	if _, err := n.sender.SendText(ctx, user.LarkOpenID, message); err != nil {
		return fmt.Errorf("lark notify %s: %w", user.ID, err)
	}
	return nil
}

// LogNotifier writes notifications to the log. Used when Lark credentials
// are not configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-only port.Notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the message it would have sent
func (n *LogNotifier) Notify(ctx context.Context, user *entity.User, message string) error {
	n.logger.Info("Notification (lark disabled)",
		zap.String("user_id", user.ID),
		zap.String("email", user.Email),
		zap.String("message", message))
	return nil
}

var (
	_ port.Notifier = (*Notifier)(nil)
	_ port.Notifier = (*LogNotifier)(nil)
)
