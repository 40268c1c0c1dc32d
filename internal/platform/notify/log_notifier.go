// Package notify delivers verification codes to the outside world.
package notify

import (
	"context"

	"go.uber.org/zap"

	"account_backend/internal/feature/auth/usecase"
)

// LogNotifier writes notifications to the log instead of delivering them.
// Codes are printed at debug level only, for local development.
type LogNotifier struct {
	logger *zap.Logger
}

var _ usecase.Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification. It never fails.
func (n *LogNotifier) Notify(_ context.Context, msg usecase.Notification) error {
	n.logger.Info("verification code issued",
		zap.String("account_id", msg.AccountID),
		zap.String("channel", string(msg.Channel)),
		zap.String("purpose", string(msg.Purpose)))
	n.logger.Debug("verification code",
		zap.String("account_id", msg.AccountID),
		zap.String("code", msg.Code))
	return nil
}
