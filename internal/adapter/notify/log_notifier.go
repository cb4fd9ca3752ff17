// Package notify delivers outbound notifications.
package notify

import (
	"context"
	"log/slog"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
)

// LogNotifier writes notifications to the structured log. It stands in for an
// email or SMS provider until one is configured.
type LogNotifier struct {
	logger *slog.Logger
}

var _ domain.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, msg domain.Notification) error {
	n.logger.InfoContext(ctx, "Notification sent",
		"user_id", msg.UserID,
		"email", msg.Email,
		"subject", msg.Subject,
	)
	return nil
}
