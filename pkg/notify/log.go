package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes deliveries to the log instead of sending anything.
// For development and demo runs.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{
		logger: slog.Default().With("component", "notify.log"),
	}
}

// Deliver logs the message and reports success.
func (n *LogNotifier) Deliver(ctx context.Context, recipient, subject, body string) error {
	n.logger.Info("notification delivered (log only)",
		"recipient", recipient,
		"subject", subject,
		"body_length", len(body),
	)
	return nil
}
