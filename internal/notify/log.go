package notify

import (
	"context"

	"go.uber.org/zap"
)

// Log records alerts in the application log. Used when no channel is configured.
type Log struct {
	L *zap.Logger
}

func (l Log) Send(_ context.Context, subject, message string) error {
	l.L.Info("alert", zap.String("subject", subject), zap.String("message", message))
	return nil
}

// FromURLs builds the configured channels. With none configured alerts go to
// the log only.
func FromURLs(slackURL, webhookURL string, log *zap.Logger) Notifier {
	var m Multi
	if s := NewSlack(slackURL); s != nil {
		m = append(m, s)
	}
	if w := NewWebhook(webhookURL); w != nil {
		m = append(m, w)
	}
	if len(m) == 0 {
		return Log{L: log}
	}
	return m
}
