package alert

import (
	"context"

	"go.uber.org/zap"
)

// LogChannel writes alerts to the log when no mail transport is configured.
type LogChannel struct {
	log *zap.Logger
}

func NewLogChannel(log *zap.Logger) *LogChannel {
	return &LogChannel{log: log}
}

func (l *LogChannel) SendOperatorAlert(_ context.Context, subject, htmlBody, to string) error {
	l.log.Warn("operator alert",
		zap.String("subject", subject),
		zap.String("to", to),
		zap.Int("body_bytes", len(htmlBody)),
	)
	return nil
}
