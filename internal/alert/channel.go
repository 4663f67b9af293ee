package alert

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Neskrux/CrmInvest-sub003/internal/config"
)

// Channel delivers operator-facing e-mail. Callers log and drop its errors.
type Channel interface {
	SendOperatorAlert(ctx context.Context, subject, htmlBody, to string) error
}

// New picks the transport configured in cfg.Alert.
func New(cfg *config.Config, log *zap.Logger) (Channel, error) {
	log = log.Named("alert")
	switch transport := cfg.Alert.Transport(); transport {
	case config.TransportResend:
		log.Info("operator alerts via resend", zap.String("to", cfg.Alert.To))
		return NewResendChannel(cfg.Alert), nil
	case config.TransportSMTP:
		log.Info("operator alerts via smtp", zap.String("host", cfg.Alert.SMTPHost), zap.String("to", cfg.Alert.To))
		return NewSMTPChannel(cfg.Alert), nil
	case config.TransportLog:
		log.Warn("no mail transport configured, operator alerts are only logged")
		return NewLogChannel(log), nil
	default:
		return nil, fmt.Errorf("unknown alert transport %q", transport)
	}
}
