package alert

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/Neskrux/CrmInvest-sub003/internal/config"
)

type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPChannel sends alerts through a plain SMTP relay.
type SMTPChannel struct {
	dialer mailDialer
	from   string
}

func NewSMTPChannel(cfg config.Alert) *SMTPChannel {
	return &SMTPChannel{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:   cfg.From,
	}
}

func (s *SMTPChannel) SendOperatorAlert(ctx context.Context, subject, htmlBody, to string) error {
	if to == "" {
		return errors.New("alert recipient is empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send alert via smtp: %w", err)
	}
	return nil
}
