package alert

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v2"

	"github.com/Neskrux/CrmInvest-sub003/internal/config"
)

type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendChannel sends alerts through the Resend API.
type ResendChannel struct {
	emails emailSender
	from   string
}

func NewResendChannel(cfg config.Alert) *ResendChannel {
	client := resend.NewClient(cfg.ResendAPIKey)
	return &ResendChannel{emails: client.Emails, from: cfg.From}
}

func (r *ResendChannel) SendOperatorAlert(ctx context.Context, subject, htmlBody, to string) error {
	if to == "" {
		return errors.New("alert recipient is empty")
	}
	sent, err := r.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
	})
	if err != nil {
		return fmt.Errorf("send alert via resend: %w", err)
	}
	if sent == nil || sent.Id == "" {
		return errors.New("send alert via resend: empty response")
	}
	return nil
}
