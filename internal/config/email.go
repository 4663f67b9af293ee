package config

import "net/mail"

// Alert configures the operator e-mail side channel. Resend is preferred
// when an API key is present, SMTP otherwise; with neither, alerts are only
// logged.
type Alert struct {
	To           string `envconfig:"EMAIL_TO"`
	From         string `envconfig:"EMAIL_FROM" default:"CRM Alertas <alertas@crm.local>"`
	ResendAPIKey string `envconfig:"RESEND_API_KEY"`
	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser     string `envconfig:"SMTP_USER"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
}

const (
	TransportResend = "resend"
	TransportSMTP   = "smtp"
	TransportLog    = "log"
)

// Transport names the mail transport the alert channel will use.
func (a Alert) Transport() string {
	switch {
	case a.To == "":
		return TransportLog
	case a.ResendAPIKey != "":
		return TransportResend
	case a.SMTPHost != "":
		return TransportSMTP
	default:
		return TransportLog
	}
}

func (a Alert) Validate() error {
	if a.To == "" {
		return nil
	}
	if _, err := mail.ParseAddress(a.To); err != nil {
		return &ConfigurationError{Field: "ALERT_EMAIL_TO", Reason: err.Error()}
	}
	if a.Transport() != TransportLog {
		if _, err := mail.ParseAddress(a.From); err != nil {
			return &ConfigurationError{Field: "ALERT_EMAIL_FROM", Reason: err.Error()}
		}
	}
	return nil
}
